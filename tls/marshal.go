package tls

import (
	"github.com/hallbrook/gotls/stuffer"
)

// wrapHandshake prepends the 4-byte handshake header (1-byte type, 3-byte
// length) the record layer's handshake content type carries, generalizing
// the teacher's recvClientHello header parsing to the write direction too.
func wrapHandshake(ht HandshakeType, body []byte) []byte {
	s := stuffer.NewGrowable(4 + len(body))
	_ = s.WriteUint8(uint8(ht))
	_ = s.WriteUint24(uint32(len(body)))
	_ = s.WriteBytes(body)
	return s.Bytes()
}

// unwrapHandshake reverses wrapHandshake, returning the message type, body,
// and any trailing bytes after this one message (a handshake flight may
// coalesce several messages into one record).
func unwrapHandshake(data []byte) (HandshakeType, []byte, []byte, error) {
	s := stuffer.New(data)
	htRaw, err := s.ReadUint8()
	if err != nil {
		return 0, nil, nil, errDecodeError("truncated handshake header: %v", err)
	}
	length, err := s.ReadUint24()
	if err != nil {
		return 0, nil, nil, errDecodeError("truncated handshake header: %v", err)
	}
	body := make([]byte, length)
	if err := s.ReadBytes(body); err != nil {
		return 0, nil, nil, errDecodeError("truncated handshake body: %v", err)
	}
	rest := data[s.ReadCursor():]
	return HandshakeType(htRaw), body, rest, nil
}

// Extension is one TLV entry of a hello's extensions list.
type Extension struct {
	Type ExtensionType
	Data []byte
}

func encodeExtensions(s *stuffer.Stuffer, exts []Extension) error {
	inner := stuffer.NewGrowable(64)
	for _, ext := range exts {
		if err := inner.WriteUint16(uint16(ext.Type)); err != nil {
			return err
		}
		if err := inner.WriteVector16(ext.Data); err != nil {
			return err
		}
	}
	return s.WriteVector16(inner.Bytes())
}

func decodeExtensions(s *stuffer.Stuffer) ([]Extension, error) {
	raw, err := s.ReadVector16()
	if err != nil {
		return nil, errDecodeError("truncated extensions: %v", err)
	}
	inner := stuffer.New(raw)
	var exts []Extension
	for inner.Len() > 0 {
		typ, err := inner.ReadUint16()
		if err != nil {
			return nil, errDecodeError("truncated extension header: %v", err)
		}
		data, err := inner.ReadVector16()
		if err != nil {
			return nil, errDecodeError("truncated extension body: %v", err)
		}
		exts = append(exts, Extension{Type: ExtensionType(typ), Data: data})
	}
	return exts, nil
}

// ClientHello is the client_hello handshake message (RFC 8446 §4.1.2,
// RFC 5246 §7.4.1.2 — the wire shape is unchanged across versions; only
// the extension set and semantics differ by negotiated version).
type ClientHello struct {
	LegacyVersion       ProtocolVersion
	Random              [32]byte
	SessionID           []byte
	CipherSuites        []CipherSuite
	CompressionMethods  []byte
	Extensions          []Extension
}

// Marshal encodes a ClientHello to wire bytes (without the handshake
// header).
func (ch *ClientHello) Marshal() ([]byte, error) {
	s := stuffer.NewGrowable(256)
	if err := s.WriteUint16(uint16(ch.LegacyVersion)); err != nil {
		return nil, err
	}
	if err := s.WriteBytes(ch.Random[:]); err != nil {
		return nil, err
	}
	if err := s.WriteVector8(ch.SessionID); err != nil {
		return nil, err
	}

	suites := stuffer.NewGrowable(2 * len(ch.CipherSuites))
	for _, cs := range ch.CipherSuites {
		if err := suites.WriteUint16(uint16(cs)); err != nil {
			return nil, err
		}
	}
	if err := s.WriteVector16(suites.Bytes()); err != nil {
		return nil, err
	}

	if err := s.WriteVector8(ch.CompressionMethods); err != nil {
		return nil, err
	}
	if err := encodeExtensions(s, ch.Extensions); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// UnmarshalClientHello decodes a client_hello's body (the bytes after the
// 4-byte handshake header).
func UnmarshalClientHello(data []byte) (*ClientHello, error) {
	s := stuffer.New(data)
	ch := &ClientHello{}

	v, err := s.ReadUint16()
	if err != nil {
		return nil, errDecodeError("client_hello: truncated legacy_version")
	}
	ch.LegacyVersion = ProtocolVersion(v)

	if err := s.ReadBytes(ch.Random[:]); err != nil {
		return nil, errDecodeError("client_hello: truncated random")
	}

	ch.SessionID, err = s.ReadVector8()
	if err != nil {
		return nil, errDecodeError("client_hello: truncated session_id")
	}

	suitesRaw, err := s.ReadVector16()
	if err != nil {
		return nil, errDecodeError("client_hello: truncated cipher_suites")
	}
	if len(suitesRaw)%2 != 0 {
		return nil, errDecodeError("client_hello: odd-length cipher_suites")
	}
	for i := 0; i < len(suitesRaw); i += 2 {
		ch.CipherSuites = append(ch.CipherSuites, CipherSuite(bo.Uint16(suitesRaw[i:])))
	}

	ch.CompressionMethods, err = s.ReadVector8()
	if err != nil {
		return nil, errDecodeError("client_hello: truncated compression_methods")
	}

	ch.Extensions, err = decodeExtensions(s)
	if err != nil {
		return nil, err
	}
	if s.Len() != 0 {
		return nil, errDecodeError("client_hello: trailing data, len=%d", s.Len())
	}
	return ch, nil
}

// ServerHello is the server_hello handshake message.
type ServerHello struct {
	LegacyVersion     ProtocolVersion
	Random            [32]byte
	SessionID         []byte
	CipherSuite       CipherSuite
	CompressionMethod byte
	Extensions        []Extension
}

// Marshal encodes a ServerHello to wire bytes.
func (sh *ServerHello) Marshal() ([]byte, error) {
	s := stuffer.NewGrowable(128)
	if err := s.WriteUint16(uint16(sh.LegacyVersion)); err != nil {
		return nil, err
	}
	if err := s.WriteBytes(sh.Random[:]); err != nil {
		return nil, err
	}
	if err := s.WriteVector8(sh.SessionID); err != nil {
		return nil, err
	}
	if err := s.WriteUint16(uint16(sh.CipherSuite)); err != nil {
		return nil, err
	}
	if err := s.WriteUint8(sh.CompressionMethod); err != nil {
		return nil, err
	}
	if err := encodeExtensions(s, sh.Extensions); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// UnmarshalServerHello decodes a server_hello's body.
func UnmarshalServerHello(data []byte) (*ServerHello, error) {
	s := stuffer.New(data)
	sh := &ServerHello{}

	v, err := s.ReadUint16()
	if err != nil {
		return nil, errDecodeError("server_hello: truncated legacy_version")
	}
	sh.LegacyVersion = ProtocolVersion(v)

	if err := s.ReadBytes(sh.Random[:]); err != nil {
		return nil, errDecodeError("server_hello: truncated random")
	}

	sh.SessionID, err = s.ReadVector8()
	if err != nil {
		return nil, errDecodeError("server_hello: truncated session_id")
	}

	cs, err := s.ReadUint16()
	if err != nil {
		return nil, errDecodeError("server_hello: truncated cipher_suite")
	}
	sh.CipherSuite = CipherSuite(cs)

	sh.CompressionMethod, err = s.ReadUint8()
	if err != nil {
		return nil, errDecodeError("server_hello: truncated compression_method")
	}

	sh.Extensions, err = decodeExtensions(s)
	if err != nil {
		return nil, err
	}
	if s.Len() != 0 {
		return nil, errDecodeError("server_hello: trailing data, len=%d", s.Len())
	}
	return sh, nil
}

// EncryptedExtensionsMessage is the TLS 1.3 encrypted_extensions handshake
// message: a bare extensions vector carrying the server's reply to any
// ClientHello extension that is not negotiated in Certificate or
// ServerHello itself (RFC 8446 §4.3.1).
type EncryptedExtensionsMessage struct {
	Extensions []Extension
}

// Marshal encodes an EncryptedExtensionsMessage to wire bytes.
func (m *EncryptedExtensionsMessage) Marshal() ([]byte, error) {
	s := stuffer.NewGrowable(32)
	if err := encodeExtensions(s, m.Extensions); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// UnmarshalEncryptedExtensionsMessage decodes an encrypted_extensions body.
func UnmarshalEncryptedExtensionsMessage(data []byte) (*EncryptedExtensionsMessage, error) {
	s := stuffer.New(data)
	exts, err := decodeExtensions(s)
	if err != nil {
		return nil, err
	}
	if s.Len() != 0 {
		return nil, errDecodeError("encrypted_extensions: trailing data, len=%d", s.Len())
	}
	return &EncryptedExtensionsMessage{Extensions: exts}, nil
}

// CertificateMessage is the certificate handshake message. certRequestContext
// is empty outside post-handshake client auth; it exists so the TLS 1.3 and
// TLS 1.2 wire shapes share one struct.
type CertificateMessage struct {
	CertRequestContext []byte
	CertificateList    [][]byte
}

// Marshal encodes a CertificateMessage to wire bytes.
func (c *CertificateMessage) Marshal(tls13 bool) ([]byte, error) {
	s := stuffer.NewGrowable(512)
	if tls13 {
		if err := s.WriteVector8(c.CertRequestContext); err != nil {
			return nil, err
		}
	}

	inner := stuffer.NewGrowable(512)
	for _, cert := range c.CertificateList {
		if err := inner.WriteVector24(cert); err != nil {
			return nil, err
		}
		if tls13 {
			// Per-certificate extensions; none are populated by this
			// library, but the length-prefixed empty vector must still be
			// present.
			if err := inner.WriteVector16(nil); err != nil {
				return nil, err
			}
		}
	}
	if err := s.WriteVector24(inner.Bytes()); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// UnmarshalCertificateMessage decodes a certificate message's body.
func UnmarshalCertificateMessage(data []byte, tls13 bool) (*CertificateMessage, error) {
	s := stuffer.New(data)
	c := &CertificateMessage{}

	if tls13 {
		ctx, err := s.ReadVector8()
		if err != nil {
			return nil, errDecodeError("certificate: truncated request_context")
		}
		c.CertRequestContext = ctx
	}

	listRaw, err := s.ReadVector24()
	if err != nil {
		return nil, errDecodeError("certificate: truncated certificate_list")
	}
	inner := stuffer.New(listRaw)
	for inner.Len() > 0 {
		cert, err := inner.ReadVector24()
		if err != nil {
			return nil, errDecodeError("certificate: truncated cert entry")
		}
		c.CertificateList = append(c.CertificateList, cert)
		if tls13 {
			if _, err := inner.ReadVector16(); err != nil {
				return nil, errDecodeError("certificate: truncated cert extensions")
			}
		}
	}
	return c, nil
}

// CertificateVerifyMessage is the certificate_verify handshake message.
type CertificateVerifyMessage struct {
	Scheme    SignatureScheme
	Signature []byte
}

// Marshal encodes a CertificateVerifyMessage to wire bytes.
func (c *CertificateVerifyMessage) Marshal() ([]byte, error) {
	s := stuffer.NewGrowable(16 + len(c.Signature))
	if err := s.WriteUint16(uint16(c.Scheme)); err != nil {
		return nil, err
	}
	if err := s.WriteVector16(c.Signature); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// UnmarshalCertificateVerifyMessage decodes a certificate_verify body.
func UnmarshalCertificateVerifyMessage(data []byte) (*CertificateVerifyMessage, error) {
	s := stuffer.New(data)
	scheme, err := s.ReadUint16()
	if err != nil {
		return nil, errDecodeError("certificate_verify: truncated scheme")
	}
	sig, err := s.ReadVector16()
	if err != nil {
		return nil, errDecodeError("certificate_verify: truncated signature")
	}
	return &CertificateVerifyMessage{Scheme: SignatureScheme(scheme), Signature: sig}, nil
}

// FinishedMessage is the finished handshake message: just verify_data.
type FinishedMessage struct {
	VerifyData []byte
}

// Marshal encodes a FinishedMessage to wire bytes (no length prefix; the
// handshake header alone delimits it).
func (f *FinishedMessage) Marshal() ([]byte, error) {
	return append([]byte{}, f.VerifyData...), nil
}

// UnmarshalFinishedMessage decodes a finished body of the given expected
// length (12 for TLS ≤1.2, the transcript hash size for TLS 1.3).
func UnmarshalFinishedMessage(data []byte, expectedLen int) (*FinishedMessage, error) {
	if len(data) != expectedLen {
		return nil, errDecodeError("finished: length %d, want %d", len(data), expectedLen)
	}
	return &FinishedMessage{VerifyData: append([]byte{}, data...)}, nil
}

// ServerKeyExchangeMessage carries the legacy (TLS ≤1.2) ephemeral
// (EC)DHE public value and a signature over it, grounded on
// original_source/tls/s2n_server_key_exchange.c's ECDHE path.
type ServerKeyExchangeMessage struct {
	Group     NamedGroup
	PublicKey []byte
	Scheme    SignatureScheme
	Signature []byte
}

// Marshal encodes a ServerKeyExchangeMessage to wire bytes.
func (m *ServerKeyExchangeMessage) Marshal() ([]byte, error) {
	s := stuffer.NewGrowable(16 + len(m.PublicKey) + len(m.Signature))
	if err := s.WriteUint8(3); err != nil { // curve_type = named_curve
		return nil, err
	}
	if err := s.WriteUint16(uint16(m.Group)); err != nil {
		return nil, err
	}
	if err := s.WriteVector8(m.PublicKey); err != nil {
		return nil, err
	}
	if err := s.WriteUint16(uint16(m.Scheme)); err != nil {
		return nil, err
	}
	if err := s.WriteVector16(m.Signature); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// UnmarshalServerKeyExchangeMessage decodes a server_key_exchange body.
func UnmarshalServerKeyExchangeMessage(data []byte) (*ServerKeyExchangeMessage, error) {
	s := stuffer.New(data)
	curveType, err := s.ReadUint8()
	if err != nil || curveType != 3 {
		return nil, errDecodeError("server_key_exchange: unsupported curve_type")
	}
	group, err := s.ReadUint16()
	if err != nil {
		return nil, errDecodeError("server_key_exchange: truncated group")
	}
	pub, err := s.ReadVector8()
	if err != nil {
		return nil, errDecodeError("server_key_exchange: truncated public key")
	}
	scheme, err := s.ReadUint16()
	if err != nil {
		return nil, errDecodeError("server_key_exchange: truncated scheme")
	}
	sig, err := s.ReadVector16()
	if err != nil {
		return nil, errDecodeError("server_key_exchange: truncated signature")
	}
	return &ServerKeyExchangeMessage{
		Group:     NamedGroup(group),
		PublicKey: pub,
		Scheme:    SignatureScheme(scheme),
		Signature: sig,
	}, nil
}

// ClientKeyExchangeMessage carries the client's ephemeral (EC)DHE public
// value (the RSA-encrypted-premaster-secret variant is not implemented;
// see DESIGN.md).
type ClientKeyExchangeMessage struct {
	PublicKey []byte
}

// Marshal encodes a ClientKeyExchangeMessage to wire bytes.
func (m *ClientKeyExchangeMessage) Marshal() ([]byte, error) {
	s := stuffer.NewGrowable(2 + len(m.PublicKey))
	if err := s.WriteVector8(m.PublicKey); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// UnmarshalClientKeyExchangeMessage decodes a client_key_exchange body.
func UnmarshalClientKeyExchangeMessage(data []byte) (*ClientKeyExchangeMessage, error) {
	s := stuffer.New(data)
	pub, err := s.ReadVector8()
	if err != nil {
		return nil, errDecodeError("client_key_exchange: truncated public key")
	}
	return &ClientKeyExchangeMessage{PublicKey: pub}, nil
}
