package tls

import (
	"fmt"

	"github.com/hallbrook/gotls/stuffer"
)

// ExtensionType names a hello extension (RFC 8446 §4.2, RFC 6066, RFC 7301).
type ExtensionType uint16

// Extension types this library parses or emits.
const (
	ExtServerName                ExtensionType = 0
	ExtMaxFragmentLength         ExtensionType = 1
	ExtStatusRequest             ExtensionType = 5
	ExtSupportedGroups           ExtensionType = 10
	ExtECPointFormats            ExtensionType = 11
	ExtSignatureAlgorithms       ExtensionType = 13
	ExtALPN                      ExtensionType = 16
	ExtSignedCertTimestamp       ExtensionType = 18
	ExtExtendedMasterSecret      ExtensionType = 23
	ExtSessionTicket             ExtensionType = 35
	ExtPreSharedKey              ExtensionType = 41
	ExtEarlyData                 ExtensionType = 42
	ExtSupportedVersions         ExtensionType = 43
	ExtCookie                    ExtensionType = 44
	ExtPSKKeyExchangeModes       ExtensionType = 45
	ExtCertificateAuthorities    ExtensionType = 47
	ExtSignatureAlgorithmsCert   ExtensionType = 50
	ExtKeyShare                  ExtensionType = 51
	ExtRenegotiationInfo         ExtensionType = 65281
)

var extensionTypeNames = map[ExtensionType]string{
	ExtServerName:              "server_name",
	ExtMaxFragmentLength:       "max_fragment_length",
	ExtStatusRequest:           "status_request",
	ExtSupportedGroups:         "supported_groups",
	ExtECPointFormats:          "ec_point_formats",
	ExtSignatureAlgorithms:     "signature_algorithms",
	ExtALPN:                    "application_layer_protocol_negotiation",
	ExtSignedCertTimestamp:     "signed_certificate_timestamp",
	ExtExtendedMasterSecret:    "extended_master_secret",
	ExtSessionTicket:           "session_ticket",
	ExtPreSharedKey:            "pre_shared_key",
	ExtEarlyData:               "early_data",
	ExtSupportedVersions:       "supported_versions",
	ExtCookie:                  "cookie",
	ExtPSKKeyExchangeModes:     "psk_key_exchange_modes",
	ExtCertificateAuthorities:  "certificate_authorities",
	ExtSignatureAlgorithmsCert: "signature_algorithms_cert",
	ExtKeyShare:                "key_share",
	ExtRenegotiationInfo:       "renegotiation_info",
}

func (et ExtensionType) String() string {
	if name, ok := extensionTypeNames[et]; ok {
		return name
	}
	return fmt.Sprintf("extension_type(%d)", et)
}

func findExtension(exts []Extension, typ ExtensionType) (Extension, bool) {
	for _, e := range exts {
		if e.Type == typ {
			return e, true
		}
	}
	return Extension{}, false
}

// ParseServerNameList decodes a server_name extension's host_name entries
// (RFC 6066 §3). Only the host_name (type 0) entry kind is recognized;
// others are skipped.
func ParseServerNameList(data []byte) ([]string, error) {
	s := stuffer.New(data)
	listRaw, err := s.ReadVector16()
	if err != nil {
		return nil, errDecodeError("server_name: truncated list: %v", err)
	}
	inner := stuffer.New(listRaw)
	var names []string
	for inner.Len() > 0 {
		kind, err := inner.ReadUint8()
		if err != nil {
			return nil, errDecodeError("server_name: truncated entry type")
		}
		name, err := inner.ReadVector16()
		if err != nil {
			return nil, errDecodeError("server_name: truncated entry value")
		}
		if kind == 0 {
			names = append(names, string(name))
		}
	}
	return names, nil
}

// EncodeServerNameList builds a server_name extension payload for the given
// host names, all encoded as host_name (type 0) entries.
func EncodeServerNameList(names []string) ([]byte, error) {
	inner := stuffer.NewGrowable(32)
	for _, name := range names {
		if err := inner.WriteUint8(0); err != nil {
			return nil, err
		}
		if err := inner.WriteVector16([]byte(name)); err != nil {
			return nil, err
		}
	}
	s := stuffer.NewGrowable(inner.Len() + 2)
	if err := s.WriteVector16(inner.Bytes()); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// ParseSupportedGroups decodes a supported_groups extension.
func ParseSupportedGroups(data []byte) ([]NamedGroup, error) {
	s := stuffer.New(data)
	raw, err := s.ReadVector16()
	if err != nil {
		return nil, errDecodeError("supported_groups: truncated list: %v", err)
	}
	if len(raw)%2 != 0 {
		return nil, errDecodeError("supported_groups: odd-length list")
	}
	var groups []NamedGroup
	for i := 0; i < len(raw); i += 2 {
		groups = append(groups, NamedGroup(bo.Uint16(raw[i:])))
	}
	return groups, nil
}

// EncodeSupportedGroups builds a supported_groups extension payload.
func EncodeSupportedGroups(groups []NamedGroup) ([]byte, error) {
	body := stuffer.NewGrowable(2 * len(groups))
	for _, g := range groups {
		if err := body.WriteUint16(uint16(g)); err != nil {
			return nil, err
		}
	}
	s := stuffer.NewGrowable(body.Len() + 2)
	if err := s.WriteVector16(body.Bytes()); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// ParseSignatureAlgorithms decodes a signature_algorithms (or
// signature_algorithms_cert) extension.
func ParseSignatureAlgorithms(data []byte) ([]SignatureScheme, error) {
	s := stuffer.New(data)
	raw, err := s.ReadVector16()
	if err != nil {
		return nil, errDecodeError("signature_algorithms: truncated list: %v", err)
	}
	if len(raw)%2 != 0 {
		return nil, errDecodeError("signature_algorithms: odd-length list")
	}
	var schemes []SignatureScheme
	for i := 0; i < len(raw); i += 2 {
		schemes = append(schemes, SignatureScheme(bo.Uint16(raw[i:])))
	}
	return schemes, nil
}

// EncodeSignatureAlgorithms builds a signature_algorithms extension payload.
func EncodeSignatureAlgorithms(schemes []SignatureScheme) ([]byte, error) {
	body := stuffer.NewGrowable(2 * len(schemes))
	for _, sch := range schemes {
		if err := body.WriteUint16(uint16(sch)); err != nil {
			return nil, err
		}
	}
	s := stuffer.NewGrowable(body.Len() + 2)
	if err := s.WriteVector16(body.Bytes()); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// ParseSupportedVersionsClient decodes a ClientHello's supported_versions
// list (1-byte length prefix, unlike every other vector in this extension
// set, which the wire format genuinely uses here).
func ParseSupportedVersionsClient(data []byte) ([]ProtocolVersion, error) {
	s := stuffer.New(data)
	raw, err := s.ReadVector8()
	if err != nil {
		return nil, errDecodeError("supported_versions: truncated list: %v", err)
	}
	if len(raw)%2 != 0 {
		return nil, errDecodeError("supported_versions: odd-length list")
	}
	var versions []ProtocolVersion
	for i := 0; i < len(raw); i += 2 {
		versions = append(versions, ProtocolVersion(bo.Uint16(raw[i:])))
	}
	return versions, nil
}

// EncodeSupportedVersionsClient builds a ClientHello supported_versions
// extension payload.
func EncodeSupportedVersionsClient(versions []ProtocolVersion) ([]byte, error) {
	body := stuffer.NewGrowable(2 * len(versions))
	for _, v := range versions {
		if err := body.WriteUint16(uint16(v)); err != nil {
			return nil, err
		}
	}
	s := stuffer.NewGrowable(body.Len() + 1)
	if err := s.WriteVector8(body.Bytes()); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// ParseSupportedVersionsServer decodes a ServerHello/HelloRetryRequest's
// supported_versions extension: a single bare ProtocolVersion, no vector.
func ParseSupportedVersionsServer(data []byte) (ProtocolVersion, error) {
	if len(data) != 2 {
		return 0, errDecodeError("supported_versions: server form must be 2 bytes, got %d", len(data))
	}
	return ProtocolVersion(bo.Uint16(data)), nil
}

// EncodeSupportedVersionsServer builds a ServerHello supported_versions
// extension payload.
func EncodeSupportedVersionsServer(v ProtocolVersion) []byte {
	var buf [2]byte
	bo.PutUint16(buf[:], uint16(v))
	return buf[:]
}

// ParseKeyShareClientHello decodes a ClientHello's key_share extension.
func ParseKeyShareClientHello(data []byte) ([]KeyShareEntry, error) {
	s := stuffer.New(data)
	raw, err := s.ReadVector16()
	if err != nil {
		return nil, errDecodeError("key_share: truncated list: %v", err)
	}
	inner := stuffer.New(raw)
	var entries []KeyShareEntry
	for inner.Len() > 0 {
		group, err := inner.ReadUint16()
		if err != nil {
			return nil, errDecodeError("key_share: truncated group")
		}
		ke, err := inner.ReadVector16()
		if err != nil {
			return nil, errDecodeError("key_share: truncated key_exchange")
		}
		entries = append(entries, KeyShareEntry{Group: NamedGroup(group), KeyExchange: ke})
	}
	return entries, nil
}

// EncodeKeyShareClientHello builds a ClientHello key_share extension
// payload.
func EncodeKeyShareClientHello(entries []KeyShareEntry) ([]byte, error) {
	inner := stuffer.NewGrowable(64)
	for _, e := range entries {
		if err := inner.WriteUint16(uint16(e.Group)); err != nil {
			return nil, err
		}
		if err := inner.WriteVector16(e.KeyExchange); err != nil {
			return nil, err
		}
	}
	s := stuffer.NewGrowable(inner.Len() + 2)
	if err := s.WriteVector16(inner.Bytes()); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// ParseKeyShareServerHello decodes a ServerHello's single-entry key_share
// extension.
func ParseKeyShareServerHello(data []byte) (KeyShareEntry, error) {
	s := stuffer.New(data)
	group, err := s.ReadUint16()
	if err != nil {
		return KeyShareEntry{}, errDecodeError("key_share: truncated group")
	}
	ke, err := s.ReadVector16()
	if err != nil {
		return KeyShareEntry{}, errDecodeError("key_share: truncated key_exchange")
	}
	return KeyShareEntry{Group: NamedGroup(group), KeyExchange: ke}, nil
}

// EncodeKeyShareServerHello builds a ServerHello key_share extension
// payload.
func EncodeKeyShareServerHello(e KeyShareEntry) ([]byte, error) {
	s := stuffer.NewGrowable(4 + len(e.KeyExchange))
	if err := s.WriteUint16(uint16(e.Group)); err != nil {
		return nil, err
	}
	if err := s.WriteVector16(e.KeyExchange); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// ParseALPNProtocols decodes an application_layer_protocol_negotiation
// extension's protocol name list (RFC 7301 §3.1).
//
// A malformed protocol list (a length prefix that does not exactly span the
// enclosing vector) is a fatal decode_error, not a silently-ignored
// extension: every other extension parser here aborts the same way on a
// length mismatch, and ALPN carries no exception to that.
func ParseALPNProtocols(data []byte) ([]string, error) {
	s := stuffer.New(data)
	listRaw, err := s.ReadVector16()
	if err != nil {
		return nil, errDecodeError("alpn: truncated protocol_name_list: %v", err)
	}
	if s.Len() != 0 {
		return nil, errDecodeError("alpn: %d bytes after protocol_name_list", s.Len())
	}
	inner := stuffer.New(listRaw)
	var protos []string
	for inner.Len() > 0 {
		name, err := inner.ReadVector8()
		if err != nil {
			return nil, errDecodeError("alpn: truncated protocol_name")
		}
		if len(name) == 0 {
			return nil, errDecodeError("alpn: empty protocol_name")
		}
		protos = append(protos, string(name))
	}
	if len(protos) == 0 {
		return nil, errDecodeError("alpn: empty protocol_name_list")
	}
	return protos, nil
}

// EncodeALPNProtocols builds an ALPN extension payload for the given
// protocol names, most-preferred first.
func EncodeALPNProtocols(protos []string) ([]byte, error) {
	inner := stuffer.NewGrowable(32)
	for _, p := range protos {
		if err := inner.WriteVector8([]byte(p)); err != nil {
			return nil, err
		}
	}
	s := stuffer.NewGrowable(inner.Len() + 2)
	if err := s.WriteVector16(inner.Bytes()); err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// NegotiateALPN picks the first client-offered protocol present in the
// server's preference-ordered list, returning ("", false) if none match.
func NegotiateALPN(offered, supported []string) (string, bool) {
	set := make(map[string]bool, len(supported))
	for _, p := range supported {
		set[p] = true
	}
	for _, p := range offered {
		if set[p] {
			return p, true
		}
	}
	return "", false
}
