package record

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"github.com/hallbrook/gotls/suite"
)

// ErrShortRecord is returned by Open implementations when a ciphertext
// record is too short to have come from the matching Seal.
var ErrShortRecord = errors.New("record: ciphertext too short")

// Protection seals and opens one direction's record stream: client-write or
// server-write, once cryptographic parameters are installed. Before any
// keys are installed both directions use NullProtection.
type Protection interface {
	// Seal protects plaintext for sequence number seq, content type ct, on
	// the wire as version. It returns the wire content type to put in the
	// record header and the protected payload.
	Seal(seq uint64, ct ContentType, version ProtocolVersion, plaintext []byte) (wireCT ContentType, payload []byte)
	// Open reverses Seal: given the record header's wire content type and
	// the payload, it recovers the real content type and plaintext.
	Open(seq uint64, wireCT ContentType, version ProtocolVersion, payload []byte) (ct ContentType, plaintext []byte, err error)
}

// NullProtection passes records through unmodified, used before the
// handshake installs any keys.
type NullProtection struct{}

// Seal implements Protection.
func (NullProtection) Seal(_ uint64, ct ContentType, _ ProtocolVersion, plaintext []byte) (ContentType, []byte) {
	return ct, plaintext
}

// Open implements Protection.
func (NullProtection) Open(_ uint64, wireCT ContentType, _ ProtocolVersion, payload []byte) (ContentType, []byte, error) {
	return wireCT, payload, nil
}

// AEADProtectionMode selects how the AEAD's additional data and wire
// content type are built: TLS 1.2 keeps the real content type on the wire
// and authenticates a fixed 13-byte header; TLS 1.3 always puts
// application_data on the wire and hides the real type inside the
// encrypted inner plaintext.
type AEADProtectionMode int

// Supported AEAD framing modes.
const (
	AEADModeTLS12 AEADProtectionMode = iota
	AEADModeTLS13
)

// AEADProtection wraps a suite.AEAD for one direction of one epoch.
type AEADProtection struct {
	aead *suite.AEAD
	alg  suite.AEADAlg
	iv   []byte
	mode AEADProtectionMode
}

// NewAEADProtection builds an AEADProtection for the given algorithm, key,
// fixed IV (salt), and framing mode. For AEADModeTLS12, iv is the 4-byte
// RFC 5288 salt for AES-GCM suites or the full 12-byte implicit IV for
// ChaCha20-Poly1305 (RFC 7905 §2); explicitNonce reports which applies.
func NewAEADProtection(alg suite.AEADAlg, key, iv []byte, mode AEADProtectionMode) (*AEADProtection, error) {
	a, err := suite.NewAEAD(alg, key)
	if err != nil {
		return nil, err
	}
	return &AEADProtection{aead: a, alg: alg, iv: iv, mode: mode}, nil
}

// explicitNonce reports whether this direction carries a per-record
// explicit nonce prefixed to the ciphertext (RFC 5288 §3, TLS 1.2
// AES-GCM) rather than deriving the whole nonce implicitly from the
// sequence number (TLS 1.3, and TLS 1.2 ChaCha20-Poly1305 per RFC 7905
// §2, which deliberately reuses TLS 1.3's construction).
func (p *AEADProtection) explicitNonce() bool {
	return p.mode == AEADModeTLS12 && p.alg != suite.AEADChaCha20Poly1305
}

func (p *AEADProtection) aad12(seq uint64, ct ContentType, version ProtocolVersion, plainLen int) []byte {
	aad := make([]byte, 0, 13)
	var seqBuf [8]byte
	for i := 0; i < 8; i++ {
		seqBuf[7-i] = byte(seq >> (8 * i))
	}
	aad = append(aad, seqBuf[:]...)
	aad = append(aad, byte(ct))
	aad = append(aad, byte(version>>8), byte(version))
	aad = append(aad, byte(plainLen>>8), byte(plainLen))
	return aad
}

func (p *AEADProtection) aad13(version ProtocolVersion, ciphertextLen int) []byte {
	aad := make([]byte, 0, 5)
	aad = append(aad, byte(ContentTypeApplicationData))
	aad = append(aad, byte(version>>8), byte(version))
	aad = append(aad, byte(ciphertextLen>>8), byte(ciphertextLen))
	return aad
}

// Seal implements Protection.
func (p *AEADProtection) Seal(seq uint64, ct ContentType, version ProtocolVersion, plaintext []byte) (ContentType, []byte) {
	if p.mode == AEADModeTLS13 {
		nonce := suite.BuildNonce(p.iv, seq)
		inner := make([]byte, 0, len(plaintext)+1)
		inner = append(inner, plaintext...)
		inner = append(inner, byte(ct))
		ciphertextLen := len(inner) + p.aead.Overhead()
		aad := p.aad13(version, ciphertextLen)
		return ContentTypeApplicationData, p.aead.Seal(nil, nonce, inner, aad)
	}

	if p.explicitNonce() {
		explicit := make([]byte, suite.AEADExplicitNonceSizeTLS12)
		_, _ = rand.Read(explicit)
		nonce := suite.BuildExplicitNonce(p.iv, explicit)
		aad := p.aad12(seq, ct, version, len(plaintext))
		sealed := p.aead.Seal(nil, nonce, plaintext, aad)
		out := make([]byte, 0, len(explicit)+len(sealed))
		out = append(out, explicit...)
		out = append(out, sealed...)
		return ct, out
	}

	nonce := suite.BuildNonce(p.iv, seq)
	aad := p.aad12(seq, ct, version, len(plaintext))
	return ct, p.aead.Seal(nil, nonce, plaintext, aad)
}

// Open implements Protection.
func (p *AEADProtection) Open(seq uint64, wireCT ContentType, version ProtocolVersion, payload []byte) (ContentType, []byte, error) {
	if p.mode == AEADModeTLS13 {
		nonce := suite.BuildNonce(p.iv, seq)
		aad := p.aad13(version, len(payload))
		inner, err := p.aead.Open(nil, nonce, payload, aad)
		if err != nil {
			return ContentTypeInvalid, nil, err
		}
		i := len(inner) - 1
		for i >= 0 && inner[i] == 0 {
			i--
		}
		if i < 0 {
			return ContentTypeInvalid, nil, ErrShortRecord
		}
		return ContentType(inner[i]), inner[:i], nil
	}

	if p.explicitNonce() {
		if len(payload) < suite.AEADExplicitNonceSizeTLS12 {
			return ContentTypeInvalid, nil, ErrShortRecord
		}
		explicit := payload[:suite.AEADExplicitNonceSizeTLS12]
		ciphertext := payload[suite.AEADExplicitNonceSizeTLS12:]
		nonce := suite.BuildExplicitNonce(p.iv, explicit)
		plainLen := len(ciphertext) - p.aead.Overhead()
		if plainLen < 0 {
			return ContentTypeInvalid, nil, ErrShortRecord
		}
		aad := p.aad12(seq, wireCT, version, plainLen)
		plaintext, err := p.aead.Open(nil, nonce, ciphertext, aad)
		if err != nil {
			return ContentTypeInvalid, nil, err
		}
		return wireCT, plaintext, nil
	}

	nonce := suite.BuildNonce(p.iv, seq)
	plainLen := len(payload) - p.aead.Overhead()
	if plainLen < 0 {
		return ContentTypeInvalid, nil, ErrShortRecord
	}
	aad := p.aad12(seq, wireCT, version, plainLen)
	plaintext, err := p.aead.Open(nil, nonce, payload, aad)
	if err != nil {
		return ContentTypeInvalid, nil, err
	}
	return wireCT, plaintext, nil
}

// CBCProtection wraps a suite.Composite (CBC + HMAC) for one direction.
// Records carry an explicit per-record IV (TLS 1.1+); this repo does not
// reproduce TLS 1.0's implicit chained-IV mode, which RFC 7366 and the
// BEAST-era guidance both treat as obsolete.
type CBCProtection struct {
	composite *suite.Composite
	blockSize int
}

// NewCBCProtection builds a CBCProtection.
func NewCBCProtection(blockAlg suite.BlockAlg, blockKey []byte, macAlg suite.HashAlg, macKey []byte) (*CBCProtection, error) {
	c, err := suite.NewComposite(blockAlg, blockKey, macAlg, macKey)
	if err != nil {
		return nil, err
	}
	return &CBCProtection{composite: c, blockSize: blockAlg.BlockSize()}, nil
}

// Seal implements Protection.
func (p *CBCProtection) Seal(seq uint64, ct ContentType, version ProtocolVersion, plaintext []byte) (ContentType, []byte) {
	iv := make([]byte, p.blockSize)
	_, _ = rand.Read(iv)
	return ct, p.composite.Encrypt(iv, seq, byte(ct), uint16(version), plaintext)
}

// Open implements Protection.
func (p *CBCProtection) Open(seq uint64, wireCT ContentType, version ProtocolVersion, payload []byte) (ContentType, []byte, error) {
	plaintext, err := p.composite.Decrypt(seq, byte(wireCT), uint16(version), payload)
	if err != nil {
		return ContentTypeInvalid, nil, err
	}
	return wireCT, plaintext, nil
}

// StreamProtection wraps a suite.Stream (RC4) plus a separate HMAC for one
// direction. Carried for historical completeness; no cipher suite table
// in package tls offers RC4 for negotiation.
type StreamProtection struct {
	stream  *suite.Stream
	macAlg  suite.HashAlg
	macKey  []byte
	macSize int
}

// NewStreamProtection builds a StreamProtection.
func NewStreamProtection(alg suite.StreamAlg, key []byte, macAlg suite.HashAlg, macKey []byte) (*StreamProtection, error) {
	s, err := suite.NewStream(alg, key)
	if err != nil {
		return nil, err
	}
	return &StreamProtection{stream: s, macAlg: macAlg, macKey: macKey, macSize: macAlg.Size()}, nil
}

func streamMACInput(seq uint64, ct ContentType, version ProtocolVersion, plaintext []byte) []byte {
	buf := make([]byte, 0, 13+len(plaintext))
	var seqBuf [8]byte
	for i := 0; i < 8; i++ {
		seqBuf[7-i] = byte(seq >> (8 * i))
	}
	buf = append(buf, seqBuf[:]...)
	buf = append(buf, byte(ct))
	buf = append(buf, byte(version>>8), byte(version))
	buf = append(buf, byte(len(plaintext)>>8), byte(len(plaintext)))
	return append(buf, plaintext...)
}

// Seal implements Protection.
func (p *StreamProtection) Seal(seq uint64, ct ContentType, version ProtocolVersion, plaintext []byte) (ContentType, []byte) {
	mac, _ := suite.Sum(p.macAlg, p.macKey, streamMACInput(seq, ct, version, plaintext))
	body := append(append([]byte{}, plaintext...), mac...)
	out := make([]byte, len(body))
	p.stream.XORKeyStream(out, body)
	return ct, out
}

// Open implements Protection.
func (p *StreamProtection) Open(seq uint64, wireCT ContentType, version ProtocolVersion, payload []byte) (ContentType, []byte, error) {
	if len(payload) < p.macSize {
		return ContentTypeInvalid, nil, ErrShortRecord
	}
	body := make([]byte, len(payload))
	p.stream.XORKeyStream(body, payload)

	plainLen := len(body) - p.macSize
	plaintext := body[:plainLen]
	gotMAC := body[plainLen:]
	wantMAC, _ := suite.Sum(p.macAlg, p.macKey, streamMACInput(seq, wireCT, version, plaintext))
	if subtle.ConstantTimeCompare(wantMAC, gotMAC) != 1 {
		return ContentTypeInvalid, nil, errors.New("record: bad record MAC")
	}
	return wireCT, plaintext, nil
}
