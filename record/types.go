// Package record implements the TLS record layer: 5-byte header framing,
// fragmentation to the negotiated maximum fragment length, sequence-number
// tracking, and the four record-protection shapes (null, AEAD, CBC+HMAC,
// stream+HMAC) built on package suite. It is grounded on the teacher's
// crypto/tls/record.go (ReadRecord/WriteRecord's header loop) and
// key_exchange.go's Cipher.Encrypt (the TLS 1.3 inner-plaintext framing),
// generalized to every protocol version and cipher shape instead of only
// TLS 1.3 AEAD.
package record

import "fmt"

// ContentType identifies a record's payload type.
type ContentType uint8

// Record content types (RFC 8446 §5.1).
const (
	ContentTypeInvalid          ContentType = 0
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
)

func (ct ContentType) String() string {
	switch ct {
	case ContentTypeChangeCipherSpec:
		return "change_cipher_spec"
	case ContentTypeAlert:
		return "alert"
	case ContentTypeHandshake:
		return "handshake"
	case ContentTypeApplicationData:
		return "application_data"
	}
	return fmt.Sprintf("content_type(%d)", ct)
}

// ProtocolVersion is the two-byte legacy_record_version/ProtocolVersion
// field carried in every record header and ClientHello/ServerHello.
type ProtocolVersion uint16

// Supported protocol versions.
const (
	VersionTLS10 ProtocolVersion = 0x0301
	VersionTLS11 ProtocolVersion = 0x0302
	VersionTLS12 ProtocolVersion = 0x0303
	VersionTLS13 ProtocolVersion = 0x0304
)

func (v ProtocolVersion) String() string {
	switch v {
	case VersionTLS10:
		return "TLS1.0"
	case VersionTLS11:
		return "TLS1.1"
	case VersionTLS12:
		return "TLS1.2"
	case VersionTLS13:
		return "TLS1.3"
	}
	return fmt.Sprintf("protocol_version(%#04x)", uint16(v))
}

// MaxFragmentLength is the largest plaintext payload a single record may
// carry, RFC 8446 §5.1's 2^14 bound.
const MaxFragmentLength = 1 << 14

// MaxCiphertextOverhead bounds how much larger a protected fragment may
// grow over MaxFragmentLength (content-type byte + padding + AEAD tag, or
// MAC + CBC padding): RFC 8446 allows up to 256 bytes of overhead for
// TLS 1.3 records.
const MaxCiphertextOverhead = 256

// HeaderLength is the fixed size of a record header: type, version, length.
const HeaderLength = 5
