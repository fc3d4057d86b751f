// Package tls implements the TLS 1.0–1.3 handshake state machine,
// connection object, and wire types on top of packages stuffer, suite,
// keyschedule, keyschedule13, and record.
package tls

import (
	"encoding/binary"
	"fmt"

	"github.com/hallbrook/gotls/record"
	"github.com/hallbrook/gotls/suite"
)

var bo = binary.BigEndian

// ProtocolVersion and ContentType are re-exported from package record so
// callers constructing handshake messages do not need to import both
// packages for two closely related wire types.
type ProtocolVersion = record.ProtocolVersion

// Supported protocol versions.
const (
	VersionTLS10 = record.VersionTLS10
	VersionTLS11 = record.VersionTLS11
	VersionTLS12 = record.VersionTLS12
	VersionTLS13 = record.VersionTLS13
)

// HandshakeType identifies a handshake message.
type HandshakeType uint8

// Handshake message types (RFC 8446 §4, RFC 5246 §7.4).
const (
	HandshakeTypeHelloRequest       HandshakeType = 0
	HandshakeTypeClientHello        HandshakeType = 1
	HandshakeTypeServerHello        HandshakeType = 2
	HandshakeTypeNewSessionTicket   HandshakeType = 4
	HandshakeTypeEndOfEarlyData     HandshakeType = 5
	HandshakeTypeEncryptedExtensions HandshakeType = 8
	HandshakeTypeCertificate        HandshakeType = 11
	HandshakeTypeServerKeyExchange  HandshakeType = 12
	HandshakeTypeCertificateRequest HandshakeType = 13
	HandshakeTypeServerHelloDone    HandshakeType = 14
	HandshakeTypeCertificateVerify  HandshakeType = 15
	HandshakeTypeClientKeyExchange  HandshakeType = 16
	HandshakeTypeFinished           HandshakeType = 20
	HandshakeTypeKeyUpdate          HandshakeType = 24
)

var handshakeTypeNames = map[HandshakeType]string{
	HandshakeTypeHelloRequest:       "hello_request",
	HandshakeTypeClientHello:        "client_hello",
	HandshakeTypeServerHello:        "server_hello",
	HandshakeTypeNewSessionTicket:   "new_session_ticket",
	HandshakeTypeEndOfEarlyData:     "end_of_early_data",
	HandshakeTypeEncryptedExtensions: "encrypted_extensions",
	HandshakeTypeCertificate:        "certificate",
	HandshakeTypeServerKeyExchange:  "server_key_exchange",
	HandshakeTypeCertificateRequest: "certificate_request",
	HandshakeTypeServerHelloDone:    "server_hello_done",
	HandshakeTypeCertificateVerify:  "certificate_verify",
	HandshakeTypeClientKeyExchange:  "client_key_exchange",
	HandshakeTypeFinished:           "finished",
	HandshakeTypeKeyUpdate:          "key_update",
}

func (ht HandshakeType) String() string {
	if name, ok := handshakeTypeNames[ht]; ok {
		return name
	}
	return fmt.Sprintf("handshake_type(%d)", ht)
}

// CipherSuite names a negotiated (kex, cipher, prf/hash) bundle.
type CipherSuite uint16

// Cipher suites this library negotiates, spanning TLS 1.0 legacy CBC
// suites through TLS 1.3 AEAD suites.
const (
	CipherSuiteRSAWith3DESEDECBCSHA     CipherSuite = 0x000A
	CipherSuiteRSAWithAES128CBCSHA      CipherSuite = 0x002F
	CipherSuiteRSAWithAES256CBCSHA      CipherSuite = 0x0035
	CipherSuiteRSAWithAES128CBCSHA256   CipherSuite = 0x003C
	CipherSuiteECDHERSAWithAES128CBCSHA CipherSuite = 0xC013
	CipherSuiteECDHERSAWithAES256CBCSHA CipherSuite = 0xC014
	CipherSuiteECDHERSAWithAES128GCMSHA256    CipherSuite = 0xC02F
	CipherSuiteECDHERSAWithAES256GCMSHA384    CipherSuite = 0xC030
	CipherSuiteECDHEECDSAWithAES128GCMSHA256  CipherSuite = 0xC02B
	CipherSuiteECDHEECDSAWithAES256GCMSHA384  CipherSuite = 0xC02C
	CipherSuiteECDHERSAWithChaCha20Poly1305   CipherSuite = 0xCCA8
	CipherSuiteTLS13AES128GCMSHA256           CipherSuite = 0x1301
	CipherSuiteTLS13AES256GCMSHA384           CipherSuite = 0x1302
	CipherSuiteTLS13ChaCha20Poly1305SHA256    CipherSuite = 0x1303
)

var cipherSuiteNames = map[CipherSuite]string{
	CipherSuiteRSAWith3DESEDECBCSHA:          "TLS_RSA_WITH_3DES_EDE_CBC_SHA",
	CipherSuiteRSAWithAES128CBCSHA:           "TLS_RSA_WITH_AES_128_CBC_SHA",
	CipherSuiteRSAWithAES256CBCSHA:           "TLS_RSA_WITH_AES_256_CBC_SHA",
	CipherSuiteRSAWithAES128CBCSHA256:        "TLS_RSA_WITH_AES_128_CBC_SHA256",
	CipherSuiteECDHERSAWithAES128CBCSHA:      "TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA",
	CipherSuiteECDHERSAWithAES256CBCSHA:      "TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA",
	CipherSuiteECDHERSAWithAES128GCMSHA256:   "TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256",
	CipherSuiteECDHERSAWithAES256GCMSHA384:   "TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384",
	CipherSuiteECDHEECDSAWithAES128GCMSHA256: "TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256",
	CipherSuiteECDHEECDSAWithAES256GCMSHA384: "TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384",
	CipherSuiteECDHERSAWithChaCha20Poly1305:  "TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256",
	CipherSuiteTLS13AES128GCMSHA256:          "TLS_AES_128_GCM_SHA256",
	CipherSuiteTLS13AES256GCMSHA384:          "TLS_AES_256_GCM_SHA384",
	CipherSuiteTLS13ChaCha20Poly1305SHA256:   "TLS_CHACHA20_POLY1305_SHA256",
}

func (cs CipherSuite) String() string {
	if name, ok := cipherSuiteNames[cs]; ok {
		return name
	}
	return fmt.Sprintf("cipher_suite(%#04x)", uint16(cs))
}

// certKeyType constrains which certificate key family a legacy cipher suite
// can use: the suite name itself fixes RSA vs ECDSA key exchange/
// authentication (TLS_ECDHE_RSA_* vs TLS_ECDHE_ECDSA_*), unlike TLS 1.3
// suites, which carry certKeyTypeAny because the certificate's key type is
// negotiated independently via signature_algorithms.
type certKeyType int

// Certificate key families a cipher suite may require.
const (
	certKeyTypeAny certKeyType = iota
	certKeyTypeRSA
	certKeyTypeECDSA
)

// compatible reports whether a certificate signing with scheme satisfies
// this constraint.
func (k certKeyType) compatible(scheme SignatureScheme) bool {
	return k == certKeyTypeAny || scheme.keyType() == k
}

// suiteParams describes how to build record.Protection for a negotiated
// cipher suite, and which PRF/transcript hash it uses.
type suiteParams struct {
	kind      suiteKind
	aeadAlg   suite.AEADAlg
	blockAlg  suite.BlockAlg
	macAlg    suite.HashAlg
	prfHash   suite.HashAlg
	isTLS13   bool
	// staticRSA marks the four TLS_RSA_* suites, which key-exchange by
	// encrypting the premaster secret under the server's RSA public key
	// rather than (EC)DHE. ClientKeyExchangeMessage only encodes the
	// ephemeral-public-key shape, so the legacy handshake path skips these
	// (see DESIGN.md).
	staticRSA bool
	// certKeyType is the certificate key family this suite's name commits
	// the server to (certKeyTypeAny for TLS 1.3 suites).
	certKeyType certKeyType
}

type suiteKind int

const (
	suiteKindCBC suiteKind = iota
	suiteKindAEAD
)

var cipherSuiteParams = map[CipherSuite]suiteParams{
	CipherSuiteRSAWith3DESEDECBCSHA: {kind: suiteKindCBC, blockAlg: suite.BlockTripleDES, macAlg: suite.SHA1, prfHash: suite.SHA256, staticRSA: true, certKeyType: certKeyTypeRSA},
	CipherSuiteRSAWithAES128CBCSHA:  {kind: suiteKindCBC, blockAlg: suite.BlockAES128, macAlg: suite.SHA1, prfHash: suite.SHA256, staticRSA: true, certKeyType: certKeyTypeRSA},
	CipherSuiteRSAWithAES256CBCSHA:  {kind: suiteKindCBC, blockAlg: suite.BlockAES256, macAlg: suite.SHA1, prfHash: suite.SHA256, staticRSA: true, certKeyType: certKeyTypeRSA},
	CipherSuiteRSAWithAES128CBCSHA256: {kind: suiteKindCBC, blockAlg: suite.BlockAES128, macAlg: suite.SHA256, prfHash: suite.SHA256, staticRSA: true, certKeyType: certKeyTypeRSA},
	CipherSuiteECDHERSAWithAES128CBCSHA: {kind: suiteKindCBC, blockAlg: suite.BlockAES128, macAlg: suite.SHA1, prfHash: suite.SHA256, certKeyType: certKeyTypeRSA},
	CipherSuiteECDHERSAWithAES256CBCSHA: {kind: suiteKindCBC, blockAlg: suite.BlockAES256, macAlg: suite.SHA1, prfHash: suite.SHA256, certKeyType: certKeyTypeRSA},
	CipherSuiteECDHERSAWithAES128GCMSHA256: {kind: suiteKindAEAD, aeadAlg: suite.AEADAES128GCM, prfHash: suite.SHA256, certKeyType: certKeyTypeRSA},
	CipherSuiteECDHERSAWithAES256GCMSHA384: {kind: suiteKindAEAD, aeadAlg: suite.AEADAES256GCM, prfHash: suite.SHA384, certKeyType: certKeyTypeRSA},
	CipherSuiteECDHEECDSAWithAES128GCMSHA256: {kind: suiteKindAEAD, aeadAlg: suite.AEADAES128GCM, prfHash: suite.SHA256, certKeyType: certKeyTypeECDSA},
	CipherSuiteECDHEECDSAWithAES256GCMSHA384: {kind: suiteKindAEAD, aeadAlg: suite.AEADAES256GCM, prfHash: suite.SHA384, certKeyType: certKeyTypeECDSA},
	CipherSuiteECDHERSAWithChaCha20Poly1305:  {kind: suiteKindAEAD, aeadAlg: suite.AEADChaCha20Poly1305, prfHash: suite.SHA256, certKeyType: certKeyTypeRSA},
	CipherSuiteTLS13AES128GCMSHA256:        {kind: suiteKindAEAD, aeadAlg: suite.AEADAES128GCM, prfHash: suite.SHA256, isTLS13: true},
	CipherSuiteTLS13AES256GCMSHA384:        {kind: suiteKindAEAD, aeadAlg: suite.AEADAES256GCM, prfHash: suite.SHA384, isTLS13: true},
	CipherSuiteTLS13ChaCha20Poly1305SHA256: {kind: suiteKindAEAD, aeadAlg: suite.AEADChaCha20Poly1305, prfHash: suite.SHA256, isTLS13: true},
}

// NamedGroup identifies a key-exchange group.
type NamedGroup uint16

// Named groups (RFC 8446 §4.2.7, RFC 8422, plus a hybrid PQ/classical
// group for forward compatibility with the KEM negotiation path).
const (
	GroupSecp256r1      NamedGroup = 0x0017
	GroupSecp384r1      NamedGroup = 0x0018
	GroupSecp521r1      NamedGroup = 0x0019
	GroupX25519         NamedGroup = 0x001D
	GroupFfdhe2048      NamedGroup = 0x0100
	GroupFfdhe3072      NamedGroup = 0x0101
	GroupX25519MLKEM768 NamedGroup = 0x11EC
)

var namedGroupNames = map[NamedGroup]string{
	GroupSecp256r1:      "secp256r1",
	GroupSecp384r1:      "secp384r1",
	GroupSecp521r1:      "secp521r1",
	GroupX25519:         "x25519",
	GroupFfdhe2048:      "ffdhe2048",
	GroupFfdhe3072:      "ffdhe3072",
	GroupX25519MLKEM768: "X25519MLKEM768",
}

func (g NamedGroup) String() string {
	if name, ok := namedGroupNames[g]; ok {
		return name
	}
	return fmt.Sprintf("named_group(%#04x)", uint16(g))
}

// SignatureScheme identifies a signature algorithm for the
// signature_algorithms/signature_algorithms_cert extensions.
type SignatureScheme uint16

// Signature schemes (RFC 8446 §4.2.3).
const (
	SignatureSchemeRSAPKCS1SHA256       SignatureScheme = 0x0401
	SignatureSchemeRSAPKCS1SHA384       SignatureScheme = 0x0501
	SignatureSchemeRSAPKCS1SHA512       SignatureScheme = 0x0601
	SignatureSchemeECDSASecp256r1SHA256 SignatureScheme = 0x0403
	SignatureSchemeECDSASecp384r1SHA384 SignatureScheme = 0x0503
	SignatureSchemeECDSASecp521r1SHA512 SignatureScheme = 0x0603
	SignatureSchemeRSAPSSRSAESHA256     SignatureScheme = 0x0804
	SignatureSchemeRSAPSSRSAESHA384     SignatureScheme = 0x0805
	SignatureSchemeRSAPSSRSAESHA512     SignatureScheme = 0x0806
	SignatureSchemeEd25519              SignatureScheme = 0x0807
	SignatureSchemeRSAPKCS1SHA1         SignatureScheme = 0x0201
	SignatureSchemeECDSASHA1            SignatureScheme = 0x0203
)

var signatureSchemeNames = map[SignatureScheme]string{
	SignatureSchemeRSAPKCS1SHA256:       "rsa_pkcs1_sha256",
	SignatureSchemeRSAPKCS1SHA384:       "rsa_pkcs1_sha384",
	SignatureSchemeRSAPKCS1SHA512:       "rsa_pkcs1_sha512",
	SignatureSchemeECDSASecp256r1SHA256: "ecdsa_secp256r1_sha256",
	SignatureSchemeECDSASecp384r1SHA384: "ecdsa_secp384r1_sha384",
	SignatureSchemeECDSASecp521r1SHA512: "ecdsa_secp521r1_sha512",
	SignatureSchemeRSAPSSRSAESHA256:     "rsa_pss_rsae_sha256",
	SignatureSchemeRSAPSSRSAESHA384:     "rsa_pss_rsae_sha384",
	SignatureSchemeRSAPSSRSAESHA512:     "rsa_pss_rsae_sha512",
	SignatureSchemeEd25519:              "ed25519",
	SignatureSchemeRSAPKCS1SHA1:         "rsa_pkcs1_sha1",
	SignatureSchemeECDSASHA1:            "ecdsa_sha1",
}

func (s SignatureScheme) String() string {
	if name, ok := signatureSchemeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("signature_scheme(%#04x)", uint16(s))
}

// hashAlgFor maps a SignatureScheme to the suite.HashAlg used for the
// digest it signs (the RSA/ECDSA schemes only; Ed25519 signs the message
// directly and ignores this).
func (s SignatureScheme) hashAlgFor() suite.HashAlg {
	switch s {
	case SignatureSchemeRSAPKCS1SHA256, SignatureSchemeECDSASecp256r1SHA256, SignatureSchemeRSAPSSRSAESHA256:
		return suite.SHA256
	case SignatureSchemeRSAPKCS1SHA384, SignatureSchemeECDSASecp384r1SHA384, SignatureSchemeRSAPSSRSAESHA384:
		return suite.SHA384
	case SignatureSchemeRSAPKCS1SHA512, SignatureSchemeECDSASecp521r1SHA512, SignatureSchemeRSAPSSRSAESHA512:
		return suite.SHA512
	case SignatureSchemeRSAPKCS1SHA1, SignatureSchemeECDSASHA1:
		return suite.SHA1
	}
	return suite.SHA256
}

// keyType reports the certificate key family that signs with scheme,
// deciding which certificates a legacy (non-TLS-1.3) cipher suite can use.
func (s SignatureScheme) keyType() certKeyType {
	switch s {
	case SignatureSchemeRSAPKCS1SHA256, SignatureSchemeRSAPKCS1SHA384, SignatureSchemeRSAPKCS1SHA512,
		SignatureSchemeRSAPSSRSAESHA256, SignatureSchemeRSAPSSRSAESHA384, SignatureSchemeRSAPSSRSAESHA512,
		SignatureSchemeRSAPKCS1SHA1:
		return certKeyTypeRSA
	case SignatureSchemeECDSASecp256r1SHA256, SignatureSchemeECDSASecp384r1SHA384, SignatureSchemeECDSASecp521r1SHA512,
		SignatureSchemeECDSASHA1, SignatureSchemeEd25519:
		return certKeyTypeECDSA
	}
	return certKeyTypeAny
}

// KeyShareEntry is one entry of the key_share extension.
type KeyShareEntry struct {
	Group       NamedGroup
	KeyExchange []byte
}

// AlertLevel distinguishes a warning from a fatal alert.
type AlertLevel uint8

// Alert levels (RFC 8446 §6).
const (
	AlertLevelWarning AlertLevel = 1
	AlertLevelFatal   AlertLevel = 2
)

// AlertDescription names the reason for an alert.
type AlertDescription uint8

// Alert descriptions (RFC 8446 §6).
const (
	AlertCloseNotify                  AlertDescription = 0
	AlertUnexpectedMessage            AlertDescription = 10
	AlertBadRecordMAC                 AlertDescription = 20
	AlertRecordOverflow               AlertDescription = 22
	AlertHandshakeFailure             AlertDescription = 40
	AlertBadCertificate                AlertDescription = 42
	AlertUnsupportedCertificate        AlertDescription = 43
	AlertCertificateExpired            AlertDescription = 45
	AlertCertificateUnknown            AlertDescription = 46
	AlertIllegalParameter              AlertDescription = 47
	AlertUnknownCA                     AlertDescription = 48
	AlertAccessDenied                  AlertDescription = 49
	AlertDecodeError                   AlertDescription = 50
	AlertDecryptError                  AlertDescription = 51
	AlertProtocolVersion               AlertDescription = 70
	AlertInsufficientSecurity          AlertDescription = 71
	AlertInternalError                 AlertDescription = 80
	AlertInappropriateFallback         AlertDescription = 86
	AlertUserCanceled                  AlertDescription = 90
	AlertMissingExtension              AlertDescription = 109
	AlertUnsupportedExtension          AlertDescription = 110
	AlertUnrecognizedName              AlertDescription = 112
	AlertCertificateRequired           AlertDescription = 116
	AlertNoApplicationProtocol         AlertDescription = 120
)

var alertDescriptionNames = map[AlertDescription]string{
	AlertCloseNotify:           "close_notify",
	AlertUnexpectedMessage:     "unexpected_message",
	AlertBadRecordMAC:          "bad_record_mac",
	AlertRecordOverflow:        "record_overflow",
	AlertHandshakeFailure:      "handshake_failure",
	AlertBadCertificate:        "bad_certificate",
	AlertUnsupportedCertificate: "unsupported_certificate",
	AlertCertificateExpired:    "certificate_expired",
	AlertCertificateUnknown:    "certificate_unknown",
	AlertIllegalParameter:      "illegal_parameter",
	AlertUnknownCA:             "unknown_ca",
	AlertAccessDenied:          "access_denied",
	AlertDecodeError:           "decode_error",
	AlertDecryptError:          "decrypt_error",
	AlertProtocolVersion:       "protocol_version",
	AlertInsufficientSecurity:  "insufficient_security",
	AlertInternalError:         "internal_error",
	AlertInappropriateFallback: "inappropriate_fallback",
	AlertUserCanceled:          "user_canceled",
	AlertMissingExtension:      "missing_extension",
	AlertUnsupportedExtension:  "unsupported_extension",
	AlertUnrecognizedName:      "unrecognized_name",
	AlertCertificateRequired:   "certificate_required",
	AlertNoApplicationProtocol: "no_application_protocol",
}

func (a AlertDescription) String() string {
	if name, ok := alertDescriptionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("alert(%d)", a)
}
