package tls

import "github.com/hallbrook/gotls/suite"

const (
	certVerifyContextServer = "TLS 1.3, server CertificateVerify"
	certVerifyContextClient = "TLS 1.3, client CertificateVerify"
)

// certificateVerifyContent builds the signature input RFC 8446 §4.4.3
// specifies: 64 spaces, the context string, a zero byte, and the
// transcript hash. Prepending the fixed padding keeps a CertificateVerify
// signature from ever validating as a pre-TLS-1.3 ServerKeyExchange
// signature over the same key, since no legacy signature input begins
// with 64 identical bytes.
func certificateVerifyContent(context string, transcriptHash []byte) []byte {
	content := make([]byte, 0, 64+len(context)+1+len(transcriptHash))
	for i := 0; i < 64; i++ {
		content = append(content, 0x20)
	}
	content = append(content, []byte(context)...)
	content = append(content, 0x00)
	content = append(content, transcriptHash...)
	return content
}

// signCertificateVerify signs a TLS 1.3 CertificateVerify. Ed25519 signs
// the content directly; RSA/ECDSA schemes sign the content's digest under
// the scheme's designated hash, per suite.PrivateKey.Sign's documented
// split between the two families.
func signCertificateVerify(priv *suite.PrivateKey, scheme SignatureScheme, context string, transcriptHash []byte) ([]byte, error) {
	return signRaw(priv, scheme, certificateVerifyContent(context, transcriptHash))
}

// verifyCertificateVerify checks a TLS 1.3 CertificateVerify signature,
// mirroring signCertificateVerify's Ed25519/RSA-ECDSA split.
func verifyCertificateVerify(pub *suite.PublicKey, scheme SignatureScheme, context string, transcriptHash, sig []byte) error {
	if pub == nil {
		return errInternalError("no public key to verify CertificateVerify against")
	}
	return verifyRaw(pub, scheme, certificateVerifyContent(context, transcriptHash), sig)
}

// signLegacy signs a ≤TLS 1.2 ServerKeyExchange/ClientKeyExchange content
// blob: the same Ed25519-direct, RSA/ECDSA-digest split as
// signCertificateVerify, but over the bare handshake content with no
// context-string wrapper (RFC 5246 §7.4.3 predates RFC 8446's domain
// separation prefix).
func signLegacy(priv *suite.PrivateKey, scheme SignatureScheme, content []byte) ([]byte, error) {
	return signRaw(priv, scheme, content)
}

// verifyLegacy checks a ≤TLS 1.2 ServerKeyExchange signature, mirroring
// signLegacy.
func verifyLegacy(pub *suite.PublicKey, scheme SignatureScheme, content, sig []byte) error {
	if pub == nil {
		return errInternalError("no public key to verify server_key_exchange against")
	}
	return verifyRaw(pub, scheme, content, sig)
}

func signRaw(priv *suite.PrivateKey, scheme SignatureScheme, content []byte) ([]byte, error) {
	if priv.Alg() == suite.SigEd25519 {
		return priv.Sign(content, scheme.hashAlgFor())
	}
	hashAlg := scheme.hashAlgFor()
	digest, err := hashContent(hashAlg, content)
	if err != nil {
		return nil, err
	}
	return priv.Sign(digest, hashAlg)
}

func verifyRaw(pub *suite.PublicKey, scheme SignatureScheme, content, sig []byte) error {
	hashAlg := scheme.hashAlgFor()
	if isEd25519Scheme(scheme) {
		return pub.Verify(content, sig, hashAlg)
	}
	digest, err := hashContent(hashAlg, content)
	if err != nil {
		return err
	}
	return pub.Verify(digest, sig, hashAlg)
}

func isEd25519Scheme(s SignatureScheme) bool { return s == SignatureSchemeEd25519 }

// hashContent runs content through alg's plain (unkeyed) hash, the digest
// RSA/ECDSA CertificateVerify signatures sign rather than the raw content
// Ed25519 signs.
func hashContent(alg suite.HashAlg, content []byte) ([]byte, error) {
	h, err := suite.NewHash(alg)
	if err != nil {
		return nil, err
	}
	h.Update(content)
	return h.Digest(nil), nil
}
