package suite

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"errors"
)

// SigAlg names the asymmetric signature family a PrivateKey/PublicKey pair
// belongs to.
type SigAlg int

// Supported signature families.
const (
	SigRSAPKCS1 SigAlg = iota
	SigRSAPSS
	SigECDSA
	SigEd25519
)

// ErrKeyMismatch is returned by Match when a public and private key are not
// a pair.
var ErrKeyMismatch = errors.New("suite: public and private key do not match")

// PrivateKey is the unified signing handle: a single type over RSA
// (PKCS#1 v1.5 and PSS) and ECDSA backends, plus Ed25519, which TLS 1.3's
// signature_algorithms extension requires.
type PrivateKey struct {
	alg SigAlg
	rsa *rsa.PrivateKey
	ec  *ecdsa.PrivateKey
	ed  ed25519.PrivateKey
}

// NewRSAPrivateKey wraps an RSA private key. pss selects PSS
// (true) over PKCS#1 v1.5 (false) for Sign.
func NewRSAPrivateKey(key *rsa.PrivateKey, pss bool) *PrivateKey {
	alg := SigRSAPKCS1
	if pss {
		alg = SigRSAPSS
	}
	return &PrivateKey{alg: alg, rsa: key}
}

// NewECDSAPrivateKey wraps an ECDSA private key.
func NewECDSAPrivateKey(key *ecdsa.PrivateKey) *PrivateKey {
	return &PrivateKey{alg: SigECDSA, ec: key}
}

// NewEd25519PrivateKey wraps an Ed25519 private key.
func NewEd25519PrivateKey(key ed25519.PrivateKey) *PrivateKey {
	return &PrivateKey{alg: SigEd25519, ed: key}
}

// Alg returns the signature family.
func (k *PrivateKey) Alg() SigAlg { return k.alg }

// Size returns the signature's on-wire size in bytes (fixed for RSA and
// Ed25519; ECDSA's ASN.1 DER encoding varies, so Size returns the curve's
// maximum for sizing buffers rather than an exact value).
func (k *PrivateKey) Size() int {
	switch k.alg {
	case SigRSAPKCS1, SigRSAPSS:
		return k.rsa.Size()
	case SigECDSA:
		return 2*((k.ec.Curve.Params().BitSize+7)/8) + 16
	case SigEd25519:
		return ed25519.SignatureSize
	}
	return 0
}

// Sign produces a signature over digest (the pre-hashed CertificateVerify or
// ClientKeyExchange/ServerKeyExchange input) using hashAlg's crypto.Hash
// identifier, except for Ed25519 which signs the message directly and must
// be called with the unhashed content instead (see signer callers in
// package tls).
func (k *PrivateKey) Sign(digest []byte, hashAlg HashAlg) ([]byte, error) {
	switch k.alg {
	case SigRSAPKCS1:
		return rsa.SignPKCS1v15(rand.Reader, k.rsa, hashAlg.CryptoHash(), digest)
	case SigRSAPSS:
		return rsa.SignPSS(rand.Reader, k.rsa, hashAlg.CryptoHash(), digest, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
	case SigECDSA:
		return ecdsa.SignASN1(rand.Reader, k.ec, digest)
	case SigEd25519:
		return ed25519.Sign(k.ed, digest), nil
	}
	return nil, ErrUnsupportedAlgorithm
}

// PublicKey is the verification half of PrivateKey.
type PublicKey struct {
	alg SigAlg
	rsa *rsa.PublicKey
	ec  *ecdsa.PublicKey
	ed  ed25519.PublicKey
}

// NewRSAPublicKey wraps an RSA public key.
func NewRSAPublicKey(key *rsa.PublicKey, pss bool) *PublicKey {
	alg := SigRSAPKCS1
	if pss {
		alg = SigRSAPSS
	}
	return &PublicKey{alg: alg, rsa: key}
}

// NewECDSAPublicKey wraps an ECDSA public key.
func NewECDSAPublicKey(key *ecdsa.PublicKey) *PublicKey {
	return &PublicKey{alg: SigECDSA, ec: key}
}

// NewEd25519PublicKey wraps an Ed25519 public key.
func NewEd25519PublicKey(key ed25519.PublicKey) *PublicKey {
	return &PublicKey{alg: SigEd25519, ed: key}
}

// Verify checks sig over digest using hashAlg (ignored for Ed25519).
func (k *PublicKey) Verify(digest, sig []byte, hashAlg HashAlg) error {
	switch k.alg {
	case SigRSAPKCS1:
		return rsa.VerifyPKCS1v15(k.rsa, hashAlg.CryptoHash(), digest, sig)
	case SigRSAPSS:
		return rsa.VerifyPSS(k.rsa, hashAlg.CryptoHash(), digest, sig, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
	case SigECDSA:
		if !ecdsa.VerifyASN1(k.ec, digest, sig) {
			return errors.New("suite: ECDSA signature verification failed")
		}
		return nil
	case SigEd25519:
		if !ed25519.Verify(k.ed, digest, sig) {
			return errors.New("suite: Ed25519 signature verification failed")
		}
		return nil
	}
	return ErrUnsupportedAlgorithm
}

// Match reports whether pub is priv's public half.
func Match(pub *PublicKey, priv *PrivateKey) error {
	if pub.alg != priv.alg {
		return ErrKeyMismatch
	}
	ok := false
	switch priv.alg {
	case SigRSAPKCS1, SigRSAPSS:
		ok = priv.rsa.PublicKey.Equal(pub.rsa)
	case SigECDSA:
		ok = priv.ec.PublicKey.Equal(pub.ec)
	case SigEd25519:
		ok = priv.ed.Public().(ed25519.PublicKey).Equal(pub.ed)
	}
	if !ok {
		return ErrKeyMismatch
	}
	return nil
}
