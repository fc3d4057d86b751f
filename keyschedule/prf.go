// Package keyschedule implements the TLS 1.0–1.2 pseudorandom function and
// the master-secret/key-block derivations built on top of it. TLS 1.3's
// HKDF-based schedule lives in package keyschedule13 instead: the two
// protocol families share no derivation math, only the export shape
// (secret in, key material out) that package record consumes.
package keyschedule

import (
	"github.com/hallbrook/gotls/suite"
)

// PHash implements RFC 5246 §5's P_hash(secret, seed) expansion: repeated
// HMAC(secret, A(i) || seed) where A(0) = seed and A(i) = HMAC(secret, A(i-1)).
func PHash(alg suite.HashAlg, secret, seed []byte, outLen int) ([]byte, error) {
	out := make([]byte, 0, outLen)
	a := seed
	for len(out) < outLen {
		next, err := suite.Sum(alg, secret, a)
		if err != nil {
			return nil, err
		}
		a = next

		chunk, err := suite.Sum(alg, secret, append(append([]byte{}, a...), seed...))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out[:outLen], nil
}

// PRF10 implements the TLS 1.0/1.1 PRF (RFC 2246 §5): the secret is split in
// half (with the middle byte shared if the length is odd), P_MD5 runs over
// one half and P_SHA1 over the other, and the two outputs are XORed.
func PRF10(secret []byte, label string, seed []byte, outLen int) ([]byte, error) {
	full := append([]byte(label), seed...)

	l := len(secret)
	half := (l + 1) / 2
	s1 := secret[:half]
	s2 := secret[l-half:]

	md5Out, err := PHash(suite.MD5, s1, full, outLen)
	if err != nil {
		return nil, err
	}
	sha1Out, err := PHash(suite.SHA1, s2, full, outLen)
	if err != nil {
		return nil, err
	}

	out := make([]byte, outLen)
	for i := range out {
		out[i] = md5Out[i] ^ sha1Out[i]
	}
	return out, nil
}

// PRF12 implements the TLS 1.2 PRF (RFC 5246 §5): a single P_hash run using
// the cipher suite's PRF hash, defaulting to SHA-256 when the suite does not
// specify a stronger one.
func PRF12(alg suite.HashAlg, secret []byte, label string, seed []byte, outLen int) ([]byte, error) {
	full := append([]byte(label), seed...)
	return PHash(alg, secret, full, outLen)
}

// Version distinguishes which PRF variant to use; TLS 1.0 and 1.1 share one
// (PRF10), TLS 1.2 uses PRF12 keyed by the suite's designated hash.
type Version int

// Supported legacy protocol versions.
const (
	VersionTLS10 Version = iota
	VersionTLS11
	VersionTLS12
)

// PRF dispatches to PRF10 or PRF12 depending on version. alg is ignored for
// TLS 1.0/1.1 (the PRF is fixed) and selects the suite's PRF hash for
// TLS 1.2.
func PRF(version Version, alg suite.HashAlg, secret []byte, label string, seed []byte, outLen int) ([]byte, error) {
	if version == VersionTLS12 {
		return PRF12(alg, secret, label, seed, outLen)
	}
	return PRF10(secret, label, seed, outLen)
}

// MasterSecret derives the 48-byte master_secret from the pre_master_secret
// established by the key exchange and the hello randoms (RFC 5246 §8.1).
func MasterSecret(version Version, alg suite.HashAlg, preMasterSecret, clientRandom, serverRandom []byte) ([]byte, error) {
	seed := append(append([]byte{}, clientRandom...), serverRandom...)
	return PRF(version, alg, preMasterSecret, "master secret", seed, 48)
}

// KeyBlock is the key_block expansion of RFC 5246 §6.3, partitioned into the
// six values both sides derive in the same order.
type KeyBlock struct {
	ClientMACKey []byte
	ServerMACKey []byte
	ClientKey    []byte
	ServerKey    []byte
	ClientIV     []byte
	ServerIV     []byte
}

// DeriveKeyBlock expands masterSecret into a KeyBlock. macLen is 0 for AEAD
// suites (no separate MAC key); ivLen is 0 for CBC suites, which use an
// explicit per-record IV (record.CBCProtection) rather than one derived
// from the key block. AEAD suites pass the ivLen their nonce construction
// needs: RFC 5288's 4-byte salt for TLS 1.2 AES-GCM, or the full
// suite.NonceSize-byte implicit IV for TLS 1.3 and TLS 1.2
// ChaCha20-Poly1305 (RFC 7905 §2).
func DeriveKeyBlock(version Version, alg suite.HashAlg, masterSecret, serverRandom, clientRandom []byte, macLen, keyLen, ivLen int) (*KeyBlock, error) {
	seed := append(append([]byte{}, serverRandom...), clientRandom...)
	total := 2*macLen + 2*keyLen + 2*ivLen
	block, err := PRF(version, alg, masterSecret, "key expansion", seed, total)
	if err != nil {
		return nil, err
	}

	kb := &KeyBlock{}
	off := 0
	next := func(n int) []byte {
		b := block[off : off+n]
		off += n
		return b
	}
	kb.ClientMACKey = next(macLen)
	kb.ServerMACKey = next(macLen)
	kb.ClientKey = next(keyLen)
	kb.ServerKey = next(keyLen)
	kb.ClientIV = next(ivLen)
	kb.ServerIV = next(ivLen)
	return kb, nil
}

// VerifyData computes the 12-byte Finished message contents (RFC 5246
// §7.4.9): PRF(master_secret, finished_label, Hash(handshake_messages))[0:12].
// finishedLabel is "client finished" or "server finished"; transcriptHash is
// the running handshake hash's current digest.
func VerifyData(version Version, alg suite.HashAlg, masterSecret []byte, finishedLabel string, transcriptHash []byte) ([]byte, error) {
	return PRF(version, alg, masterSecret, finishedLabel, transcriptHash, 12)
}
