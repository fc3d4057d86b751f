package suite

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEADAlg names an authenticated-encryption algorithm.
type AEADAlg int

// Supported AEAD algorithms.
const (
	AEADAES128GCM AEADAlg = iota
	AEADAES256GCM
	AEADChaCha20Poly1305
)

// KeySize returns the key size in bytes for alg.
func (alg AEADAlg) KeySize() int {
	switch alg {
	case AEADAES128GCM:
		return 16
	case AEADAES256GCM:
		return 32
	case AEADChaCha20Poly1305:
		return chacha20poly1305.KeySize
	}
	return 0
}

// NonceSize is 12 bytes for every suite this façade supports: the full
// fixed IV length TLS 1.3 (RFC 8446 §5.3) and TLS 1.2 ChaCha20-Poly1305
// (RFC 7905 §2, which reuses TLS 1.3's implicit construction) derive from
// the key block.
const NonceSize = 12

// AEADSaltSizeTLS12 is the salt length RFC 5288 §3 derives from the TLS 1.2
// AES-GCM key block; the remaining AEADExplicitNonceSizeTLS12 bytes of the
// 12-byte nonce are an explicit per-record value carried on the wire, not
// derived key material.
const AEADSaltSizeTLS12 = 4

// AEADExplicitNonceSizeTLS12 is the size of the per-record explicit nonce
// RFC 5288 §3 prepends to the ciphertext of every TLS 1.2 AES-GCM record.
const AEADExplicitNonceSizeTLS12 = 8

// AEAD seals and opens records. It wraps crypto/cipher.AEAD from either
// crypto/aes (GCM) or golang.org/x/crypto/chacha20poly1305, constant-time by
// construction in both backends.
type AEAD struct {
	alg  AEADAlg
	aead cipher.AEAD
}

// NewAEAD constructs an AEAD for alg with the given key.
func NewAEAD(alg AEADAlg, key []byte) (*AEAD, error) {
	if len(key) != alg.KeySize() {
		return nil, errors.New("suite: wrong AEAD key size")
	}
	var a cipher.AEAD
	var err error
	switch alg {
	case AEADAES128GCM, AEADAES256GCM:
		block, berr := aes.NewCipher(key)
		if berr != nil {
			return nil, berr
		}
		a, err = cipher.NewGCM(block)
	case AEADChaCha20Poly1305:
		a, err = chacha20poly1305.New(key)
	default:
		return nil, errors.New("suite: unknown AEAD algorithm")
	}
	if err != nil {
		return nil, err
	}
	return &AEAD{alg: alg, aead: a}, nil
}

// Overhead returns the tag size appended by Seal.
func (a *AEAD) Overhead() int { return a.aead.Overhead() }

// Seal encrypts and authenticates plaintext, appending the result to dst.
func (a *AEAD) Seal(dst, nonce, plaintext, aad []byte) []byte {
	return a.aead.Seal(dst, nonce, plaintext, aad)
}

// Open decrypts and authenticates ciphertext, appending the result to dst.
// It fails (constant-time tag comparison is the backend's responsibility)
// with an error if the tag does not verify.
func (a *AEAD) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	return a.aead.Open(dst, nonce, ciphertext, aad)
}

// BuildNonce XORs the fixed IV with the (zero-padded) sequence number, the
// per-record nonce construction of TLS 1.3 and of TLS 1.2
// ChaCha20-Poly1305 (RFC 7905). TLS 1.2 AES-GCM uses BuildExplicitNonce
// instead.
func BuildNonce(iv []byte, seq uint64) []byte {
	nonce := make([]byte, len(iv))
	copy(nonce, iv)
	var seqBytes [8]byte
	for i := 0; i < 8; i++ {
		seqBytes[7-i] = byte(seq >> (8 * i))
	}
	off := len(nonce) - 8
	for i := 0; i < 8; i++ {
		nonce[off+i] ^= seqBytes[i]
	}
	return nonce
}

// BuildExplicitNonce constructs the RFC 5288 §3 TLS 1.2 AES-GCM nonce:
// GCMNonce.salt (derived, fixed for the epoch) concatenated with
// GCMNonce.nonce_explicit (a fresh value every record, carried on the
// wire). The explicit bytes are XORed into an otherwise-zero tail rather
// than copied in, which is equivalent to concatenation but mirrors
// BuildNonce's construction.
func BuildExplicitNonce(salt, explicit []byte) []byte {
	nonce := make([]byte, len(salt)+len(explicit))
	copy(nonce, salt)
	for i, b := range explicit {
		nonce[len(salt)+i] ^= b
	}
	return nonce
}
