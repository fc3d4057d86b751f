// Package suite is the crypto primitives façade: a small set of object
// interfaces over hash, HMAC, HKDF, symmetric record algorithms, signatures,
// and key agreement. Concrete primitives are the standard library's
// constant-time crypto/* implementations and, where the ecosystem offers a
// better fit than stdlib, golang.org/x/crypto; this package does not
// reimplement any primitive, only gives the rest of the library one uniform
// shape to call through.
package suite

import (
	"crypto"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding"
	"errors"
	"hash"
)

// HashAlg names a hash algorithm available to the façade.
type HashAlg int

// Supported hash algorithms.
const (
	MD5 HashAlg = iota
	SHA1
	SHA224
	SHA256
	SHA384
	SHA512
	MD5SHA1
)

// ErrHashUnavailable is returned by NewHash for an algorithm this build does
// not have a backend for.
var ErrHashUnavailable = errors.New("suite: hash algorithm unavailable")

// Size returns the digest size in bytes for alg, or 0 if unknown.
func (alg HashAlg) Size() int {
	switch alg {
	case MD5:
		return md5.Size
	case SHA1:
		return sha1.Size
	case SHA224:
		return sha256.Size224
	case SHA256:
		return sha256.Size
	case SHA384:
		return sha512.Size384
	case SHA512:
		return sha512.Size
	case MD5SHA1:
		return md5.Size + sha1.Size
	}
	return 0
}

// IsAvailable reports whether alg has a backend in this build. All of the
// algorithms above are backed by the standard library and are always
// available; the method exists so callers can probe generically rather than
// assume.
func (alg HashAlg) IsAvailable() bool {
	switch alg {
	case MD5, SHA1, SHA224, SHA256, SHA384, SHA512, MD5SHA1:
		return true
	}
	return false
}

// Hash is a running hash state that can be snapshotted without disturbing
// the original, the primitive transcript hashing needs: a handshake
// transcript hash must be finalized at several points while still absorbing
// later messages.
type Hash struct {
	alg HashAlg
	h   hash.Hash
}

// NewHash creates a new Hash for alg.
func NewHash(alg HashAlg) (*Hash, error) {
	if !alg.IsAvailable() {
		return nil, ErrHashUnavailable
	}
	return &Hash{alg: alg, h: newHasher(alg)}, nil
}

func newHasher(alg HashAlg) hash.Hash {
	switch alg {
	case MD5:
		return md5.New()
	case SHA1:
		return sha1.New()
	case SHA224:
		return sha256.New224()
	case SHA256:
		return sha256.New()
	case SHA384:
		return sha512.New384()
	case SHA512:
		return sha512.New()
	case MD5SHA1:
		return newMD5SHA1()
	}
	return nil
}

// Alg returns the hash algorithm.
func (h *Hash) Alg() HashAlg { return h.alg }

// Update absorbs data into the running hash.
func (h *Hash) Update(data []byte) { h.h.Write(data) }

// Digest appends the current digest to out and returns the result. It does
// not consume the running state; callers needing a final digest without
// further appends should Copy first if they still need the original.
func (h *Hash) Digest(out []byte) []byte { return h.h.Sum(out) }

// Reset clears the running state back to empty.
func (h *Hash) Reset() { h.h.Reset() }

// Copy returns an independently progressable duplicate of h's state, using
// each stdlib hash implementation's encoding.BinaryMarshaler support. This is
// the snapshot operation transcript hashing depends on: the copy can be
// finalized while h keeps absorbing subsequent handshake messages.
func (h *Hash) Copy() (*Hash, error) {
	marshaler, ok := h.h.(encoding.BinaryMarshaler)
	if !ok {
		return nil, errors.New("suite: hash backend does not support Copy")
	}
	state, err := marshaler.MarshalBinary()
	if err != nil {
		return nil, err
	}
	clone := newHasher(h.alg)
	if err := clone.(encoding.BinaryUnmarshaler).UnmarshalBinary(state); err != nil {
		return nil, err
	}
	return &Hash{alg: h.alg, h: clone}, nil
}

// CryptoHash maps a HashAlg to the standard library's crypto.Hash registry
// identifier, for use with crypto.Signer.Sign.
func (alg HashAlg) CryptoHash() crypto.Hash {
	switch alg {
	case MD5:
		return crypto.MD5
	case SHA1:
		return crypto.SHA1
	case SHA224:
		return crypto.SHA224
	case SHA256:
		return crypto.SHA256
	case SHA384:
		return crypto.SHA384
	case SHA512:
		return crypto.SHA512
	}
	return 0
}

// md5sha1 implements the combined MD5+SHA1 digest TLS 1.0–1.1 use for the
// RSA ClientKeyExchange/CertificateVerify signature input.
type md5sha1 struct {
	md5  hash.Hash
	sha1 hash.Hash
}

func newMD5SHA1() hash.Hash { return &md5sha1{md5: md5.New(), sha1: sha1.New()} }

func (m *md5sha1) Write(p []byte) (int, error) {
	m.md5.Write(p)
	return m.sha1.Write(p)
}

func (m *md5sha1) Sum(b []byte) []byte {
	b = m.md5.Sum(b)
	return m.sha1.Sum(b)
}

func (m *md5sha1) Reset() {
	m.md5.Reset()
	m.sha1.Reset()
}

func (m *md5sha1) Size() int { return m.md5.Size() + m.sha1.Size() }

func (m *md5sha1) BlockSize() int { return m.md5.BlockSize() }

func (m *md5sha1) MarshalBinary() ([]byte, error) {
	a, err := m.md5.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		return nil, err
	}
	b, err := m.sha1.(encoding.BinaryMarshaler).MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1, 1+len(a)+len(b))
	out[0] = byte(len(a))
	out = append(out, a...)
	out = append(out, b...)
	return out, nil
}

func (m *md5sha1) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return errors.New("suite: short md5sha1 state")
	}
	n := int(data[0])
	if len(data) < 1+n {
		return errors.New("suite: short md5sha1 state")
	}
	if err := m.md5.(encoding.BinaryUnmarshaler).UnmarshalBinary(data[1 : 1+n]); err != nil {
		return err
	}
	return m.sha1.(encoding.BinaryUnmarshaler).UnmarshalBinary(data[1+n:])
}
