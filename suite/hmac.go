package suite

import (
	"crypto/hmac"
	"hash"
)

// HMAC is a keyed-hash MAC built on top of a HashAlg backend.
type HMAC struct {
	alg HashAlg
	h   hash.Hash
}

// NewHMAC creates an HMAC over alg with the given key.
func NewHMAC(alg HashAlg, key []byte) (*HMAC, error) {
	if !alg.IsAvailable() {
		return nil, ErrHashUnavailable
	}
	return &HMAC{alg: alg, h: hmac.New(func() hash.Hash { return newHasher(alg) }, key)}, nil
}

// HashAlgOf returns the hash algorithm backing m.
func (m *HMAC) HashAlgOf() HashAlg { return m.alg }

// Update absorbs data into the running MAC.
func (m *HMAC) Update(data []byte) { m.h.Write(data) }

// Digest appends the current MAC to out and returns the result.
func (m *HMAC) Digest(out []byte) []byte { return m.h.Sum(out) }

// Reset clears the running MAC back to its just-keyed state.
func (m *HMAC) Reset() { m.h.Reset() }

// Sum computes HMAC(key, data) in one call.
func Sum(alg HashAlg, key, data []byte) ([]byte, error) {
	m, err := NewHMAC(alg, key)
	if err != nil {
		return nil, err
	}
	m.Update(data)
	return m.Digest(nil), nil
}
