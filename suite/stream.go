package suite

import (
	"crypto/cipher"
	"crypto/rc4"
	"errors"
)

// ErrUnsupportedAlgorithm is returned when a façade constructor is asked for
// an algorithm identifier it does not recognize.
var ErrUnsupportedAlgorithm = errors.New("suite: unsupported algorithm")

// StreamAlg names a stream cipher. RC4 is carried only for historical
// completeness of the record-algorithm taxonomy; no cipher suite table in
// package tls offers it for negotiation.
type StreamAlg int

// Supported stream ciphers.
const (
	StreamRC4 StreamAlg = iota
)

// Stream wraps a stream cipher for record encryption. Unlike CBC and AEAD,
// a stream cipher has no block alignment and no authentication of its
// own — the generic-stream record path in package record computes and
// verifies an HMAC the same way Composite does for CBC.
type Stream struct {
	c cipher.Stream
}

// NewStream constructs a Stream cipher keyed for encryption or decryption;
// RC4 is symmetric so the same constructor serves both directions.
func NewStream(alg StreamAlg, key []byte) (*Stream, error) {
	switch alg {
	case StreamRC4:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return &Stream{c: c}, nil
	}
	return nil, ErrUnsupportedAlgorithm
}

// XORKeyStream encrypts or decrypts src into dst.
func (s *Stream) XORKeyStream(dst, src []byte) { s.c.XORKeyStream(dst, src) }
