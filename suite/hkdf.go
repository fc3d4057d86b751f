package suite

import (
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"
)

func hasherFor(alg HashAlg) func() hash.Hash {
	return func() hash.Hash { return newHasher(alg) }
}

// HKDFExtract implements RFC 5869 HKDF-Extract via golang.org/x/crypto/hkdf.
func HKDFExtract(alg HashAlg, salt, ikm []byte) []byte {
	return hkdf.Extract(hasherFor(alg), ikm, salt)
}

// HKDFExpand implements RFC 5869 HKDF-Expand, reading outLen bytes of output
// for the given pseudorandom key and info.
func HKDFExpand(alg HashAlg, prk, info []byte, outLen int) ([]byte, error) {
	r := hkdf.Expand(hasherFor(alg), prk, info)
	out := make([]byte, outLen)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}

// HKDFExpandLabel implements TLS 1.3's HKDF-Expand-Label (RFC 8446 §7.1):
//
//	HkdfLabel = uint16(length) || opaque label<7..255> || opaque context<0..255>
//	label     = "tls13 " + Label
//
// where "tls13 " is the literal 6-byte prefix every label carries.
func HKDFExpandLabel(alg HashAlg, secret []byte, label string, context []byte, length int) ([]byte, error) {
	full := "tls13 " + label
	hkdfLabel := make([]byte, 0, 2+1+len(full)+1+len(context))
	hkdfLabel = append(hkdfLabel, byte(length>>8), byte(length))
	hkdfLabel = append(hkdfLabel, byte(len(full)))
	hkdfLabel = append(hkdfLabel, full...)
	hkdfLabel = append(hkdfLabel, byte(len(context)))
	hkdfLabel = append(hkdfLabel, context...)

	return HKDFExpand(alg, secret, hkdfLabel, length)
}
