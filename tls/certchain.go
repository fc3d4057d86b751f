package tls

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"

	"github.com/hallbrook/gotls/stuffer"
	"github.com/hallbrook/gotls/suite"
)

// CertChain is a contiguous, owned sequence of DER-encoded certificates
// with a precomputed on-wire size, built once when a Config is finalized.
// Leaf certificate first, intermediates following, matching the order
// certificate messages are sent in.
type CertChain struct {
	certs    [][]byte
	wireSize int
}

// NewCertChain builds a CertChain from DER-encoded certificates, leaf
// first. Each entry contributes len(cert)+3 bytes to the wire size (the
// 3-byte per-certificate length prefix every certificate_list entry
// carries).
func NewCertChain(certs ...[]byte) *CertChain {
	cc := &CertChain{certs: make([][]byte, len(certs))}
	for i, c := range certs {
		cc.certs[i] = append([]byte{}, c...)
		cc.wireSize += len(c) + 3
	}
	return cc
}

// Len returns the number of certificates in the chain.
func (cc *CertChain) Len() int { return len(cc.certs) }

// At returns the DER bytes of the certificate at index i.
func (cc *CertChain) At(i int) []byte { return cc.certs[i] }

// Leaf returns the end-entity certificate (index 0), or nil if the chain
// is empty.
func (cc *CertChain) Leaf() []byte {
	if len(cc.certs) == 0 {
		return nil
	}
	return cc.certs[0]
}

// WireSize returns the byte count the chain occupies in a certificate_list
// vector, including every entry's 3-byte length prefix.
func (cc *CertChain) WireSize() int { return cc.wireSize }

// AsList returns the chain's certificates as the [][]byte CertificateMessage
// expects, leaf first.
func (cc *CertChain) AsList() [][]byte {
	out := make([][]byte, len(cc.certs))
	copy(out, cc.certs)
	return out
}

// Marshal writes the chain as a TLS 1.2 certificate_list (one 3-byte
// length-prefixed DER blob per entry, no per-certificate extensions).
func (cc *CertChain) Marshal() ([]byte, error) {
	s := stuffer.NewGrowable(cc.wireSize)
	for _, c := range cc.certs {
		if err := s.WriteVector24(c); err != nil {
			return nil, err
		}
	}
	return s.Bytes(), nil
}

// parseLeafPublicKey extracts a verification key from a DER-encoded leaf
// certificate, wrapped to match scheme's signature family. x509 chain
// validation (trust anchors, expiry, name matching) is out of scope for
// this library (see DESIGN.md); this only recovers the key shape
// CertificateVerify/ServerKeyExchange verification needs, which is why
// crypto/x509 is used here for ASN.1/SPKI parsing rather than a
// third-party certificate library: no part of the pack ships a CA/chain
// validation path this project generalizes, so there is nothing to adopt
// beyond the standard library's own DER parser.
func parseLeafPublicKey(der []byte, scheme SignatureScheme) (*suite.PublicKey, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, errBadCertificate("parse leaf certificate: %v", err)
	}
	switch key := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		return suite.NewRSAPublicKey(key, isRSAPSSScheme(scheme)), nil
	case *ecdsa.PublicKey:
		return suite.NewECDSAPublicKey(key), nil
	case ed25519.PublicKey:
		return suite.NewEd25519PublicKey(key), nil
	default:
		return nil, errBadCertificate("unsupported leaf public key type %T", cert.PublicKey)
	}
}

func isRSAPSSScheme(s SignatureScheme) bool {
	switch s {
	case SignatureSchemeRSAPSSRSAESHA256, SignatureSchemeRSAPSSRSAESHA384, SignatureSchemeRSAPSSRSAESHA512:
		return true
	}
	return false
}
