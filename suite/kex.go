package suite

import (
	"crypto/ecdh"
	"crypto/rand"
	"errors"
	"math/big"

	"golang.org/x/crypto/curve25519"
)

// ECDHCurve names an elliptic-curve group for ephemeral key agreement.
// secp256r1/384r1/521r1 use crypto/ecdh; X25519 is added from
// golang.org/x/crypto/curve25519 to cover the named group every modern
// TLS 1.3 client offers first.
type ECDHCurve int

// Supported curves.
const (
	CurveP256 ECDHCurve = iota
	CurveP384
	CurveP521
	CurveX25519
)

func stdCurve(c ECDHCurve) (ecdh.Curve, bool) {
	switch c {
	case CurveP256:
		return ecdh.P256(), true
	case CurveP384:
		return ecdh.P384(), true
	case CurveP521:
		return ecdh.P521(), true
	}
	return nil, false
}

// ECDHKeyPair is an ephemeral key-exchange keypair for one handshake.
type ECDHKeyPair struct {
	curve      ECDHCurve
	std        *ecdh.PrivateKey
	x25519Priv []byte
	x25519Pub  []byte
}

// GenerateEphemeral creates a fresh ephemeral keypair on curve.
func GenerateEphemeral(curve ECDHCurve) (*ECDHKeyPair, error) {
	if c, ok := stdCurve(curve); ok {
		priv, err := c.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		return &ECDHKeyPair{curve: curve, std: priv}, nil
	}
	if curve == CurveX25519 {
		priv := make([]byte, curve25519.ScalarSize)
		if _, err := rand.Read(priv); err != nil {
			return nil, err
		}
		pub, err := curve25519.X25519(priv, curve25519.Basepoint)
		if err != nil {
			return nil, err
		}
		return &ECDHKeyPair{curve: curve, x25519Priv: priv, x25519Pub: pub}, nil
	}
	return nil, errors.New("suite: unsupported ECDH curve")
}

// PublicBytes returns the wire encoding of the public key (uncompressed SEC1
// point for the NIST curves, raw 32 bytes for X25519).
func (kp *ECDHKeyPair) PublicBytes() []byte {
	if kp.std != nil {
		return kp.std.PublicKey().Bytes()
	}
	return kp.x25519Pub
}

// ComputeShared performs the (EC)DH computation against a peer's public key
// bytes in the same wire encoding PublicBytes produces.
func (kp *ECDHKeyPair) ComputeShared(peerPublic []byte) ([]byte, error) {
	if kp.std != nil {
		c, _ := stdCurve(kp.curve)
		peer, err := c.NewPublicKey(peerPublic)
		if err != nil {
			return nil, err
		}
		return kp.std.ECDH(peer)
	}
	return curve25519.X25519(kp.x25519Priv, peerPublic)
}

// DHParams is a finite-field Diffie-Hellman group, the legacy (non-EC) key
// exchange TLS 1.0–1.2 "DHE" suites negotiate. Only p and g are carried on
// the wire; the private exponent never leaves the process.
type DHParams struct {
	P *big.Int
	G *big.Int
}

// DHKeyPair is an ephemeral finite-field Diffie-Hellman keypair.
type DHKeyPair struct {
	params DHParams
	x      *big.Int // private exponent
	Y      *big.Int // public value g^x mod p
}

// GenerateDHEphemeral creates an ephemeral exponent for params.
func GenerateDHEphemeral(params DHParams) (*DHKeyPair, error) {
	x, err := rand.Int(rand.Reader, params.P)
	if err != nil {
		return nil, err
	}
	y := new(big.Int).Exp(params.G, x, params.P)
	return &DHKeyPair{params: params, x: x, Y: y}, nil
}

// ComputeShared computes peerY^x mod p.
func (kp *DHKeyPair) ComputeShared(peerY *big.Int) []byte {
	shared := new(big.Int).Exp(peerY, kp.x, kp.params.P)
	return shared.Bytes()
}
