package suite

import "errors"

// KEMID names a key-encapsulation mechanism. The concrete lattice/isogeny
// math (BIKE, SIKE, ML-KEM, ...) is treated as an opaque, constant-time
// primitive the same way AEAD and HMAC backends are, so KEM only models
// the negotiation contract and a pluggable Backend.
type KEMID uint16

// A representative set of IANA KEM identifiers, used by the negotiation
// tests. Package tls does not use them.
const (
	KEMBike1L1R1  KEMID = 1
	KEMBike1L1R2  KEMID = 2
	KEMSikeP434R2 KEMID = 19
	KEMSikeP503R1 KEMID = 20
)

// ErrKEMUnsupportedParams is returned by NegotiateKEM when the client
// offered at least one KEM for the negotiated suite but none is in the
// server's preference list.
var ErrKEMUnsupportedParams = errors.New("suite: no mutually supported KEM parameters")

// Backend implements the actual encapsulation mechanism for one KEMID.
type Backend interface {
	ID() KEMID
	PublicKeySize() int
	CiphertextSize() int
	SharedSecretSize() int
	GenerateKeyPair() (pub, priv []byte, err error)
	Encapsulate(pub []byte) (ciphertext, sharedSecret []byte, err error)
	Decapsulate(ciphertext, priv []byte) (sharedSecret []byte, err error)
}

// NegotiateKEM selects a KEM by iterating the server's preference list in
// order and returning the first entry the client also offered. If the
// client offered at least one KEM but none intersects the server's list,
// negotiation fails; if the client offered none at all, the server's top
// choice wins.
func NegotiateKEM(serverPrefs, clientOffered []KEMID) (KEMID, error) {
	if len(clientOffered) == 0 {
		if len(serverPrefs) == 0 {
			return 0, ErrKEMUnsupportedParams
		}
		return serverPrefs[0], nil
	}

	offered := make(map[KEMID]bool, len(clientOffered))
	for _, id := range clientOffered {
		offered[id] = true
	}
	for _, pref := range serverPrefs {
		if offered[pref] {
			return pref, nil
		}
	}
	return 0, ErrKEMUnsupportedParams
}
