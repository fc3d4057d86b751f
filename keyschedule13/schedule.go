// Package keyschedule13 implements the TLS 1.3 key schedule (RFC 8446
// §7.1): the Extract/Derive-Secret cascade from a zero-filled early secret
// through the handshake and master secrets, traffic secret derivation, and
// the key-update ratchet. It is grounded on the HKDF cascade the teacher's
// crypto/tls/key_exchange.go builds for its (TLS 1.3-only, server-side)
// handshake, generalized to cover both roles and the full three-stage
// cascade rather than only the handshake-secret stage.
package keyschedule13

import (
	"github.com/hallbrook/gotls/suite"
)

// Schedule holds the running secrets of one connection's key derivation,
// advanced stage by stage as the handshake progresses.
type Schedule struct {
	alg   suite.HashAlg
	early []byte
	hs    []byte
	app   []byte
}

// New starts a schedule for the given transcript-hash algorithm (SHA-256 or
// SHA-384, selected by the negotiated cipher suite).
func New(alg suite.HashAlg) *Schedule {
	return &Schedule{alg: alg}
}

func (s *Schedule) zeroHash() []byte {
	return make([]byte, s.alg.Size())
}

func (s *Schedule) emptyTranscriptHash() ([]byte, error) {
	h, err := suite.NewHash(s.alg)
	if err != nil {
		return nil, err
	}
	return h.Digest(nil), nil
}

// deriveSecret implements RFC 8446 §7.1's Derive-Secret(Secret, Label,
// Messages): HKDF-Expand-Label(Secret, Label, Hash(Messages), Hash.length).
func (s *Schedule) deriveSecret(secret []byte, label string, transcriptHash []byte) ([]byte, error) {
	return suite.HKDFExpandLabel(s.alg, secret, label, transcriptHash, s.alg.Size())
}

// EarlySecret computes Extract(salt=0, IKM=PSK) and stores it; psk is nil
// for a connection with no external/resumption PSK, in which case IKM is
// the zero vector per RFC 8446 §7.1.
func (s *Schedule) EarlySecret(psk []byte) []byte {
	zero := s.zeroHash()
	ikm := psk
	if ikm == nil {
		ikm = zero
	}
	s.early = suite.HKDFExtract(s.alg, zero, ikm)
	return s.early
}

// HandshakeSecret computes Extract(salt=Derive-Secret(EarlySecret,
// "derived", ""), IKM=(EC)DHE shared secret) and stores it. EarlySecret must
// have been called first.
func (s *Schedule) HandshakeSecret(dhSharedSecret []byte) ([]byte, error) {
	empty, err := s.emptyTranscriptHash()
	if err != nil {
		return nil, err
	}
	salt, err := s.deriveSecret(s.early, "derived", empty)
	if err != nil {
		return nil, err
	}
	s.hs = suite.HKDFExtract(s.alg, salt, dhSharedSecret)
	return s.hs, nil
}

// HandshakeTrafficSecrets derives the client and server handshake traffic
// secrets over the transcript hash through ServerHello.
func (s *Schedule) HandshakeTrafficSecrets(transcriptHash []byte) (client, server []byte, err error) {
	client, err = s.deriveSecret(s.hs, "c hs traffic", transcriptHash)
	if err != nil {
		return nil, nil, err
	}
	server, err = s.deriveSecret(s.hs, "s hs traffic", transcriptHash)
	if err != nil {
		return nil, nil, err
	}
	return client, server, nil
}

// MasterSecret computes Extract(salt=Derive-Secret(HandshakeSecret,
// "derived", ""), IKM=0) and stores it. HandshakeSecret must have been
// called first.
func (s *Schedule) MasterSecret() ([]byte, error) {
	empty, err := s.emptyTranscriptHash()
	if err != nil {
		return nil, err
	}
	salt, err := s.deriveSecret(s.hs, "derived", empty)
	if err != nil {
		return nil, err
	}
	s.app = suite.HKDFExtract(s.alg, salt, s.zeroHash())
	return s.app, nil
}

// ApplicationTrafficSecrets derives the client and server application
// traffic secrets over the transcript hash through server Finished.
func (s *Schedule) ApplicationTrafficSecrets(transcriptHash []byte) (client, server []byte, err error) {
	client, err = s.deriveSecret(s.app, "c ap traffic", transcriptHash)
	if err != nil {
		return nil, nil, err
	}
	server, err = s.deriveSecret(s.app, "s ap traffic", transcriptHash)
	if err != nil {
		return nil, nil, err
	}
	return client, server, nil
}

// ExporterMasterSecret derives the exporter_master_secret over the
// transcript hash through server Finished (RFC 8446 §7.1). Package tls
// does not call it; no keying-material exporter is exposed.
func (s *Schedule) ExporterMasterSecret(transcriptHash []byte) ([]byte, error) {
	return s.deriveSecret(s.app, "exp master", transcriptHash)
}

// TrafficKeyIV derives the record-protection key and IV from a traffic
// secret (RFC 8446 §7.3): key = HKDF-Expand-Label(secret, "key", "",
// key_length), iv = HKDF-Expand-Label(secret, "iv", "", iv_length).
func (s *Schedule) TrafficKeyIV(trafficSecret []byte, keyLen int) (key, iv []byte, err error) {
	key, err = suite.HKDFExpandLabel(s.alg, trafficSecret, "key", nil, keyLen)
	if err != nil {
		return nil, nil, err
	}
	iv, err = suite.HKDFExpandLabel(s.alg, trafficSecret, "iv", nil, suite.NonceSize)
	if err != nil {
		return nil, nil, err
	}
	return key, iv, nil
}

// FinishedKey derives the per-direction Finished-message MAC key (RFC 8446
// §4.4.4): HKDF-Expand-Label(BaseKey, "finished", "", Hash.length).
func (s *Schedule) FinishedKey(trafficSecret []byte) ([]byte, error) {
	return suite.HKDFExpandLabel(s.alg, trafficSecret, "finished", nil, s.alg.Size())
}

// VerifyData computes a Finished message's verify_data: HMAC(finishedKey,
// Hash(transcript)).
func (s *Schedule) VerifyData(finishedKey, transcriptHash []byte) ([]byte, error) {
	return suite.Sum(s.alg, finishedKey, transcriptHash)
}

// NextTrafficSecret implements the key-update ratchet (RFC 8446 §7.2):
// application_traffic_secret_N+1 = HKDF-Expand-Label(
//
//	application_traffic_secret_N, "traffic upd", "", Hash.length).
func (s *Schedule) NextTrafficSecret(trafficSecret []byte) ([]byte, error) {
	return suite.HKDFExpandLabel(s.alg, trafficSecret, "traffic upd", nil, s.alg.Size())
}
