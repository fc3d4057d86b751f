package tls

import (
	"crypto/rand"
	"io"

	"go.uber.org/atomic"

	"github.com/hallbrook/gotls/internal/ktrace"
	"github.com/hallbrook/gotls/keyschedule13"
	"github.com/hallbrook/gotls/record"
	"github.com/hallbrook/gotls/suite"
)

// Role distinguishes which side of the handshake a Connection plays.
type Role int

// Connection roles.
const (
	RoleClient Role = iota
	RoleServer
)

// HelloRetryRequestRandom is the fixed ServerHello.random value that marks
// a HelloRetryRequest (RFC 8446 §4.1.3).
var HelloRetryRequestRandom = [32]byte{
	0xCF, 0x21, 0xAD, 0x74, 0xE5, 0x9A, 0x61, 0x11,
	0xBE, 0x1D, 0x8C, 0x02, 0x1E, 0x65, 0xB8, 0x91,
	0xC2, 0xA2, 0x11, 0x16, 0x7A, 0xBB, 0x8C, 0x5E,
	0x07, 0x9E, 0x09, 0xE2, 0xC8, 0xA8, 0x33, 0x9C,
}

// HandshakeTypeMessageHash is the synthetic transcript entry a
// HelloRetryRequest replaces ClientHello1 with (RFC 8446 §4.4.1): the
// running hash can no longer hold the whole first ClientHello once a
// second one is sent, so its digest is folded back in behind this marker
// instead.
const HandshakeTypeMessageHash HandshakeType = 254

// transcript accumulates a running hash of every handshake message
// exchanged so far, with a pending buffer for bytes seen before the
// cipher suite (and therefore the hash algorithm) is known. Grounded on
// the teacher's Connection.transcript field and its "write the header,
// then retroactively hash it once the suite is picked" ServerHandshake
// flow (crypto/tls/tls.go).
type transcript struct {
	alg     suite.HashAlg
	running *suite.Hash
	pending [][]byte
}

func newTranscript() *transcript {
	return &transcript{}
}

// init binds the transcript to a hash algorithm and replays any bytes that
// were buffered before the algorithm was known (the ClientHello, read
// before cipher-suite negotiation completes).
func (t *transcript) init(alg suite.HashAlg) error {
	h, err := suite.NewHash(alg)
	if err != nil {
		return err
	}
	t.alg = alg
	t.running = h
	for _, b := range t.pending {
		h.Update(b)
	}
	t.pending = nil
	return nil
}

func (t *transcript) write(data []byte) {
	if t.running == nil {
		t.pending = append(t.pending, append([]byte{}, data...))
		return
	}
	t.running.Update(data)
}

// sum returns the current running digest without disturbing it, per the
// "copy state, finalize the copy" discipline a transcript hash must follow
// since it continues accumulating after a Finished or CertificateVerify is
// produced.
func (t *transcript) sum() ([]byte, error) {
	cp, err := t.running.Copy()
	if err != nil {
		return nil, err
	}
	return cp.Digest(nil), nil
}

// resetToMessageHash replaces the transcript with the synthetic
// message_hash entry RFC 8446 §4.4.1 mandates after a HelloRetryRequest:
// a handshake header carrying type=message_hash and the old transcript's
// digest as its sole body, hashed in place of the discarded ClientHello1.
func (t *transcript) resetToMessageHash() error {
	digest, err := t.sum()
	if err != nil {
		return err
	}
	h, err := suite.NewHash(t.alg)
	if err != nil {
		return err
	}
	var hdr [4]byte
	hdr[0] = byte(HandshakeTypeMessageHash)
	hdr[3] = byte(len(digest))
	h.Update(hdr[:])
	h.Update(digest)
	t.running = h
	return nil
}

// epochKeys holds one direction's installed traffic key material, kept
// around only for diagnostics; record.Protection owns the live AEAD/CBC
// state once installed.
type epochKeys struct {
	trafficSecret []byte
}

// Connection is a TLS connection: a record.Reader/record.Writer pair plus
// the handshake state machine's working set (transcript, negotiated
// parameters, key schedule state). The handshake phase is single-threaded
// by contract; once it completes, Read and Write may be called from
// separate goroutines, the two fields that cross that boundary (closing,
// closed) are atomic.
type Connection struct {
	role   Role
	config *Config
	rw     io.ReadWriter

	reader *record.Reader
	writer *record.Writer
	tr     *ktrace.Tracer

	transcript *transcript

	negotiatedVersion ProtocolVersion
	cipherSuite       CipherSuite
	suiteParams       suiteParams
	alpn              string
	serverName        string

	clientRandom [32]byte
	serverRandom [32]byte

	sched13 *keyschedule13.Schedule

	clientHandshakeTrafficSecret []byte
	serverHandshakeTrafficSecret []byte
	clientAppTrafficSecret       []byte
	serverAppTrafficSecret       []byte

	masterSecret []byte

	closing atomic.Bool
	closed  atomic.Bool

	peerCertificates [][]byte
}

// NewConnection builds a Connection over rw for the given role. cfg must
// not be mutated again after this call; NewConnection marks it used.
func NewConnection(rw io.ReadWriter, role Role, cfg *Config) *Connection {
	cfg.markUsed()
	tr := ktrace.New(cfg.Logger, cfg.Trace, cfg.TraceHex)
	startVersion := VersionTLS12
	return &Connection{
		role:       role,
		config:     cfg,
		rw:         rw,
		reader:     record.NewReader(rw, startVersion, tr),
		writer:     record.NewWriter(rw, startVersion, tr),
		tr:         tr,
		transcript: newTranscript(),
	}
}

// ConnectionState exposes the negotiated parameters a caller can observe
// after a handshake completes.
type ConnectionState struct {
	Version            ProtocolVersion
	CipherSuite        CipherSuite
	NegotiatedProtocol string
	ServerName         string
	PeerCertificates   [][]byte
}

// State returns the negotiated connection parameters.
func (c *Connection) State() ConnectionState {
	return ConnectionState{
		Version:            c.negotiatedVersion,
		CipherSuite:        c.cipherSuite,
		NegotiatedProtocol: c.alpn,
		ServerName:         c.serverName,
		PeerCertificates:   c.peerCertificates,
	}
}

// Handshake drives the handshake state machine to completion for this
// connection's role. Calling it more than once returns nil immediately
// once the first call has succeeded (idempotent, as net/tls's Handshake
// is).
func (c *Connection) Handshake() error {
	if c.negotiatedVersion != 0 {
		return nil
	}
	var err error
	if c.role == RoleServer {
		err = c.serverHandshake()
	} else {
		err = c.clientHandshake()
	}
	if err != nil {
		c.negotiatedVersion = 0
		c.sendFatalAlert(err)
		return err
	}
	return nil
}

// readHandshakeMessage reads the next handshake message, transparently
// consuming and dispatching any interleaved change_cipher_spec or alert
// records, mirroring the teacher's readHandshakeMsg.
func (c *Connection) readHandshakeMessage() (HandshakeType, []byte, error) {
	for {
		ct, data, err := c.reader.Read()
		if err != nil {
			return 0, nil, errInternalError("record read failed: %v", err)
		}
		switch ct {
		case record.ContentTypeChangeCipherSpec:
			if len(data) != 1 || data[0] != 1 {
				return 0, nil, errDecodeError("invalid change_cipher_spec")
			}
			continue
		case record.ContentTypeAlert:
			_, desc, err := decodeAlert(data)
			if err != nil {
				return 0, nil, err
			}
			return 0, nil, errHandshakeFailure("peer sent alert %v", desc)
		case record.ContentTypeHandshake:
			ht, body, rest, err := unwrapHandshake(data)
			if err != nil {
				return 0, nil, err
			}
			if len(rest) != 0 {
				return 0, nil, errDecodeError("trailing bytes after handshake message, len=%d", len(rest))
			}
			c.transcript.write(data)
			return ht, body, nil
		default:
			return 0, nil, errUnexpectedMessage("unexpected record type %v during handshake", ct)
		}
	}
}

// writeHandshakeMessage wraps and transcribes a handshake message, then
// writes it as one or more records (protected, once protection is
// installed on the writer).
func (c *Connection) writeHandshakeMessage(ht HandshakeType, body []byte) error {
	wire := wrapHandshake(ht, body)
	c.transcript.write(wire)
	return c.writer.Write(record.ContentTypeHandshake, wire)
}

// sendChangeCipherSpec emits a change_cipher_spec record. TLS 1.3 sends
// this only for middlebox compatibility (RFC 8446 §5 appendix D.4); it
// carries no cryptographic meaning in 1.3 and is not transcribed.
func (c *Connection) sendChangeCipherSpec() error {
	return c.writer.Write(record.ContentTypeChangeCipherSpec, []byte{1})
}

func (c *Connection) sendAlert(desc AlertDescription) {
	buf := encodeAlert(desc)
	_ = c.writer.Write(record.ContentTypeAlert, buf[:])
}

// sendFatalAlert maps a handshake error to the alert it carries (or
// internal_error if it carries none) and sends it, best-effort, before the
// caller closes the connection.
func (c *Connection) sendFatalAlert(err error) {
	if c.closed.Load() {
		return
	}
	if te, ok := err.(*Error); ok {
		c.sendAlert(te.Alert)
		return
	}
	c.sendAlert(AlertInternalError)
}

// installReadProtection and installWriteProtection build a record.Protection from a negotiated cipher
// suite and traffic secret/key material and installs it on the given
// reader or writer, resetting that direction's sequence number to 0.
func installReadProtection(r *record.Reader, p suiteParams, key, iv, macKey []byte) error {
	prot, err := buildProtection(p, key, iv, macKey)
	if err != nil {
		return err
	}
	r.SetProtection(prot)
	return nil
}

func installWriteProtection(w *record.Writer, p suiteParams, key, iv, macKey []byte) error {
	prot, err := buildProtection(p, key, iv, macKey)
	if err != nil {
		return err
	}
	w.SetProtection(prot)
	return nil
}

func buildProtection(p suiteParams, key, iv, macKey []byte) (record.Protection, error) {
	switch p.kind {
	case suiteKindAEAD:
		mode := record.AEADModeTLS12
		if p.isTLS13 {
			mode = record.AEADModeTLS13
		}
		return record.NewAEADProtection(p.aeadAlg, key, iv, mode)
	case suiteKindCBC:
		return record.NewCBCProtection(p.blockAlg, key, p.macAlg, macKey)
	}
	return nil, errInternalError("unsupported cipher suite kind")
}

// deriveTrafficKeyIV expands a TLS 1.3 traffic secret into the AEAD key and
// IV the chosen suite needs.
func deriveTrafficKeyIV(sched *keyschedule13.Schedule, secret []byte, p suiteParams) (key, iv []byte, err error) {
	return sched.TrafficKeyIV(secret, p.aeadAlg.KeySize())
}

// Read returns the next chunk of decrypted application data.
func (c *Connection) Read(p []byte) (int, error) {
	for {
		ct, data, err := c.reader.Read()
		if err != nil {
			return 0, err
		}
		switch ct {
		case record.ContentTypeApplicationData:
			n := copy(p, data)
			return n, nil
		case record.ContentTypeAlert:
			_, desc, err := decodeAlert(data)
			if err != nil {
				return 0, err
			}
			if desc == AlertCloseNotify {
				c.closed.Store(true)
				return 0, io.EOF
			}
			return 0, errHandshakeFailure("peer sent alert %v", desc)
		case record.ContentTypeHandshake:
			ht, _, _, err := unwrapHandshake(data)
			if err != nil {
				return 0, err
			}
			if ht != HandshakeTypeNewSessionTicket && ht != HandshakeTypeKeyUpdate {
				return 0, errUnexpectedMessage("unexpected post-handshake message %v", ht)
			}
			// NewSessionTicket/KeyUpdate bodies are accepted but not acted
			// on; no resumption or in-place rekey is implemented.
			continue
		case record.ContentTypeChangeCipherSpec:
			continue
		default:
			return 0, errUnexpectedMessage("unexpected record type %v in application data stream", ct)
		}
	}
}

// Write sends p as application data.
func (c *Connection) Write(p []byte) (int, error) {
	if err := c.writer.Write(record.ContentTypeApplicationData, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a close_notify alert and marks the connection closed. It is
// safe to call from either the reader or writer side; closing is a
// monotonic false→true transition guarded by an atomic so both sides
// agree once either observes it.
func (c *Connection) Close() error {
	if c.closing.CompareAndSwap(false, true) {
		c.sendAlert(AlertCloseNotify)
	}
	c.closed.Store(true)
	return nil
}

func randomBytes32() ([32]byte, error) {
	var b [32]byte
	_, err := rand.Read(b[:])
	return b, err
}

// negotiatedTranscriptAlg maps a just-picked cipher suite to the hash
// algorithm its transcript (and PRF/HKDF) use.
func negotiatedTranscriptAlg(p suiteParams) suite.HashAlg {
	return p.prfHash
}

// finishedLabelClient, finishedLabelServer and legacyVerifyDataLen support
// the TLS ≤1.2 Finished construction, which keyschedule.VerifyData needs a
// label and a fixed 12-byte length for regardless of suite.
const (
	finishedLabelClient = "client finished"
	finishedLabelServer = "server finished"
	legacyVerifyDataLen = 12
)
