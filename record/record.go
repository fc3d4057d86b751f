package record

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/hallbrook/gotls/internal/ktrace"
)

var bo = binary.BigEndian

// ErrSequenceOverflow is returned when a direction's 64-bit sequence number
// would wrap. RFC 8446 §5.3 and RFC 5246 §6.1 both require the connection
// be terminated rather than reuse a sequence number/nonce.
var ErrSequenceOverflow = errors.New("record: sequence number exhausted, connection must close")

// ErrRecordOverflow is returned when a peer's record header claims a
// length longer than MaxFragmentLength+MaxCiphertextOverhead.
var ErrRecordOverflow = errors.New("record: record length exceeds the permitted maximum")

// Reader reads length-prefixed, optionally protected records from an
// underlying io.Reader, tracking the receive sequence number and applying
// Protection.Open to each record's payload.
type Reader struct {
	r          io.Reader
	protection Protection
	version    ProtocolVersion
	seq        uint64
	tr         *ktrace.Tracer
	hdr        [HeaderLength]byte
	buf        []byte
}

// NewReader builds a Reader over r. version is the on-wire version to
// expect in record headers (renegotiated by SetVersion as the handshake
// progresses); protection starts as NullProtection until SetProtection
// installs real keys.
func NewReader(r io.Reader, version ProtocolVersion, tr *ktrace.Tracer) *Reader {
	if tr == nil {
		tr = ktrace.New(nil, false, false)
	}
	return &Reader{
		r:          r,
		protection: NullProtection{},
		version:    version,
		tr:         tr,
		buf:        make([]byte, MaxFragmentLength+MaxCiphertextOverhead),
	}
}

// SetProtection installs new read-side protection and resets the sequence
// number to 0, as happens at every key-schedule epoch boundary (after
// ChangeCipherSpec in TLS ≤1.2, at the handshake and handshake→application
// transitions in TLS 1.3).
func (r *Reader) SetProtection(p Protection) {
	r.protection = p
	r.seq = 0
}

// SetVersion updates the protocol version Read expects in record headers,
// called once the real negotiated version is known (ServerHello for
// TLS 1.3's "supported_versions" override of legacy_record_version).
func (r *Reader) SetVersion(v ProtocolVersion) { r.version = v }

func (r *Reader) readFull(buf []byte) error {
	_, err := io.ReadFull(r.r, buf)
	return err
}

// Read returns the next record's content type and plaintext.
func (r *Reader) Read() (ContentType, []byte, error) {
	if err := r.readFull(r.hdr[:]); err != nil {
		return ContentTypeInvalid, nil, err
	}
	wireCT := ContentType(r.hdr[0])
	length := int(bo.Uint16(r.hdr[3:5]))
	if length > MaxFragmentLength+MaxCiphertextOverhead {
		return ContentTypeInvalid, nil, ErrRecordOverflow
	}

	payload := r.buf[:length]
	if err := r.readFull(payload); err != nil {
		return ContentTypeInvalid, nil, err
	}

	r.tr.Event("record read")
	r.tr.Hex("record payload", payload)

	if r.seq == ^uint64(0) {
		return ContentTypeInvalid, nil, ErrSequenceOverflow
	}
	ct, plaintext, err := r.protection.Open(r.seq, wireCT, r.version, payload)
	r.seq++
	if err != nil {
		return ContentTypeInvalid, nil, err
	}
	return ct, plaintext, nil
}

// Writer writes length-prefixed, optionally protected records to an
// underlying io.Writer, fragmenting payloads larger than
// MaxFragmentLength and tracking the send sequence number.
type Writer struct {
	w          io.Writer
	protection Protection
	version    ProtocolVersion
	seq        uint64
	tr         *ktrace.Tracer
}

// NewWriter builds a Writer over w.
func NewWriter(w io.Writer, version ProtocolVersion, tr *ktrace.Tracer) *Writer {
	if tr == nil {
		tr = ktrace.New(nil, false, false)
	}
	return &Writer{w: w, protection: NullProtection{}, version: version, tr: tr}
}

// SetProtection installs new write-side protection and resets the sequence
// number to 0.
func (w *Writer) SetProtection(p Protection) {
	w.protection = p
	w.seq = 0
}

// SetVersion updates the protocol version Write puts in record headers.
func (w *Writer) SetVersion(v ProtocolVersion) { w.version = v }

// Write fragments data into records of at most MaxFragmentLength plaintext
// bytes each, protecting and emitting one record per fragment. A zero-length
// data still emits exactly one record (used for an empty application-data
// flush), matching RFC 8446's requirement that fragmentation never produces
// zero records for non-empty input and at least one for explicit sends.
func (w *Writer) Write(ct ContentType, data []byte) error {
	if len(data) == 0 {
		return w.writeFragment(ct, data)
	}
	for off := 0; off < len(data); off += MaxFragmentLength {
		end := off + MaxFragmentLength
		if end > len(data) {
			end = len(data)
		}
		if err := w.writeFragment(ct, data[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeFragment(ct ContentType, fragment []byte) error {
	if w.seq == ^uint64(0) {
		return ErrSequenceOverflow
	}
	wireCT, payload := w.protection.Seal(w.seq, ct, w.version, fragment)
	w.seq++

	var hdr [HeaderLength]byte
	hdr[0] = byte(wireCT)
	bo.PutUint16(hdr[1:3], uint16(w.version))
	bo.PutUint16(hdr[3:5], uint16(len(payload)))

	w.tr.Event("record write")
	w.tr.Hex("record payload", payload)

	if _, err := w.w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.w.Write(payload)
	return err
}
