// Package stuffer implements a bounds-checked byte cursor used to parse and
// serialize the wire formats of the record and handshake layers.
//
// A Stuffer is a bounded byte queue with one producer cursor (Write) and one
// consumer cursor (Read). All fixed-width integer accessors use network byte
// order. Every operation that would read or write past the region it is
// permitted to touch fails with an error instead of panicking or growing
// silently.
package stuffer

import (
	"encoding/binary"
	"errors"
)

var bo = binary.BigEndian

// Sentinel errors returned by the cursor operations below.
var (
	// ErrOutOfData is returned by a Read* call that would read past write_cursor.
	ErrOutOfData = errors.New("stuffer: out of data")
	// ErrIsFull is returned by a Write* call that would write past the blob.
	ErrIsFull = errors.New("stuffer: is full")
	// ErrResizeTainted is returned by Resize once a raw pointer has escaped.
	ErrResizeTainted = errors.New("stuffer: cannot resize a tainted stuffer")
	// ErrResizeStatic is returned by Resize on a non-growable stuffer.
	ErrResizeStatic = errors.New("stuffer: cannot resize a non-growable stuffer")
	// ErrNotGrowable is not returned by any Stuffer method: a write that needs
	// more capacity than a non-growable stuffer has fails with ErrIsFull.
	ErrNotGrowable = errors.New("stuffer: fixed-size stuffer has no room")
)

// Stuffer is a bounds-checked cursor over a byte region. The zero value is
// not usable; construct one with New or NewGrowable.
type Stuffer struct {
	blob          []byte
	readCursor    int
	writeCursor   int
	highWaterMark int
	growable      bool
	tainted       bool
}

// New wraps buf as a fixed-size stuffer. The write cursor starts at
// len(buf), i.e. buf is treated as already containing data to read; callers
// building a stuffer to write into should use NewEmpty.
func New(buf []byte) *Stuffer {
	return &Stuffer{blob: buf, writeCursor: len(buf), highWaterMark: len(buf)}
}

// NewEmpty wraps buf as a fixed-size stuffer with nothing written yet.
func NewEmpty(buf []byte) *Stuffer {
	return &Stuffer{blob: buf}
}

// NewGrowable creates a growable, empty stuffer with the given initial
// capacity.
func NewGrowable(initialCapacity int) *Stuffer {
	return &Stuffer{blob: make([]byte, initialCapacity), growable: true}
}

// ReadCursor returns the current read cursor.
func (s *Stuffer) ReadCursor() int { return s.readCursor }

// WriteCursor returns the current write cursor.
func (s *Stuffer) WriteCursor() int { return s.writeCursor }

// Len returns the number of unread bytes remaining.
func (s *Stuffer) Len() int { return s.writeCursor - s.readCursor }

// Cap returns the size of the underlying allocation.
func (s *Stuffer) Cap() int { return len(s.blob) }

// Tainted reports whether a raw pointer into the buffer has ever escaped.
func (s *Stuffer) Tainted() bool { return s.tainted }

// Bytes returns the written-but-unread region. The returned slice aliases the
// stuffer's storage and must not be retained across a Resize.
func (s *Stuffer) Bytes() []byte {
	return s.blob[s.readCursor:s.writeCursor]
}

// growFor ensures n more bytes can be written, growing the backing array if
// the stuffer is growable and untainted. It mirrors s2n's growable_alloc /
// resize policy: capacity grows to at least what's requested, and data below
// write_cursor survives.
func (s *Stuffer) growFor(n int) error {
	need := s.writeCursor + n
	if need <= len(s.blob) {
		return nil
	}
	if s.tainted {
		return ErrResizeTainted
	}
	if !s.growable {
		return ErrIsFull
	}
	newCap := len(s.blob) * 2
	if newCap < need {
		newCap = need
	}
	grown := make([]byte, newCap)
	copy(grown, s.blob[:s.writeCursor])
	s.blob = grown
	return nil
}

// Resize grows or shrinks the allocation to newSize. Only permitted on a
// growable, untainted stuffer; content below the write cursor is preserved.
func (s *Stuffer) Resize(newSize int) error {
	if s.tainted {
		return ErrResizeTainted
	}
	if !s.growable {
		return ErrResizeStatic
	}
	if newSize < s.writeCursor {
		newSize = s.writeCursor
	}
	grown := make([]byte, newSize)
	copy(grown, s.blob[:s.writeCursor])
	s.blob = grown
	return nil
}

// WriteBytes bulk-copies src into the stuffer, growing if necessary and
// permitted.
func (s *Stuffer) WriteBytes(src []byte) error {
	if err := s.growFor(len(src)); err != nil {
		return err
	}
	copy(s.blob[s.writeCursor:], src)
	s.writeCursor += len(src)
	if s.writeCursor > s.highWaterMark {
		s.highWaterMark = s.writeCursor
	}
	return nil
}

// ReadBytes bulk-copies n bytes into dst (which must have length n).
func (s *Stuffer) ReadBytes(dst []byte) error {
	n := len(dst)
	if s.writeCursor-s.readCursor < n {
		return ErrOutOfData
	}
	copy(dst, s.blob[s.readCursor:s.readCursor+n])
	s.readCursor += n
	return nil
}

// SkipRead advances the read cursor by n without copying.
func (s *Stuffer) SkipRead(n int) error {
	if s.writeCursor-s.readCursor < n {
		return ErrOutOfData
	}
	s.readCursor += n
	return nil
}

// SkipWrite advances the write cursor by n without copying, zero-filling the
// skipped region.
func (s *Stuffer) SkipWrite(n int) error {
	if err := s.growFor(n); err != nil {
		return err
	}
	for i := s.writeCursor; i < s.writeCursor+n; i++ {
		s.blob[i] = 0
	}
	s.writeCursor += n
	if s.writeCursor > s.highWaterMark {
		s.highWaterMark = s.writeCursor
	}
	return nil
}

// RawRead returns an interior pointer to the next n unread bytes and advances
// the read cursor past them. This taints the stuffer: Resize subsequently
// fails with ErrResizeTainted. Callers must not hold the slice across a
// write that could reallocate.
func (s *Stuffer) RawRead(n int) ([]byte, error) {
	if s.writeCursor-s.readCursor < n {
		return nil, ErrOutOfData
	}
	out := s.blob[s.readCursor : s.readCursor+n]
	s.readCursor += n
	s.tainted = true
	return out, nil
}

// RawWrite returns an interior pointer to the next n bytes to be written and
// advances the write cursor past them. Taints the stuffer.
func (s *Stuffer) RawWrite(n int) ([]byte, error) {
	if err := s.growFor(n); err != nil {
		return nil, err
	}
	out := s.blob[s.writeCursor : s.writeCursor+n]
	s.writeCursor += n
	if s.writeCursor > s.highWaterMark {
		s.highWaterMark = s.writeCursor
	}
	s.tainted = true
	return out, nil
}

// Copy reads n bytes from src via RawRead and writes them to dst via
// WriteBytes. On success src's read cursor has advanced by exactly n and
// every other byte of src's underlying storage is unchanged.
func Copy(dst, src *Stuffer, n int) error {
	b, err := src.RawRead(n)
	if err != nil {
		return err
	}
	return dst.WriteBytes(b)
}

// Wipe zeroes the region [0, highWaterMark) and resets both cursors. Used on
// stuffers that have carried keying material.
func (s *Stuffer) Wipe() {
	for i := 0; i < s.highWaterMark && i < len(s.blob); i++ {
		s.blob[i] = 0
	}
	s.readCursor = 0
	s.writeCursor = 0
	s.highWaterMark = 0
}

// WriteUint8 appends a single byte.
func (s *Stuffer) WriteUint8(v uint8) error { return s.WriteBytes([]byte{v}) }

// ReadUint8 reads a single byte.
func (s *Stuffer) ReadUint8() (uint8, error) {
	var buf [1]byte
	if err := s.ReadBytes(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// WriteUint16 appends v in network byte order.
func (s *Stuffer) WriteUint16(v uint16) error {
	var buf [2]byte
	bo.PutUint16(buf[:], v)
	return s.WriteBytes(buf[:])
}

// ReadUint16 reads a uint16 in network byte order.
func (s *Stuffer) ReadUint16() (uint16, error) {
	var buf [2]byte
	if err := s.ReadBytes(buf[:]); err != nil {
		return 0, err
	}
	return bo.Uint16(buf[:]), nil
}

// WriteUint24 appends the low 24 bits of v in network byte order.
func (s *Stuffer) WriteUint24(v uint32) error {
	buf := []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	return s.WriteBytes(buf)
}

// ReadUint24 reads a 24-bit big-endian integer.
func (s *Stuffer) ReadUint24() (uint32, error) {
	var buf [3]byte
	if err := s.ReadBytes(buf[:]); err != nil {
		return 0, err
	}
	return uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2]), nil
}

// WriteUint32 appends v in network byte order.
func (s *Stuffer) WriteUint32(v uint32) error {
	var buf [4]byte
	bo.PutUint32(buf[:], v)
	return s.WriteBytes(buf[:])
}

// ReadUint32 reads a uint32 in network byte order.
func (s *Stuffer) ReadUint32() (uint32, error) {
	var buf [4]byte
	if err := s.ReadBytes(buf[:]); err != nil {
		return 0, err
	}
	return bo.Uint32(buf[:]), nil
}

// WriteUint64 appends v in network byte order.
func (s *Stuffer) WriteUint64(v uint64) error {
	var buf [8]byte
	bo.PutUint64(buf[:], v)
	return s.WriteBytes(buf[:])
}

// ReadUint64 reads a uint64 in network byte order.
func (s *Stuffer) ReadUint64() (uint64, error) {
	var buf [8]byte
	if err := s.ReadBytes(buf[:]); err != nil {
		return 0, err
	}
	return bo.Uint64(buf[:]), nil
}

// WriteVector8 writes a length-prefixed (1-byte length) blob, as used by
// e.g. legacy_session_id.
func (s *Stuffer) WriteVector8(data []byte) error {
	if len(data) > 0xff {
		return ErrIsFull
	}
	if err := s.WriteUint8(uint8(len(data))); err != nil {
		return err
	}
	return s.WriteBytes(data)
}

// ReadVector8 reads a 1-byte length-prefixed blob.
func (s *Stuffer) ReadVector8() ([]byte, error) {
	n, err := s.ReadUint8()
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if err := s.ReadBytes(out); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteVector16 writes a length-prefixed (2-byte length) blob, as used by
// e.g. extensions and cipher_suites.
func (s *Stuffer) WriteVector16(data []byte) error {
	if len(data) > 0xffff {
		return ErrIsFull
	}
	if err := s.WriteUint16(uint16(len(data))); err != nil {
		return err
	}
	return s.WriteBytes(data)
}

// ReadVector16 reads a 2-byte length-prefixed blob.
func (s *Stuffer) ReadVector16() ([]byte, error) {
	n, err := s.ReadUint16()
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if err := s.ReadBytes(out); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteVector24 writes a length-prefixed (3-byte length) blob, as used by
// handshake message bodies.
func (s *Stuffer) WriteVector24(data []byte) error {
	if len(data) > 0xffffff {
		return ErrIsFull
	}
	if err := s.WriteUint24(uint32(len(data))); err != nil {
		return err
	}
	return s.WriteBytes(data)
}

// ReadVector24 reads a 3-byte length-prefixed blob.
func (s *Stuffer) ReadVector24() ([]byte, error) {
	n, err := s.ReadUint24()
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	if err := s.ReadBytes(out); err != nil {
		return nil, err
	}
	return out, nil
}
