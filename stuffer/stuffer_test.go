package stuffer

import (
	"bytes"
	"testing"
)

// TestRoundTrip checks that for every fixed-width accessor, writing a value
// and reading it back yields the same value.
func TestRoundTrip(t *testing.T) {
	s := NewGrowable(16)

	if err := s.WriteUint8(0xab); err != nil {
		t.Fatalf("WriteUint8: %v", err)
	}
	if err := s.WriteUint16(0x1234); err != nil {
		t.Fatalf("WriteUint16: %v", err)
	}
	if err := s.WriteUint24(0x010203); err != nil {
		t.Fatalf("WriteUint24: %v", err)
	}
	if err := s.WriteUint32(0xdeadbeef); err != nil {
		t.Fatalf("WriteUint32: %v", err)
	}
	if err := s.WriteUint64(0x0102030405060708); err != nil {
		t.Fatalf("WriteUint64: %v", err)
	}

	if v, err := s.ReadUint8(); err != nil || v != 0xab {
		t.Fatalf("ReadUint8 = %x, %v", v, err)
	}
	if v, err := s.ReadUint16(); err != nil || v != 0x1234 {
		t.Fatalf("ReadUint16 = %x, %v", v, err)
	}
	if v, err := s.ReadUint24(); err != nil || v != 0x010203 {
		t.Fatalf("ReadUint24 = %x, %v", v, err)
	}
	if v, err := s.ReadUint32(); err != nil || v != 0xdeadbeef {
		t.Fatalf("ReadUint32 = %x, %v", v, err)
	}
	if v, err := s.ReadUint64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("ReadUint64 = %x, %v", v, err)
	}
}

func TestVectors(t *testing.T) {
	s := NewGrowable(4)
	want := []byte("hello, world")

	if err := s.WriteVector16(want); err != nil {
		t.Fatalf("WriteVector16: %v", err)
	}
	got, err := s.ReadVector16()
	if err != nil {
		t.Fatalf("ReadVector16: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("ReadVector16 = %q, want %q", got, want)
	}
}

func TestOutOfData(t *testing.T) {
	s := New([]byte{0x01})
	if _, err := s.ReadUint16(); err != ErrOutOfData {
		t.Fatalf("ReadUint16 = %v, want ErrOutOfData", err)
	}
}

func TestIsFull(t *testing.T) {
	s := NewEmpty(make([]byte, 1))
	if err := s.WriteUint16(1); err != ErrIsFull {
		t.Fatalf("WriteUint16 = %v, want ErrIsFull", err)
	}
}

// TestCopyPreservesSource checks that after Copy(dst, src, n), every byte of
// src's underlying blob is unchanged and only src's read cursor has
// advanced, by exactly n.
func TestCopyPreservesSource(t *testing.T) {
	srcData := []byte("0123456789")
	src := New(append([]byte(nil), srcData...))
	dst := NewGrowable(4)

	const n = 4
	if err := Copy(dst, src, n); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	if src.ReadCursor() != n {
		t.Fatalf("src.ReadCursor() = %d, want %d", src.ReadCursor(), n)
	}
	if src.WriteCursor() != len(srcData) {
		t.Fatalf("src.WriteCursor() changed: %d", src.WriteCursor())
	}
	if !bytes.Equal(src.blob, srcData) {
		t.Fatalf("src storage mutated: %x, want %x", src.blob, srcData)
	}
	if !bytes.Equal(dst.Bytes(), srcData[:n]) {
		t.Fatalf("dst.Bytes() = %x, want %x", dst.Bytes(), srcData[:n])
	}
}

func TestResizeTainted(t *testing.T) {
	s := NewGrowable(4)
	if _, err := s.RawWrite(2); err != nil {
		t.Fatalf("RawWrite: %v", err)
	}
	if !s.Tainted() {
		t.Fatal("expected stuffer to be tainted after RawWrite")
	}
	if err := s.Resize(100); err != ErrResizeTainted {
		t.Fatalf("Resize = %v, want ErrResizeTainted", err)
	}
}

func TestResizeStatic(t *testing.T) {
	s := New([]byte{1, 2, 3})
	if err := s.Resize(100); err != ErrResizeStatic {
		t.Fatalf("Resize = %v, want ErrResizeStatic", err)
	}
}

func TestWipe(t *testing.T) {
	s := New([]byte{1, 2, 3, 4})
	s.Wipe()
	for _, b := range s.blob {
		if b != 0 {
			t.Fatalf("Wipe left nonzero byte: %x", s.blob)
		}
	}
	if s.ReadCursor() != 0 || s.WriteCursor() != 0 {
		t.Fatalf("Wipe did not reset cursors")
	}
}
