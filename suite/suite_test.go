package suite

import (
	"bytes"
	"testing"
)

func TestHashCopyIndependence(t *testing.T) {
	h, err := NewHash(SHA256)
	if err != nil {
		t.Fatalf("NewHash: %v", err)
	}
	h.Update([]byte("client_hello"))

	snapshot, err := h.Copy()
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	frozen := snapshot.Digest(nil)

	// Continue absorbing into the original; the snapshot must not change.
	h.Update([]byte("server_hello"))
	afterward := snapshot.Digest(nil)

	if !bytes.Equal(frozen, afterward) {
		t.Fatalf("snapshot mutated after original hash was updated")
	}

	full := h.Digest(nil)
	if bytes.Equal(full, frozen) {
		t.Fatalf("original hash did not continue past the snapshot point")
	}
}

func TestAEADRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, AEADAES128GCM.KeySize())
	a, err := NewAEAD(AEADAES128GCM, key)
	if err != nil {
		t.Fatalf("NewAEAD: %v", err)
	}

	nonce := BuildNonce(bytes.Repeat([]byte{0}, NonceSize), 1)
	plaintext := []byte("application data")
	aad := []byte{0x17, 0x03, 0x03, 0x00, 0x20}

	ct := a.Seal(nil, nonce, plaintext, aad)
	pt, err := a.Open(nil, nonce, ct, aad)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(pt, plaintext) {
		t.Fatalf("Open = %q, want %q", pt, plaintext)
	}

	// Corrupting the tag must fail closed.
	bad := append([]byte(nil), ct...)
	bad[len(bad)-1] ^= 0xff
	if _, err := a.Open(nil, nonce, bad, aad); err == nil {
		t.Fatal("Open succeeded on a tampered ciphertext")
	}
}

func TestCompositeRoundTrip(t *testing.T) {
	blockKey := bytes.Repeat([]byte{0x01}, BlockAES128.KeySize())
	macKey := bytes.Repeat([]byte{0x02}, 20)
	c, err := NewComposite(BlockAES128, blockKey, SHA1, macKey)
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}

	iv := bytes.Repeat([]byte{0x03}, BlockAES128.BlockSize())
	plaintext := []byte("x")
	record := c.Encrypt(iv, 0, 0x17, 0x0302, plaintext)

	// AES-128-CBC-SHA, TLS 1.1, one-byte payload, 20-byte MAC, 16-byte IV:
	// 1 + 1 + 20 + 16 = 38 rounded up to the next block boundary, 48.
	if len(record) != 48 {
		t.Fatalf("record length = %d, want 48", len(record))
	}

	got, err := c.Decrypt(0, 0x17, 0x0302, record)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("Decrypt = %q, want %q", got, plaintext)
	}
}

func TestCompositeTamperFails(t *testing.T) {
	blockKey := bytes.Repeat([]byte{0x01}, BlockAES128.KeySize())
	macKey := bytes.Repeat([]byte{0x02}, 20)
	c, _ := NewComposite(BlockAES128, blockKey, SHA1, macKey)

	iv := bytes.Repeat([]byte{0x03}, BlockAES128.BlockSize())
	record := c.Encrypt(iv, 0, 0x17, 0x0302, []byte("hello world12345"))

	record[len(record)-1] ^= 0x01
	if _, err := c.Decrypt(0, 0x17, 0x0302, record); err != ErrCBCVerify {
		t.Fatalf("Decrypt = %v, want ErrCBCVerify", err)
	}
}

// TestCompositeVariablePaddingRoundTrip exercises every padding length CBC
// can produce for one block size, confirming constantTimeMAC's fixed-length
// hashing still recovers the correct plaintext regardless of where the real
// content boundary falls.
func TestCompositeVariablePaddingRoundTrip(t *testing.T) {
	blockKey := bytes.Repeat([]byte{0x01}, BlockAES128.KeySize())
	macKey := bytes.Repeat([]byte{0x02}, 20)
	c, err := NewComposite(BlockAES128, blockKey, SHA1, macKey)
	if err != nil {
		t.Fatalf("NewComposite: %v", err)
	}
	iv := bytes.Repeat([]byte{0x03}, BlockAES128.BlockSize())

	for n := 0; n < BlockAES128.BlockSize()*2; n++ {
		plaintext := bytes.Repeat([]byte{0x41}, n)
		record := c.Encrypt(iv, 7, 0x17, 0x0303, plaintext)
		got, err := c.Decrypt(7, 0x17, 0x0303, record)
		if err != nil {
			t.Fatalf("plaintext length %d: Decrypt: %v", n, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("plaintext length %d: Decrypt = %q, want %q", n, got, plaintext)
		}
	}
}

// TestKEMNegotiation checks a successful intersection and an unsatisfiable
// offer.
func TestKEMNegotiation(t *testing.T) {
	got, err := NegotiateKEM(
		[]KEMID{KEMBike1L1R1, KEMBike1L1R2},
		[]KEMID{KEMBike1L1R2, KEMSikeP434R2},
	)
	if err != nil || got != KEMBike1L1R2 {
		t.Fatalf("NegotiateKEM = %v, %v; want BIKE1_L1_R2, nil", got, err)
	}

	_, err = NegotiateKEM(
		[]KEMID{KEMSikeP434R2, KEMSikeP503R1},
		[]KEMID{KEMBike1L1R1},
	)
	if err != ErrKEMUnsupportedParams {
		t.Fatalf("NegotiateKEM = %v, want ErrKEMUnsupportedParams", err)
	}
}

func TestECDHRoundTrip(t *testing.T) {
	for _, curve := range []ECDHCurve{CurveP256, CurveX25519} {
		a, err := GenerateEphemeral(curve)
		if err != nil {
			t.Fatalf("GenerateEphemeral(%v): %v", curve, err)
		}
		b, err := GenerateEphemeral(curve)
		if err != nil {
			t.Fatalf("GenerateEphemeral(%v): %v", curve, err)
		}

		s1, err := a.ComputeShared(b.PublicBytes())
		if err != nil {
			t.Fatalf("a.ComputeShared: %v", err)
		}
		s2, err := b.ComputeShared(a.PublicBytes())
		if err != nil {
			t.Fatalf("b.ComputeShared: %v", err)
		}
		if !bytes.Equal(s1, s2) {
			t.Fatalf("curve %v: shared secrets differ", curve)
		}
	}
}
