package tls

import "testing"

func TestCertChainWireSizeAndMarshal(t *testing.T) {
	leaf := []byte("leaf-der-bytes")
	inter := []byte("intermediate-der")
	cc := NewCertChain(leaf, inter)

	if cc.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", cc.Len())
	}
	want := len(leaf) + 3 + len(inter) + 3
	if cc.WireSize() != want {
		t.Fatalf("WireSize() = %d, want %d", cc.WireSize(), want)
	}
	if string(cc.Leaf()) != string(leaf) {
		t.Fatalf("Leaf() = %q, want %q", cc.Leaf(), leaf)
	}

	marshaled, err := cc.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(marshaled) != want {
		t.Fatalf("len(marshaled) = %d, want %d", len(marshaled), want)
	}

	msg := &CertificateMessage{CertificateList: [][]byte{leaf, inter}}
	body, err := msg.Marshal(false)
	if err != nil {
		t.Fatalf("CertificateMessage.Marshal: %v", err)
	}
	got, err := UnmarshalCertificateMessage(body, false)
	if err != nil {
		t.Fatalf("UnmarshalCertificateMessage: %v", err)
	}
	if len(got.CertificateList) != 2 || string(got.CertificateList[0]) != string(leaf) || string(got.CertificateList[1]) != string(inter) {
		t.Fatalf("got %v, want [%q %q]", got.CertificateList, leaf, inter)
	}
}

func TestCertChainEmpty(t *testing.T) {
	cc := NewCertChain()
	if cc.Len() != 0 || cc.WireSize() != 0 {
		t.Fatalf("empty chain should have zero length and size")
	}
	if cc.Leaf() != nil {
		t.Fatalf("Leaf() of empty chain should be nil")
	}
}
