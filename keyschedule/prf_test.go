package keyschedule

import (
	"bytes"
	"testing"

	"github.com/hallbrook/gotls/suite"
)

func TestPRF10Deterministic(t *testing.T) {
	secret := bytes.Repeat([]byte{0x01}, 48)
	seed := bytes.Repeat([]byte{0x02}, 32)

	a, err := PRF10(secret, "master secret", seed, 48)
	if err != nil {
		t.Fatalf("PRF10: %v", err)
	}
	b, err := PRF10(secret, "master secret", seed, 48)
	if err != nil {
		t.Fatalf("PRF10: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("PRF10 is not deterministic for identical inputs")
	}

	c, _ := PRF10(secret, "key expansion", seed, 48)
	if bytes.Equal(a, c) {
		t.Fatal("PRF10 output does not depend on the label")
	}
}

func TestPRF12MatchesSHA256(t *testing.T) {
	secret := bytes.Repeat([]byte{0xaa}, 32)
	seed := bytes.Repeat([]byte{0xbb}, 32)

	out, err := PRF12(suite.SHA256, secret, "master secret", seed, 64)
	if err != nil {
		t.Fatalf("PRF12: %v", err)
	}
	if len(out) != 64 {
		t.Fatalf("len(out) = %d, want 64", len(out))
	}

	out384, err := PRF12(suite.SHA384, secret, "master secret", seed, 64)
	if err != nil {
		t.Fatalf("PRF12: %v", err)
	}
	if bytes.Equal(out, out384) {
		t.Fatal("PRF12 output does not depend on the hash algorithm")
	}
}

func TestMasterSecretAndKeyBlockLengths(t *testing.T) {
	preMaster := bytes.Repeat([]byte{0x10}, 48)
	clientRandom := bytes.Repeat([]byte{0x20}, 32)
	serverRandom := bytes.Repeat([]byte{0x30}, 32)

	ms, err := MasterSecret(VersionTLS12, suite.SHA256, preMaster, clientRandom, serverRandom)
	if err != nil {
		t.Fatalf("MasterSecret: %v", err)
	}
	if len(ms) != 48 {
		t.Fatalf("len(master secret) = %d, want 48", len(ms))
	}

	// AES-128-CBC-SHA: 20-byte MAC keys, 16-byte cipher keys, 16-byte IVs.
	kb, err := DeriveKeyBlock(VersionTLS12, suite.SHA256, ms, serverRandom, clientRandom, 20, 16, 16)
	if err != nil {
		t.Fatalf("DeriveKeyBlock: %v", err)
	}
	for name, got := range map[string][]byte{
		"ClientMACKey": kb.ClientMACKey,
		"ServerMACKey": kb.ServerMACKey,
	} {
		if len(got) != 20 {
			t.Fatalf("%s length = %d, want 20", name, len(got))
		}
	}
	for name, got := range map[string][]byte{
		"ClientKey": kb.ClientKey,
		"ServerKey": kb.ServerKey,
		"ClientIV":  kb.ClientIV,
		"ServerIV":  kb.ServerIV,
	} {
		if len(got) != 16 {
			t.Fatalf("%s length = %d, want 16", name, len(got))
		}
	}
	if bytes.Equal(kb.ClientKey, kb.ServerKey) {
		t.Fatal("client and server keys must differ")
	}
}

func TestVerifyDataLength(t *testing.T) {
	ms := bytes.Repeat([]byte{0x01}, 48)
	hash := bytes.Repeat([]byte{0x02}, 32)

	vd, err := VerifyData(VersionTLS12, suite.SHA256, ms, "client finished", hash)
	if err != nil {
		t.Fatalf("VerifyData: %v", err)
	}
	if len(vd) != 12 {
		t.Fatalf("len(verify_data) = %d, want 12", len(vd))
	}

	serverVD, _ := VerifyData(VersionTLS12, suite.SHA256, ms, "server finished", hash)
	if bytes.Equal(vd, serverVD) {
		t.Fatal("client and server verify_data must differ")
	}
}
