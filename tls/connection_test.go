package tls

import (
	"bytes"
	"testing"

	"github.com/hallbrook/gotls/suite"
)

func TestTranscriptBuffersUntilInit(t *testing.T) {
	tr := newTranscript()
	tr.write([]byte("client_hello"))
	tr.write([]byte("server_hello"))

	if err := tr.init(suite.SHA256); err != nil {
		t.Fatalf("init: %v", err)
	}
	got, err := tr.sum()
	if err != nil {
		t.Fatalf("sum: %v", err)
	}

	want, err := suite.NewHash(suite.SHA256)
	if err != nil {
		t.Fatalf("NewHash: %v", err)
	}
	want.Update([]byte("client_hello"))
	want.Update([]byte("server_hello"))
	if !bytes.Equal(got, want.Digest(nil)) {
		t.Fatalf("buffered writes were not replayed into the running hash on init")
	}
}

func TestTranscriptSumDoesNotAdvanceRunningHash(t *testing.T) {
	tr := newTranscript()
	if err := tr.init(suite.SHA256); err != nil {
		t.Fatalf("init: %v", err)
	}
	tr.write([]byte("certificate"))

	first, err := tr.sum()
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	second, err := tr.sum()
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("sum is not idempotent: %x != %x", first, second)
	}

	tr.write([]byte("certificate_verify"))
	third, err := tr.sum()
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if bytes.Equal(first, third) {
		t.Fatalf("sum did not reflect a later write")
	}
}

func TestTranscriptResetToMessageHash(t *testing.T) {
	tr := newTranscript()
	if err := tr.init(suite.SHA256); err != nil {
		t.Fatalf("init: %v", err)
	}
	tr.write([]byte("client_hello_1"))

	ch1Hash, err := tr.sum()
	if err != nil {
		t.Fatalf("sum before reset: %v", err)
	}
	if err := tr.resetToMessageHash(); err != nil {
		t.Fatalf("resetToMessageHash: %v", err)
	}

	want, err := suite.NewHash(suite.SHA256)
	if err != nil {
		t.Fatalf("NewHash: %v", err)
	}
	hdr := [4]byte{byte(HandshakeTypeMessageHash), 0, 0, byte(len(ch1Hash))}
	want.Update(hdr[:])
	want.Update(ch1Hash)

	got, err := tr.sum()
	if err != nil {
		t.Fatalf("sum after reset: %v", err)
	}
	if !bytes.Equal(got, want.Digest(nil)) {
		t.Fatalf("transcript after resetToMessageHash does not match the message_hash construction")
	}

	// The transcript continues accumulating after the reset, the same way
	// it does after any other handshake message.
	tr.write([]byte("client_hello_2"))
	want.Update([]byte("client_hello_2"))
	got2, err := tr.sum()
	if err != nil {
		t.Fatalf("sum after writing client_hello_2: %v", err)
	}
	if !bytes.Equal(got2, want.Digest(nil)) {
		t.Fatalf("transcript did not continue accumulating after resetToMessageHash")
	}
}

func TestConnectionStateReportsNegotiatedParameters(t *testing.T) {
	cfg := NewConfig()
	conn := NewConnection(new(loopbackRW), RoleClient, cfg)
	conn.negotiatedVersion = VersionTLS13
	conn.cipherSuite = CipherSuiteTLS13AES128GCMSHA256
	conn.alpn = "h2"

	state := conn.State()
	if state.Version != VersionTLS13 {
		t.Fatalf("State().Version = %v, want TLS 1.3", state.Version)
	}
	if state.CipherSuite != CipherSuiteTLS13AES128GCMSHA256 {
		t.Fatalf("State().CipherSuite = %v", state.CipherSuite)
	}
	if state.NegotiatedProtocol != "h2" {
		t.Fatalf("State().NegotiatedProtocol = %q, want h2", state.NegotiatedProtocol)
	}
}

// loopbackRW is a minimal io.ReadWriter good enough to build a Connection
// for tests that never actually exchange bytes over it.
type loopbackRW struct{}

func (loopbackRW) Read([]byte) (int, error)    { return 0, nil }
func (loopbackRW) Write(p []byte) (int, error) { return len(p), nil }
