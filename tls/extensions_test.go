package tls

import (
	"reflect"
	"testing"
)

func TestServerNameListRoundTrip(t *testing.T) {
	want := []string{"example.com"}
	data, err := EncodeServerNameList(want)
	if err != nil {
		t.Fatalf("EncodeServerNameList: %v", err)
	}
	got, err := ParseServerNameList(data)
	if err != nil {
		t.Fatalf("ParseServerNameList: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSupportedGroupsRoundTrip(t *testing.T) {
	want := []NamedGroup{GroupX25519, GroupSecp256r1}
	data, err := EncodeSupportedGroups(want)
	if err != nil {
		t.Fatalf("EncodeSupportedGroups: %v", err)
	}
	got, err := ParseSupportedGroups(data)
	if err != nil {
		t.Fatalf("ParseSupportedGroups: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSupportedVersionsRoundTrip(t *testing.T) {
	want := []ProtocolVersion{VersionTLS13, VersionTLS12}
	data, err := EncodeSupportedVersionsClient(want)
	if err != nil {
		t.Fatalf("EncodeSupportedVersionsClient: %v", err)
	}
	got, err := ParseSupportedVersionsClient(data)
	if err != nil {
		t.Fatalf("ParseSupportedVersionsClient: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	serverData := EncodeSupportedVersionsServer(VersionTLS13)
	gotV, err := ParseSupportedVersionsServer(serverData)
	if err != nil {
		t.Fatalf("ParseSupportedVersionsServer: %v", err)
	}
	if gotV != VersionTLS13 {
		t.Fatalf("got %v, want %v", gotV, VersionTLS13)
	}
}

func TestKeyShareRoundTrip(t *testing.T) {
	want := []KeyShareEntry{{Group: GroupX25519, KeyExchange: []byte{1, 2, 3, 4}}}
	data, err := EncodeKeyShareClientHello(want)
	if err != nil {
		t.Fatalf("EncodeKeyShareClientHello: %v", err)
	}
	got, err := ParseKeyShareClientHello(data)
	if err != nil {
		t.Fatalf("ParseKeyShareClientHello: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	serverData, err := EncodeKeyShareServerHello(want[0])
	if err != nil {
		t.Fatalf("EncodeKeyShareServerHello: %v", err)
	}
	gotEntry, err := ParseKeyShareServerHello(serverData)
	if err != nil {
		t.Fatalf("ParseKeyShareServerHello: %v", err)
	}
	if !reflect.DeepEqual(gotEntry, want[0]) {
		t.Fatalf("got %v, want %v", gotEntry, want[0])
	}
}

func TestALPNRoundTrip(t *testing.T) {
	want := []string{"h2", "http/1.1"}
	data, err := EncodeALPNProtocols(want)
	if err != nil {
		t.Fatalf("EncodeALPNProtocols: %v", err)
	}
	got, err := ParseALPNProtocols(data)
	if err != nil {
		t.Fatalf("ParseALPNProtocols: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestALPNMalformedIsFatalDecodeError exercises the decision that a
// malformed ALPN protocol list produces a fatal decode_error rather than
// being silently dropped.
func TestALPNMalformedIsFatalDecodeError(t *testing.T) {
	// protocol_name_list length prefix claims 10 bytes but only 2 follow.
	malformed := []byte{0x00, 0x0a, 0x02, 'h', '2'}
	_, err := ParseALPNProtocols(malformed)
	if err == nil {
		t.Fatalf("expected error for malformed ALPN list")
	}
	tlsErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("err = %T, want *Error", err)
	}
	if tlsErr.Alert != AlertDecodeError {
		t.Fatalf("alert = %v, want %v", tlsErr.Alert, AlertDecodeError)
	}
}

func TestALPNEmptyListIsRejected(t *testing.T) {
	empty := []byte{0x00, 0x00}
	if _, err := ParseALPNProtocols(empty); err == nil {
		t.Fatalf("expected error for empty ALPN protocol list")
	}
}

func TestNegotiateALPN(t *testing.T) {
	offered := []string{"http/1.1", "h2"}
	supported := []string{"h2", "http/1.1"}
	got, ok := NegotiateALPN(offered, supported)
	if !ok || got != "http/1.1" {
		t.Fatalf("got (%q, %v), want (\"http/1.1\", true)", got, ok)
	}

	if _, ok := NegotiateALPN([]string{"spdy/3"}, supported); ok {
		t.Fatalf("expected no match")
	}
}
