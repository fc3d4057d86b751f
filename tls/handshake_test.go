package tls

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/hallbrook/gotls/suite"
)

func selfSignedECDSACert(t *testing.T) (der []byte, priv *suite.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("ecdsa.GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "ecdsa.test"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(100 * 365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err = x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("x509.CreateCertificate: %v", err)
	}
	return der, suite.NewECDSAPrivateKey(key)
}

func selfSignedRSACert(t *testing.T) (der []byte, priv *suite.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "rsa.test"},
		NotBefore:    time.Unix(0, 0),
		NotAfter:     time.Unix(0, 0).Add(100 * 365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err = x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("x509.CreateCertificate: %v", err)
	}
	return der, suite.NewRSAPrivateKey(key, false)
}

// runHandshakePair completes a handshake on both ends of an in-memory pipe
// concurrently and returns each side's error (nil on success).
func runHandshakePair(t *testing.T, serverCfg, clientCfg *Config) (server, client *Connection, serverErr, clientErr error) {
	t.Helper()
	a, b := net.Pipe()
	server = NewConnection(a, RoleServer, serverCfg)
	client = NewConnection(b, RoleClient, clientCfg)

	done := make(chan error, 2)
	go func() { done <- server.Handshake() }()
	go func() { done <- client.Handshake() }()

	errs := make([]error, 0, 2)
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			errs = append(errs, err)
		case <-time.After(5 * time.Second):
			t.Fatalf("handshake timed out")
		}
	}
	return server, client, errs[0], errs[1]
}

func TestHandshakeTLS13RoundTrip(t *testing.T) {
	der, priv := selfSignedECDSACert(t)
	chain := NewCertChain(der)

	serverCfg := NewConfig(
		WithVersions(VersionTLS13, VersionTLS13),
		WithCertificate(chain, priv, SignatureSchemeECDSASecp256r1SHA256),
		WithALPN("h2", "http/1.1"),
	)
	clientCfg := NewConfig(
		WithVersions(VersionTLS13, VersionTLS13),
		WithALPN("http/1.1"),
		WithInsecureSkipVerify(),
	)

	server, client, serverErr, clientErr := runHandshakePair(t, serverCfg, clientCfg)
	if serverErr != nil {
		t.Fatalf("server handshake: %v", serverErr)
	}
	if clientErr != nil {
		t.Fatalf("client handshake: %v", clientErr)
	}

	ss, cs := server.State(), client.State()
	if ss.Version != VersionTLS13 || cs.Version != VersionTLS13 {
		t.Fatalf("negotiated version server=%v client=%v, want TLS 1.3", ss.Version, cs.Version)
	}
	if ss.CipherSuite != cs.CipherSuite {
		t.Fatalf("cipher suite mismatch: server=%v client=%v", ss.CipherSuite, cs.CipherSuite)
	}
	if ss.NegotiatedProtocol != "http/1.1" || cs.NegotiatedProtocol != "http/1.1" {
		t.Fatalf("alpn = server:%q client:%q, want http/1.1", ss.NegotiatedProtocol, cs.NegotiatedProtocol)
	}

	msg := []byte("hello over tls 1.3")
	exchangeApplicationData(t, server, client, msg)
}

func TestHandshakeLegacyCBCRoundTrip(t *testing.T) {
	der, priv := selfSignedRSACert(t)
	chain := NewCertChain(der)

	serverCfg := NewConfig(
		WithVersions(VersionTLS12, VersionTLS12),
		WithCipherPreferences(CipherSuiteECDHERSAWithAES128CBCSHA),
		WithCertificate(chain, priv, SignatureSchemeRSAPKCS1SHA256),
	)
	clientCfg := NewConfig(
		WithVersions(VersionTLS12, VersionTLS12),
		WithCipherPreferences(CipherSuiteECDHERSAWithAES128CBCSHA),
		WithInsecureSkipVerify(),
	)

	server, client, serverErr, clientErr := runHandshakePair(t, serverCfg, clientCfg)
	if serverErr != nil {
		t.Fatalf("server handshake: %v", serverErr)
	}
	if clientErr != nil {
		t.Fatalf("client handshake: %v", clientErr)
	}

	if server.State().Version != VersionTLS12 || client.State().Version != VersionTLS12 {
		t.Fatalf("negotiated version server=%v client=%v, want TLS 1.2", server.State().Version, client.State().Version)
	}
	if server.State().CipherSuite != CipherSuiteECDHERSAWithAES128CBCSHA {
		t.Fatalf("cipher suite = %v, want %v", server.State().CipherSuite, CipherSuiteECDHERSAWithAES128CBCSHA)
	}

	exchangeApplicationData(t, server, client, []byte("hello over tls 1.2 cbc"))
}

func TestHandshakeDualCertificateSelection(t *testing.T) {
	ecdsaDER, ecdsaPriv := selfSignedECDSACert(t)
	rsaDER, rsaPriv := selfSignedRSACert(t)

	serverCfg := NewConfig(
		WithVersions(VersionTLS13, VersionTLS13),
		WithCertificate(NewCertChain(ecdsaDER), ecdsaPriv, SignatureSchemeECDSASecp256r1SHA256),
		WithCertificate(NewCertChain(rsaDER), rsaPriv, SignatureSchemeRSAPSSRSAESHA256),
	)

	// A client offering only the RSA scheme must receive the RSA cert.
	rsaClientCfg := NewConfig(
		WithVersions(VersionTLS13, VersionTLS13),
		WithSignatureSchemes(SignatureSchemeRSAPSSRSAESHA256),
		WithInsecureSkipVerify(),
	)
	_, client, serverErr, clientErr := runHandshakePair(t, serverCfg, rsaClientCfg)
	if serverErr != nil || clientErr != nil {
		t.Fatalf("rsa-only handshake: server=%v client=%v", serverErr, clientErr)
	}
	if len(client.State().PeerCertificates) != 1 || !bytes.Equal(client.State().PeerCertificates[0], rsaDER) {
		t.Fatalf("expected the RSA certificate to be selected")
	}

	// A client offering only the ECDSA scheme must receive the ECDSA cert.
	ecdsaClientCfg := NewConfig(
		WithVersions(VersionTLS13, VersionTLS13),
		WithSignatureSchemes(SignatureSchemeECDSASecp256r1SHA256),
		WithInsecureSkipVerify(),
	)
	_, client2, serverErr2, clientErr2 := runHandshakePair(t, serverCfg, ecdsaClientCfg)
	if serverErr2 != nil || clientErr2 != nil {
		t.Fatalf("ecdsa-only handshake: server=%v client=%v", serverErr2, clientErr2)
	}
	if len(client2.State().PeerCertificates) != 1 || !bytes.Equal(client2.State().PeerCertificates[0], ecdsaDER) {
		t.Fatalf("expected the ECDSA certificate to be selected")
	}
}

func exchangeApplicationData(t *testing.T, server, client *Connection, msg []byte) {
	t.Helper()
	writeErrc := make(chan error, 1)
	go func() {
		_, err := client.Write(msg)
		writeErrc <- err
	}()

	buf := make([]byte, len(msg))
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("server.Read: %v", err)
	}
	if err := <-writeErrc; err != nil {
		t.Fatalf("client.Write: %v", err)
	}
	if !bytes.Equal(buf[:n], msg) {
		t.Fatalf("got %q, want %q", buf[:n], msg)
	}
}

// TestHelloRetryRequestRoundTrip drives a server through the
// HelloRetryRequest branch by hand: a ClientHello that offers a group in
// supported_groups but sends no matching key_share (a client minimizing the
// number of key shares it computes, RFC 8446 §4.1.2), followed by a second
// ClientHello that does include the requested group's share.
func TestHelloRetryRequestRoundTrip(t *testing.T) {
	der, priv := selfSignedECDSACert(t)
	chain := NewCertChain(der)
	serverCfg := NewConfig(
		WithVersions(VersionTLS13, VersionTLS13),
		WithGroups(GroupX25519),
		WithCertificate(chain, priv, SignatureSchemeECDSASecp256r1SHA256),
	)

	a, b := net.Pipe()
	server := NewConnection(a, RoleServer, serverCfg)

	serverErrc := make(chan error, 1)
	go func() { serverErrc <- server.Handshake() }()

	clientConn := NewConnection(b, RoleClient, NewConfig(
		WithVersions(VersionTLS13, VersionTLS13),
		WithGroups(GroupX25519),
		WithInsecureSkipVerify(),
	))

	clientRandom, err := randomBytes32()
	if err != nil {
		t.Fatalf("randomBytes32: %v", err)
	}
	groupsData, err := EncodeSupportedGroups([]NamedGroup{GroupX25519})
	if err != nil {
		t.Fatalf("EncodeSupportedGroups: %v", err)
	}
	versionsData, err := EncodeSupportedVersionsClient([]ProtocolVersion{VersionTLS13})
	if err != nil {
		t.Fatalf("EncodeSupportedVersionsClient: %v", err)
	}
	sigData, err := EncodeSignatureAlgorithms(defaultSignatureSchemes)
	if err != nil {
		t.Fatalf("EncodeSignatureAlgorithms: %v", err)
	}

	ch1 := &ClientHello{
		LegacyVersion:      VersionTLS12,
		Random:             clientRandom,
		CompressionMethods: []byte{0},
		CipherSuites:       []CipherSuite{CipherSuiteTLS13AES128GCMSHA256},
		Extensions: []Extension{
			{Type: ExtSupportedVersions, Data: versionsData},
			{Type: ExtSupportedGroups, Data: groupsData},
			{Type: ExtSignatureAlgorithms, Data: sigData},
			// Deliberately no key_share extension: forces a retry.
		},
	}
	ch1Body, err := ch1.Marshal()
	if err != nil {
		t.Fatalf("marshal client_hello: %v", err)
	}
	if err := clientConn.writeHandshakeMessage(HandshakeTypeClientHello, ch1Body); err != nil {
		t.Fatalf("write client_hello: %v", err)
	}

	ht, body, err := clientConn.readHandshakeMessage()
	if err != nil {
		t.Fatalf("read hello_retry_request: %v", err)
	}
	if ht != HandshakeTypeServerHello {
		t.Fatalf("ht = %v, want server_hello (hello_retry_request)", ht)
	}
	hrr, err := UnmarshalServerHello(body)
	if err != nil {
		t.Fatalf("UnmarshalServerHello: %v", err)
	}
	if hrr.Random != HelloRetryRequestRandom {
		t.Fatalf("expected hello_retry_request random marker")
	}
	ksExt, ok := findExtension(hrr.Extensions, ExtKeyShare)
	if !ok || len(ksExt.Data) != 2 {
		t.Fatalf("hello_retry_request missing/malformed key_share")
	}
	if NamedGroup(bo.Uint16(ksExt.Data)) != GroupX25519 {
		t.Fatalf("hello_retry_request requested an unexpected group")
	}

	kp, err := suite.GenerateEphemeral(suite.CurveX25519)
	if err != nil {
		t.Fatalf("GenerateEphemeral: %v", err)
	}
	ksData, err := EncodeKeyShareClientHello([]KeyShareEntry{{Group: GroupX25519, KeyExchange: kp.PublicBytes()}})
	if err != nil {
		t.Fatalf("EncodeKeyShareClientHello: %v", err)
	}
	ch2 := *ch1
	ch2.Extensions = append(append([]Extension{}, ch1.Extensions...), Extension{Type: ExtKeyShare, Data: ksData})
	ch2Body, err := ch2.Marshal()
	if err != nil {
		t.Fatalf("marshal retried client_hello: %v", err)
	}
	if err := clientConn.writeHandshakeMessage(HandshakeTypeClientHello, ch2Body); err != nil {
		t.Fatalf("write retried client_hello: %v", err)
	}

	select {
	case err := <-serverErrc:
		if err != nil {
			t.Fatalf("server handshake after retry: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server handshake timed out after retry")
	}
	if server.State().Version != VersionTLS13 {
		t.Fatalf("server negotiated version = %v, want TLS 1.3", server.State().Version)
	}
}
