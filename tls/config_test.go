package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/hallbrook/gotls/suite"
)

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()
	if len(c.CipherSuites) == 0 || len(c.Groups) == 0 || len(c.SignatureSchemes) == 0 {
		t.Fatalf("NewConfig left preference lists empty")
	}
	if c.MinVersion != VersionTLS12 || c.MaxVersion != VersionTLS13 {
		t.Fatalf("unexpected default version range: %v-%v", c.MinVersion, c.MaxVersion)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate() on defaults: %v", err)
	}
}

func TestConfigValidateCatchesMultipleProblems(t *testing.T) {
	c := NewConfig(WithVersions(VersionTLS13, VersionTLS10))
	c.CipherSuites = nil
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected Validate to fail")
	}
}

func TestConfigWithCertificateSelection(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	priv := suite.NewECDSAPrivateKey(key)
	chain := NewCertChain([]byte("fake-der"))

	c := NewConfig(WithCertificate(chain, priv, SignatureSchemeECDSASecp256r1SHA256))
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate(): %v", err)
	}

	_, ok := c.selectCertificate([]SignatureScheme{SignatureSchemeRSAPKCS1SHA256}, certKeyTypeAny)
	if ok {
		t.Fatalf("selectCertificate matched a scheme that was not offered")
	}

	got, ok := c.selectCertificate([]SignatureScheme{SignatureSchemeRSAPKCS1SHA256, SignatureSchemeECDSASecp256r1SHA256}, certKeyTypeAny)
	if !ok || got.Scheme != SignatureSchemeECDSASecp256r1SHA256 {
		t.Fatalf("selectCertificate failed to match offered scheme")
	}

	if _, ok := c.selectCertificate([]SignatureScheme{SignatureSchemeECDSASecp256r1SHA256}, certKeyTypeRSA); ok {
		t.Fatalf("selectCertificate matched an ECDSA certificate against an RSA-only suite")
	}
}

func TestConfigALPNAndServerName(t *testing.T) {
	c := NewConfig(WithALPN("h2", "http/1.1"), WithServerName("example.com"))
	if c.ServerName != "example.com" {
		t.Fatalf("ServerName = %q", c.ServerName)
	}
	if len(c.NextProtos) != 2 || c.NextProtos[0] != "h2" {
		t.Fatalf("NextProtos = %v", c.NextProtos)
	}
}
