package tls

import (
	"io"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/hallbrook/gotls/internal/check"
	"github.com/hallbrook/gotls/suite"
)

// CertificateAndKey pairs a certificate chain with the private key that
// signs with its leaf, the unit a Config holds one or more of — the Go
// equivalent of s2n_config_add_cert_chain_and_key's
// cert_and_key_pairs list (original_source/tls/s2n_config.c).
type CertificateAndKey struct {
	Chain      *CertChain
	PrivateKey *suite.PrivateKey
	Scheme     SignatureScheme
}

// Config holds the negotiable parameters and credentials of one side of a
// connection. It is built with functional options and, once passed to
// NewConnection, must not be mutated again — append-only in the sense that
// no further WithXxx call may run against a Config already in use.
type Config struct {
	MinVersion ProtocolVersion
	MaxVersion ProtocolVersion

	CipherSuites      []CipherSuite
	Groups            []NamedGroup
	SignatureSchemes  []SignatureScheme
	Certificates      []CertificateAndKey
	ServerName        string
	NextProtos        []string
	InsecureSkipVerify bool

	Rand   io.Reader
	Time   func() time.Time
	Logger *zap.Logger
	Trace  bool
	TraceHex bool

	used bool
}

// Option configures a Config at construction time.
type Option func(*Config)

// WithVersions restricts the negotiable protocol version range.
func WithVersions(min, max ProtocolVersion) Option {
	return func(c *Config) {
		c.MinVersion = min
		c.MaxVersion = max
	}
}

// WithCipherPreferences sets the cipher suite list in preference order
// (most preferred first), matching s2n's cipher_preferences wire_format
// tables.
func WithCipherPreferences(suites ...CipherSuite) Option {
	return func(c *Config) { c.CipherSuites = suites }
}

// WithGroups sets the supported key-exchange groups in preference order.
func WithGroups(groups ...NamedGroup) Option {
	return func(c *Config) { c.Groups = groups }
}

// WithSignatureSchemes sets the supported signature schemes in preference
// order.
func WithSignatureSchemes(schemes ...SignatureScheme) Option {
	return func(c *Config) { c.SignatureSchemes = schemes }
}

// WithCertificate appends a certificate chain and its signing key to the
// config's credential set. A server may hold several (e.g. RSA and ECDSA)
// to let cert selection pick the one matching the peer's
// signature_algorithms.
func WithCertificate(chain *CertChain, key *suite.PrivateKey, scheme SignatureScheme) Option {
	return func(c *Config) {
		c.Certificates = append(c.Certificates, CertificateAndKey{Chain: chain, PrivateKey: key, Scheme: scheme})
	}
}

// WithServerName sets the server_name the client will send in its
// ClientHello.
func WithServerName(name string) Option {
	return func(c *Config) { c.ServerName = name }
}

// WithALPN sets the ALPN protocol list a client offers or a server
// accepts, most preferred first.
func WithALPN(protos ...string) Option {
	return func(c *Config) { c.NextProtos = protos }
}

// WithLogger injects a *zap.Logger for handshake/record-level tracing.
// The default is zap.NewNop(), so library use is silent unless asked.
func WithLogger(logger *zap.Logger, trace, traceHex bool) Option {
	return func(c *Config) {
		c.Logger = logger
		c.Trace = trace
		c.TraceHex = traceHex
	}
}

// WithInsecureSkipVerify disables certificate chain verification. For
// tests only; Validate does not reject this, but callers should treat it
// the same way crypto/tls does.
func WithInsecureSkipVerify() Option {
	return func(c *Config) { c.InsecureSkipVerify = true }
}

// defaultCipherSuites is the preference order used when a Config does not
// specify one, matching the teacher's effective default (AEAD-only) but
// widened to also offer the legacy CBC suites so a TLS 1.0–1.2 peer is
// not automatically rejected.
var defaultCipherSuites = []CipherSuite{
	CipherSuiteTLS13AES128GCMSHA256,
	CipherSuiteTLS13ChaCha20Poly1305SHA256,
	CipherSuiteTLS13AES256GCMSHA384,
	CipherSuiteECDHEECDSAWithAES128GCMSHA256,
	CipherSuiteECDHERSAWithAES128GCMSHA256,
	CipherSuiteECDHERSAWithChaCha20Poly1305,
	CipherSuiteECDHEECDSAWithAES256GCMSHA384,
	CipherSuiteECDHERSAWithAES256GCMSHA384,
	CipherSuiteECDHERSAWithAES128CBCSHA,
	CipherSuiteECDHERSAWithAES256CBCSHA,
	CipherSuiteRSAWithAES128CBCSHA,
	CipherSuiteRSAWithAES256CBCSHA,
}

var defaultGroups = []NamedGroup{GroupX25519, GroupSecp256r1, GroupSecp384r1}

var defaultSignatureSchemes = []SignatureScheme{
	SignatureSchemeEd25519,
	SignatureSchemeECDSASecp256r1SHA256,
	SignatureSchemeRSAPSSRSAESHA256,
	SignatureSchemeRSAPKCS1SHA256,
}

// NewConfig builds a Config from the given options, filling in defaults
// for anything left unset.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		MinVersion: VersionTLS12,
		MaxVersion: VersionTLS13,
		Rand:       nil,
		Time:       time.Now,
		Logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if len(c.CipherSuites) == 0 {
		c.CipherSuites = defaultCipherSuites
	}
	if len(c.Groups) == 0 {
		c.Groups = defaultGroups
	}
	if len(c.SignatureSchemes) == 0 {
		c.SignatureSchemes = defaultSignatureSchemes
	}
	return c
}

// Validate checks the config for internal consistency, returning a
// *multierror.Error aggregating every problem found rather than stopping
// at the first one, since cert/key mismatches and bad preference lists are
// typically independent mistakes the caller wants to fix together.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.MinVersion > c.MaxVersion {
		result = multierror.Append(result, check.True(false, "MinVersion (%v) must not exceed MaxVersion (%v)", c.MinVersion, c.MaxVersion))
	}
	if len(c.CipherSuites) == 0 {
		result = multierror.Append(result, check.True(false, "CipherSuites must not be empty"))
	}
	for _, cs := range c.CipherSuites {
		if _, ok := cipherSuiteParams[cs]; !ok {
			result = multierror.Append(result, check.True(false, "unknown cipher suite %v", cs))
		}
	}
	for i, ck := range c.Certificates {
		if err := check.NotNil(ck.Chain, "Certificates[i].Chain"); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if ck.Chain.Len() == 0 {
			result = multierror.Append(result, check.True(false, "Certificates[%d].Chain is empty", i))
		}
		if err := check.NotNil(ck.PrivateKey, "Certificates[i].PrivateKey"); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

// markUsed is called once a Config is bound to a Connection. It only sets
// the used flag: nothing reads it, so neither NewConnection nor an Option
// rejects a Config that is already in use.
func (c *Config) markUsed() { c.used = true }

// selectCertificate picks the CertificateAndKey whose Scheme is present in
// the peer's offered signature_algorithms and whose key type satisfies
// keyType (the family the negotiated cipher suite's name commits the server
// to, or certKeyTypeAny for TLS 1.3), preferring the config's own
// certificate order (grounded on
// original_source/tests/unit/s2n_tls13_server_cert_selection_test.c's
// first-match-wins selection policy). Returns false if none match.
func (c *Config) selectCertificate(peerSchemes []SignatureScheme, keyType certKeyType) (CertificateAndKey, bool) {
	offered := make(map[SignatureScheme]bool, len(peerSchemes))
	for _, s := range peerSchemes {
		offered[s] = true
	}
	for _, ck := range c.Certificates {
		if offered[ck.Scheme] && keyType.compatible(ck.Scheme) {
			return ck, true
		}
	}
	return CertificateAndKey{}, false
}
