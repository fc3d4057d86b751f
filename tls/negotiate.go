package tls

import "github.com/hallbrook/gotls/suite"

// clientParams is the negotiable state extracted from a ClientHello's
// extensions, shared by the TLS 1.3 and legacy server paths so neither
// re-parses the wire bytes its own way.
type clientParams struct {
	versions     []ProtocolVersion
	groups       []NamedGroup
	sigSchemes   []SignatureScheme
	keyShares    []KeyShareEntry
	alpnOffered  []string
	serverNames  []string
	hasExtension map[ExtensionType]bool
}

// parseClientHelloExtensions walks a ClientHello's extension list, decoding
// the ones this library negotiates on and leaving the rest (status_request,
// max_fragment_length, etc.) unconsumed but acknowledged present.
func parseClientHelloExtensions(ch *ClientHello) (*clientParams, error) {
	p := &clientParams{hasExtension: make(map[ExtensionType]bool, len(ch.Extensions))}
	for _, ext := range ch.Extensions {
		p.hasExtension[ext.Type] = true
		switch ext.Type {
		case ExtSupportedVersions:
			vs, err := ParseSupportedVersionsClient(ext.Data)
			if err != nil {
				return nil, err
			}
			p.versions = vs
		case ExtSupportedGroups:
			gs, err := ParseSupportedGroups(ext.Data)
			if err != nil {
				return nil, err
			}
			p.groups = gs
		case ExtSignatureAlgorithms:
			ss, err := ParseSignatureAlgorithms(ext.Data)
			if err != nil {
				return nil, err
			}
			p.sigSchemes = ss
		case ExtKeyShare:
			ks, err := ParseKeyShareClientHello(ext.Data)
			if err != nil {
				return nil, err
			}
			p.keyShares = ks
		case ExtALPN:
			protos, err := ParseALPNProtocols(ext.Data)
			if err != nil {
				return nil, err
			}
			p.alpnOffered = protos
		case ExtServerName:
			names, err := ParseServerNameList(ext.Data)
			if err != nil {
				return nil, err
			}
			p.serverNames = names
		}
	}
	return p, nil
}

// selectVersion picks the negotiated protocol version: supported_versions
// (TLS 1.3's offer mechanism) takes priority over the legacy_version field,
// clamped to the server's configured [MinVersion, MaxVersion] range.
func selectVersion(cfg *Config, legacyVersion ProtocolVersion, offered []ProtocolVersion) (ProtocolVersion, error) {
	if len(offered) > 0 {
		for _, v := range offered {
			if v == VersionTLS13 && cfg.MaxVersion >= VersionTLS13 && cfg.MinVersion <= VersionTLS13 {
				return VersionTLS13, nil
			}
		}
		best := ProtocolVersion(0)
		for _, v := range offered {
			if v >= cfg.MinVersion && v <= cfg.MaxVersion && v > best {
				best = v
			}
		}
		if best != 0 {
			return best, nil
		}
		return 0, errProtocolVersion("no offered version in [%v, %v]", cfg.MinVersion, cfg.MaxVersion)
	}
	v := legacyVersion
	if v > cfg.MaxVersion {
		v = cfg.MaxVersion
	}
	if v < cfg.MinVersion {
		return 0, errProtocolVersion("legacy_version %v below MinVersion %v", legacyVersion, cfg.MinVersion)
	}
	return v, nil
}

// selectCipherSuite applies the server's authoritative preference order:
// the first suite the server prefers that the client also offered, that
// fits the negotiated version (TLS 1.3 suites only negotiate for 1.3,
// legacy suites only for ≤1.2), and for which cfg also holds a certificate
// compatible with the suite's required key type and the peer's
// signature_algorithms. A suite whose key type has no matching certificate
// is skipped rather than returned, so the caller never has to fail the
// handshake later in selectCertificate after already committing to a suite.
func selectCipherSuite(cfg *Config, version ProtocolVersion, offered []CipherSuite, peerSchemes []SignatureScheme) (CipherSuite, suiteParams, CertificateAndKey, error) {
	offeredSet := make(map[CipherSuite]bool, len(offered))
	for _, cs := range offered {
		offeredSet[cs] = true
	}
	for _, cs := range cfg.CipherSuites {
		params, ok := cipherSuiteParams[cs]
		if !ok || !offeredSet[cs] {
			continue
		}
		if params.isTLS13 != (version == VersionTLS13) {
			continue
		}
		// Static-RSA key exchange has no (EC)DHE ClientKeyExchange
		// encoding in this library (see suiteParams.staticRSA); skip it
		// rather than negotiate a suite the legacy handshake cannot
		// complete.
		if params.staticRSA {
			continue
		}
		ck, ok := cfg.selectCertificate(peerSchemes, params.certKeyType)
		if !ok {
			continue
		}
		return cs, params, ck, nil
	}
	return 0, suiteParams{}, CertificateAndKey{}, errHandshakeFailure("no mutually supported cipher suite with a compatible certificate for %v", version)
}

// selectGroup picks the first group in the server's preference order that
// the client also supports.
func selectGroup(cfg *Config, offered []NamedGroup) (NamedGroup, bool) {
	offeredSet := make(map[NamedGroup]bool, len(offered))
	for _, g := range offered {
		offeredSet[g] = true
	}
	for _, g := range cfg.Groups {
		if offeredSet[g] {
			return g, true
		}
	}
	return 0, false
}

// groupToECDHCurve maps the named groups this library actually implements
// key exchange for onto suite.ECDHCurve; ffdhe2048/3072 and secp521r1 are
// advertised for negotiation symmetry but have no (EC)DH backend wired
// here (see DESIGN.md).
func groupToECDHCurve(g NamedGroup) (suite.ECDHCurve, bool) {
	switch g {
	case GroupX25519:
		return suite.CurveX25519, true
	case GroupSecp256r1:
		return suite.CurveP256, true
	case GroupSecp384r1:
		return suite.CurveP384, true
	}
	return 0, false
}
