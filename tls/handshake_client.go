package tls

import (
	"crypto/subtle"

	"github.com/hallbrook/gotls/keyschedule"
	"github.com/hallbrook/gotls/keyschedule13"
	"github.com/hallbrook/gotls/suite"
)

// clientHandshake builds and sends a ClientHello offering every version the
// config permits, then dispatches on whichever version the server selects.
// The teacher never plays the client role; this mirrors serverHandshake's
// structure with the two sides' message flights swapped, the generalization
// this library needed to support both roles over one Connection type.
func (c *Connection) clientHandshake() error {
	clientRandom, err := randomBytes32()
	if err != nil {
		return errInternalError("random: %v", err)
	}
	c.clientRandom = clientRandom

	ephemerals := make(map[NamedGroup]*suite.ECDHKeyPair, len(c.config.Groups))
	var keyShares []KeyShareEntry
	for _, g := range c.config.Groups {
		curve, ok := groupToECDHCurve(g)
		if !ok {
			continue
		}
		kp, err := suite.GenerateEphemeral(curve)
		if err != nil {
			return errInternalError("ephemeral key generation: %v", err)
		}
		ephemerals[g] = kp
		keyShares = append(keyShares, KeyShareEntry{Group: g, KeyExchange: kp.PublicBytes()})
	}

	ch, err := c.buildClientHello(clientRandom, keyShares)
	if err != nil {
		return err
	}
	chBody, err := ch.Marshal()
	if err != nil {
		return errInternalError("marshal client_hello: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeClientHello, chBody); err != nil {
		return err
	}

	ht, body, err := c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeServerHello {
		return errUnexpectedMessage("expected server_hello, got %v", ht)
	}
	sh, err := UnmarshalServerHello(body)
	if err != nil {
		return err
	}

	cs, csParams, ok := acceptCipherSuite(c.config, sh.CipherSuite)
	if !ok {
		return errIllegalParameter("server selected unoffered cipher suite %v", sh.CipherSuite)
	}
	c.cipherSuite = cs
	c.suiteParams = csParams

	if sh.Random == HelloRetryRequestRandom {
		// HelloRetryRequest only exists in TLS 1.3; the transcript hash
		// algorithm is therefore already known from the negotiated suite.
		// init must run exactly once, here, before resetToMessageHash: both
		// clientHandshakeAfterHRR and clientHandshakeTLS13 assume it has
		// already happened and never call it themselves.
		if err := c.transcript.init(negotiatedTranscriptAlg(csParams)); err != nil {
			return errInternalError("transcript init: %v", err)
		}
		return c.clientHandshakeAfterHRR(ch, sh, ephemerals, csParams)
	}

	versionExt, haveVersion := findExtension(sh.Extensions, ExtSupportedVersions)
	version := ProtocolVersion(ch.LegacyVersion)
	if haveVersion {
		v, err := ParseSupportedVersionsServer(versionExt.Data)
		if err != nil {
			return err
		}
		version = v
	} else {
		version = sh.LegacyVersion
	}
	c.negotiatedVersion = version

	if version == VersionTLS13 {
		if err := c.transcript.init(negotiatedTranscriptAlg(csParams)); err != nil {
			return errInternalError("transcript init: %v", err)
		}
		return c.clientHandshakeTLS13(ch, sh, ephemerals, csParams)
	}
	return c.clientHandshakeLegacy(ch, sh, version, csParams)
}

// buildClientHello assembles the extension set offered for both the TLS 1.3
// and legacy paths; a server that only speaks ≤1.2 simply ignores the
// TLS-1.3-only extensions (supported_versions, key_share).
func (c *Connection) buildClientHello(clientRandom [32]byte, keyShares []KeyShareEntry) (*ClientHello, error) {
	ch := &ClientHello{
		LegacyVersion:      VersionTLS12,
		Random:             clientRandom,
		CompressionMethods: []byte{0},
	}
	for cs, params := range cipherSuiteParams {
		if params.staticRSA {
			continue
		}
		ch.CipherSuites = append(ch.CipherSuites, cs)
	}

	versions := make([]ProtocolVersion, 0, 4)
	for _, v := range []ProtocolVersion{VersionTLS13, VersionTLS12, VersionTLS11, VersionTLS10} {
		if v >= c.config.MinVersion && v <= c.config.MaxVersion {
			versions = append(versions, v)
		}
	}
	ch.Extensions = append(ch.Extensions, Extension{
		Type: ExtSupportedVersions,
		Data: mustEncodeSupportedVersionsClient(versions),
	})

	groupsData, err := EncodeSupportedGroups(c.config.Groups)
	if err != nil {
		return nil, errInternalError("encode supported_groups: %v", err)
	}
	ch.Extensions = append(ch.Extensions, Extension{Type: ExtSupportedGroups, Data: groupsData})

	sigData, err := EncodeSignatureAlgorithms(c.config.SignatureSchemes)
	if err != nil {
		return nil, errInternalError("encode signature_algorithms: %v", err)
	}
	ch.Extensions = append(ch.Extensions, Extension{Type: ExtSignatureAlgorithms, Data: sigData})

	if len(keyShares) > 0 {
		ksData, err := EncodeKeyShareClientHello(keyShares)
		if err != nil {
			return nil, errInternalError("encode key_share: %v", err)
		}
		ch.Extensions = append(ch.Extensions, Extension{Type: ExtKeyShare, Data: ksData})
	}

	if c.config.ServerName != "" {
		snData, err := EncodeServerNameList([]string{c.config.ServerName})
		if err != nil {
			return nil, errInternalError("encode server_name: %v", err)
		}
		ch.Extensions = append(ch.Extensions, Extension{Type: ExtServerName, Data: snData})
		c.serverName = c.config.ServerName
	}

	if len(c.config.NextProtos) > 0 {
		alpnData, err := EncodeALPNProtocols(c.config.NextProtos)
		if err != nil {
			return nil, errInternalError("encode alpn: %v", err)
		}
		ch.Extensions = append(ch.Extensions, Extension{Type: ExtALPN, Data: alpnData})
	}

	return ch, nil
}

func mustEncodeSupportedVersionsClient(versions []ProtocolVersion) []byte {
	data, err := EncodeSupportedVersionsClient(versions)
	if err != nil {
		// versions is always non-empty and within range; encoding a plain
		// uint16 list cannot fail.
		panic(err)
	}
	return data
}

// acceptCipherSuite checks that the server's chosen suite is one the client
// actually offered and understands.
func acceptCipherSuite(cfg *Config, cs CipherSuite) (CipherSuite, suiteParams, bool) {
	params, ok := cipherSuiteParams[cs]
	if !ok || params.staticRSA {
		return 0, suiteParams{}, false
	}
	return cs, params, true
}

// clientHandshakeAfterHRR resends a ClientHello with a key_share for the
// group the server's HelloRetryRequest named, then continues the TLS 1.3
// flow as if no retry had happened.
func (c *Connection) clientHandshakeAfterHRR(ch1 *ClientHello, hrr *ServerHello, ephemerals map[NamedGroup]*suite.ECDHKeyPair, csParams suiteParams) error {
	ksExt, ok := findExtension(hrr.Extensions, ExtKeyShare)
	if !ok || len(ksExt.Data) != 2 {
		return errDecodeError("hello_retry_request: missing or malformed key_share")
	}
	group := NamedGroup(bo.Uint16(ksExt.Data))

	kp, ok := ephemerals[group]
	if !ok {
		curve, ok := groupToECDHCurve(group)
		if !ok {
			return errIllegalParameter("hello_retry_request requested unsupported group %v", group)
		}
		var err error
		kp, err = suite.GenerateEphemeral(curve)
		if err != nil {
			return errInternalError("ephemeral key generation: %v", err)
		}
	}

	if err := c.transcript.resetToMessageHash(); err != nil {
		return errInternalError("transcript reset: %v", err)
	}

	ch2 := *ch1
	ksData, err := EncodeKeyShareClientHello([]KeyShareEntry{{Group: group, KeyExchange: kp.PublicBytes()}})
	if err != nil {
		return errInternalError("encode key_share: %v", err)
	}
	ch2.Extensions = replaceExtension(ch1.Extensions, ExtKeyShare, ksData)
	ch2Body, err := ch2.Marshal()
	if err != nil {
		return errInternalError("marshal client_hello: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeClientHello, ch2Body); err != nil {
		return err
	}

	ht, body, err := c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeServerHello {
		return errUnexpectedMessage("expected server_hello, got %v", ht)
	}
	sh, err := UnmarshalServerHello(body)
	if err != nil {
		return err
	}
	if sh.Random == HelloRetryRequestRandom {
		return errHandshakeFailure("server sent a second hello_retry_request")
	}
	c.negotiatedVersion = VersionTLS13
	return c.clientHandshakeTLS13(&ch2, sh, map[NamedGroup]*suite.ECDHKeyPair{group: kp}, csParams)
}

func replaceExtension(exts []Extension, typ ExtensionType, data []byte) []Extension {
	out := make([]Extension, 0, len(exts))
	for _, e := range exts {
		if e.Type == typ {
			continue
		}
		out = append(out, e)
	}
	return append(out, Extension{Type: typ, Data: data})
}

// clientHandshakeTLS13 runs the client side of RFC 8446 §2's Figure 1 flow,
// picking up right after a ServerHello (first or post-retry) has been read.
func (c *Connection) clientHandshakeTLS13(ch *ClientHello, sh *ServerHello, ephemerals map[NamedGroup]*suite.ECDHKeyPair, csParams suiteParams) error {
	// The transcript is already initialized to csParams.prfHash by the
	// caller (clientHandshake, directly or via clientHandshakeAfterHRR),
	// since a HelloRetryRequest's resetToMessageHash must run against an
	// already-initialized transcript.
	alg := csParams.prfHash

	ksExt, ok := findExtension(sh.Extensions, ExtKeyShare)
	if !ok {
		return errMissingExtension("server_hello missing key_share")
	}
	serverShare, err := ParseKeyShareServerHello(ksExt.Data)
	if err != nil {
		return err
	}
	kp, ok := ephemerals[serverShare.Group]
	if !ok {
		return errIllegalParameter("server_hello key_share names a group not offered: %v", serverShare.Group)
	}
	sharedSecret, err := kp.ComputeShared(serverShare.KeyExchange)
	if err != nil {
		return errDecodeError("invalid server key_share: %v", err)
	}

	c.serverRandom = sh.Random

	thHello, err := c.transcript.sum()
	if err != nil {
		return errInternalError("transcript hash: %v", err)
	}

	sched := keyschedule13.New(alg)
	sched.EarlySecret(nil)
	if _, err := sched.HandshakeSecret(sharedSecret); err != nil {
		return errInternalError("handshake secret: %v", err)
	}
	chts, shts, err := sched.HandshakeTrafficSecrets(thHello)
	if err != nil {
		return errInternalError("handshake traffic secrets: %v", err)
	}
	c.sched13 = sched
	c.clientHandshakeTrafficSecret = chts
	c.serverHandshakeTrafficSecret = shts

	if err := installEpoch13(c.reader, nil, sched, shts, csParams); err != nil {
		return err
	}
	if err := installEpoch13(nil, c.writer, sched, chts, csParams); err != nil {
		return err
	}
	c.reader.SetVersion(VersionTLS13)
	c.writer.SetVersion(VersionTLS13)

	ht, body, err := c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeEncryptedExtensions {
		return errUnexpectedMessage("expected encrypted_extensions, got %v", ht)
	}
	ee, err := UnmarshalEncryptedExtensionsMessage(body)
	if err != nil {
		return err
	}
	if alpnExt, ok := findExtension(ee.Extensions, ExtALPN); ok {
		protos, err := ParseALPNProtocols(alpnExt.Data)
		if err != nil {
			return err
		}
		if len(protos) != 1 {
			return errIllegalParameter("encrypted_extensions: alpn must select exactly one protocol")
		}
		c.alpn = protos[0]
	}

	ht, body, err = c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeCertificate {
		return errUnexpectedMessage("expected certificate, got %v", ht)
	}
	certMsg, err := UnmarshalCertificateMessage(body, true)
	if err != nil {
		return err
	}
	c.peerCertificates = certMsg.CertificateList

	thCert, err := c.transcript.sum()
	if err != nil {
		return errInternalError("transcript hash: %v", err)
	}

	ht, body, err = c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeCertificateVerify {
		return errUnexpectedMessage("expected certificate_verify, got %v", ht)
	}
	cv, err := UnmarshalCertificateVerifyMessage(body)
	if err != nil {
		return err
	}
	if !c.config.InsecureSkipVerify {
		peerPub, err := peerPublicKey(certMsg, cv.Scheme)
		if err != nil {
			return err
		}
		if err := verifyCertificateVerify(peerPub, cv.Scheme, certVerifyContextServer, thCert, cv.Signature); err != nil {
			return errDecryptError("certificate_verify: %v", err)
		}
	}

	thFin, err := c.transcript.sum()
	if err != nil {
		return errInternalError("transcript hash: %v", err)
	}

	ht, body, err = c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeFinished {
		return errUnexpectedMessage("expected finished, got %v", ht)
	}
	serverFin, err := UnmarshalFinishedMessage(body, alg.Size())
	if err != nil {
		return err
	}
	serverFinKey, err := sched.FinishedKey(shts)
	if err != nil {
		return errInternalError("finished key: %v", err)
	}
	wantServerVerify, err := sched.VerifyData(serverFinKey, thFin)
	if err != nil {
		return errInternalError("verify_data: %v", err)
	}
	if subtle.ConstantTimeCompare(wantServerVerify, serverFin.VerifyData) != 1 {
		return errDecryptError("server finished verify_data mismatch")
	}

	thServerFin, err := c.transcript.sum()
	if err != nil {
		return errInternalError("transcript hash: %v", err)
	}

	if _, err := sched.MasterSecret(); err != nil {
		return errInternalError("master secret: %v", err)
	}
	cats, sats, err := sched.ApplicationTrafficSecrets(thServerFin)
	if err != nil {
		return errInternalError("application traffic secrets: %v", err)
	}
	c.clientAppTrafficSecret = cats
	c.serverAppTrafficSecret = sats

	clientFinKey, err := sched.FinishedKey(chts)
	if err != nil {
		return errInternalError("finished key: %v", err)
	}
	clientVerifyData, err := sched.VerifyData(clientFinKey, thServerFin)
	if err != nil {
		return errInternalError("verify_data: %v", err)
	}
	finMsg := &FinishedMessage{VerifyData: clientVerifyData}
	finBody, err := finMsg.Marshal()
	if err != nil {
		return errInternalError("marshal finished: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeFinished, finBody); err != nil {
		return err
	}

	if err := installEpoch13(nil, c.writer, sched, cats, csParams); err != nil {
		return err
	}
	if err := installEpoch13(c.reader, nil, sched, sats, csParams); err != nil {
		return err
	}
	return nil
}

// peerPublicKey extracts a verification key from the leaf certificate this
// library trusts the caller to have already validated the chain-of-trust
// for; DER parsing and chain validation live outside package tls's scope
// (see DESIGN.md), so this only recovers the key shape CertificateVerify
// needs, matching scheme's signature family.
func peerPublicKey(certMsg *CertificateMessage, scheme SignatureScheme) (*suite.PublicKey, error) {
	if len(certMsg.CertificateList) == 0 {
		return nil, errBadCertificate("empty certificate_list")
	}
	return parseLeafPublicKey(certMsg.CertificateList[0], scheme)
}

// clientHandshakeLegacy runs the client side of the TLS 1.0–1.2 full ECDHE
// handshake, mirroring serverHandshakeLegacy's message flight in reverse.
func (c *Connection) clientHandshakeLegacy(ch *ClientHello, sh *ServerHello, version ProtocolVersion, csParams suiteParams) error {
	// ch and sh were already appended to the transcript's pending buffer by
	// writeHandshakeMessage/readHandshakeMessage in clientHandshake, before
	// the cipher suite (and so the hash algorithm) was known; init replays
	// them now.
	legacyAlg := legacyTranscriptAlg(version, csParams)
	if err := c.transcript.init(legacyAlg); err != nil {
		return errInternalError("transcript init: %v", err)
	}

	c.serverRandom = sh.Random
	if alpnExt, ok := findExtension(sh.Extensions, ExtALPN); ok {
		protos, err := ParseALPNProtocols(alpnExt.Data)
		if err != nil {
			return err
		}
		if len(protos) == 1 {
			c.alpn = protos[0]
		}
	}

	ht, body, err := c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeCertificate {
		return errUnexpectedMessage("expected certificate, got %v", ht)
	}
	certMsg, err := UnmarshalCertificateMessage(body, false)
	if err != nil {
		return err
	}
	c.peerCertificates = certMsg.CertificateList

	ht, body, err = c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeServerKeyExchange {
		return errUnexpectedMessage("expected server_key_exchange, got %v", ht)
	}
	ske, err := UnmarshalServerKeyExchangeMessage(body)
	if err != nil {
		return err
	}
	if !c.config.InsecureSkipVerify {
		peerPub, err := parseLeafPublicKey(certMsg.CertificateList[0], ske.Scheme)
		if err != nil {
			return err
		}
		skeParams := serverECDHParams(ske.Group, ske.PublicKey)
		signInput := serverKeyExchangeSignInput(ch.Random[:], sh.Random[:], skeParams)
		if err := verifyLegacy(peerPub, ske.Scheme, signInput, ske.Signature); err != nil {
			return errDecryptError("server_key_exchange: %v", err)
		}
	}

	ht, _, err = c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeServerHelloDone {
		return errUnexpectedMessage("expected server_hello_done, got %v", ht)
	}

	curve, ok := groupToECDHCurve(ske.Group)
	if !ok {
		return errIllegalParameter("server_key_exchange named unsupported group %v", ske.Group)
	}
	kp, err := suite.GenerateEphemeral(curve)
	if err != nil {
		return errInternalError("ephemeral key generation: %v", err)
	}
	preMasterSecret, err := kp.ComputeShared(ske.PublicKey)
	if err != nil {
		return errDecodeError("invalid server_key_exchange public key: %v", err)
	}

	cke := &ClientKeyExchangeMessage{PublicKey: kp.PublicBytes()}
	ckeBody, err := cke.Marshal()
	if err != nil {
		return errInternalError("marshal client_key_exchange: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeClientKeyExchange, ckeBody); err != nil {
		return err
	}

	prfVersion := legacyPRFVersion(version)
	masterSecret, err := keyschedule.MasterSecret(prfVersion, csParams.prfHash, preMasterSecret, ch.Random[:], sh.Random[:])
	if err != nil {
		return errInternalError("master secret: %v", err)
	}
	c.masterSecret = masterSecret

	kb, err := legacyKeyBlock(prfVersion, csParams, masterSecret, sh.Random[:], ch.Random[:])
	if err != nil {
		return err
	}

	thBeforeClientFin, err := c.transcript.sum()
	if err != nil {
		return errInternalError("transcript hash: %v", err)
	}
	clientVerifyData, err := keyschedule.VerifyData(prfVersion, csParams.prfHash, masterSecret, finishedLabelClient, thBeforeClientFin)
	if err != nil {
		return errInternalError("verify_data: %v", err)
	}

	if err := c.sendChangeCipherSpec(); err != nil {
		return err
	}
	if err := installWriteProtection(c.writer, csParams, kb.ClientKey, kb.ClientIV, kb.ClientMACKey); err != nil {
		return err
	}
	finMsg := &FinishedMessage{VerifyData: clientVerifyData}
	finBody, err := finMsg.Marshal()
	if err != nil {
		return errInternalError("marshal finished: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeFinished, finBody); err != nil {
		return err
	}

	thForServerFin, err := c.transcript.sum()
	if err != nil {
		return errInternalError("transcript hash: %v", err)
	}
	if err := installReadProtection(c.reader, csParams, kb.ServerKey, kb.ServerIV, kb.ServerMACKey); err != nil {
		return err
	}

	ht, body, err = c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeFinished {
		return errUnexpectedMessage("expected finished, got %v", ht)
	}
	serverFin, err := UnmarshalFinishedMessage(body, legacyVerifyDataLen)
	if err != nil {
		return err
	}
	wantServerVerify, err := keyschedule.VerifyData(prfVersion, csParams.prfHash, masterSecret, finishedLabelServer, thForServerFin)
	if err != nil {
		return errInternalError("verify_data: %v", err)
	}
	if subtle.ConstantTimeCompare(wantServerVerify, serverFin.VerifyData) != 1 {
		return errDecryptError("server finished verify_data mismatch")
	}
	return nil
}
