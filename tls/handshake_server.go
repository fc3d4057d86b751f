package tls

import (
	"crypto/subtle"

	"github.com/hallbrook/gotls/keyschedule"
	"github.com/hallbrook/gotls/keyschedule13"
	"github.com/hallbrook/gotls/record"
	"github.com/hallbrook/gotls/suite"
)

// serverHandshake reads the ClientHello, negotiates the protocol version,
// and dispatches to the TLS 1.3 or legacy (TLS 1.0–1.2) flow. Grounded on
// the teacher's ServerHandshake (crypto/tls/tls.go), generalized from its
// TLS-1.3-only, single-suite demo into full version/suite negotiation.
func (c *Connection) serverHandshake() error {
	ht, body, err := c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeClientHello {
		return errUnexpectedMessage("expected client_hello, got %v", ht)
	}
	ch, err := UnmarshalClientHello(body)
	if err != nil {
		return err
	}
	params, err := parseClientHelloExtensions(ch)
	if err != nil {
		return err
	}
	version, err := selectVersion(c.config, ch.LegacyVersion, params.versions)
	if err != nil {
		return err
	}
	c.negotiatedVersion = version
	if len(params.serverNames) > 0 {
		c.serverName = params.serverNames[0]
	}

	if version == VersionTLS13 {
		return c.serverHandshakeTLS13(ch, params)
	}
	return c.serverHandshakeLegacy(ch, params, version)
}

// serverHandshakeTLS13 runs the TLS 1.3 server flow (RFC 8446 §2, Figure 1
// and Figure 2): ClientHello (recv) -> [HelloRetryRequest] -> ServerHello
// (send) -> {handshake epoch} -> EncryptedExtensions -> Certificate ->
// CertificateVerify -> Finished -> {server application epoch} -> Finished
// (recv) -> {client application epoch}.
func (c *Connection) serverHandshakeTLS13(ch *ClientHello, params *clientParams) error {
	cs, csParams, ck, err := selectCipherSuite(c.config, VersionTLS13, ch.CipherSuites, params.sigSchemes)
	if err != nil {
		return err
	}
	c.cipherSuite = cs
	c.suiteParams = csParams
	alg := negotiatedTranscriptAlg(csParams)
	if err := c.transcript.init(alg); err != nil {
		return errInternalError("transcript init: %v", err)
	}

	group, haveGroup := selectGroup(c.config, params.groups)
	clientKeyShare := findKeyShare(params.keyShares, group)

	if clientKeyShare == nil {
		if !haveGroup {
			return errHandshakeFailure("no mutually supported key-exchange group")
		}
		if err := c.transcript.resetToMessageHash(); err != nil {
			return errInternalError("transcript reset: %v", err)
		}
		hrr := &ServerHello{
			LegacyVersion: VersionTLS12,
			Random:        HelloRetryRequestRandom,
			SessionID:     ch.SessionID,
			CipherSuite:   cs,
			Extensions: []Extension{
				{Type: ExtSupportedVersions, Data: EncodeSupportedVersionsServer(VersionTLS13)},
				{Type: ExtKeyShare, Data: encodeHRRGroup(group)},
			},
		}
		hrrBody, err := hrr.Marshal()
		if err != nil {
			return errInternalError("marshal hello_retry_request: %v", err)
		}
		if err := c.writeHandshakeMessage(HandshakeTypeServerHello, hrrBody); err != nil {
			return err
		}

		ht, body2, err := c.readHandshakeMessage()
		if err != nil {
			return err
		}
		if ht != HandshakeTypeClientHello {
			return errUnexpectedMessage("expected retried client_hello, got %v", ht)
		}
		ch2, err := UnmarshalClientHello(body2)
		if err != nil {
			return err
		}
		params2, err := parseClientHelloExtensions(ch2)
		if err != nil {
			return err
		}
		clientKeyShare = findKeyShare(params2.keyShares, group)
		if clientKeyShare == nil {
			return errHandshakeFailure("client did not retry with the requested group")
		}
		ch, params = ch2, params2
	}

	curve, ok := groupToECDHCurve(group)
	if !ok {
		return errInternalError("negotiated group %v has no ECDH backend", group)
	}
	kp, err := suite.GenerateEphemeral(curve)
	if err != nil {
		return errInternalError("ephemeral key generation: %v", err)
	}
	sharedSecret, err := kp.ComputeShared(clientKeyShare.KeyExchange)
	if err != nil {
		return errDecodeError("invalid client key_share: %v", err)
	}

	c.clientRandom = ch.Random
	serverRandom, err := randomBytes32()
	if err != nil {
		return errInternalError("random: %v", err)
	}
	c.serverRandom = serverRandom

	sh := &ServerHello{
		LegacyVersion: VersionTLS12,
		Random:        serverRandom,
		SessionID:     ch.SessionID,
		CipherSuite:   cs,
		Extensions: []Extension{
			{Type: ExtSupportedVersions, Data: EncodeSupportedVersionsServer(VersionTLS13)},
		},
	}
	keyShareData, err := EncodeKeyShareServerHello(KeyShareEntry{Group: group, KeyExchange: kp.PublicBytes()})
	if err != nil {
		return errInternalError("encode key_share: %v", err)
	}
	sh.Extensions = append(sh.Extensions, Extension{Type: ExtKeyShare, Data: keyShareData})
	shBody, err := sh.Marshal()
	if err != nil {
		return errInternalError("marshal server_hello: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeServerHello, shBody); err != nil {
		return err
	}

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

	if err := installEpoch13(c.reader, nil, sched, chts, csParams); err != nil {
		return err
	}
	if err := installEpoch13(nil, c.writer, sched, shts, csParams); err != nil {
		return err
	}
	c.reader.SetVersion(VersionTLS13)
	c.writer.SetVersion(VersionTLS13)

	var eeExts []Extension
	if len(params.alpnOffered) > 0 {
		proto, ok := NegotiateALPN(params.alpnOffered, c.config.NextProtos)
		if !ok {
			if len(c.config.NextProtos) > 0 {
				return errNoApplicationProtocol("no overlap between offered and supported ALPN protocols")
			}
		} else {
			data, err := EncodeALPNProtocols([]string{proto})
			if err != nil {
				return errInternalError("encode alpn: %v", err)
			}
			eeExts = append(eeExts, Extension{Type: ExtALPN, Data: data})
			c.alpn = proto
		}
	}
	eeMsg := &EncryptedExtensionsMessage{Extensions: eeExts}
	eeBody, err := eeMsg.Marshal()
	if err != nil {
		return errInternalError("marshal encrypted_extensions: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeEncryptedExtensions, eeBody); err != nil {
		return err
	}

	certMsg := &CertificateMessage{CertificateList: ck.Chain.AsList()}
	certBody, err := certMsg.Marshal(true)
	if err != nil {
		return errInternalError("marshal certificate: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeCertificate, certBody); err != nil {
		return err
	}

	thCert, err := c.transcript.sum()
	if err != nil {
		return errInternalError("transcript hash: %v", err)
	}
	sig, err := signCertificateVerify(ck.PrivateKey, ck.Scheme, certVerifyContextServer, thCert)
	if err != nil {
		return errInternalError("sign certificate_verify: %v", err)
	}
	cvMsg := &CertificateVerifyMessage{Scheme: ck.Scheme, Signature: sig}
	cvBody, err := cvMsg.Marshal()
	if err != nil {
		return errInternalError("marshal certificate_verify: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeCertificateVerify, cvBody); err != nil {
		return err
	}

	thFin, err := c.transcript.sum()
	if err != nil {
		return errInternalError("transcript hash: %v", err)
	}
	serverFinKey, err := sched.FinishedKey(shts)
	if err != nil {
		return errInternalError("finished key: %v", err)
	}
	serverVerifyData, err := sched.VerifyData(serverFinKey, thFin)
	if err != nil {
		return errInternalError("verify_data: %v", err)
	}
	finMsg := &FinishedMessage{VerifyData: serverVerifyData}
	finBody, err := finMsg.Marshal()
	if err != nil {
		return errInternalError("marshal finished: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeFinished, finBody); err != nil {
		return err
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

	if err := installEpoch13(nil, c.writer, sched, sats, csParams); err != nil {
		return err
	}

	ht, body, err := c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeFinished {
		return errUnexpectedMessage("expected client finished, got %v", ht)
	}
	clientFin, err := UnmarshalFinishedMessage(body, alg.Size())
	if err != nil {
		return err
	}
	clientFinKey, err := sched.FinishedKey(chts)
	if err != nil {
		return errInternalError("finished key: %v", err)
	}
	wantVerifyData, err := sched.VerifyData(clientFinKey, thServerFin)
	if err != nil {
		return errInternalError("verify_data: %v", err)
	}
	if subtle.ConstantTimeCompare(wantVerifyData, clientFin.VerifyData) != 1 {
		return errDecryptError("client finished verify_data mismatch")
	}

	if err := installEpoch13(c.reader, nil, sched, cats, csParams); err != nil {
		return err
	}
	return nil
}

// installEpoch13 derives the traffic key/IV for a TLS 1.3 secret and
// installs it on whichever of reader/writer is non-nil.
func installEpoch13(r *record.Reader, w *record.Writer, sched *keyschedule13.Schedule, secret []byte, p suiteParams) error {
	key, iv, err := deriveTrafficKeyIV(sched, secret, p)
	if err != nil {
		return errInternalError("traffic key/iv: %v", err)
	}
	if r != nil {
		if err := installReadProtection(r, p, key, iv, nil); err != nil {
			return errInternalError("install read protection: %v", err)
		}
	}
	if w != nil {
		if err := installWriteProtection(w, p, key, iv, nil); err != nil {
			return errInternalError("install write protection: %v", err)
		}
	}
	return nil
}

func findKeyShare(entries []KeyShareEntry, group NamedGroup) *KeyShareEntry {
	for i := range entries {
		if entries[i].Group == group {
			return &entries[i]
		}
	}
	return nil
}

// encodeHRRGroup builds a HelloRetryRequest key_share extension payload: a
// bare NamedGroup naming which group the client must retry with (RFC 8446
// §4.1.4), not a full KeyShareEntry list.
func encodeHRRGroup(g NamedGroup) []byte {
	return []byte{byte(g >> 8), byte(g)}
}

// serverHandshakeLegacy runs the TLS 1.0–1.2 full ECDHE handshake (RFC 5246
// §7.3, RFC 4492 §2): ServerHello, Certificate, ServerKeyExchange,
// ServerHelloDone, then after the client's ClientKeyExchange +
// ChangeCipherSpec + Finished: ChangeCipherSpec + Finished from the server.
func (c *Connection) serverHandshakeLegacy(ch *ClientHello, params *clientParams, version ProtocolVersion) error {
	cs, csParams, ck, err := selectCipherSuite(c.config, version, ch.CipherSuites, params.sigSchemes)
	if err != nil {
		return err
	}
	c.cipherSuite = cs
	c.suiteParams = csParams

	legacyAlg := legacyTranscriptAlg(version, csParams)
	if err := c.transcript.init(legacyAlg); err != nil {
		return errInternalError("transcript init: %v", err)
	}

	group, ok := selectGroup(c.config, params.groups)
	if !ok {
		return errHandshakeFailure("no mutually supported key-exchange group")
	}
	curve, ok := groupToECDHCurve(group)
	if !ok {
		return errInternalError("negotiated group %v has no ECDH backend", group)
	}

	c.clientRandom = ch.Random
	serverRandom, err := randomBytes32()
	if err != nil {
		return errInternalError("random: %v", err)
	}
	c.serverRandom = serverRandom

	sh := &ServerHello{
		LegacyVersion:     version,
		Random:            serverRandom,
		SessionID:         ch.SessionID,
		CipherSuite:       cs,
		CompressionMethod: 0,
	}
	if len(params.alpnOffered) > 0 {
		if proto, ok := NegotiateALPN(params.alpnOffered, c.config.NextProtos); ok {
			data, err := EncodeALPNProtocols([]string{proto})
			if err != nil {
				return errInternalError("encode alpn: %v", err)
			}
			sh.Extensions = append(sh.Extensions, Extension{Type: ExtALPN, Data: data})
			c.alpn = proto
		}
	}
	shBody, err := sh.Marshal()
	if err != nil {
		return errInternalError("marshal server_hello: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeServerHello, shBody); err != nil {
		return err
	}

	certMsg := &CertificateMessage{CertificateList: ck.Chain.AsList()}
	certBody, err := certMsg.Marshal(false)
	if err != nil {
		return errInternalError("marshal certificate: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeCertificate, certBody); err != nil {
		return err
	}

	kp, err := suite.GenerateEphemeral(curve)
	if err != nil {
		return errInternalError("ephemeral key generation: %v", err)
	}
	skeParams := serverECDHParams(group, kp.PublicBytes())
	signInput := serverKeyExchangeSignInput(ch.Random[:], serverRandom[:], skeParams)
	sig, err := signLegacy(ck.PrivateKey, ck.Scheme, signInput)
	if err != nil {
		return errInternalError("sign server_key_exchange: %v", err)
	}
	ske := &ServerKeyExchangeMessage{Group: group, PublicKey: kp.PublicBytes(), Scheme: ck.Scheme, Signature: sig}
	skeBody, err := ske.Marshal()
	if err != nil {
		return errInternalError("marshal server_key_exchange: %v", err)
	}
	if err := c.writeHandshakeMessage(HandshakeTypeServerKeyExchange, skeBody); err != nil {
		return err
	}

	if err := c.writeHandshakeMessage(HandshakeTypeServerHelloDone, nil); err != nil {
		return err
	}

	ht, body, err := c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeClientKeyExchange {
		return errUnexpectedMessage("expected client_key_exchange, got %v", ht)
	}
	cke, err := UnmarshalClientKeyExchangeMessage(body)
	if err != nil {
		return err
	}
	preMasterSecret, err := kp.ComputeShared(cke.PublicKey)
	if err != nil {
		return errDecodeError("invalid client key_exchange: %v", err)
	}

	prfVersion := legacyPRFVersion(version)
	masterSecret, err := keyschedule.MasterSecret(prfVersion, csParams.prfHash, preMasterSecret, ch.Random[:], serverRandom[:])
	if err != nil {
		return errInternalError("master secret: %v", err)
	}
	c.masterSecret = masterSecret

	kb, err := legacyKeyBlock(prfVersion, csParams, masterSecret, serverRandom[:], ch.Random[:])
	if err != nil {
		return err
	}

	// The client Finished verify_data covers every handshake message up to
	// but not including itself; capture the hash here, before the message
	// that will extend it is read.
	thBeforeClientFin, err := c.transcript.sum()
	if err != nil {
		return errInternalError("transcript hash: %v", err)
	}

	if err := installReadProtection(c.reader, csParams, kb.ClientKey, kb.ClientIV, kb.ClientMACKey); err != nil {
		return err
	}

	ht, body, err = c.readHandshakeMessage()
	if err != nil {
		return err
	}
	if ht != HandshakeTypeFinished {
		return errUnexpectedMessage("expected finished, got %v", ht)
	}
	clientFin, err := UnmarshalFinishedMessage(body, legacyVerifyDataLen)
	if err != nil {
		return err
	}
	wantClientVerify, err := keyschedule.VerifyData(prfVersion, csParams.prfHash, masterSecret, finishedLabelClient, thBeforeClientFin)
	if err != nil {
		return errInternalError("verify_data: %v", err)
	}
	if subtle.ConstantTimeCompare(wantClientVerify, clientFin.VerifyData) != 1 {
		return errDecryptError("client finished verify_data mismatch")
	}

	if err := c.sendChangeCipherSpec(); err != nil {
		return err
	}
	if err := installWriteProtection(c.writer, csParams, kb.ServerKey, kb.ServerIV, kb.ServerMACKey); err != nil {
		return err
	}

	thForServerFin, err := c.transcript.sum()
	if err != nil {
		return errInternalError("transcript hash: %v", err)
	}
	serverVerifyData, err := keyschedule.VerifyData(prfVersion, csParams.prfHash, masterSecret, finishedLabelServer, thForServerFin)
	if err != nil {
		return errInternalError("verify_data: %v", err)
	}
	finMsg := &FinishedMessage{VerifyData: serverVerifyData}
	finBody, err := finMsg.Marshal()
	if err != nil {
		return errInternalError("marshal finished: %v", err)
	}
	return c.writeHandshakeMessage(HandshakeTypeFinished, finBody)
}

// legacyTranscriptAlg picks the hash algorithm the ≤TLS 1.2 handshake
// transcript runs over. TLS 1.0/1.1's Finished message hashes with the
// concatenated MD5+SHA1 construction of RFC 2246 §7.4.9 regardless of
// cipher suite; TLS 1.2 uses the suite's own PRF hash (RFC 5246 §7.4.9).
func legacyTranscriptAlg(version ProtocolVersion, p suiteParams) suite.HashAlg {
	if version == VersionTLS10 || version == VersionTLS11 {
		return suite.MD5SHA1
	}
	return p.prfHash
}

// legacyPRFVersion maps a negotiated ProtocolVersion onto the PRF variant
// keyschedule.PRF dispatches on.
func legacyPRFVersion(version ProtocolVersion) keyschedule.Version {
	switch version {
	case VersionTLS10:
		return keyschedule.VersionTLS10
	case VersionTLS11:
		return keyschedule.VersionTLS11
	default:
		return keyschedule.VersionTLS12
	}
}

// legacyKeyBlock expands the master secret into a KeyBlock sized for the
// negotiated suite. CBC suites get no derived IV (record.CBCProtection
// generates a fresh random IV per record instead, see buildProtection).
// AEAD suites split by algorithm: AES-GCM derives only the
// suite.AEADSaltSizeTLS12-byte RFC 5288 salt, since the remaining nonce
// bytes are an explicit per-record value carried on the wire, not derived
// key material; ChaCha20-Poly1305 derives the full suite.NonceSize-byte
// implicit IV, since RFC 7905 §2 has it reuse TLS 1.3's fixed-IV
// construction instead of RFC 5288's explicit nonce.
func legacyKeyBlock(prfVersion keyschedule.Version, p suiteParams, masterSecret, serverRandom, clientRandom []byte) (*keyschedule.KeyBlock, error) {
	var macLen, keyLen, ivLen int
	switch p.kind {
	case suiteKindCBC:
		macLen = p.macAlg.Size()
		keyLen = p.blockAlg.KeySize()
	case suiteKindAEAD:
		keyLen = p.aeadAlg.KeySize()
		if p.aeadAlg == suite.AEADChaCha20Poly1305 {
			ivLen = suite.NonceSize
		} else {
			ivLen = suite.AEADSaltSizeTLS12
		}
	}
	return keyschedule.DeriveKeyBlock(prfVersion, p.prfHash, masterSecret, serverRandom, clientRandom, macLen, keyLen, ivLen)
}

// serverECDHParams builds the ServerECDHParams structure RFC 4492 §5.4
// signs: curve_type=named_curve, the negotiated group, and the ephemeral
// public key as an 8-bit length-prefixed opaque vector.
func serverECDHParams(group NamedGroup, pub []byte) []byte {
	buf := make([]byte, 0, 4+len(pub))
	buf = append(buf, 3) // curve_type = named_curve
	buf = append(buf, byte(group>>8), byte(group))
	buf = append(buf, byte(len(pub)))
	buf = append(buf, pub...)
	return buf
}

// serverKeyExchangeSignInput builds the content a legacy ServerKeyExchange
// signature covers (RFC 5246 §7.4.3): the two hello randoms followed by the
// ServerECDHParams structure.
func serverKeyExchangeSignInput(clientRandom, serverRandom, params []byte) []byte {
	out := make([]byte, 0, len(clientRandom)+len(serverRandom)+len(params))
	out = append(out, clientRandom...)
	out = append(out, serverRandom...)
	out = append(out, params...)
	return out
}
