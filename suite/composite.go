package suite

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
)

// ErrCBCVerify is returned by Composite.Decrypt and the generic CBC+HMAC
// path in package record when either the padding or the MAC fails to
// verify. The two failure causes are never distinguished to the caller,
// and neither is distinguished by timing — see the constant-time notes on
// Decrypt.
var ErrCBCVerify = errors.New("suite: CBC padding or MAC verification failed")

// MaxPadding bounds the padding a CBC record may carry (one byte per
// padding value 0..255, TLS's maximum).
const MaxPadding = 256

// Composite performs CBC encryption/decryption and HMAC computation/
// verification in one call, the combined "MAC-then-encrypt" path legacy
// CBC-HMAC suites use. Bundling the operations lets Decrypt apply Lucky-13
// mitigations: padding removal never branches on the padding value in a way
// that changes which bytes get hashed for how long.
type Composite struct {
	cbc     *CBC
	macAlg  HashAlg
	macKey  []byte
	macSize int
}

// NewComposite constructs a Composite CBC+HMAC cipher.
func NewComposite(blockAlg BlockAlg, blockKey []byte, macAlg HashAlg, macKey []byte) (*Composite, error) {
	cbc, err := NewCBC(blockAlg, blockKey)
	if err != nil {
		return nil, err
	}
	return &Composite{cbc: cbc, macAlg: macAlg, macKey: macKey, macSize: macAlg.Size()}, nil
}

// macInput builds seq || type || version || length || plaintext, the MAC
// input TLS 1.0–1.2 records use for both directions.
func macInput(seq uint64, contentType byte, version uint16, plaintext []byte) []byte {
	buf := make([]byte, 0, 13+len(plaintext))
	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	buf = append(buf, seqBuf[:]...)
	buf = append(buf, contentType)
	buf = append(buf, byte(version>>8), byte(version))
	buf = append(buf, byte(len(plaintext)>>8), byte(len(plaintext)))
	buf = append(buf, plaintext...)
	return buf
}

// Encrypt MACs then encrypts plaintext, returning iv || ciphertext. iv is
// freshly supplied by the caller (the record layer draws it from its RNG).
func (c *Composite) Encrypt(iv []byte, seq uint64, contentType byte, version uint16, plaintext []byte) []byte {
	mac, _ := Sum(c.macAlg, c.macKey, macInput(seq, contentType, version, plaintext))

	body := make([]byte, 0, len(plaintext)+len(mac)+c.cbc.BlockSize())
	body = append(body, plaintext...)
	body = append(body, mac...)

	blockSize := c.cbc.BlockSize()
	padLen := blockSize - (len(body)+1)%blockSize
	for i := 0; i <= padLen; i++ {
		body = append(body, byte(padLen))
	}

	out := make([]byte, len(iv)+len(body))
	copy(out, iv)
	c.cbc.Encrypt(out[len(iv):], iv, body)
	return out
}

// constantTimeMAC computes the MAC over decrypted[:contentEnd] (the real,
// secret-dependent content boundary) while always feeding the same total
// number of bytes to the HMAC: header plus decrypted[:maxLen], where maxLen
// = len(decrypted)-1-c.macSize is the maximum possible content length for a
// ciphertext this size (a public quantity, since it depends only on the
// wire length, not on paddingLen). It captures the digest right after
// writing decrypted[:contentEnd] — Digest does not reset the running HMAC,
// so the remaining decrypted[contentEnd:maxLen] bytes can still be fed in
// afterward purely to keep the total hashing work constant; their effect on
// the digest is discarded. This is the Lucky-13 mitigation: the number of
// HMAC compression-function calls this function makes depends only on
// maxLen, never on the secret contentEnd/paddingLen.
func (c *Composite) constantTimeMAC(seq uint64, contentType byte, version uint16, decrypted []byte, contentEnd int) ([]byte, error) {
	maxLen := len(decrypted) - 1 - c.macSize
	if contentEnd < 0 {
		contentEnd = 0
	}
	if contentEnd > maxLen {
		contentEnd = maxLen
	}

	h, err := NewHMAC(c.macAlg, c.macKey)
	if err != nil {
		return nil, err
	}

	var seqBuf [8]byte
	binary.BigEndian.PutUint64(seqBuf[:], seq)
	h.Update(seqBuf[:])
	h.Update([]byte{contentType})
	h.Update([]byte{byte(version >> 8), byte(version)})
	h.Update([]byte{byte(contentEnd >> 8), byte(contentEnd)})

	h.Update(decrypted[:contentEnd])
	mac := h.Digest(nil)
	h.Update(decrypted[contentEnd:maxLen])

	return mac, nil
}

// Decrypt reverses Encrypt: it CBC-decrypts record (iv || ciphertext),
// removes padding, and verifies the MAC, doing a constant amount of MAC
// hashing work regardless of the claimed padding length (Lucky-13
// mitigation) via constantTimeMAC.
func (c *Composite) Decrypt(seq uint64, contentType byte, version uint16, record []byte) ([]byte, error) {
	blockSize := c.cbc.BlockSize()
	if len(record) < blockSize || (len(record)-blockSize)%blockSize != 0 || len(record)-blockSize == 0 {
		return nil, ErrCBCVerify
	}
	iv := record[:blockSize]
	ciphertext := record[blockSize:]

	decrypted := make([]byte, len(ciphertext))
	c.cbc.Decrypt(decrypted, iv, ciphertext)

	if len(decrypted) < c.macSize+1 {
		return nil, ErrCBCVerify
	}

	paddingLen := int(decrypted[len(decrypted)-1])

	// lengthGood: the claimed padding plus the trailing length byte plus
	// the MAC must fit, all without a data-dependent branch that could
	// leak paddingLen through control flow timing.
	lengthGood := subtle.ConstantTimeLessOrEq(paddingLen+1+c.macSize, len(decrypted))

	// Verify every padding byte equals paddingLen, scanning a fixed window
	// (min(len(decrypted), MaxPadding) bytes from the end) regardless of
	// the padding's real extent.
	paddingGood := 1
	window := MaxPadding
	if window > len(decrypted) {
		window = len(decrypted)
	}
	for i := 0; i < window; i++ {
		pos := len(decrypted) - 1 - i
		expected := byte(paddingLen)
		isPaddingByte := subtle.ConstantTimeLessOrEq(i, paddingLen)
		byteMatches := subtle.ConstantTimeByteEq(decrypted[pos], expected)
		ok := subtle.ConstantTimeSelect(isPaddingByte, byteMatches, 1)
		paddingGood &= ok
	}

	// Compute where the real content would end if the padding is good;
	// when it is not, use length 0 so we still hash *something* of
	// consistent shape rather than branching away entirely.
	contentEnd := len(decrypted) - 1 - paddingLen - c.macSize
	safeEnd := contentEnd
	if safeEnd < 0 || lengthGood == 0 {
		safeEnd = 0
	}

	plaintext := decrypted[:safeEnd]
	wantMAC, err := c.constantTimeMAC(seq, contentType, version, decrypted, safeEnd)
	if err != nil {
		return nil, err
	}

	var haveMAC []byte
	if lengthGood == 1 {
		haveMAC = decrypted[contentEnd : contentEnd+c.macSize]
	} else {
		haveMAC = make([]byte, c.macSize)
	}

	macGood := subtle.ConstantTimeCompare(wantMAC, haveMAC)

	if lengthGood&paddingGood&macGood != 1 {
		return nil, ErrCBCVerify
	}
	return plaintext, nil
}
