package suite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"errors"
)

// BlockAlg names a block cipher used in CBC mode.
type BlockAlg int

// Supported block ciphers. TripleDES is carried forward from
// original_source/crypto/s2n_cbc_cipher_3des.c: a legacy suite gated to
// TLS 1.1 and below (see the cipher-suite table in package tls).
const (
	BlockAES128 BlockAlg = iota
	BlockAES256
	BlockTripleDES
)

// KeySize returns the key size in bytes for alg.
func (alg BlockAlg) KeySize() int {
	switch alg {
	case BlockAES128:
		return 16
	case BlockAES256:
		return 32
	case BlockTripleDES:
		return 24
	}
	return 0
}

// BlockSize returns the cipher block size in bytes for alg.
func (alg BlockAlg) BlockSize() int {
	switch alg {
	case BlockAES128, BlockAES256:
		return aes.BlockSize
	case BlockTripleDES:
		return des.BlockSize
	}
	return 0
}

func newBlock(alg BlockAlg, key []byte) (cipher.Block, error) {
	switch alg {
	case BlockAES128, BlockAES256:
		return aes.NewCipher(key)
	case BlockTripleDES:
		return des.NewTripleDESCipher(key)
	}
	return nil, errors.New("suite: unknown block algorithm")
}

// CBC encrypts/decrypts in CBC mode with an explicit IV and no internal
// padding; padding is the caller's responsibility (see Composite for the
// constant-time padding-and-MAC path the record layer actually uses).
type CBC struct {
	alg   BlockAlg
	block cipher.Block
}

// NewCBC constructs a CBC cipher for alg with the given key.
func NewCBC(alg BlockAlg, key []byte) (*CBC, error) {
	block, err := newBlock(alg, key)
	if err != nil {
		return nil, err
	}
	return &CBC{alg: alg, block: block}, nil
}

// BlockSize returns the underlying block size.
func (c *CBC) BlockSize() int { return c.block.BlockSize() }

// Encrypt encrypts plaintext (whose length must be a multiple of the block
// size) in place into dst using iv.
func (c *CBC) Encrypt(dst, iv, plaintext []byte) {
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(dst, plaintext)
}

// Decrypt decrypts ciphertext (whose length must be a multiple of the block
// size) in place into dst using iv.
func (c *CBC) Decrypt(dst, iv, ciphertext []byte) {
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(dst, ciphertext)
}
