package nexuspay

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"
)

// PayloadCipher encrypts payout payloads with AES-128-CBC. The gateway derives
// the key from the merchant secret and the IV from the merchant id; both must
// be exactly one AES block. A wrong length is a configuration error and is
// rejected before any network call is made.
type PayloadCipher struct {
	key []byte
	iv  []byte
}

func NewPayloadCipher(merchantSecret, merchantID string) (*PayloadCipher, error) {
	key := []byte(merchantSecret)
	iv := []byte(merchantID)
	if len(key) != aes.BlockSize {
		return nil, fmt.Errorf("merchant secret must be exactly %d bytes, got %d", aes.BlockSize, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("merchant id must be exactly %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &PayloadCipher{key: key, iv: iv}, nil
}

// Encrypt returns the base64 of the CBC ciphertext over the PKCS#7-padded
// plaintext.
func (c *PayloadCipher) Encrypt(plaintext []byte) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(out, padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt is the inverse of Encrypt. Only used in tests and for inspecting
// gateway echo responses.
func (c *PayloadCipher) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(raw))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(out, raw)

	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
