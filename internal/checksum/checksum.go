// Package checksum signs and verifies Paytm gateway parameter sets.
//
// The token is AES-128-CBC(base64(HMAC-SHA256(key, canonical+salt)) + salt)
// under the merchant key, base64 encoded. The canonical form sorts keys,
// drops empty values and joins key=value pairs with '&'.
package checksum

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// FieldName is the parameter carrying the checksum on callbacks.
const FieldName = "CHECKSUMHASH"

const (
	iv          = "@@@@&&&&####$$$$"
	saltLength  = 4
	saltCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	ErrInvalidKey      = errors.New("merchant key must be 16 bytes")
	ErrMalformedToken  = errors.New("malformed checksum")
	ErrInvalidChecksum = errors.New("checksum mismatch")
)

// Canonical builds the signing string. The checksum field itself is never
// part of it.
func Canonical(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" || k == FieldName {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = k + "=" + params[k]
	}
	return strings.Join(pairs, "&")
}

// Generate signs params with a fresh random salt.
func Generate(params map[string]string, key string) (string, error) {
	salt, err := randomSalt()
	if err != nil {
		return "", err
	}
	return GenerateWithSalt(params, key, salt)
}

// GenerateWithSalt signs params with a caller supplied salt.
func GenerateWithSalt(params map[string]string, key, salt string) (string, error) {
	if len(salt) != saltLength {
		return "", fmt.Errorf("salt must be %d characters", saltLength)
	}
	block, err := newCipher(key)
	if err != nil {
		return "", err
	}

	plain := []byte(sign(Canonical(params)+salt, key) + salt)
	plain = pkcs7Pad(plain, aes.BlockSize)

	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, []byte(iv)).CryptBlocks(out, plain)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Verify reports whether token is a valid checksum of params.
func Verify(params map[string]string, key, token string) bool {
	return Check(params, key, token) == nil
}

// Check is Verify with the reason for a failure.
func Check(params map[string]string, key, token string) error {
	block, err := newCipher(key)
	if err != nil {
		return err
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil || len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return ErrMalformedToken
	}

	plain := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, []byte(iv)).CryptBlocks(plain, raw)
	plain, err = pkcs7Unpad(plain, aes.BlockSize)
	if err != nil || len(plain) <= saltLength {
		return ErrMalformedToken
	}

	signature, salt := plain[:len(plain)-saltLength], string(plain[len(plain)-saltLength:])
	expected := sign(Canonical(params)+salt, key)
	if !hmac.Equal(signature, []byte(expected)) {
		return ErrInvalidChecksum
	}
	return nil
}

func sign(data, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newCipher(key string) (cipher.Block, error) {
	if len(key) != 16 {
		return nil, ErrInvalidKey
	}
	return aes.NewCipher([]byte(key))
}

func randomSalt() (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(saltCharset)))
	for i := 0; i < saltLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate salt: %w", err)
		}
		sb.WriteByte(saltCharset[n.Int64()])
	}
	return sb.String(), nil
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, ErrMalformedToken
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size || n > len(b) {
		return nil, ErrMalformedToken
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrMalformedToken
		}
	}
	return b[:len(b)-n], nil
}
