package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

var (
	ErrInvalidKey     = errors.New("vault: invalid encryption key")
	ErrInvalidPayload = errors.New("vault: invalid encrypted payload")
	ErrDecryption     = errors.New("vault: decryption failed")
)

// Provider seals payment instrument references before they reach the
// database and opens them on the way out.
type Provider interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(data []byte) ([]byte, error)
}

// aesProvider is AES-256-GCM. The key is the sha256 of the configured
// string, so any passphrase works as the encryption key.
type aesProvider struct {
	key []byte
}

func New(key string) (Provider, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrInvalidKey
	}
	sum := sha256.Sum256([]byte(key))
	return &aesProvider{key: sum[:]}, nil
}

// envelope is the stored form. Version pins the algorithm for future key or
// cipher rotation.
type envelope struct {
	Version    int    `json:"v"`
	Nonce      string `json:"n"`
	Ciphertext string `json:"c"`
}

func (p *aesProvider) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(p.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	return json.Marshal(envelope{
		Version:    1,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(sealed),
	})
}

func (p *aesProvider) Decrypt(data []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrInvalidPayload
	}
	if env.Version != 1 {
		return nil, ErrInvalidPayload
	}

	nonce, err := base64.RawStdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, ErrInvalidPayload
	}
	sealed, err := base64.RawStdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	block, err := aes.NewCipher(p.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}
