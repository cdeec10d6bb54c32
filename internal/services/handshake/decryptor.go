package handshake

import (
	"crypto/aes"
	"encoding/base64"
	"fmt"

	"ondc-bap/internal/services/keys"
	"ondc-bap/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/curve25519"
)

// Decryptor answers the registry's subscription challenge. The registry
// encrypts a nonce under the X25519 shared secret of its encryption key pair
// and this node's; proving we can decrypt it proves control of the claimed
// keys before our network membership is activated.
type Decryptor struct {
	keys              *keys.Provider
	registryPublicKey []byte
	logger            *zap.Logger
}

// NewDecryptor creates a challenge decryptor bound to the registry's
// base64-encoded X25519 public key.
func NewDecryptor(keyProvider *keys.Provider, registryPublicKeyB64 string, logger *zap.Logger) (*Decryptor, error) {
	registryPublicKey, err := base64.StdEncoding.DecodeString(registryPublicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode registry public key: %w", err)
	}
	if len(registryPublicKey) != keys.X25519KeySize {
		return nil, fmt.Errorf("invalid registry public key size: expected %d, got %d", keys.X25519KeySize, len(registryPublicKey))
	}

	return &Decryptor{
		keys:              keyProvider,
		registryPublicKey: registryPublicKey,
		logger:            logger,
	}, nil
}

// Decrypt answers a subscription challenge using this node's encryption
// private key.
func (d *Decryptor) Decrypt(challengeB64 string) (string, error) {
	answer, err := DecryptChallenge(challengeB64, d.registryPublicKey, d.keys.EncryptionPrivateKey())
	if err != nil {
		d.logger.Error("challenge decryption failed", zap.Error(err))
		return "", errors.WrapDomainError(err, 65021, "challenge decryption failed", "handshake")
	}
	return answer, nil
}

// DecryptChallenge derives the X25519 shared secret between the counterparty
// public key and own private key, then uses it as an AES-256 key for ECB
// block decryption. The registry's handshake scheme is fixed-key with no IV.
// All failure modes surface as errors, never panics.
func DecryptChallenge(encryptedB64 string, counterpartyPublicKey, ownPrivateKey []byte) (string, error) {
	sharedSecret, err := curve25519.X25519(ownPrivateKey, counterpartyPublicKey)
	if err != nil {
		return "", fmt.Errorf("key agreement failed: %w", err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedB64)
	if err != nil {
		return "", fmt.Errorf("invalid challenge encoding: %w", err)
	}

	block, err := aes.NewCipher(sharedSecret)
	if err != nil {
		return "", fmt.Errorf("cipher initialization failed: %w", err)
	}

	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return "", fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	plaintext := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += block.BlockSize() {
		block.Decrypt(plaintext[i:i+block.BlockSize()], ciphertext[i:i+block.BlockSize()])
	}

	plaintext, err = stripPKCS7(plaintext, block.BlockSize())
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

func stripPKCS7(data []byte, blockSize int) ([]byte, error) {
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
