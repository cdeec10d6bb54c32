package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"ondc-bap/internal/config"

	"go.uber.org/zap"
	"golang.org/x/crypto/curve25519"
)

// X25519KeySize is the byte length of both halves of an X25519 key pair.
const X25519KeySize = 32

// Provider owns the process-wide key material: an ed25519 pair for message
// signing and an X25519 pair for the registry subscription handshake. Keys are
// loaded once at startup and read-only thereafter.
//
// When a pair is missing from config, a fresh one is generated and written
// back into the config struct handed in, so the caller can persist or log it.
// Ambient environment state is never touched.
type Provider struct {
	signingPrivate    ed25519.PrivateKey
	signingPublic     ed25519.PublicKey
	encryptionPrivate []byte
	encryptionPublic  []byte
	logger            *zap.Logger
}

// NewProvider loads key material from cfg, generating missing pairs.
func NewProvider(cfg *config.KeysConfig, logger *zap.Logger) (*Provider, error) {
	p := &Provider{logger: logger}

	if err := p.loadSigningKeys(cfg); err != nil {
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}
	if err := p.loadEncryptionKeys(cfg); err != nil {
		return nil, fmt.Errorf("failed to load encryption keys: %w", err)
	}

	return p, nil
}

func (p *Provider) loadSigningKeys(cfg *config.KeysConfig) error {
	if cfg.SigningPrivateKey == "" || cfg.SigningPublicKey == "" {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("failed to generate signing key pair: %w", err)
		}
		p.signingPrivate = priv
		p.signingPublic = pub
		cfg.SigningPrivateKey = base64.StdEncoding.EncodeToString(priv)
		cfg.SigningPublicKey = base64.StdEncoding.EncodeToString(pub)
		p.logger.Warn("signing key pair not configured; generated an ephemeral pair",
			zap.String("public_key", cfg.SigningPublicKey))
		return nil
	}

	priv, err := base64.StdEncoding.DecodeString(cfg.SigningPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to decode signing private key: %w", err)
	}
	pub, err := base64.StdEncoding.DecodeString(cfg.SigningPublicKey)
	if err != nil {
		return fmt.Errorf("failed to decode signing public key: %w", err)
	}
	if len(priv) != ed25519.PrivateKeySize {
		return fmt.Errorf("invalid signing private key size: expected %d, got %d", ed25519.PrivateKeySize, len(priv))
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid signing public key size: expected %d, got %d", ed25519.PublicKeySize, len(pub))
	}

	p.signingPrivate = ed25519.PrivateKey(priv)
	p.signingPublic = ed25519.PublicKey(pub)
	return nil
}

func (p *Provider) loadEncryptionKeys(cfg *config.KeysConfig) error {
	if cfg.EncryptionPrivateKey == "" || cfg.EncryptionPublicKey == "" {
		priv, pub, err := GenerateX25519()
		if err != nil {
			return fmt.Errorf("failed to generate encryption key pair: %w", err)
		}
		p.encryptionPrivate = priv
		p.encryptionPublic = pub
		cfg.EncryptionPrivateKey = base64.StdEncoding.EncodeToString(priv)
		cfg.EncryptionPublicKey = base64.StdEncoding.EncodeToString(pub)
		p.logger.Warn("encryption key pair not configured; generated an ephemeral pair",
			zap.String("public_key", cfg.EncryptionPublicKey))
		return nil
	}

	priv, err := base64.StdEncoding.DecodeString(cfg.EncryptionPrivateKey)
	if err != nil {
		return fmt.Errorf("failed to decode encryption private key: %w", err)
	}
	pub, err := base64.StdEncoding.DecodeString(cfg.EncryptionPublicKey)
	if err != nil {
		return fmt.Errorf("failed to decode encryption public key: %w", err)
	}
	if len(priv) != X25519KeySize {
		return fmt.Errorf("invalid encryption private key size: expected %d, got %d", X25519KeySize, len(priv))
	}
	if len(pub) != X25519KeySize {
		return fmt.Errorf("invalid encryption public key size: expected %d, got %d", X25519KeySize, len(pub))
	}

	p.encryptionPrivate = priv
	p.encryptionPublic = pub
	return nil
}

// GenerateX25519 returns a fresh X25519 key pair. The private key is clamped
// per RFC 7748.
func GenerateX25519() (priv, pub []byte, err error) {
	priv = make([]byte, X25519KeySize)
	if _, err = rand.Read(priv); err != nil {
		return nil, nil, err
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err = curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, nil, err
	}
	return priv, pub, nil
}

// SigningPrivateKey returns the ed25519 private key.
func (p *Provider) SigningPrivateKey() ed25519.PrivateKey {
	return p.signingPrivate
}

// SigningPublicKey returns the ed25519 public key.
func (p *Provider) SigningPublicKey() ed25519.PublicKey {
	return p.signingPublic
}

// EncryptionPrivateKey returns the X25519 private key.
func (p *Provider) EncryptionPrivateKey() []byte {
	return p.encryptionPrivate
}

// EncryptionPublicKey returns the X25519 public key.
func (p *Provider) EncryptionPublicKey() []byte {
	return p.encryptionPublic
}
