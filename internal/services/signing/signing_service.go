package signing

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"ondc-bap/internal/config"
	"ondc-bap/internal/services/keys"
	"ondc-bap/pkg/errors"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// Algorithm is the detached signature scheme tag carried in keyId and the
// algorithm header field.
const Algorithm = "ed25519"

// RegistryClient resolves a counterparty's signing public key from the
// network registry.
type RegistryClient interface {
	LookupPublicKey(ctx context.Context, subscriberID, ukID string) (string, error)
}

// Service implements message digesting, signing-string construction and
// detached ed25519 signing/verification for protocol messages.
type Service struct {
	registry     RegistryClient
	keys         *keys.Provider
	subscriberID string
	ukID         string
	validity     time.Duration
	logger       *zap.Logger
}

// NewService creates a new signing service.
func NewService(registry RegistryClient, keyProvider *keys.Provider, sub config.SubscriberConfig, sig config.SignatureConfig, logger *zap.Logger) *Service {
	return &Service{
		registry:     registry,
		keys:         keyProvider,
		subscriberID: sub.SubscriberID,
		ukID:         sub.UkID,
		validity:     time.Duration(sig.ValiditySeconds) * time.Second,
		logger:       logger,
	}
}

// Digest computes the BLAKE2b-512 digest of body in wire representation.
// body must be the exact bytes sent on the wire. Do not re-marshal or
// normalize whitespace; verification is byte-for-byte.
func Digest(body []byte) string {
	hash := blake2b.Sum512(body)
	return "BLAKE-512=" + base64.StdEncoding.EncodeToString(hash[:])
}

// SigningString builds the exact byte sequence that gets signed: three
// labeled lines in fixed order, newline-joined. The raw body is never signed
// directly.
func SigningString(created, expires int64, digest string) string {
	return fmt.Sprintf("(created): %d\n(expires): %d\ndigest: %s", created, expires, digest)
}

// Sign produces a detached ed25519 signature over message. The scheme is
// deterministic: the same message and key always yield the same signature.
func (s *Service) Sign(message []byte) []byte {
	return ed25519.Sign(s.keys.SigningPrivateKey(), message)
}

// Verify reports whether signature is a valid detached signature of message
// under publicKey. It never panics: malformed keys or signatures log a
// diagnostic and yield false.
func (s *Service) Verify(message, signature, publicKey []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("signature verification recovered from malformed input", zap.Any("cause", r))
			ok = false
		}
	}()

	if len(publicKey) != ed25519.PublicKeySize {
		s.logger.Warn("signature verification failed: invalid public key size", zap.Int("size", len(publicKey)))
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// AuthHeader builds the Authorization header for an outbound request body.
func (s *Service) AuthHeader(body []byte) (string, error) {
	if len(s.keys.SigningPrivateKey()) == 0 {
		return "", errors.NewDomainError(65020, "internal error", "private key not loaded")
	}
	if s.subscriberID == "" || s.ukID == "" {
		return "", errors.NewDomainError(65020, "internal error", "subscriber identity not configured")
	}

	created := time.Now().Unix()
	expires := created + int64(s.validity.Seconds())
	digest := Digest(body)

	signature := s.Sign([]byte(SigningString(created, expires, digest)))

	env := SignatureEnvelope{
		KeyID:     BuildKeyID(s.subscriberID, s.ukID, Algorithm),
		Algorithm: Algorithm,
		Created:   created,
		Expires:   expires,
		Headers:   SignedHeaders,
		Signature: base64.StdEncoding.EncodeToString(signature),
	}
	return EncodeAuthHeader(env), nil
}

// VerifyAuthHeader authenticates an inbound request. payload must be the
// exact raw bytes as received.
//
// Failure taxonomy: missing/malformed header and bad signatures are
// authentication failures (65002); an expired signature is reported
// distinctly as a stale request (65003); registry outages surface as
// dependency failures (65011).
func (s *Service) VerifyAuthHeader(ctx context.Context, authHeader string, payload []byte) error {
	if authHeader == "" {
		return errors.NewDomainError(65002, "authentication failed", "empty authorization header")
	}

	params := DecodeAuthHeader(authHeader)
	keyID := params["keyId"]
	signatureB64 := params["signature"]
	createdStr := params["created"]
	expiresStr := params["expires"]
	if keyID == "" || signatureB64 == "" || createdStr == "" || expiresStr == "" {
		return errors.NewDomainError(65002, "authentication failed", "missing required signature fields")
	}

	created, err := strconv.ParseInt(createdStr, 10, 64)
	if err != nil {
		return errors.NewDomainError(65002, "authentication failed", "invalid created timestamp")
	}
	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil {
		return errors.NewDomainError(65002, "authentication failed", "invalid expires timestamp")
	}
	if expires <= created {
		return errors.NewDomainError(65002, "authentication failed", "expires must be after created")
	}
	if time.Now().Unix() > expires {
		return errors.NewDomainError(65003, "signature expired", "expires timestamp is in the past")
	}

	subscriberID, ukID, algorithm, err := ParseKeyID(keyID)
	if err != nil {
		return errors.NewDomainError(65002, "authentication failed", "invalid keyId format")
	}
	if algorithm != Algorithm {
		return errors.NewDomainError(65002, "authentication failed", "unsupported algorithm")
	}

	publicKeyB64, err := s.registry.LookupPublicKey(ctx, subscriberID, ukID)
	if err != nil {
		return errors.WrapDomainError(err, 65011, "registry unavailable", "dependency")
	}
	publicKey, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return errors.NewDomainError(65002, "authentication failed", "invalid public key format")
	}

	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return errors.NewDomainError(65002, "authentication failed", "invalid signature format")
	}

	message := []byte(SigningString(created, expires, Digest(payload)))
	if !s.Verify(message, signature, publicKey) {
		return errors.NewDomainError(65002, "authentication failed", "signature verification failed")
	}

	return nil
}

// VerifyTimestamp validates a callback context timestamp against the replay
// window.
func (s *Service) VerifyTimestamp(timestamp time.Time, window time.Duration) error {
	diff := time.Now().UTC().Sub(timestamp)
	if diff > window || diff < -window {
		return errors.NewDomainError(65003, "stale request", "timestamp outside acceptable window")
	}
	return nil
}
