package signing

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"ondc-bap/internal/config"
	"ondc-bap/internal/services/keys"
	"ondc-bap/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockRegistryClient is a mock for the network registry client
type MockRegistryClient struct {
	mock.Mock
}

func (m *MockRegistryClient) LookupPublicKey(ctx context.Context, subscriberID, ukID string) (string, error) {
	args := m.Called(ctx, subscriberID, ukID)
	return args.String(0), args.Error(1)
}

func createTestService(t *testing.T) (*Service, *MockRegistryClient, *keys.Provider) {
	mockRegistry := new(MockRegistryClient)

	keysCfg := &config.KeysConfig{}
	keyProvider, err := keys.NewProvider(keysCfg, zap.NewNop())
	assert.NoError(t, err)

	sub := config.SubscriberConfig{
		SubscriberID: "buyer-app.example.com",
		UkID:         "UK1",
	}
	sig := config.SignatureConfig{ValiditySeconds: 3600, TimestampWindow: 300, RequestTTL: 30}

	service := NewService(mockRegistry, keyProvider, sub, sig, zap.NewNop())
	return service, mockRegistry, keyProvider
}

func TestDigest_Deterministic(t *testing.T) {
	body := []byte(`{"context":{"action":"search"}}`)

	d1 := Digest(body)
	d2 := Digest(body)

	assert.Equal(t, d1, d2)
	assert.True(t, strings.HasPrefix(d1, "BLAKE-512="))
	assert.NotEqual(t, d1, Digest([]byte(`{"context":{"action":"select"}}`)))
}

func TestSigningString_Format(t *testing.T) {
	s := SigningString(100, 200, "BLAKE-512=abc")

	assert.Equal(t, "(created): 100\n(expires): 200\ndigest: BLAKE-512=abc", s)
}

func TestSign_Deterministic(t *testing.T) {
	service, _, _ := createTestService(t)
	message := []byte("the signing string")

	assert.Equal(t, service.Sign(message), service.Sign(message))
}

func TestVerify_Roundtrip(t *testing.T) {
	service, _, keyProvider := createTestService(t)
	message := []byte("the signing string")

	signature := service.Sign(message)

	assert.True(t, service.Verify(message, signature, keyProvider.SigningPublicKey()))
}

func TestVerify_TamperedMessage(t *testing.T) {
	service, _, keyProvider := createTestService(t)
	signature := service.Sign([]byte("original"))

	assert.False(t, service.Verify([]byte("tampered"), signature, keyProvider.SigningPublicKey()))
}

func TestVerify_WrongPublicKey(t *testing.T) {
	service, _, _ := createTestService(t)
	message := []byte("message")
	signature := service.Sign(message)

	otherPub, _, err := ed25519.GenerateKey(nil)
	assert.NoError(t, err)

	assert.False(t, service.Verify(message, signature, otherPub))
}

func TestVerify_MalformedInputsNeverPanic(t *testing.T) {
	service, _, keyProvider := createTestService(t)

	assert.NotPanics(t, func() {
		assert.False(t, service.Verify([]byte("msg"), []byte("sig"), []byte("short-key")))
		assert.False(t, service.Verify([]byte("msg"), nil, keyProvider.SigningPublicKey()))
		assert.False(t, service.Verify(nil, nil, nil))
	})
}

func TestAuthHeader_VerifyRoundtrip(t *testing.T) {
	service, mockRegistry, keyProvider := createTestService(t)
	body := []byte(`{"context":{"transaction_id":"txn-1"},"message":{}}`)

	header, err := service.AuthHeader(body)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(header, "Signature "))

	publicKeyB64 := base64.StdEncoding.EncodeToString(keyProvider.SigningPublicKey())
	mockRegistry.On("LookupPublicKey", mock.Anything, "buyer-app.example.com", "UK1").
		Return(publicKeyB64, nil)

	assert.NoError(t, service.VerifyAuthHeader(context.Background(), header, body))
}

func TestVerifyAuthHeader_TamperedBody(t *testing.T) {
	service, mockRegistry, keyProvider := createTestService(t)
	body := []byte(`{"message":"original"}`)

	header, err := service.AuthHeader(body)
	assert.NoError(t, err)

	publicKeyB64 := base64.StdEncoding.EncodeToString(keyProvider.SigningPublicKey())
	mockRegistry.On("LookupPublicKey", mock.Anything, mock.Anything, mock.Anything).
		Return(publicKeyB64, nil)

	err = service.VerifyAuthHeader(context.Background(), header, []byte(`{"message":"tampered"}`))
	assert.Error(t, err)
	assert.Equal(t, 65002, err.(*errors.DomainError).Code)
}

func TestVerifyAuthHeader_Expired(t *testing.T) {
	service, mockRegistry, keyProvider := createTestService(t)
	body := []byte(`{"message":{}}`)

	// Build a header whose validity window already closed; the signature
	// itself is genuine.
	created := time.Now().Unix() - 7200
	expires := created + 60
	digest := Digest(body)
	signature := service.Sign([]byte(SigningString(created, expires, digest)))

	env := SignatureEnvelope{
		KeyID:     BuildKeyID("buyer-app.example.com", "UK1", Algorithm),
		Algorithm: Algorithm,
		Created:   created,
		Expires:   expires,
		Headers:   SignedHeaders,
		Signature: base64.StdEncoding.EncodeToString(signature),
	}

	publicKeyB64 := base64.StdEncoding.EncodeToString(keyProvider.SigningPublicKey())
	mockRegistry.On("LookupPublicKey", mock.Anything, mock.Anything, mock.Anything).
		Return(publicKeyB64, nil)

	err := service.VerifyAuthHeader(context.Background(), EncodeAuthHeader(env), body)
	assert.Error(t, err)
	// Expired is reported distinctly from an invalid signature
	assert.Equal(t, 65003, err.(*errors.DomainError).Code)
	assert.Contains(t, err.Error(), "expired")
}

func TestVerifyAuthHeader_MissingFields(t *testing.T) {
	service, _, _ := createTestService(t)

	tests := []struct {
		name   string
		header string
	}{
		{"Empty header", ""},
		{"No signature", `Signature keyId="a|b|ed25519",created="100",expires="200"`},
		{"No keyId", `Signature created="100",expires="200",signature="c2ln"`},
		{"No timestamps", `Signature keyId="a|b|ed25519",signature="c2ln"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := service.VerifyAuthHeader(context.Background(), tt.header, []byte("{}"))
			assert.Error(t, err)
			assert.Equal(t, 65002, err.(*errors.DomainError).Code)
		})
	}
}

func TestVerifyAuthHeader_InvalidWindow(t *testing.T) {
	service, _, _ := createTestService(t)
	now := time.Now().Unix()

	header := EncodeAuthHeader(SignatureEnvelope{
		KeyID:     "a|b|ed25519",
		Algorithm: Algorithm,
		Created:   now,
		Expires:   now, // expires must be strictly after created
		Headers:   SignedHeaders,
		Signature: "c2ln",
	})

	err := service.VerifyAuthHeader(context.Background(), header, []byte("{}"))
	assert.Error(t, err)
	assert.Equal(t, 65002, err.(*errors.DomainError).Code)
}

func TestVerifyAuthHeader_UnsupportedAlgorithm(t *testing.T) {
	service, _, _ := createTestService(t)
	now := time.Now().Unix()

	header := EncodeAuthHeader(SignatureEnvelope{
		KeyID:     "a|b|rsa",
		Algorithm: "rsa",
		Created:   now,
		Expires:   now + 60,
		Headers:   SignedHeaders,
		Signature: "c2ln",
	})

	err := service.VerifyAuthHeader(context.Background(), header, []byte("{}"))
	assert.Error(t, err)
	assert.Equal(t, 65002, err.(*errors.DomainError).Code)
}

func TestVerifyAuthHeader_RegistryUnavailable(t *testing.T) {
	service, mockRegistry, _ := createTestService(t)
	body := []byte(`{}`)

	header, err := service.AuthHeader(body)
	assert.NoError(t, err)

	mockRegistry.On("LookupPublicKey", mock.Anything, mock.Anything, mock.Anything).
		Return("", assert.AnError)

	err = service.VerifyAuthHeader(context.Background(), header, body)
	assert.Error(t, err)
	assert.Equal(t, 65011, err.(*errors.DomainError).Code)
}

func TestVerifyTimestamp(t *testing.T) {
	service, _, _ := createTestService(t)
	window := 300 * time.Second

	assert.NoError(t, service.VerifyTimestamp(time.Now().UTC(), window))
	assert.NoError(t, service.VerifyTimestamp(time.Now().UTC().Add(-2*time.Minute), window))

	err := service.VerifyTimestamp(time.Now().UTC().Add(-10*time.Minute), window)
	assert.Error(t, err)
	assert.Equal(t, 65003, err.(*errors.DomainError).Code)

	err = service.VerifyTimestamp(time.Now().UTC().Add(10*time.Minute), window)
	assert.Error(t, err)
}
