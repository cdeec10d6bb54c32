package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ondc-bap/internal/config"
	"ondc-bap/internal/models"
	"ondc-bap/internal/repository/transaction"
	"ondc-bap/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSigner struct {
	header string
	err    error
	body   []byte
}

func (s *stubSigner) AuthHeader(body []byte) (string, error) {
	s.body = body
	return s.header, s.err
}

func subscriberConfig() config.SubscriberConfig {
	return config.SubscriberConfig{
		SubscriberID:  "buyer-app.example.com",
		SubscriberURI: "https://buyer-app.example.com/protocol",
		UkID:          "UK1",
		Domain:        "nic2004:52110",
		Country:       "IND",
		City:          "std:080",
		CoreVersion:   "1.1.0",
	}
}

func newDispatcher(t *testing.T, gatewayURL string) (*Dispatcher, *transaction.MemoryRepository, *stubSigner) {
	t.Helper()
	store := transaction.NewMemoryRepository(zap.NewNop())
	signer := &stubSigner{header: `Signature keyId="buyer-app.example.com|UK1|ed25519"`}
	d := NewDispatcher(
		signer,
		store,
		subscriberConfig(),
		config.GatewayConfig{URL: gatewayURL, RequestTimeout: 5 * time.Second},
		config.SignatureConfig{ValiditySeconds: 3600, TimestampWindow: 300, RequestTTL: 30},
		zap.NewNop(),
	)
	return d, store, signer
}

func ackServer(t *testing.T, capture *models.ProtocolRequest, wantPath string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantPath != "" {
			assert.Equal(t, wantPath, r.URL.Path)
		}
		assert.NotEmpty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, capture))

		_ = json.NewEncoder(w).Encode(models.NewAck(capture.Context))
	}))
}

func TestDispatch_Search_CreatesTransaction(t *testing.T) {
	var captured models.ProtocolRequest
	server := ackServer(t, &captured, "/search")
	defer server.Close()

	d, store, _ := newDispatcher(t, server.URL)

	ack, protocolCtx, err := d.Dispatch(context.Background(), Params{
		Action:  "search",
		Message: models.Payload{"intent": map[string]interface{}{"category": "grocery"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "ACK", ack.Message.Ack.Status)
	assert.NotEmpty(t, protocolCtx.TransactionID)
	assert.NotEmpty(t, protocolCtx.MessageID)
	assert.Equal(t, "search", captured.Context.Action)
	assert.Equal(t, "buyer-app.example.com", captured.Context.BapID)
	assert.Equal(t, "PT30S", captured.Context.TTL)

	txn, err := store.Get(protocolCtx.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSearching, txn.Status)
	assert.Equal(t, protocolCtx.MessageID, txn.MessageID)
}

func TestDispatch_Search_KeepsCallerTransactionID(t *testing.T) {
	var captured models.ProtocolRequest
	server := ackServer(t, &captured, "/search")
	defer server.Close()

	d, _, _ := newDispatcher(t, server.URL)

	_, protocolCtx, err := d.Dispatch(context.Background(), Params{
		Action:        "search",
		TransactionID: "caller-chosen-id",
		Message:       models.Payload{},
	})

	require.NoError(t, err)
	assert.Equal(t, "caller-chosen-id", protocolCtx.TransactionID)
}

func TestDispatch_Select_RequiresExistingTransaction(t *testing.T) {
	server := ackServer(t, &models.ProtocolRequest{}, "")
	defer server.Close()

	d, _, _ := newDispatcher(t, server.URL)

	_, _, err := d.Dispatch(context.Background(), Params{
		Action:        "select",
		TransactionID: "never-searched",
		Message:       models.Payload{},
	})

	require.Error(t, err)
	assert.Equal(t, 65006, err.(*errors.DomainError).Code)
}

func TestDispatch_Select_TargetsBppURI(t *testing.T) {
	var captured models.ProtocolRequest
	bpp := ackServer(t, &captured, "/select")
	defer bpp.Close()

	d, store, _ := newDispatcher(t, "http://gateway.invalid")
	store.CreateTransaction("txn-1", "msg-0", nil)

	_, protocolCtx, err := d.Dispatch(context.Background(), Params{
		Action:        "select",
		TransactionID: "txn-1",
		BppID:         "seller.example.com",
		BppURI:        bpp.URL,
		Message:       models.Payload{"order": map[string]interface{}{}},
	})

	require.NoError(t, err)
	assert.Equal(t, "txn-1", protocolCtx.TransactionID)
	assert.Equal(t, "seller.example.com", captured.Context.BppID)
}

func TestDispatch_SignsExactWireBytes(t *testing.T) {
	var wireBody []byte
	verify := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wireBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(models.NewAck(models.ProtocolContext{}))
	}))
	defer verify.Close()

	d, _, signer := newDispatcher(t, verify.URL)

	_, _, err := d.Dispatch(context.Background(), Params{Action: "search", Message: models.Payload{"a": "b"}})

	require.NoError(t, err)
	// The signer saw the same byte sequence that went on the wire
	assert.Equal(t, wireBody, signer.body)
}

func TestDispatch_InvalidAction(t *testing.T) {
	d, _, _ := newDispatcher(t, "http://gateway.invalid")

	_, _, err := d.Dispatch(context.Background(), Params{Action: "teleport"})

	require.Error(t, err)
	assert.Equal(t, 65001, err.(*errors.DomainError).Code)
}

func TestDispatch_TransportFailurePropagates(t *testing.T) {
	d, _, _ := newDispatcher(t, "http://127.0.0.1:1")

	_, _, err := d.Dispatch(context.Background(), Params{Action: "search", Message: models.Payload{}})

	require.Error(t, err)
	assert.Equal(t, 65011, err.(*errors.DomainError).Code)
}

func TestDispatch_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	d, _, _ := newDispatcher(t, server.URL)

	_, _, err := d.Dispatch(context.Background(), Params{Action: "search", Message: models.Payload{}})

	require.Error(t, err)
	assert.Equal(t, 65011, err.(*errors.DomainError).Code)
}

func TestDispatch_SignerFailurePropagates(t *testing.T) {
	d, _, signer := newDispatcher(t, "http://gateway.invalid")
	signer.err = errors.NewDomainError(65020, "internal error", "private key not loaded")

	_, _, err := d.Dispatch(context.Background(), Params{Action: "search", Message: models.Payload{}})

	require.Error(t, err)
	assert.Equal(t, 65020, err.(*errors.DomainError).Code)
}
