package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ondc-bap/internal/models"
	"ondc-bap/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubVerifier struct {
	err     error
	payload []byte
}

func (s *stubVerifier) VerifyAuthHeader(ctx context.Context, authHeader string, payload []byte) error {
	s.payload = payload
	return s.err
}

type stubMetrics struct {
	outcomes []string
}

func (s *stubMetrics) RecordSignatureVerification(outcome string) {
	s.outcomes = append(s.outcomes, outcome)
}

func callbackBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(models.ProtocolRequest{
		Context: models.ProtocolContext{
			Domain:        "nic2004:52110",
			Action:        "on_search",
			TransactionID: "txn-1",
			MessageID:     "msg-1",
			Timestamp:     time.Now().UTC(),
		},
		Message: models.Payload{"catalog": map[string]interface{}{}},
	})
	require.NoError(t, err)
	return body
}

func runMiddleware(t *testing.T, verifier *stubVerifier, metrics VerificationMetrics, body []byte) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handlerReached := false
	router := gin.New()
	router.POST("/on_search", SignatureVerification(verifier, metrics, zap.NewNop()), func(c *gin.Context) {
		handlerReached = true
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/on_search", bytes.NewReader(body))
	req.Header.Set("Authorization", `Signature keyId="seller.example.com|UK2|ed25519"`)
	router.ServeHTTP(w, req)
	return w, handlerReached
}

func TestSignatureVerification_Success(t *testing.T) {
	verifier := &stubVerifier{}
	metrics := &stubMetrics{}
	body := callbackBody(t)

	w, handlerReached := runMiddleware(t, verifier, metrics, body)

	assert.True(t, handlerReached)
	assert.Equal(t, http.StatusOK, w.Code)
	// The verifier saw the exact bytes as received
	assert.Equal(t, body, verifier.payload)
	assert.Equal(t, []string{"success"}, metrics.outcomes)
}

func TestSignatureVerification_Failure_NacksWith401(t *testing.T) {
	verifier := &stubVerifier{err: errors.NewDomainError(65002, "authentication failed", "bad signature")}
	metrics := &stubMetrics{}

	w, handlerReached := runMiddleware(t, verifier, metrics, callbackBody(t))

	assert.False(t, handlerReached)
	// Callback routes always answer HTTP 200; the NACK carries the code
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.AckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NACK", resp.Message.Ack.Status)
	assert.Equal(t, "401", resp.Error.Code)
	// The caller's context is echoed back
	assert.Equal(t, "txn-1", resp.Context.TransactionID)
	assert.Equal(t, []string{"failure"}, metrics.outcomes)
}

func TestSignatureVerification_Expired_NacksWith400(t *testing.T) {
	verifier := &stubVerifier{err: errors.NewDomainError(65003, "signature expired", "expires in the past")}

	w, handlerReached := runMiddleware(t, verifier, nil, callbackBody(t))

	assert.False(t, handlerReached)
	var resp models.AckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "400", resp.Error.Code)
	assert.Equal(t, "signature expired", resp.Error.Message)
}

func TestSignatureVerification_NonJSONBodyStillVerified(t *testing.T) {
	verifier := &stubVerifier{}

	w, handlerReached := runMiddleware(t, verifier, nil, []byte("not json"))

	// Authentication happens on raw bytes; body parsing is the handler's job
	assert.True(t, handlerReached)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("not json"), verifier.payload)
}

func TestGetRawBody_And_GetProtocolRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	verifier := &stubVerifier{}
	body := callbackBody(t)

	router := gin.New()
	router.POST("/on_search", SignatureVerification(verifier, nil, zap.NewNop()), func(c *gin.Context) {
		raw, ok := GetRawBody(c)
		assert.True(t, ok)
		assert.Equal(t, body, raw)

		req, ok := GetProtocolRequest(c)
		assert.True(t, ok)
		assert.Equal(t, "txn-1", req.Context.TransactionID)

		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/on_search", bytes.NewReader(body))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsMiddleware_RecordsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)

	recorder := &recordingMetrics{}
	router := gin.New()
	router.Use(MetricsMiddleware(recorder))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"/health|success"}, recorder.requests)
}

type recordingMetrics struct {
	requests []string
}

func (r *recordingMetrics) RecordRequest(endpoint, status string) {
	r.requests = append(r.requests, endpoint+"|"+status)
}

func (r *recordingMetrics) RecordRequestDuration(endpoint, status string, duration time.Duration) {}

func TestGetStatusLabel(t *testing.T) {
	assert.Equal(t, "success", getStatusLabel(200))
	assert.Equal(t, "client_error", getStatusLabel(404))
	assert.Equal(t, "server_error", getStatusLabel(500))
	assert.Equal(t, "unknown", getStatusLabel(302))
}
