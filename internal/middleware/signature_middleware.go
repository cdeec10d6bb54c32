package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"ondc-bap/internal/models"
	"ondc-bap/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RawBodyKey is the gin context key under which the middleware stores the
// exact request bytes it verified.
const RawBodyKey = "raw_body"

// RequestKey is the gin context key for the parsed protocol request.
const RequestKey = "protocol_request"

// SignatureVerifier authenticates an inbound Authorization header against a
// payload.
type SignatureVerifier interface {
	VerifyAuthHeader(ctx context.Context, authHeader string, payload []byte) error
}

// VerificationMetrics counts verification outcomes. May be nil.
type VerificationMetrics interface {
	RecordSignatureVerification(outcome string)
}

// SignatureVerification authenticates every callback request. The raw body is
// captured before verification and restored for downstream binding: the
// signature covers the exact received bytes, never a re-serialization.
//
// Failures are answered with HTTP 200 and a protocol NACK, per the network's
// always-200 callback convention.
func SignatureVerification(verifier SignatureVerifier, metrics VerificationMetrics, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			respondNack(c, logger, errors.NewDomainError(65001, "invalid request", "unreadable body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(RawBodyKey, body)

		// Parse once here so NACKs can echo the caller's context and the
		// handler can reuse the parsed request
		var req models.ProtocolRequest
		if err := json.Unmarshal(body, &req); err == nil {
			c.Set(RequestKey, &req)
		}

		if err := verifier.VerifyAuthHeader(c.Request.Context(), c.GetHeader("Authorization"), body); err != nil {
			if metrics != nil {
				metrics.RecordSignatureVerification("failure")
			}
			logger.Warn("callback signature verification failed",
				zap.String("path", c.Request.URL.Path),
				zap.String("transaction_id", req.Context.TransactionID),
				zap.Error(err),
			)
			respondNack(c, logger, err)
			return
		}

		if metrics != nil {
			metrics.RecordSignatureVerification("success")
		}
		c.Next()
	}
}

func respondNack(c *gin.Context, logger *zap.Logger, err error) {
	var ctx models.ProtocolContext
	if reqVal, ok := c.Get(RequestKey); ok {
		if req, ok := reqVal.(*models.ProtocolRequest); ok {
			ctx = req.Context
		}
	}

	message := "request rejected"
	if domainErr, ok := err.(*errors.DomainError); ok {
		message = domainErr.Message
	}

	c.AbortWithStatusJSON(http.StatusOK, models.NewNack(ctx, errors.GetProtocolCode(err), message))
}

// GetRawBody returns the exact bytes the signature middleware verified.
func GetRawBody(c *gin.Context) ([]byte, bool) {
	val, ok := c.Get(RawBodyKey)
	if !ok {
		return nil, false
	}
	body, ok := val.([]byte)
	return body, ok
}

// GetProtocolRequest returns the request parsed by the signature middleware.
func GetProtocolRequest(c *gin.Context) (*models.ProtocolRequest, bool) {
	val, ok := c.Get(RequestKey)
	if !ok {
		return nil, false
	}
	req, ok := val.(*models.ProtocolRequest)
	return req, ok
}
