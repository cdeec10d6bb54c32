package bap

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SubscribeRequest is the registry's subscription handshake: an encrypted
// nonce we must decrypt to prove control of our claimed key pair.
type SubscribeRequest struct {
	SubscriberID string `json:"subscriber_id,omitempty"`
	Challenge    string `json:"challenge" binding:"required"`
}

// SubscribeResponse carries the decrypted challenge back to the registry.
type SubscribeResponse struct {
	Answer string `json:"answer"`
}

// SubscribeHandler answers POST /on_subscribe.
type SubscribeHandler struct {
	decryptor ChallengeDecryptor
	metrics   MetricsRecorder
	logger    *zap.Logger
}

// NewSubscribeHandler creates a new subscription handshake handler
func NewSubscribeHandler(decryptor ChallengeDecryptor, metrics MetricsRecorder, logger *zap.Logger) *SubscribeHandler {
	return &SubscribeHandler{
		decryptor: decryptor,
		metrics:   metrics,
		logger:    logger,
	}
}

// HandleOnSubscribe decrypts the registry's challenge. Decryption failure is
// an HTTP 500: the registry treats anything but the exact plaintext as a
// failed handshake anyway.
func (h *SubscribeHandler) HandleOnSubscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "400", "message": "challenge is required"}})
		return
	}

	answer, err := h.decryptor.Decrypt(req.Challenge)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordChallengeDecryption("failure")
		}
		h.logger.Error("subscription challenge decryption failed",
			zap.String("subscriber_id", req.SubscriberID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "500", "message": "challenge decryption failed"}})
		return
	}

	if h.metrics != nil {
		h.metrics.RecordChallengeDecryption("success")
	}
	h.logger.Info("subscription challenge answered", zap.String("subscriber_id", req.SubscriberID))

	c.JSON(http.StatusOK, SubscribeResponse{Answer: answer})
}
