package bap

import (
	"net/http"

	"ondc-bap/internal/models"
	"ondc-bap/internal/services/dispatch"
	"ondc-bap/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TriggerRequest is a client's request to originate one protocol call. The
// message body is opaque to the engine.
type TriggerRequest struct {
	TransactionID string         `json:"transaction_id,omitempty"`
	BppID         string         `json:"bpp_id,omitempty"`
	BppURI        string         `json:"bpp_uri,omitempty"`
	Message       models.Payload `json:"message"`
}

// TriggerHandler exposes the outbound protocol actions (search, select, init,
// confirm, status, cancel) to clients. Each route dispatches one signed call
// and relays the network's synchronous acknowledgement; results arrive later
// on the callback routes.
type TriggerHandler struct {
	dispatcher Dispatcher
	metrics    MetricsRecorder
	logger     *zap.Logger
}

// NewTriggerHandler creates a new trigger handler
func NewTriggerHandler(dispatcher Dispatcher, metrics MetricsRecorder, logger *zap.Logger) *TriggerHandler {
	return &TriggerHandler{
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
	}
}

// Handle returns the gin handler for one trigger action.
func (h *TriggerHandler) Handle(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TriggerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("invalid trigger request", zap.String("action", action), zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "400", "message": "invalid request body"}})
			return
		}

		ack, protocolCtx, err := h.dispatcher.Dispatch(c.Request.Context(), dispatch.Params{
			Action:        action,
			TransactionID: req.TransactionID,
			BppID:         req.BppID,
			BppURI:        req.BppURI,
			Message:       req.Message,
		})
		if err != nil {
			if h.metrics != nil {
				h.metrics.RecordDispatch(action, "failure")
			}
			h.logger.Error("dispatch failed",
				zap.String("action", action),
				zap.String("transaction_id", req.TransactionID),
				zap.Error(err),
			)
			c.JSON(errors.GetHTTPStatus(err), gin.H{
				"error": gin.H{"code": errors.GetProtocolCode(err), "message": err.Error()},
			})
			return
		}

		if h.metrics != nil {
			h.metrics.RecordDispatch(action, "success")
		}

		// Relay the network's acknowledgement under the context we built; the
		// transaction_id in it is what the client polls with
		c.JSON(http.StatusOK, models.AckResponse{
			Context: *protocolCtx,
			Message: ack.Message,
			Error:   ack.Error,
		})
	}
}
