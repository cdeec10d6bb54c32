package bap

import (
	"net/http"
	"time"

	"ondc-bap/internal/middleware"
	"ondc-bap/internal/models"
	"ondc-bap/internal/repository/transaction"
	"ondc-bap/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CallbackHandler merges unsolicited network callbacks into the correlation
// store. Signature verification happens upstream in the middleware; this
// handler validates the envelope, locates the transaction and appends the
// payload. Callbacks may duplicate or arrive out of order; every one is
// recorded, none rejected for sequencing.
type CallbackHandler struct {
	store           transaction.Repository
	timestamps      TimestampVerifier
	timestampWindow time.Duration
	metrics         MetricsRecorder
	logger          *zap.Logger
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(store transaction.Repository, timestamps TimestampVerifier, timestampWindow time.Duration, metrics MetricsRecorder, logger *zap.Logger) *CallbackHandler {
	return &CallbackHandler{
		store:           store,
		timestamps:      timestamps,
		timestampWindow: timestampWindow,
		metrics:         metrics,
		logger:          logger,
	}
}

// Handle returns the gin handler for one callback action.
func (h *CallbackHandler) Handle(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := middleware.GetProtocolRequest(c)
		if !ok {
			var parsed models.ProtocolRequest
			if err := c.ShouldBindJSON(&parsed); err != nil {
				h.respondNack(c, action, models.ProtocolContext{}, errors.NewDomainError(65001, "invalid request", "malformed body"))
				return
			}
			req = &parsed
		}

		if req.Context.TransactionID == "" {
			h.respondNack(c, action, req.Context, errors.NewDomainError(65001, "invalid context", "transaction_id is required"))
			return
		}
		if err := req.Context.Validate(); err != nil {
			h.respondNack(c, action, req.Context, errors.NewDomainError(65001, "invalid context", err.Error()))
			return
		}
		if req.Context.Action != action {
			h.respondNack(c, action, req.Context, errors.NewDomainError(65001, "invalid context", "context action does not match endpoint"))
			return
		}
		if err := h.timestamps.VerifyTimestamp(req.Context.Timestamp, h.timestampWindow); err != nil {
			h.respondNack(c, action, req.Context, err)
			return
		}

		txn, err := h.apply(action, req)
		if err != nil {
			h.respondNack(c, action, req.Context, err)
			return
		}

		if h.metrics != nil {
			h.metrics.RecordCallback(action, "success")
			h.metrics.SetActiveTransactions(h.store.Count())
		}
		h.logger.Info("callback merged",
			zap.String("action", action),
			zap.String("transaction_id", req.Context.TransactionID),
			zap.String("message_id", req.Context.MessageID),
			zap.String("status", string(txn.Status)),
		)

		c.JSON(http.StatusOK, models.NewAck(req.Context))
	}
}

// apply routes one callback payload to the store operation for its kind.
// A callback carrying an error payload is recorded as an error regardless of
// which on_* route delivered it.
func (h *CallbackHandler) apply(action string, req *models.ProtocolRequest) (*models.Transaction, error) {
	id := req.Context.TransactionID

	if req.Error != nil {
		return h.store.AddErrorData(id, models.Payload{
			"type":    req.Error.Type,
			"code":    req.Error.Code,
			"path":    req.Error.Path,
			"message": req.Error.Message,
		})
	}

	switch action {
	case "on_search":
		return h.store.AddCatalogData(id, req.Message)
	case "on_select":
		return h.store.AddSelectData(id, req.Message)
	case "on_init":
		return h.store.AddInitData(id, req.Message)
	case "on_confirm":
		return h.store.AddConfirmData(id, req.Message)
	case "on_status":
		return h.store.AddStatusData(id, req.Message)
	case "on_cancel":
		return h.store.AddCancelData(id, req.Message)
	default:
		return nil, errors.NewDomainError(65001, "invalid request", "unknown callback action: "+action)
	}
}

func (h *CallbackHandler) respondNack(c *gin.Context, action string, ctx models.ProtocolContext, err error) {
	if h.metrics != nil {
		h.metrics.RecordCallback(action, "failure")
	}
	h.logger.Warn("callback rejected",
		zap.String("action", action),
		zap.String("transaction_id", ctx.TransactionID),
		zap.Error(err),
	)

	message := err.Error()
	if domainErr, ok := err.(*errors.DomainError); ok {
		message = domainErr.Message
	}
	c.JSON(http.StatusOK, models.NewNack(ctx, errors.GetProtocolCode(err), message))
}
