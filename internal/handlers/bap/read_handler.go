package bap

import (
	"net/http"

	"ondc-bap/internal/repository/transaction"
	"ondc-bap/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReadHandler serves polling clients the merged per-transaction view.
type ReadHandler struct {
	store  transaction.Repository
	logger *zap.Logger
}

// NewReadHandler creates a new read handler
func NewReadHandler(store transaction.Repository, logger *zap.Logger) *ReadHandler {
	return &ReadHandler{
		store:  store,
		logger: logger,
	}
}

// HandleGetTransaction answers GET /transactions/:id.
func (h *ReadHandler) HandleGetTransaction(c *gin.Context) {
	id := c.Param("id")

	txn, err := h.store.Get(id)
	if err != nil {
		c.JSON(errors.GetHTTPStatus(err), gin.H{
			"error": gin.H{"code": errors.GetProtocolCode(err), "message": "transaction not found"},
		})
		return
	}

	c.JSON(http.StatusOK, txn)
}

// HandleHealth answers GET /health.
func (h *ReadHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
