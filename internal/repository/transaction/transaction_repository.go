package transaction

import (
	"sync"
	"time"

	"ondc-bap/internal/models"
	"ondc-bap/pkg/errors"

	"go.uber.org/zap"
)

// Repository is the sole authority over transaction existence and status.
// Implementations must be safe for concurrent readers and writers; a durable
// backend can be substituted without touching the dispatcher or callback
// handlers.
type Repository interface {
	// CreateTransaction registers a new transaction in the searching state.
	// Calling it again with the same id overwrites the existing record: the
	// id is caller-chosen, so reuse is treated as a fresh session.
	CreateTransaction(id, messageID string, request models.Payload) *models.Transaction

	// Get returns a copy of the transaction, or a not-found error. Returned
	// records are detached; mutating them does not affect the store.
	Get(id string) (*models.Transaction, error)

	AddCatalogData(id string, payload models.Payload) (*models.Transaction, error)
	AddSelectData(id string, payload models.Payload) (*models.Transaction, error)
	AddInitData(id string, payload models.Payload) (*models.Transaction, error)
	AddConfirmData(id string, payload models.Payload) (*models.Transaction, error)
	AddCancelData(id string, payload models.Payload) (*models.Transaction, error)
	AddStatusData(id string, payload models.Payload) (*models.Transaction, error)
	AddErrorData(id string, payload models.Payload) (*models.Transaction, error)

	// Count returns the number of transactions currently held.
	Count() int

	// Sweep removes transactions not updated since olderThan and returns how
	// many were evicted. Nothing calls it implicitly; retention is process
	// lifetime unless an operator wires a sweep.
	Sweep(olderThan time.Time) int
}

// entry pairs a transaction with its own lock so unrelated transactions never
// contend.
type entry struct {
	mu  sync.Mutex
	txn *models.Transaction
}

// MemoryRepository is the in-process implementation of Repository. The map
// lock only guards membership; all record mutation happens under the
// per-transaction lock.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  *zap.Logger
}

// NewMemoryRepository creates an empty in-memory transaction repository.
func NewMemoryRepository(logger *zap.Logger) *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

func (r *MemoryRepository) CreateTransaction(id, messageID string, request models.Payload) *models.Transaction {
	now := time.Now().UTC()
	txn := &models.Transaction{
		ID:        id,
		MessageID: messageID,
		Status:    models.StatusSearching,
		Request:   request,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	if _, exists := r.entries[id]; exists {
		r.logger.Warn("transaction id reused; overwriting existing record", zap.String("transaction_id", id))
	}
	r.entries[id] = &entry{txn: txn}
	r.mu.Unlock()

	return txn.Clone()
}

func (r *MemoryRepository) Get(id string) (*models.Transaction, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.txn.Clone(), nil
}

func (r *MemoryRepository) AddCatalogData(id string, payload models.Payload) (*models.Transaction, error) {
	return r.append(id, payload, models.StatusResultsReady, func(t *models.Transaction, p models.Payload) {
		t.Catalogs = append(t.Catalogs, p)
	})
}

func (r *MemoryRepository) AddSelectData(id string, payload models.Payload) (*models.Transaction, error) {
	return r.append(id, payload, models.StatusSelected, func(t *models.Transaction, p models.Payload) {
		t.Quotes = append(t.Quotes, p)
	})
}

func (r *MemoryRepository) AddInitData(id string, payload models.Payload) (*models.Transaction, error) {
	return r.append(id, payload, models.StatusInitialized, func(t *models.Transaction, p models.Payload) {
		t.Inits = append(t.Inits, p)
	})
}

func (r *MemoryRepository) AddConfirmData(id string, payload models.Payload) (*models.Transaction, error) {
	return r.append(id, payload, models.StatusConfirmed, func(t *models.Transaction, p models.Payload) {
		t.Confirms = append(t.Confirms, p)
	})
}

func (r *MemoryRepository) AddCancelData(id string, payload models.Payload) (*models.Transaction, error) {
	return r.append(id, payload, models.StatusCancelled, func(t *models.Transaction, p models.Payload) {
		t.Cancellations = append(t.Cancellations, p)
	})
}

// AddStatusData appends a status update without touching the transaction
// status: delivery progress tracking is orthogonal to the protocol flow.
func (r *MemoryRepository) AddStatusData(id string, payload models.Payload) (*models.Transaction, error) {
	return r.append(id, payload, "", func(t *models.Transaction, p models.Payload) {
		t.StatusUpdates = append(t.StatusUpdates, p)
	})
}

// AddErrorData moves the transaction to the error state. Previously
// accumulated callback data is retained.
func (r *MemoryRepository) AddErrorData(id string, payload models.Payload) (*models.Transaction, error) {
	return r.append(id, payload, models.StatusError, func(t *models.Transaction, p models.Payload) {
		t.Errors = append(t.Errors, p)
	})
}

func (r *MemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *MemoryRepository) Sweep(olderThan time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, e := range r.entries {
		e.mu.Lock()
		stale := e.txn.UpdatedAt.Before(olderThan)
		e.mu.Unlock()
		if stale {
			delete(r.entries, id)
			evicted++
		}
	}
	if evicted > 0 {
		r.logger.Info("swept stale transactions", zap.Int("evicted", evicted))
	}
	return evicted
}

func (r *MemoryRepository) lookup(id string) (*entry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewDomainError(65006, "transaction not found", id)
	}
	return e, nil
}

func (r *MemoryRepository) append(id string, payload models.Payload, status models.TransactionStatus, apply func(*models.Transaction, models.Payload)) (*models.Transaction, error) {
	e, err := r.lookup(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	apply(e.txn, payload)
	if status != "" {
		e.txn.Status = status
	}
	e.txn.UpdatedAt = time.Now().UTC()

	return e.txn.Clone(), nil
}
