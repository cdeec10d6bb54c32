package models

import (
	"time"
)

// TransactionStatus tracks how far a transaction has progressed through the
// protocol flow. Error is reachable from any state.
type TransactionStatus string

const (
	StatusSearching    TransactionStatus = "searching"
	StatusResultsReady TransactionStatus = "results_ready"
	StatusSelected     TransactionStatus = "selected"
	StatusInitialized  TransactionStatus = "initialized"
	StatusConfirmed    TransactionStatus = "confirmed"
	StatusCancelled    TransactionStatus = "cancelled"
	StatusError        TransactionStatus = "error"
)

// Payload is an opaque callback message body. The core never inspects domain
// payloads beyond needing a stable serialization for digesting.
type Payload map[string]interface{}

// Transaction is the aggregate root for one multi-step interaction, keyed by
// transaction_id. Callback payloads are retained in arrival order, never
// overwritten, so duplicate and multi-provider callbacks are all recorded.
// Owned exclusively by the transaction repository; mutate only through its
// append operations.
type Transaction struct {
	ID            string            `json:"id"`
	MessageID     string            `json:"message_id"` // originating message_id
	Status        TransactionStatus `json:"status"`
	Request       Payload           `json:"request,omitempty"` // original outbound payload
	Catalogs      []Payload         `json:"catalogs,omitempty"`
	Quotes        []Payload         `json:"quotes,omitempty"`
	Inits         []Payload         `json:"inits,omitempty"`
	Confirms      []Payload         `json:"confirms,omitempty"`
	Cancellations []Payload         `json:"cancellations,omitempty"`
	StatusUpdates []Payload         `json:"status_updates,omitempty"`
	Errors        []Payload         `json:"errors,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to readers. Internal lists must never
// leak to callers who could mutate them behind the repository's lock.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	c.Request = clonePayload(t.Request)
	c.Catalogs = clonePayloads(t.Catalogs)
	c.Quotes = clonePayloads(t.Quotes)
	c.Inits = clonePayloads(t.Inits)
	c.Confirms = clonePayloads(t.Confirms)
	c.Cancellations = clonePayloads(t.Cancellations)
	c.StatusUpdates = clonePayloads(t.StatusUpdates)
	c.Errors = clonePayloads(t.Errors)
	return &c
}

func clonePayloads(in []Payload) []Payload {
	if in == nil {
		return nil
	}
	out := make([]Payload, len(in))
	for i, p := range in {
		out[i] = clonePayload(p)
	}
	return out
}

func clonePayload(in Payload) Payload {
	if in == nil {
		return nil
	}
	out := make(Payload, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case map[string]interface{}:
			out[k] = map[string]interface{}(clonePayload(val))
		case []interface{}:
			out[k] = cloneSlice(val)
		default:
			out[k] = v
		}
	}
	return out
}

func cloneSlice(in []interface{}) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		switch val := v.(type) {
		case map[string]interface{}:
			out[i] = map[string]interface{}(clonePayload(val))
		case []interface{}:
			out[i] = cloneSlice(val)
		default:
			out[i] = v
		}
	}
	return out
}
