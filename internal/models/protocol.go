package models

import (
	"fmt"
	"strings"
	"time"
)

// ProtocolContext is the envelope attached to every message on the network.
// transaction_id is immutable for the lifetime of a transaction; message_id is
// unique per call and multiple messages share a transaction_id.
type ProtocolContext struct {
	Domain        string    `json:"domain"`
	Country       string    `json:"country"`
	City          string    `json:"city"`
	Action        string    `json:"action"`
	CoreVersion   string    `json:"core_version"`
	BapID         string    `json:"bap_id,omitempty"`
	BapURI        string    `json:"bap_uri,omitempty"`
	BppID         string    `json:"bpp_id,omitempty"`
	BppURI        string    `json:"bpp_uri,omitempty"`
	TransactionID string    `json:"transaction_id"`
	MessageID     string    `json:"message_id"`
	Timestamp     time.Time `json:"timestamp"`
	TTL           string    `json:"ttl,omitempty"` // ISO 8601 duration (e.g., "PT30S")
}

// validActions is the allowlist of valid protocol actions
// Prevents hard-to-debug silent failures from typos like "on_sreach"
var validActions = map[string]bool{
	"search":     true,
	"select":     true,
	"init":       true,
	"confirm":    true,
	"status":     true,
	"cancel":     true,
	"on_search":  true,
	"on_select":  true,
	"on_init":    true,
	"on_confirm": true,
	"on_status":  true,
	"on_cancel":  true,
}

// IsValidAction reports whether action is a known protocol verb.
func IsValidAction(action string) bool {
	return validActions[action]
}

// Validate validates the protocol context
func (c *ProtocolContext) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if c.Action == "" {
		return fmt.Errorf("action is required")
	}
	if !validActions[c.Action] {
		return fmt.Errorf("invalid action: %s", c.Action)
	}
	if c.TransactionID == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if c.MessageID == "" {
		return fmt.Errorf("message_id is required")
	}
	// Timestamp is mandatory: callbacks without one cannot be replay-checked
	if c.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if c.TTL != "" {
		if _, err := ParseTTL(c.TTL); err != nil {
			return fmt.Errorf("invalid ttl format: %s (expected ISO 8601 duration, e.g., PT30S, PT15M)", c.TTL)
		}
	}
	return nil
}

// ParseTTL converts an ISO 8601 duration (PT30S, PT15M) to a time.Duration.
func ParseTTL(ttl string) (time.Duration, error) {
	if !strings.HasPrefix(ttl, "PT") {
		return 0, fmt.Errorf("ttl must be ISO 8601 format (PT30S, PT15M, etc.)")
	}
	s := strings.TrimPrefix(ttl, "PT")
	if s == "" {
		return 0, fmt.Errorf("ttl must contain at least one time component")
	}
	s = strings.ReplaceAll(s, "H", "h")
	s = strings.ReplaceAll(s, "M", "m")
	s = strings.ReplaceAll(s, "S", "s")
	return time.ParseDuration(s)
}

// FormatTTL renders a duration as an ISO 8601 duration string.
func FormatTTL(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("PT%dH%dM%dS", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("PT%dM%dS", minutes, seconds)
	}
	return fmt.Sprintf("PT%dS", seconds)
}

// ProtocolRequest represents an incoming protocol message
type ProtocolRequest struct {
	Context ProtocolContext        `json:"context"`
	Message map[string]interface{} `json:"message,omitempty"`
	Error   *ProtocolError         `json:"error,omitempty"`
}

// GetContext returns the request context
func (r *ProtocolRequest) GetContext() *ProtocolContext {
	return &r.Context
}

// ProtocolError represents a protocol-level error payload
type ProtocolError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// AckResponse is the synchronous response to every protocol call.
// Callbacks are always answered HTTP 200; NACKs carry the error body.
type AckResponse struct {
	Context ProtocolContext `json:"context"`
	Message AckMessage      `json:"message"`
	Error   *ProtocolError  `json:"error,omitempty"`
}

// AckMessage wraps the ack status
type AckMessage struct {
	Ack AckStatus `json:"ack"`
}

// AckStatus holds "ACK" or "NACK"
type AckStatus struct {
	Status string `json:"status"`
}

// NewAck builds a positive acknowledgement for ctx.
func NewAck(ctx ProtocolContext) AckResponse {
	return AckResponse{
		Context: ctx,
		Message: AckMessage{Ack: AckStatus{Status: "ACK"}},
	}
}

// NewNack builds a negative acknowledgement carrying a protocol error code.
func NewNack(ctx ProtocolContext, code, message string) AckResponse {
	return AckResponse{
		Context: ctx,
		Message: AckMessage{Ack: AckStatus{Status: "NACK"}},
		Error: &ProtocolError{
			Type:    "CONTEXT_ERROR",
			Code:    code,
			Message: message,
		},
	}
}
