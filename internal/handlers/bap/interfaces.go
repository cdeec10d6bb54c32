package bap

import (
	"context"
	"time"

	"ondc-bap/internal/models"
	"ondc-bap/internal/services/dispatch"
)

// Dispatcher sends signed outbound protocol calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, params dispatch.Params) (*models.AckResponse, *models.ProtocolContext, error)
}

// ChallengeDecryptor answers the registry's subscription challenge.
type ChallengeDecryptor interface {
	Decrypt(challengeB64 string) (string, error)
}

// TimestampVerifier checks a callback context timestamp against the replay
// window.
type TimestampVerifier interface {
	VerifyTimestamp(timestamp time.Time, window time.Duration) error
}

// MetricsRecorder counts handler outcomes. Implementations may be nil-checked
// by handlers.
type MetricsRecorder interface {
	RecordDispatch(action, outcome string)
	RecordCallback(action, outcome string)
	RecordChallengeDecryption(outcome string)
	SetActiveTransactions(count int)
}
