package domain

import (
	"encoding/json"
	"time"
)

type IdempotencyScope string

const (
	ScopePayment  IdempotencyScope = "payment"
	ScopeRefund   IdempotencyScope = "refund"
	ScopeFinalize IdempotencyScope = "finalize"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// IdempotencyRecord stores the outcome of one gated call. Payload is replayed
// byte for byte.
type IdempotencyRecord struct {
	Scope     IdempotencyScope `json:"scope"`
	SubjectID string           `json:"subject_id"`
	Key       string           `json:"key"`
	Outcome   Outcome          `json:"outcome"`
	Payload   json.RawMessage  `json:"payload"`
	CreatedAt time.Time        `json:"created_at"`
}
