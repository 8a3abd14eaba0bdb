package domain

import "context"

// VerifyStatus is the gateway's authoritative verdict for a transaction.
type VerifyStatus string

const (
	VerifySuccess   VerifyStatus = "success"
	VerifyFailed    VerifyStatus = "failed"
	VerifyAbandoned VerifyStatus = "abandoned"
)

type InitializeParams struct {
	Email       string
	AmountCents int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]any
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
	Raw              map[string]any
}

type VerifyResult struct {
	Status      VerifyStatus
	AmountCents int64
	Raw         map[string]any
}

type RefundParams struct {
	Reference   string
	AmountCents *int64
	Reason      string
}

// Gateway abstracts the payment provider. Verify is the authoritative
// source of truth for charge outcomes; webhook payloads are never
// trusted for status.
type Gateway interface {
	Initialize(ctx context.Context, params InitializeParams) (*InitializeResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
	Refund(ctx context.Context, params RefundParams) (map[string]any, error)
	VerifySignature(payload []byte, signature string) bool
	NewReference() string
}
