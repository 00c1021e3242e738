package core

import "context"

// Payer abstracts the on-chain wallet: a balance query and an opaque
// pay(amount, recipient) → txHash transfer that blocks until the network's
// confirmation depth is reached. Wallet loading, signing and chain
// selection live behind this interface.
type Payer interface {
	// Balance returns the spendable USDC balance.
	Balance(ctx context.Context) (float64, error)
	// Pay transfers amountUSDC to the recipient address and returns the
	// confirmed transaction hash.
	Pay(ctx context.Context, amountUSDC float64, to string) (txHash string, err error)
}

// Replier generates reply text for an inbound message in the context of a
// job. Implementations must degrade to a deterministic fallback on any
// internal failure rather than returning an error for transient issues.
type Replier interface {
	Reply(ctx context.Context, job Job, msg Message) (string, error)
}

// PaymentOption is one entry of a 402 response's payment-options
// descriptor (the `accepts` list). Amounts are kept as strings exactly as
// received; the signer interprets them.
type PaymentOption struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	Asset             string `json:"asset,omitempty"`
	PayTo             string `json:"payTo"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Description       string `json:"description,omitempty"`
}

// PaymentSigner produces the authorization header value attached when a
// request is re-issued after a 402.
type PaymentSigner interface {
	SignPayment(ctx context.Context, opt PaymentOption) (string, error)
}

// Confirmer asks the operator for an explicit yes/no before money moves.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmerFunc adapts a plain function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, prompt string) (bool, error)

// Confirm calls the wrapped function.
func (f ConfirmerFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}
