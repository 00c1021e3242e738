// Package wallet holds the payment-phase helpers that do not require chain
// access: recipient address resolution and format validation, and the
// pre-transfer funds check. The actual signing and transfer stay behind the
// core.Payer capability.
package wallet
