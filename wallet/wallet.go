package wallet

import (
	"context"
	"fmt"
	"regexp"

	"github.com/human-pages-ai/hirewire/core"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress reports whether s looks like an EVM address. The check is a
// lightweight format guard, not a checksum validation.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// ResolveRecipient picks the payment address for a human: the profile's
// wallet first, then the operator-supplied fallback. Unless skipValidation
// is set, a malformed winner is an error.
func ResolveRecipient(human core.Human, fallback string, skipValidation bool) (string, error) {
	addr := human.WalletAddress
	if addr == "" {
		addr = fallback
	}
	if addr == "" {
		return "", fmt.Errorf("no payment address: human %s has no wallet and no fallback address is configured", human.ID)
	}
	if !skipValidation && !ValidAddress(addr) {
		return "", fmt.Errorf("payment address %q is not a valid 0x address (set a fallback or skip validation to override)", addr)
	}
	return addr, nil
}

// CheckFunds fails fast when the payer's balance cannot cover the amount.
func CheckFunds(ctx context.Context, payer core.Payer, amountUSDC float64) error {
	balance, err := payer.Balance(ctx)
	if err != nil {
		return fmt.Errorf("query balance: %w", err)
	}
	if balance < amountUSDC {
		return fmt.Errorf("insufficient balance: have %.2f USDC, job costs %.2f USDC", balance, amountUSDC)
	}
	return nil
}
