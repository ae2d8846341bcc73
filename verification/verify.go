// Package verification runs the checks a payment option must pass before
// anything is signed for it.
package verification

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/utils"
)

var aptosAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{1,64}$`)

// Policy limits what the client agrees to pay.
type Policy struct {
	// MaxAmount caps the atomic amount of a single payment. Nil means no cap.
	MaxAmount *big.Int
}

// AtomicAmount returns the amount of an option in atomic units. Options that
// only advertise a decimal price are converted using their decimals.
func AtomicAmount(opt types.PaymentOption) (*big.Int, error) {
	if opt.RawAtomicAmount != "" {
		n, err := utils.ValidateAtomicAmount(opt.RawAtomicAmount)
		if err != nil {
			return nil, fmt.Errorf("amount %q: %w", opt.RawAtomicAmount, err)
		}
		return n, nil
	}
	if opt.PriceDecimal != "" {
		return utils.ParseAmountWithDecimals(opt.PriceDecimal, opt.Decimals)
	}
	return nil, fmt.Errorf("option has neither amount nor price")
}

// CheckOption validates a selected option against the policy.
func CheckOption(opt types.PaymentOption, policy Policy) error {
	if opt.Scheme == "" {
		return invalid("payment option has no scheme", nil)
	}
	if opt.Network == "" {
		return invalid("payment option has no network", nil)
	}
	if err := validatePayTo(opt); err != nil {
		return invalid("address validation failed", err)
	}

	amount, err := AtomicAmount(opt)
	if err != nil {
		return invalid("invalid payment amount", err)
	}

	if policy.MaxAmount != nil && amount.Cmp(policy.MaxAmount) > 0 {
		return types.NewError(types.ErrCodeAmountExceeded,
			fmt.Sprintf("amount %s exceeds limit %s", amount, policy.MaxAmount),
			types.ErrAmountExceeded).
			WithDetails("amount", amount.String()).
			WithDetails("limit", policy.MaxAmount.String())
	}

	return nil
}

// Helper function to validate address formats
func validatePayTo(opt types.PaymentOption) error {
	if opt.PayTo == "" {
		return fmt.Errorf("recipient address is empty")
	}

	switch types.Network(opt.Network).Family() {
	case types.ChainEVM:
		if !utils.ValidateAddress(opt.PayTo) {
			return fmt.Errorf("%q is not an EVM address", opt.PayTo)
		}
	case types.ChainAptos:
		if !aptosAddress.MatchString(opt.PayTo) {
			return fmt.Errorf("%q is not an Aptos address", opt.PayTo)
		}
	}
	return nil
}

func invalid(msg string, err error) error {
	return types.NewError(types.ErrInvalidRequirements, msg, err)
}
