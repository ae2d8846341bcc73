// Package signer defines the signing capability the payment flow depends on
// and the selector that matches signers to offered payment options.
package signer

import (
	"strings"

	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/verification"
)

// Signer creates signed payment payloads for one chain family.
type Signer interface {
	// Family returns the chain family this signer signs for.
	Family() types.ChainFamily

	// Address returns the payer address derived from the key.
	Address() string

	// CanSign reports whether this signer can satisfy the option.
	CanSign(opt *types.PaymentOption) bool

	// Sign creates a signed PaymentPayload for the option.
	Sign(opt *types.PaymentOption) (*types.PaymentPayload, error)
}

// Selection is the option a payment was made for and the payload signed for it.
type Selection struct {
	Option  types.PaymentOption
	Signer  Signer
	Payload *types.PaymentPayload
}

// Selector picks the first offered option a configured signer can satisfy.
// Options are tried in the order the server listed them; signers in the
// order they were configured.
type Selector struct {
	Policy verification.Policy
}

// SelectAndSign chooses an option, checks it against the policy and signs it.
// When options are satisfiable but all fail the checks, the first check
// error is returned.
func (s Selector) SelectAndSign(signers []Signer, options []types.PaymentOption) (*Selection, error) {
	if len(signers) == 0 {
		return nil, types.NewError(types.ErrCodeNoValidSigner, "no signers configured", types.ErrNoValidSigner)
	}
	if len(options) == 0 {
		return nil, types.NewError(types.ErrInvalidRequirements, "no payment options offered", nil)
	}

	var checkErr error
	matched := false
	for i := range options {
		opt := &options[i]
		for _, sg := range signers {
			if !sg.CanSign(opt) {
				continue
			}
			matched = true

			if err := verification.CheckOption(*opt, s.Policy); err != nil {
				if checkErr == nil {
					checkErr = err
				}
				break
			}

			payload, err := sg.Sign(opt)
			if err != nil {
				return nil, types.NewError(types.ErrSigningFailed, "failed to sign payment", err)
			}
			return &Selection{Option: *opt, Signer: sg, Payload: payload}, nil
		}
	}

	if matched {
		return nil, checkErr
	}

	offered := make([]string, 0, len(options))
	for _, opt := range options {
		offered = append(offered, opt.Scheme+"@"+opt.Network)
	}
	return nil, types.NewError(types.ErrCodeNoValidSigner, "no signer can satisfy any payment option", types.ErrNoValidSigner).
		WithDetails("options", strings.Join(offered, ", "))
}
