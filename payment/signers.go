package payment

import (
	"github.com/davedumto/nex402/logger"
	"github.com/davedumto/nex402/signer"
	"github.com/davedumto/nex402/signer/aptos"
	"github.com/davedumto/nex402/signer/evm"
	"github.com/davedumto/nex402/types"
)

// SignerFactory builds the signers available for one invocation.
type SignerFactory func(cred types.SigningCredential) ([]signer.Signer, error)

// DefaultSigners returns an Aptos signer and, when the key is also a valid
// secp256k1 scalar, an EVM signer for the same key.
func DefaultSigners(log logger.Logger) SignerFactory {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return func(cred types.SigningCredential) ([]signer.Signer, error) {
		a, err := aptos.NewSigner(cred.PrivateKey)
		if err != nil {
			return nil, types.NewError(types.ErrCodeInvalidCredential, "invalid private key", err)
		}
		signers := []signer.Signer{a}

		if e, err := evm.NewSigner(cred.PrivateKey); err == nil {
			signers = append(signers, e)
		} else {
			log.Debug("evm signer unavailable for key", map[string]any{"error": err.Error()})
		}

		log.Info("wallet loaded", map[string]any{
			"address": a.Address(),
			"source":  string(cred.Source),
		})
		return signers, nil
	}
}
