package payment

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/davedumto/nex402/types"
)

const (
	// EnvPrivateKey names the environment variable and dotenv key holding
	// the signing key.
	EnvPrivateKey = "NEXT_PUBLIC_APTOS_PRIVATE_KEY"

	DefaultSecretsFile = ".env.local"
)

// CredentialLookup describes where ResolveCredential may look for a key.
type CredentialLookup struct {
	// Getenv defaults to os.Getenv.
	Getenv func(string) string

	// SecretsFile is a dotenv file; empty disables the lookup.
	SecretsFile string
}

// ResolveCredential picks the signing key from, in order: the explicit
// argument, the environment, then the dotenv secrets file. It fails with
// ErrCredentialMissing when all three are empty.
func ResolveCredential(explicit string, lookup CredentialLookup) (types.SigningCredential, error) {
	if k := strings.TrimSpace(explicit); k != "" {
		return types.SigningCredential{PrivateKey: k, Source: types.CredentialFromFlag}, nil
	}

	getenv := lookup.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if k := strings.TrimSpace(getenv(EnvPrivateKey)); k != "" {
		return types.SigningCredential{PrivateKey: k, Source: types.CredentialFromEnv}, nil
	}

	if lookup.SecretsFile != "" {
		k, err := readSecretsFile(lookup.SecretsFile)
		if err != nil {
			return types.SigningCredential{}, types.NewError(types.ErrConfigError, "failed to read secrets file", err).
				WithDetails("file", lookup.SecretsFile)
		}
		if k != "" {
			return types.SigningCredential{PrivateKey: k, Source: types.CredentialFromFile}, nil
		}
	}

	return types.SigningCredential{}, types.NewError(types.ErrCodeCredentialMissing, "cannot pay without a signing key", types.ErrCredentialMissing)
}

// readSecretsFile returns the key from a dotenv file, or "" if the file or
// key is absent.
func readSecretsFile(path string) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("dotenv")
	if err := v.ReadInConfig(); err != nil {
		return "", err
	}
	return strings.TrimSpace(v.GetString(EnvPrivateKey)), nil
}
