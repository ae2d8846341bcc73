// Package evm signs x402 "exact" payments on EVM chains with EIP-3009
// transferWithAuthorization.
package evm

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/utils"
	"github.com/davedumto/nex402/utils/eip712"
)

// Authorization lifetime used when the option has no maxTimeoutSeconds.
const defaultTimeoutSeconds = 60

// Token domain used when the option does not name one in its extra fields.
const (
	DefaultTokenName    = "USD Coin"
	DefaultTokenVersion = "2"
)

// EVMAuthorization is the EIP-3009 authorization in its wire form.
type EVMAuthorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
}

// EVMPayload is the scheme-specific part of an EVM payment.
type EVMPayload struct {
	Signature     string           `json:"signature"`
	Authorization EVMAuthorization `json:"authorization"`
}

type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	now        func() time.Time
}

// NewSigner builds a signer from a hex secp256k1 key, with or without 0x.
func NewSigner(privateKeyHex string) (*Signer, error) {
	key, err := utils.PrivateKeyFromHex(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidCredential, err)
	}
	return NewSignerFromKey(key), nil
}

func NewSignerFromKey(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		privateKey: key,
		address:    utils.AddressFromPrivateKey(key),
		now:        time.Now,
	}
}

func (s *Signer) Family() types.ChainFamily {
	return types.ChainEVM
}

func (s *Signer) Address() string {
	return s.address.Hex()
}

// CanSign requires an exact-scheme option on an eip155 network whose asset
// is a token contract address.
func (s *Signer) CanSign(opt *types.PaymentOption) bool {
	if opt.Scheme != string(types.SchemeExact) {
		return false
	}
	if _, err := ChainID(types.Network(opt.Network)); err != nil {
		return false
	}
	return common.IsHexAddress(opt.Asset)
}

func (s *Signer) Sign(opt *types.PaymentOption) (*types.PaymentPayload, error) {
	if !s.CanSign(opt) {
		return nil, types.ErrNoValidSigner
	}

	chainID, err := ChainID(types.Network(opt.Network))
	if err != nil {
		return nil, err
	}

	value, ok := new(big.Int).SetString(opt.RawAtomicAmount, 10)
	if !ok {
		value, err = utils.ParseAmountWithDecimals(opt.PriceDecimal, opt.Decimals)
		if err != nil {
			return nil, fmt.Errorf("invalid amount: %w", err)
		}
	}

	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	timeout := opt.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}

	now := s.now().Unix()
	auth := eip712.Authorization{
		From:        s.address,
		To:          common.HexToAddress(opt.PayTo),
		Value:       value,
		ValidAfter:  big.NewInt(now - 10),
		ValidBefore: big.NewInt(now + int64(timeout)),
		Nonce:       nonce,
	}

	name, version := domainParams(opt)
	digest, err := eip712.TransferWithAuthorizationDigest(eip712.Domain{
		Name:              name,
		Version:           version,
		ChainID:           chainID,
		VerifyingContract: common.HexToAddress(opt.Asset),
	}, auth)
	if err != nil {
		return nil, err
	}

	signature, err := utils.SignHash(digest.Bytes(), s.privateKey)
	if err != nil {
		return nil, err
	}

	return &types.PaymentPayload{
		X402Version: int(types.X402Version2),
		Scheme:      opt.Scheme,
		Network:     opt.Network,
		Accepted:    *opt,
		Payload: EVMPayload{
			Signature: signature,
			Authorization: EVMAuthorization{
				From:        auth.From.Hex(),
				To:          auth.To.Hex(),
				Value:       auth.Value.String(),
				ValidAfter:  auth.ValidAfter.String(),
				ValidBefore: auth.ValidBefore.String(),
				Nonce:       common.BytesToHash(auth.Nonce[:]).Hex(),
			},
		},
	}, nil
}

// ChainID parses the chain id out of an eip155 CAIP-2 network. v1 names
// like "base-sepolia" are mapped to their CAIP-2 form first.
func ChainID(network types.Network) (*big.Int, error) {
	network = network.Canonical()
	if !network.IsEVM() {
		return nil, fmt.Errorf("network %q is not an eip155 network", network)
	}
	_, ref, _ := strings.Cut(string(network), ":")
	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("network %q has no valid chain id", network)
	}
	return big.NewInt(id), nil
}

func domainParams(opt *types.PaymentOption) (name, version string) {
	name, version = DefaultTokenName, DefaultTokenVersion
	if v, ok := opt.Extra["name"].(string); ok && v != "" {
		name = v
	}
	if v, ok := opt.Extra["version"].(string); ok && v != "" {
		version = v
	}
	return name, version
}
