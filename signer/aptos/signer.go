// Package aptos signs x402 "exact" payments on Aptos networks with an
// Ed25519 account key.
package aptos

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/davedumto/nex402/types"
	"github.com/davedumto/nex402/utils"
)

// keyPrefix is the AIP-80 prefix some wallets put in front of the hex key.
const keyPrefix = "ed25519-priv-"

// ed25519Scheme is the authentication-key scheme byte for single Ed25519 keys.
const ed25519Scheme = 0x00

const defaultTimeoutSeconds = 60

// Authorization is the transfer a payer authorizes for one option.
type Authorization struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	Asset       string `json:"asset,omitempty"`
	Network     string `json:"network"`
	Nonce       string `json:"nonce"`
	ValidBefore int64  `json:"validBefore"`
}

// Payload is the scheme-specific part of an Aptos payment.
type Payload struct {
	Authorization Authorization `json:"authorization"`
	PublicKey     string        `json:"publicKey"`
	Signature     string        `json:"signature"`
}

type Signer struct {
	key     ed25519.PrivateKey
	address string
	now     func() time.Time
}

// NewSigner builds a signer from a 32-byte hex seed, with or without 0x
// and the "ed25519-priv-" prefix.
func NewSigner(privateKeyHex string) (*Signer, error) {
	seed, err := utils.DecodeKeyHex(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), keyPrefix), ed25519.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidCredential, err)
	}

	key := ed25519.NewKeyFromSeed(seed)
	return &Signer{
		key:     key,
		address: AddressFromPublicKey(key.Public().(ed25519.PublicKey)),
		now:     time.Now,
	}, nil
}

// AddressFromPublicKey derives the account address: sha3-256(pubkey || 0x00).
func AddressFromPublicKey(pub ed25519.PublicKey) string {
	h := sha3.New256()
	h.Write(pub)
	h.Write([]byte{ed25519Scheme})
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

func (s *Signer) Family() types.ChainFamily {
	return types.ChainAptos
}

func (s *Signer) Address() string {
	return s.address
}

func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

func (s *Signer) CanSign(opt *types.PaymentOption) bool {
	return opt.Scheme == string(types.SchemeExact) && types.Network(opt.Network).IsAptos()
}

// Sign authorizes a transfer of the option's amount to its payTo address.
// The signature covers the compact JSON encoding of the Authorization.
func (s *Signer) Sign(opt *types.PaymentOption) (*types.PaymentPayload, error) {
	if !s.CanSign(opt) {
		return nil, types.ErrNoValidSigner
	}

	amount := opt.RawAtomicAmount
	if amount == "" {
		n, err := utils.ParseAmountWithDecimals(opt.PriceDecimal, opt.Decimals)
		if err != nil {
			return nil, fmt.Errorf("invalid price: %w", err)
		}
		amount = n.String()
	}

	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	timeout := opt.MaxTimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}

	auth := Authorization{
		From:        s.address,
		To:          opt.PayTo,
		Amount:      amount,
		Asset:       opt.Asset,
		Network:     opt.Network,
		Nonce:       "0x" + hex.EncodeToString(nonce[:]),
		ValidBefore: s.now().Unix() + int64(timeout),
	}

	msg, err := json.Marshal(auth)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal authorization: %w", err)
	}

	return &types.PaymentPayload{
		X402Version: int(types.X402Version2),
		Scheme:      opt.Scheme,
		Network:     opt.Network,
		Accepted:    *opt,
		Payload: Payload{
			Authorization: auth,
			PublicKey:     "0x" + hex.EncodeToString(s.PublicKey()),
			Signature:     "0x" + hex.EncodeToString(ed25519.Sign(s.key, msg)),
		},
	}, nil
}

// Verify checks a payload produced by Sign.
func Verify(p Payload) bool {
	pub, err := utils.DecodeKeyHex(p.PublicKey, ed25519.PublicKeySize)
	if err != nil {
		return false
	}
	sig, err := utils.DecodeKeyHex(p.Signature, ed25519.SignatureSize)
	if err != nil {
		return false
	}
	msg, err := json.Marshal(p.Authorization)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, msg, sig) &&
		AddressFromPublicKey(pub) == p.Authorization.From
}
