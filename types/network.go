package types

import "strings"

// ChainFamily classifies a network into a blockchain family.
type ChainFamily string

const (
	ChainAptos   ChainFamily = "aptos"
	ChainEVM     ChainFamily = "evm"
	ChainSolana  ChainFamily = "solana"
	ChainUnknown ChainFamily = "unknown"
)

// Network is a network identifier as it appears in payment options,
// e.g. "aptos:2" or "eip155:84532".
type Network string

const (
	NetworkAptosMainnet Network = "aptos:1"
	NetworkAptosTestnet Network = "aptos:2"

	NetworkBase          Network = "eip155:8453"
	NetworkBaseSepolia   Network = "eip155:84532"
	NetworkEthereum      Network = "eip155:1"
	NetworkSepolia       Network = "eip155:11155111"
	NetworkPolygon       Network = "eip155:137"
	NetworkPolygonAmoy   Network = "eip155:80002"
	NetworkAvalanche     Network = "eip155:43114"
	NetworkAvalancheFuji Network = "eip155:43113"

	NetworkSolanaMainnet Network = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	NetworkSolanaDevnet  Network = "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1"
)

type networkInfo struct {
	label    string
	testnet  bool
	explorer string // %s is replaced by the transaction id
}

var knownNetworks = map[Network]networkInfo{
	NetworkAptosMainnet:  {"Aptos Mainnet", false, "https://explorer.aptoslabs.com/txn/%s?network=mainnet"},
	NetworkAptosTestnet:  {"Aptos Testnet", true, "https://explorer.aptoslabs.com/txn/%s?network=testnet"},
	NetworkBase:          {"Base", false, "https://basescan.org/tx/%s"},
	NetworkBaseSepolia:   {"Base Sepolia", true, "https://sepolia.basescan.org/tx/%s"},
	NetworkEthereum:      {"Ethereum", false, "https://etherscan.io/tx/%s"},
	NetworkSepolia:       {"Sepolia", true, "https://sepolia.etherscan.io/tx/%s"},
	NetworkPolygon:       {"Polygon", false, "https://polygonscan.com/tx/%s"},
	NetworkPolygonAmoy:   {"Polygon Amoy", true, "https://amoy.polygonscan.com/tx/%s"},
	NetworkAvalanche:     {"Avalanche", false, "https://snowtrace.io/tx/%s"},
	NetworkAvalancheFuji: {"Avalanche Fuji", true, "https://testnet.snowtrace.io/tx/%s"},
	NetworkSolanaMainnet: {"Solana", false, "https://solscan.io/tx/%s"},
	NetworkSolanaDevnet:  {"Solana Devnet", true, "https://solscan.io/tx/%s?cluster=devnet"},
}

// x402 v1 servers name networks instead of using CAIP-2 identifiers.
var legacyNames = map[Network]Network{
	"aptos":          NetworkAptosMainnet,
	"aptos-testnet":  NetworkAptosTestnet,
	"base":           NetworkBase,
	"base-sepolia":   NetworkBaseSepolia,
	"ethereum":       NetworkEthereum,
	"sepolia":        NetworkSepolia,
	"polygon":        NetworkPolygon,
	"polygon-amoy":   NetworkPolygonAmoy,
	"avalanche":      NetworkAvalanche,
	"avalanche-fuji": NetworkAvalancheFuji,
	"solana":         NetworkSolanaMainnet,
	"solana-devnet":  NetworkSolanaDevnet,
}

// Canonical maps a v1 network name such as "base-sepolia" to its CAIP-2
// identifier. Other values are returned unchanged.
func (n Network) Canonical() Network {
	if c, ok := legacyNames[Network(strings.ToLower(string(n)))]; ok {
		return c
	}
	return n
}

// Label returns a human label for known networks and the identifier itself otherwise.
func (n Network) Label() string {
	if info, ok := knownNetworks[n.Canonical()]; ok {
		return info.label
	}
	return string(n)
}

// ExplorerTemplate returns a block-explorer URL template with one %s verb.
// Unknown networks fall back to the Aptos testnet explorer.
func (n Network) ExplorerTemplate() string {
	if info, ok := knownNetworks[n.Canonical()]; ok {
		return info.explorer
	}
	return knownNetworks[NetworkAptosTestnet].explorer
}

// Family classifies the network by its CAIP-2 namespace.
func (n Network) Family() ChainFamily {
	ns, _, _ := strings.Cut(string(n.Canonical()), ":")
	switch ns {
	case "aptos":
		return ChainAptos
	case "eip155":
		return ChainEVM
	case "solana":
		return ChainSolana
	default:
		return ChainUnknown
	}
}

func (n Network) IsAptos() bool {
	return n.Family() == ChainAptos
}

func (n Network) IsEVM() bool {
	return n.Family() == ChainEVM
}

func (n Network) IsTestnet() bool {
	return knownNetworks[n.Canonical()].testnet
}

func (n Network) String() string {
	return string(n)
}
