package address

import (
	"encoding/hex"
	"strings"

	"filippo.io/edwards25519"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/btcutil/bech32"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// Status is the outcome of classifying raw input.
type Status int

const (
	StatusEmpty Status = iota
	StatusValid
	// StatusMalformed means the text is not an address of the ecosystem
	StatusMalformed
	// StatusUnknownPrefix means a well-formed bech32 address whose prefix no
	// supported chain uses
	StatusUnknownPrefix
	// StatusNameCandidate means the text is not an address but may be a
	// name-service handle
	StatusNameCandidate
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusValid:
		return "valid"
	case StatusMalformed:
		return "malformed"
	case StatusUnknownPrefix:
		return "unknown_prefix"
	case StatusNameCandidate:
		return "name_candidate"
	default:
		return "unknown"
	}
}

// Classification is the result of Classify.
type Classification struct {
	Input     string
	Ecosystem models.Ecosystem
	Status    Status
	// Prefix is the decoded bech32 human-readable part
	Prefix string
	// ChainKeys are the chains the address can belong to: the chains
	// registered for the bech32 prefix, or the source chain for the other
	// ecosystems
	ChainKeys []string
}

// Valid reports whether the input is a syntactically valid address.
func (c Classification) Valid() bool {
	return c.Status == StatusValid
}

// Classifier determines which ecosystem raw input belongs to and whether it
// is a valid address there. It holds no mutable state.
type Classifier struct {
	chains    *registry.Registry
	nameCheck func(string) bool
}

// ClassifierOption configures the classifier.
type ClassifierOption func(*Classifier)

// WithNameCheck sets the predicate deciding whether undecodable input may be a
// name-service handle.
func WithNameCheck(check func(string) bool) ClassifierOption {
	return func(c *Classifier) {
		c.nameCheck = check
	}
}

// NewClassifier creates a classifier over the chain registry.
func NewClassifier(chains *registry.Registry, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		chains:    chains,
		nameCheck: func(string) bool { return false },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify classifies raw input for a send from sourceChain.
//
// Precedence follows the source chain type: Sui, then Aptos or EVM-only with
// 0x input, then Solana, then Bitcoin, and bech32 for everything else.
func (c *Classifier) Classify(raw string, sourceChain string) Classification {
	input := strings.TrimSpace(raw)
	source, _ := c.chains.Chain(sourceChain)
	result := Classification{Input: input, Ecosystem: source.EcosystemOrDefault()}
	if input == "" {
		result.Status = StatusEmpty
		return result
	}

	switch {
	case source.EcosystemOrDefault() == models.EcosystemSui:
		return c.sameChain(result, sourceChain, IsSuiAddress(input))
	case source.EcosystemOrDefault() == models.EcosystemAptos:
		return c.sameChain(result, sourceChain, IsAptosAddress(input))
	case source.EvmOnlyChain && HasHexPrefix(input):
		result.Ecosystem = models.EcosystemEVM
		return c.sameChain(result, sourceChain, IsEVMAddress(input))
	case source.EcosystemOrDefault() == models.EcosystemSolana:
		return c.sameChain(result, sourceChain, IsSolanaAddress(input))
	case source.EcosystemOrDefault() == models.EcosystemBitcoin:
		return c.sameChain(result, sourceChain, IsBitcoinAddress(input, BitcoinParams(source.BTCNetwork)))
	}

	result.Ecosystem = models.EcosystemCosmos
	prefix, _, err := bech32.Decode(input)
	if err != nil {
		if c.nameCheck(input) {
			result.Status = StatusNameCandidate
		} else {
			result.Status = StatusMalformed
		}
		return result
	}

	result.Prefix = prefix
	result.ChainKeys = c.chains.ChainsForPrefix(prefix)
	if len(result.ChainKeys) == 0 {
		result.Status = StatusUnknownPrefix
		return result
	}
	result.Status = StatusValid
	return result
}

func (c *Classifier) sameChain(result Classification, sourceChain string, valid bool) Classification {
	if !valid {
		if c.nameCheck(result.Input) {
			result.Status = StatusNameCandidate
		} else {
			result.Status = StatusMalformed
		}
		return result
	}
	result.Status = StatusValid
	result.ChainKeys = []string{sourceChain}
	return result
}

// HasHexPrefix reports whether s starts with 0x or 0X.
func HasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func decodeHex(s string) ([]byte, bool) {
	if HasHexPrefix(s) {
		s = s[2:]
	}
	if s == "" || len(s)%2 != 0 {
		return nil, false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, false
	}
	return b, true
}

// IsSuiAddress reports whether s is hex (0x optional) of exactly 32 bytes.
func IsSuiAddress(s string) bool {
	b, ok := decodeHex(s)
	return ok && len(b) == 32
}

// IsAptosAddress reports whether s is 0x-prefixed hex of exactly 32 bytes.
func IsAptosAddress(s string) bool {
	if !HasHexPrefix(s) {
		return false
	}
	b, ok := decodeHex(s)
	return ok && len(b) == 32
}

// IsEVMAddress reports whether s is a 0x-prefixed 20 byte hex address. The
// EIP-55 checksum is not enforced.
func IsEVMAddress(s string) bool {
	return HasHexPrefix(s) && ethcommon.IsHexAddress(s)
}

// IsSolanaAddress reports whether s is base58 of a 32 byte point lying on the
// Ed25519 curve.
func IsSolanaAddress(s string) bool {
	b, err := base58.Decode(s)
	if err != nil || len(b) != 32 {
		return false
	}
	if _, err := new(edwards25519.Point).SetBytes(b); err != nil {
		return false
	}
	return true
}

// BitcoinParams returns the network params for a bitcoin chain. Signet shares
// the testnet address encoding.
func BitcoinParams(network string) *chaincfg.Params {
	switch strings.ToLower(network) {
	case "testnet", "testnet3", "signet":
		return &chaincfg.TestNet3Params
	default:
		return &chaincfg.MainNetParams
	}
}

// IsBitcoinAddress reports whether s decodes as an address of the network.
func IsBitcoinAddress(s string, params *chaincfg.Params) bool {
	addr, err := btcutil.DecodeAddress(s, params)
	if err != nil {
		return false
	}
	return addr.IsForNet(params)
}
