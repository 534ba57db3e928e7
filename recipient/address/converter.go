package address

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/btcsuite/btcutil/bech32"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// AddressConverter handles bech32 address conversions between different chains
type AddressConverter struct {
	// chainPrefixes maps chain keys to their bech32 prefixes
	chainPrefixes map[string]string
}

// NewAddressConverter creates a new address converter with the given chain prefix mappings
func NewAddressConverter(chains []models.ChainInfo) *AddressConverter {
	prefixes := make(map[string]string)
	for _, chain := range chains {
		if chain.AddressPrefix != "" && chain.IsCosmos() {
			prefixes[chain.Key] = chain.AddressPrefix
		}
	}
	return &AddressConverter{chainPrefixes: prefixes}
}

// ConvertAddress converts an address from one bech32 prefix to another.
// This is how the same account's address on a different chain is derived.
func (c *AddressConverter) ConvertAddress(address string, targetChain string) (string, error) {
	targetPrefix, ok := c.chainPrefixes[targetChain]
	if !ok {
		return "", fmt.Errorf("unknown chain: %s", targetChain)
	}

	return ConvertBech32Address(address, targetPrefix)
}

// GetPrefix returns the bech32 prefix for a chain
func (c *AddressConverter) GetPrefix(chain string) (string, bool) {
	prefix, ok := c.chainPrefixes[chain]
	return prefix, ok
}

// ConvertBech32Address converts a bech32 address to a new prefix
func ConvertBech32Address(address string, targetPrefix string) (string, error) {
	// Decode the original address
	_, data, err := bech32.Decode(address)
	if err != nil {
		return "", fmt.Errorf("failed to decode address: %w", err)
	}

	// Encode with the new prefix
	converted, err := bech32.Encode(targetPrefix, data)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %w", err)
	}

	return converted, nil
}

// Bech32ToHex returns the 0x form of a bech32 account address, as used by
// chains with an EVM representation of the same account.
func Bech32ToHex(address string) (string, error) {
	_, data, err := bech32.Decode(address)
	if err != nil {
		return "", fmt.Errorf("failed to decode address: %w", err)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	if len(raw) != ethcommon.AddressLength {
		return "", fmt.Errorf("address has %d bytes, want %d", len(raw), ethcommon.AddressLength)
	}
	return ethcommon.BytesToAddress(raw).Hex(), nil
}

// HexToBech32 encodes a 0x address with the bech32 prefix.
func HexToBech32(hexAddress string, prefix string) (string, error) {
	if !IsEVMAddress(hexAddress) {
		return "", fmt.Errorf("invalid hex address: %s", hexAddress)
	}
	raw, err := hex.DecodeString(strings.ToLower(hexAddress[2:]))
	if err != nil {
		return "", fmt.Errorf("failed to decode hex address: %w", err)
	}
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert address bits: %w", err)
	}
	encoded, err := bech32.Encode(prefix, data)
	if err != nil {
		return "", fmt.Errorf("failed to encode address: %w", err)
	}
	return encoded, nil
}
