package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
)

// ValidationError contains details about a validation failure.
type ValidationError struct {
	Chain   string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Chain, e.Field, e.Message)
}

// SupportedEcosystems lists the address families the classifier understands.
var SupportedEcosystems = []models.Ecosystem{
	models.EcosystemCosmos,
	models.EcosystemEVM,
	models.EcosystemSolana,
	models.EcosystemSui,
	models.EcosystemAptos,
	models.EcosystemBitcoin,
}

var supportedBTCNetworks = []string{"", "mainnet", "testnet", "testnet3", "signet"}

// ValidateChains checks registry entries before they are indexed. Every
// problem is reported, joined into one error.
func ValidateChains(chains []models.ChainInfo) error {
	var errs []error
	add := func(chain, field, msg string) {
		errs = append(errs, &ValidationError{Chain: chain, Field: field, Message: msg})
	}

	for i, chain := range chains {
		name := chain.Key
		if name == "" {
			name = fmt.Sprintf("chains[%d]", i)
			add(name, "key", "is required")
		}
		if chain.ChainID == "" && chain.TestnetChainID == "" {
			add(name, "chain_id", "a mainnet or testnet chain id is required")
		}
		if chain.Ecosystem != "" && !slices.Contains(SupportedEcosystems, chain.Ecosystem) {
			add(name, "ecosystem", fmt.Sprintf("unsupported ecosystem %q", chain.Ecosystem))
		}
		if chain.EvmOnlyChain && chain.Ecosystem != "" && chain.Ecosystem != models.EcosystemEVM {
			add(name, "evm_only_chain", fmt.Sprintf("conflicts with ecosystem %q", chain.Ecosystem))
		}
		if chain.Bip44.CoinType < 0 {
			add(name, "bip44.coin_type", "must not be negative")
		}

		switch chain.EcosystemOrDefault() {
		case models.EcosystemCosmos:
			if chain.AddressPrefix == "" {
				add(name, "address_prefix", "is required for cosmos chains")
			} else if chain.AddressPrefix != strings.ToLower(chain.AddressPrefix) {
				add(name, "address_prefix", "must be lowercase")
			}
		case models.EcosystemBitcoin:
			if !slices.Contains(supportedBTCNetworks, strings.ToLower(chain.BTCNetwork)) {
				add(name, "btc_network", fmt.Sprintf("unsupported network %q", chain.BTCNetwork))
			}
		}
	}
	return errors.Join(errs...)
}
