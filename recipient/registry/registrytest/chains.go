// Package registrytest provides a small chain registry for tests.
package registrytest

import (
	"testing"

	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry"
)

// Chains returns a registry covering every supported ecosystem, plus three
// initia-family chains sharing the "init" prefix:
//   - initia exists on mainnet and testnet
//   - echelon exists on mainnet only
//   - minimove exists on testnet only (testnet id equals mainnet id)
func Chains() []models.ChainInfo {
	return []models.ChainInfo{
		{
			Key: "cosmos", ChainName: "Cosmos Hub", ChainID: "cosmoshub-4", TestnetChainID: "theta-testnet-001",
			AddressPrefix: "cosmos", Bip44: models.Bip44{CoinType: 118}, RegistryName: "cosmoshub",
		},
		{
			Key: "osmosis", ChainName: "Osmosis", ChainID: "osmosis-1", TestnetChainID: "osmo-test-5",
			AddressPrefix: "osmo", Bip44: models.Bip44{CoinType: 118}, RegistryName: "osmosis",
		},
		{
			Key: "juno", ChainName: "Juno", ChainID: "juno-1",
			AddressPrefix: "juno", Bip44: models.Bip44{CoinType: 118}, RegistryName: "juno",
		},
		{
			Key: "evmos", ChainName: "Evmos", ChainID: "evmos_9001-2", TestnetChainID: "evmos_9000-4",
			AddressPrefix: "evmos", Bip44: models.Bip44{CoinType: 60}, RegistryName: "evmos",
			EnabledFeatures: []string{models.FeatureEVM},
		},
		{
			Key: "initia", ChainName: "Initia", ChainID: "interwoven-1", TestnetChainID: "initiation-2",
			AddressPrefix: "init", Bip44: models.Bip44{CoinType: 60}, RegistryName: "initia", Family: "initia",
		},
		{
			Key: "echelon", ChainName: "Echelon", ChainID: "echelon-1",
			AddressPrefix: "init", Bip44: models.Bip44{CoinType: 60}, RegistryName: "echelon", Family: "initia",
		},
		{
			Key: "minimove", ChainName: "Minimove", ChainID: "minimove-1", TestnetChainID: "minimove-1",
			AddressPrefix: "init", Bip44: models.Bip44{CoinType: 60}, RegistryName: "minimove", Family: "initia",
		},
		{
			Key: "ethereum", ChainName: "Ethereum", ChainID: "1", TestnetChainID: "11155111",
			Bip44: models.Bip44{CoinType: 60}, EvmOnlyChain: true, Ecosystem: models.EcosystemEVM,
		},
		{
			Key: "solana", ChainName: "Solana", ChainID: "solana", TestnetChainID: "solana-devnet",
			Bip44: models.Bip44{CoinType: 501}, Ecosystem: models.EcosystemSolana,
		},
		{
			Key: "sui", ChainName: "Sui", ChainID: "sui", TestnetChainID: "sui-testnet",
			Bip44: models.Bip44{CoinType: 784}, Ecosystem: models.EcosystemSui,
		},
		{
			Key: "aptos", ChainName: "Aptos", ChainID: "aptos", TestnetChainID: "aptos-testnet",
			Bip44: models.Bip44{CoinType: 637}, Ecosystem: models.EcosystemAptos,
		},
		{
			Key: "bitcoin", ChainName: "Bitcoin", ChainID: "bitcoin",
			Bip44: models.Bip44{CoinType: 0}, Ecosystem: models.EcosystemBitcoin, BTCNetwork: "mainnet",
		},
		{
			Key: "bitcoinSignet", ChainName: "Bitcoin Signet", ChainID: "signet", TestnetChainID: "signet",
			Bip44: models.Bip44{CoinType: 1}, Ecosystem: models.EcosystemBitcoin, BTCNetwork: "signet",
		},
	}
}

// New builds the test registry and fails the test on error.
func New(t testing.TB) *registry.Registry {
	t.Helper()
	reg, err := registry.New(Chains())
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return reg
}
