package models

import "slices"

// Network is the wallet-wide network mode.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// Ecosystem is the address family a chain belongs to.
type Ecosystem string

const (
	EcosystemCosmos  Ecosystem = "cosmos"
	EcosystemEVM     Ecosystem = "evm"
	EcosystemSolana  Ecosystem = "solana"
	EcosystemSui     Ecosystem = "sui"
	EcosystemAptos   Ecosystem = "aptos"
	EcosystemBitcoin Ecosystem = "bitcoin"
)

// FeatureEVM marks cosmos chains whose accounts also have an 0x representation
// (ethsecp256k1 keys, e.g. Evmos, Injective, Dymension).
const FeatureEVM = "evm"

// Bip44 holds the SLIP-44 coin type of a chain.
type Bip44 struct {
	CoinType int `json:"coinType" toml:"coin_type"`
}

// ChainInfo is one entry of the chain registry provided by the host app.
type ChainInfo struct {
	// Key is the wallet-internal chain identifier (e.g. "cosmos", "osmosis")
	Key string `json:"key" toml:"key"`
	// Human-readable name (e.g. "Cosmos Hub")
	ChainName string `json:"chainName" toml:"chain_name"`
	// Mainnet chain ID (e.g. "cosmoshub-4")
	ChainID string `json:"chainId" toml:"chain_id"`
	// Testnet chain ID, empty when the chain has no testnet deployment
	TestnetChainID string `json:"testnetChainId" toml:"testnet_chain_id"`
	// Bech32 account prefix for cosmos chains (e.g. "osmo")
	AddressPrefix string `json:"addressPrefix" toml:"address_prefix"`
	Bip44         Bip44  `json:"bip44" toml:"bip44"`
	// EvmOnlyChain is true when the native address format is 0x hex
	EvmOnlyChain bool      `json:"evmOnlyChain" toml:"evm_only_chain"`
	Ecosystem    Ecosystem `json:"ecosystem" toml:"ecosystem"`
	// EnabledFeatures mirrors the keplr "features" list
	EnabledFeatures []string `json:"enabledFeatures" toml:"enabled_features"`
	// RegistryName is the directory name in github.com/cosmos/chain-registry
	RegistryName string `json:"registryName" toml:"registry_name"`
	// Family groups chains sharing a prefix convention (e.g. "initia" minitias)
	Family string `json:"family,omitempty" toml:"family,omitempty"`
	// BTCNetwork is mainnet, testnet or signet for bitcoin chains
	BTCNetwork string `json:"btcNetwork,omitempty" toml:"btc_network,omitempty"`
	Disabled   bool   `json:"disabled,omitempty" toml:"disabled,omitempty"`
}

// EcosystemOrDefault returns the chain ecosystem, treating an unset value as
// cosmos unless the chain is EVM-only.
func (c ChainInfo) EcosystemOrDefault() Ecosystem {
	if c.Ecosystem != "" {
		return c.Ecosystem
	}
	if c.EvmOnlyChain {
		return EcosystemEVM
	}
	return EcosystemCosmos
}

// IsCosmos reports whether the chain is a bech32 cosmos-sdk chain that can
// take part in IBC transfers.
func (c ChainInfo) IsCosmos() bool {
	return c.EcosystemOrDefault() == EcosystemCosmos && !c.EvmOnlyChain
}

// HasFeature reports whether the feature is enabled on the chain.
func (c ChainInfo) HasFeature(feature string) bool {
	return slices.Contains(c.EnabledFeatures, feature)
}

// AvailableOn reports whether the chain can be used under the network mode.
// A chain whose testnet id equals its mainnet id only exists on testnet; a
// chain without testnet id only exists on mainnet.
func (c ChainInfo) AvailableOn(network Network) bool {
	if c.Disabled {
		return false
	}
	switch network {
	case NetworkTestnet:
		return c.TestnetChainID != ""
	default:
		return c.TestnetChainID == "" || c.TestnetChainID != c.ChainID
	}
}

// ChainIDFor returns the chain id used under the network mode.
func (c ChainInfo) ChainIDFor(network Network) string {
	if network == NetworkTestnet {
		return c.TestnetChainID
	}
	return c.ChainID
}
