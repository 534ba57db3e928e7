package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
)

// KeplrChainConfig is the subset of a chainapsis keplr-chain-registry entry
// the chain index needs.
type KeplrChainConfig struct {
	ChainID      string       `json:"chainId"`
	ChainName    string       `json:"chainName"`
	Bip44        models.Bip44 `json:"bip44"`
	Bech32Config Bech32Config `json:"bech32Config"`
	Features     []string     `json:"features"`
}

type Bech32Config struct {
	Bech32PrefixAccAddr string `json:"bech32PrefixAccAddr"`
}

// FromKeplr converts a keplr entry into a cosmos chain registry entry. The
// chain key is the chain id without its revision suffix ("osmosis-1" ->
// "osmosis").
func FromKeplr(cfg KeplrChainConfig) models.ChainInfo {
	key := cfg.ChainID
	if idx := strings.LastIndex(key, "-"); idx > 0 {
		key = key[:idx]
	}
	chain := models.ChainInfo{
		Key:             key,
		ChainName:       cfg.ChainName,
		ChainID:         cfg.ChainID,
		AddressPrefix:   cfg.Bech32Config.Bech32PrefixAccAddr,
		Bip44:           cfg.Bip44,
		Ecosystem:       models.EcosystemCosmos,
		EnabledFeatures: slices.Clone(cfg.Features),
		RegistryName:    key,
	}
	for _, feature := range cfg.Features {
		if feature == "eth-address-gen" || feature == "eth-key-sign" {
			chain.EnabledFeatures = append(chain.EnabledFeatures, models.FeatureEVM)
			break
		}
	}
	return chain
}

// LoadKeplrFiles reads keplr chain configs from dir and converts them.
func LoadKeplrFiles(dir string, fileNames []string) ([]models.ChainInfo, error) {
	chains := make([]models.ChainInfo, 0, len(fileNames))
	for _, name := range fileNames {
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		var cfg KeplrChainConfig
		if err := json.Unmarshal(body, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", name, err)
		}
		chains = append(chains, FromKeplr(cfg))
	}
	return chains, nil
}
