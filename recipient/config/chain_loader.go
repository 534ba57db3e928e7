package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry"
	"github.com/pelletier/go-toml/v2"
)

// ChainsFile is the on-disk chain registry.
type ChainsFile struct {
	Chains []models.ChainInfo `json:"chains" toml:"chains"`
}

// LoadChains loads the chain registry. path is a TOML or JSON file with a
// `chains` list, or a directory of keplr chain config JSON files.
func LoadChains(path string) (*registry.Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat chain config: %w", err)
	}

	var chains []models.ChainInfo
	if info.IsDir() {
		chains, err = loadKeplrDir(path)
	} else {
		chains, err = loadChainsFile(path)
	}
	if err != nil {
		return nil, err
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("no chains in config")
	}
	if err := ValidateChains(chains); err != nil {
		return nil, fmt.Errorf("invalid chain config: %w", err)
	}

	reg, err := registry.New(chains)
	if err != nil {
		return nil, fmt.Errorf("failed to build chain registry: %w", err)
	}
	return reg, nil
}

func loadChainsFile(path string) ([]models.ChainInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain config file: %w", err)
	}

	var file ChainsFile
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	} else {
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse TOML config: %w", err)
		}
	}
	return file.Chains, nil
}

func loadKeplrDir(dir string) ([]models.ChainInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read keplr directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return registry.LoadKeplrFiles(dir, names)
}
