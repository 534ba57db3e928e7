package nameservice

import (
	"sort"

	"github.com/Cogwheel-Validator/spectra-send/recipient/address"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry"
	"github.com/btcsuite/btcutil/bech32"
)

// Outcome summarises name-service results for the active chain.
type Outcome int

const (
	OutcomePending Outcome = iota
	// OutcomeNoResults means no provider knows the name
	OutcomeNoResults
	// OutcomeNoResultsForChain means the name resolves, but only on chains
	// that do not apply to the active chain
	OutcomeNoResultsForChain
	OutcomeHasResults
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeNoResults:
		return "no_results"
	case OutcomeNoResultsForChain:
		return "no_results_for_chain"
	case OutcomeHasResults:
		return "has_results"
	default:
		return "unknown"
	}
}

// Candidate is one name-service result applicable to the active chain.
type Candidate struct {
	ProviderID string `json:"providerId"`
	ChainKey   string `json:"chainKey"`
	ChainID    string `json:"chainId,omitempty"`
	Address    string `json:"address"`
}

// Selected turns the candidate into the recipient of the send.
func (c Candidate) Selected(name string) models.SelectedAddress {
	return models.SelectedAddress{
		Address:       c.Address,
		ChainName:     c.ChainKey,
		Name:          name,
		SelectionType: models.SelectionNameService,
		Information: &models.AddressInformation{
			NameService: c.ProviderID,
			ChainID:     c.ChainID,
		},
	}
}

// Filter keeps the results that apply to the active chain. On EVM-only
// chains only entries resolving to that chain are kept; elsewhere hex
// addresses are suppressed. loading tells whether providers are still
// running.
func Filter(results map[string]Result, loading bool, active models.ChainInfo, chains *registry.Registry) ([]Candidate, Outcome) {
	var anyResult bool
	candidates := make([]Candidate, 0)
	seen := make(map[Candidate]struct{})

	add := func(c Candidate) {
		if _, dup := seen[c]; dup {
			return
		}
		seen[c] = struct{}{}
		candidates = append(candidates, c)
	}

	for providerID, result := range results {
		switch r := result.(type) {
		case Single:
			anyResult = true
			if c, ok := applicable(providerID, "", r.Address, active, chains); ok {
				add(c)
			}
		case MultiChain:
			anyResult = true
			for _, entry := range r.Entries {
				if c, ok := applicable(providerID, entry.ChainID, entry.Address, active, chains); ok {
					add(c)
				}
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ProviderID != b.ProviderID {
			return a.ProviderID < b.ProviderID
		}
		if a.ChainKey != b.ChainKey {
			return a.ChainKey < b.ChainKey
		}
		return a.Address < b.Address
	})

	switch {
	case len(candidates) > 0:
		return candidates, OutcomeHasResults
	case loading:
		return candidates, OutcomePending
	case anyResult:
		return candidates, OutcomeNoResultsForChain
	default:
		return candidates, OutcomeNoResults
	}
}

func applicable(providerID, chainID, addr string, active models.ChainInfo, chains *registry.Registry) (Candidate, bool) {
	c := Candidate{ProviderID: providerID, ChainID: chainID, Address: addr}

	var native bool
	switch {
	case active.EvmOnlyChain:
		native = address.IsEVMAddress(addr)
	case active.EcosystemOrDefault() == models.EcosystemSolana:
		native = address.IsSolanaAddress(addr)
	case active.EcosystemOrDefault() == models.EcosystemSui:
		native = address.IsSuiAddress(addr)
	case active.EcosystemOrDefault() == models.EcosystemAptos:
		native = address.IsAptosAddress(addr)
	case active.EcosystemOrDefault() == models.EcosystemBitcoin:
		native = address.IsBitcoinAddress(addr, address.BitcoinParams(active.BTCNetwork))
	default:
		return bech32Candidate(c, active, chains)
	}

	// non-cosmos chains only take entries for the active chain itself
	if !native {
		return c, false
	}
	if chainID != "" {
		key, ok := chains.ChainByID(chainID)
		if !ok || key != active.Key {
			return c, false
		}
	}
	c.ChainKey = active.Key
	if c.ChainID == "" {
		c.ChainID = active.ChainID
	}
	return c, true
}

func bech32Candidate(c Candidate, active models.ChainInfo, chains *registry.Registry) (Candidate, bool) {
	if address.HasHexPrefix(c.Address) {
		return c, false
	}

	if c.ChainID != "" {
		if key, ok := chains.ChainByID(c.ChainID); ok {
			chain, _ := chains.Chain(key)
			if !chain.IsCosmos() {
				return c, false
			}
			c.ChainKey = key
			return c, true
		}
	}

	prefix, _, err := bech32.Decode(c.Address)
	if err != nil {
		return c, false
	}
	keys := chains.ChainsForPrefix(prefix)
	switch {
	case len(keys) == 0:
		return c, false
	case len(keys) == 1:
		c.ChainKey = keys[0]
	default:
		// shared prefix: prefer the active chain, the chain resolver asks the
		// user otherwise
		c.ChainKey = keys[0]
		for _, key := range keys {
			if key == active.Key {
				c.ChainKey = key
				break
			}
		}
	}
	return c, true
}
