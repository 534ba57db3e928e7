package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
)

// Registry is the read-only chain index the recipient resolution works on.
type Registry struct {
	chains        map[string]models.ChainInfo // chain key -> chain
	prefixToChain map[string][]string         // bech32 prefix -> chain keys (sorted)
	chainIDToKey  map[string]string           // mainnet or testnet chain id -> chain key
	keys          []string
}

// New builds the chain index from the registry entries.
func New(chains []models.ChainInfo) (*Registry, error) {
	if len(chains) == 0 {
		return nil, fmt.Errorf("no chains to build registry for")
	}

	r := &Registry{
		chains:        make(map[string]models.ChainInfo, len(chains)),
		prefixToChain: make(map[string][]string),
		chainIDToKey:  make(map[string]string),
		keys:          make([]string, 0, len(chains)),
	}

	for _, chain := range chains {
		if chain.Key == "" {
			return nil, fmt.Errorf("chain %q has no key", chain.ChainName)
		}
		if _, exists := r.chains[chain.Key]; exists {
			return nil, fmt.Errorf("duplicate chain key %s", chain.Key)
		}
		r.chains[chain.Key] = chain
		r.keys = append(r.keys, chain.Key)

		if chain.AddressPrefix != "" && chain.IsCosmos() {
			prefix := strings.ToLower(chain.AddressPrefix)
			r.prefixToChain[prefix] = append(r.prefixToChain[prefix], chain.Key)
		}
		if chain.ChainID != "" {
			r.chainIDToKey[chain.ChainID] = chain.Key
		}
		if chain.TestnetChainID != "" {
			r.chainIDToKey[chain.TestnetChainID] = chain.Key
		}
	}

	for prefix := range r.prefixToChain {
		sort.Strings(r.prefixToChain[prefix])
	}
	sort.Strings(r.keys)

	return r, nil
}

// Chain returns the registry entry for a chain key.
func (r *Registry) Chain(key string) (models.ChainInfo, bool) {
	chain, ok := r.chains[key]
	return chain, ok
}

// MustChain returns the chain or an error naming the unknown key.
func (r *Registry) MustChain(key string) (models.ChainInfo, error) {
	chain, ok := r.chains[key]
	if !ok {
		return models.ChainInfo{}, fmt.Errorf("unknown chain: %s", key)
	}
	return chain, nil
}

// ChainsForPrefix returns the chain keys registered for a bech32 prefix.
func (r *Registry) ChainsForPrefix(prefix string) []string {
	keys := r.prefixToChain[strings.ToLower(prefix)]
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// ChainByID maps a mainnet or testnet chain id to the chain key.
func (r *Registry) ChainByID(chainID string) (string, bool) {
	key, ok := r.chainIDToKey[chainID]
	return key, ok
}

// Prefixes returns all known bech32 prefixes.
func (r *Registry) Prefixes() []string {
	prefixes := make([]string, 0, len(r.prefixToChain))
	for prefix := range r.prefixToChain {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}

// Keys returns every chain key, sorted.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}
