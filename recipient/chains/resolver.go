package chains

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/Cogwheel-Validator/spectra-send/recipient/address"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry"
)

var (
	// ErrInvalidAddress is returned for input that is not a valid address
	ErrInvalidAddress = errors.New("invalid address")
	// ErrUnsupportedChain is returned when no enabled chain matches the address
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrInvalidOverride is returned when a manual pick is not a candidate
	ErrInvalidOverride = errors.New("chain is not a candidate for the address")
)

// Resolution is the destination chain of an address.
type Resolution struct {
	// ChainKey is empty while disambiguation is needed
	ChainKey string
	// Candidates are the enabled chains the address can belong to, the source
	// chain first and then by key
	Candidates          []string
	NeedsDisambiguation bool
}

// Resolver maps a validated address to a supported chain.
type Resolver struct {
	chains     *registry.Registry
	classifier *address.Classifier
	network    models.Network

	mu          sync.Mutex
	overrideFor string // address the cached override belongs to
	override    string
}

// NewResolver creates a resolver for the network mode.
func NewResolver(chains *registry.Registry, classifier *address.Classifier, network models.Network) *Resolver {
	return &Resolver{
		chains:     chains,
		classifier: classifier,
		network:    network,
	}
}

// Network returns the network mode the resolver filters on.
func (r *Resolver) Network() models.Network {
	return r.network
}

// SetNetwork switches the network mode and drops the cached override.
func (r *Resolver) SetNetwork(network models.Network) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.network = network
	r.overrideFor, r.override = "", ""
}

// ResolveChain returns the destination chain of addr when sent from
// sourceChain. A shared bech32 prefix with more than one enabled chain needs
// disambiguation unless manualOverride (or an earlier override for the same
// address) names one of the candidates.
func (r *Resolver) ResolveChain(addr string, sourceChain string, manualOverride string) (Resolution, error) {
	classification := r.classifier.Classify(addr, sourceChain)
	switch classification.Status {
	case address.StatusValid:
	case address.StatusUnknownPrefix:
		return Resolution{}, fmt.Errorf("%w: prefix %s", ErrUnsupportedChain, classification.Prefix)
	default:
		return Resolution{}, fmt.Errorf("%w: %s", ErrInvalidAddress, classification.Status)
	}

	candidates := r.Candidates(classification.ChainKeys, sourceChain)
	if len(candidates) == 0 {
		return Resolution{}, fmt.Errorf("%w: no chain enabled on %s", ErrUnsupportedChain, r.network)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.overrideFor != classification.Input {
		r.overrideFor, r.override = classification.Input, ""
	}
	if manualOverride != "" {
		if !slices.Contains(candidates, manualOverride) {
			return Resolution{Candidates: candidates, NeedsDisambiguation: len(candidates) > 1},
				fmt.Errorf("%w: %s", ErrInvalidOverride, manualOverride)
		}
		r.override = manualOverride
	}

	switch {
	case r.override != "" && slices.Contains(candidates, r.override):
		return Resolution{ChainKey: r.override, Candidates: candidates}, nil
	case len(candidates) == 1:
		return Resolution{ChainKey: candidates[0], Candidates: candidates}, nil
	default:
		return Resolution{Candidates: candidates, NeedsDisambiguation: true}, nil
	}
}

// Candidates filters chain keys to those enabled on the network and orders
// them with the source chain first and the rest by key.
func (r *Resolver) Candidates(keys []string, sourceChain string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		chain, ok := r.chains.Chain(key)
		if !ok || !chain.AvailableOn(r.network) {
			continue
		}
		out = append(out, key)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i] == sourceChain || out[j] == sourceChain {
			return out[i] == sourceChain && out[j] != sourceChain
		}
		return out[i] < out[j]
	})
	return out
}

// IsIBCTransfer reports whether a send between the chains crosses chains over
// IBC: they differ and both are cosmos chains.
func IsIBCTransfer(chains *registry.Registry, source, destination string) bool {
	if source == "" || destination == "" || source == destination {
		return false
	}
	src, ok := chains.Chain(source)
	if !ok {
		return false
	}
	dst, ok := chains.Chain(destination)
	if !ok {
		return false
	}
	return src.IsCosmos() && dst.IsCosmos()
}
