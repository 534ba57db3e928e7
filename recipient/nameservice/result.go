package nameservice

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Result is what a provider resolved a name to: Single or MultiChain. A nil
// Result means the provider has nothing for the name.
type Result interface {
	isResult()
}

// Single is a name mapped to one address.
type Single struct {
	Address string
}

// MultiChain is a name mapped to an address per chain.
type MultiChain struct {
	Entries []Entry
}

// Entry is one chain address of a multi-chain name.
type Entry struct {
	ChainID string `json:"chain_id"`
	Address string `json:"address"`
}

func (Single) isResult()     {}
func (MultiChain) isResult() {}

type responseBody struct {
	Address   string  `json:"address"`
	Addresses []Entry `json:"addresses"`
}

// DecodeResult turns a provider response into a Result. Accepted shapes are a
// JSON string, an array of {chain_id, address}, or an object carrying either
// "address" or "addresses". Empty values decode to a nil Result.
func DecodeResult(body []byte) (Result, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	switch trimmed[0] {
	case '"':
		var address string
		if err := json.Unmarshal(body, &address); err != nil {
			return nil, fmt.Errorf("failed to decode address: %w", err)
		}
		return single(address), nil
	case '[':
		var entries []Entry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode addresses: %w", err)
		}
		return multiChain(entries), nil
	case '{':
		var resp responseBody
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		if len(resp.Addresses) > 0 {
			return multiChain(resp.Addresses), nil
		}
		return single(resp.Address), nil
	default:
		return nil, fmt.Errorf("unexpected response: %.32s", trimmed)
	}
}

func single(address string) Result {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil
	}
	return Single{Address: address}
}

func multiChain(entries []Entry) Result {
	kept := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Address == "" {
			continue
		}
		kept = append(kept, entry)
	}
	if len(kept) == 0 {
		return nil
	}
	return MultiChain{Entries: kept}
}
