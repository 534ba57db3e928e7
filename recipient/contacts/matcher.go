package contacts

import (
	"encoding/base64"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/Cogwheel-Validator/spectra-send/recipient/address"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry"
	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sahilm/fuzzy"
)

// Candidate is a local match for the typed input.
type Candidate struct {
	Selected models.SelectedAddress `json:"selected"`
	// IsOwnAddress is set when the address is the active wallet's own address
	// on the active chain
	IsOwnAddress bool `json:"isOwnAddress,omitempty"`
	Score        int  `json:"score"`
}

// Matcher searches saved contacts and the user's wallets.
type Matcher struct {
	chains    *registry.Registry
	converter *address.AddressConverter
	contacts  ContactStore
	wallets   WalletList
}

// NewMatcher creates a matcher. contacts and wallets may be nil.
func NewMatcher(chains *registry.Registry, contacts ContactStore, wallets WalletList) *Matcher {
	infos := make([]models.ChainInfo, 0)
	for _, key := range chains.Keys() {
		chain, _ := chains.Chain(key)
		infos = append(infos, chain)
	}
	return &Matcher{
		chains:    chains,
		converter: address.NewAddressConverter(infos),
		contacts:  contacts,
		wallets:   wallets,
	}
}

// Match returns at most one exact self-wallet candidate followed by the
// contacts whose name or address contains the input, best match first.
func (m *Matcher) Match(raw string, activeChain string) []Candidate {
	input := strings.TrimSpace(raw)
	if input == "" {
		return nil
	}

	var out []Candidate
	if self, ok := m.matchWallet(input, activeChain); ok {
		out = append(out, self)
	}
	return append(out, m.matchContacts(input)...)
}

// IsOwnAddress reports whether addr is the active wallet's address on the
// chain.
func (m *Matcher) IsOwnAddress(addr string, chainKey string) bool {
	active, ok := ActiveWallet(m.wallets)
	if !ok {
		return false
	}
	for _, known := range m.walletAddresses(active)[chainKey] {
		if sameAddress(known, addr) {
			return true
		}
	}
	return false
}

func (m *Matcher) matchWallet(input, activeChain string) (Candidate, bool) {
	if m.wallets == nil {
		return Candidate{}, false
	}
	activeID := m.wallets.ActiveWalletID()

	wallets := append([]Wallet(nil), m.wallets.Wallets()...)
	sort.SliceStable(wallets, func(i, j int) bool {
		return wallets[i].ID == activeID && wallets[j].ID != activeID
	})

	for _, wallet := range wallets {
		byChain := m.walletAddresses(wallet)
		chainKey, ok := matchingChain(byChain, input, activeChain)
		if !ok {
			continue
		}
		selected := models.SelectedAddress{
			Address:       input,
			ChainName:     chainKey,
			Name:          wallet.Name,
			SelectionType: models.SelectionCurrentWallet,
		}
		if chain, ok := m.chains.Chain(chainKey); ok && chain.HasFeature(models.FeatureEVM) {
			if eth, err := address.Bech32ToHex(input); err == nil {
				selected.EthAddress = eth
			}
		}
		return Candidate{
			Selected:     selected,
			IsOwnAddress: wallet.ID == activeID && chainKey == activeChain,
		}, true
	}
	return Candidate{}, false
}

// matchingChain picks the chain the input is known on, the active chain
// first and then by key.
func matchingChain(byChain map[string][]string, input, activeChain string) (string, bool) {
	for _, addr := range byChain[activeChain] {
		if sameAddress(addr, input) {
			return activeChain, true
		}
	}
	keys := make([]string, 0, len(byChain))
	for key := range byChain {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, addr := range byChain[key] {
			if sameAddress(addr, input) {
				return key, true
			}
		}
	}
	return "", false
}

// walletAddresses returns every address of the wallet per chain: the stored
// ones, the prefix-converted ones for cosmos chains sharing a coin type, and
// the EVM addresses derived from stored public keys.
func (m *Matcher) walletAddresses(wallet Wallet) map[string][]string {
	out := make(map[string][]string)
	addTo := func(chainKey, addr string) {
		if addr == "" {
			return
		}
		for _, known := range out[chainKey] {
			if sameAddress(known, addr) {
				return
			}
		}
		out[chainKey] = append(out[chainKey], addr)
	}

	for chainKey, addr := range wallet.Addresses {
		addTo(chainKey, addr)

		source, ok := m.chains.Chain(chainKey)
		if !ok || !source.IsCosmos() {
			continue
		}
		for _, key := range m.chains.Keys() {
			if _, stored := wallet.Addresses[key]; stored {
				continue
			}
			target, _ := m.chains.Chain(key)
			if !target.IsCosmos() || target.Bip44.CoinType != source.Bip44.CoinType {
				continue
			}
			if converted, err := m.converter.ConvertAddress(addr, key); err == nil {
				addTo(key, converted)
			}
		}
	}

	for chainKey, pubKey := range wallet.PubKeys {
		chain, ok := m.chains.Chain(chainKey)
		if !ok || (!chain.EvmOnlyChain && !chain.HasFeature(models.FeatureEVM)) {
			continue
		}
		if eth, err := EVMAddressFromPubKey(pubKey); err == nil {
			addTo(chainKey, eth)
		}
	}
	return out
}

// EVMAddressFromPubKey derives the 0x address of a compressed secp256k1
// public key given as hex or base64.
func EVMAddressFromPubKey(pubKey string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(pubKey, "0x"), "0X"))
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(pubKey)
		if err != nil {
			return "", err
		}
	}
	key, err := crypto.DecompressPubkey(raw)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(*key).Hex(), nil
}

// sameAddress compares hex addresses case-insensitively and everything else
// exactly.
func sameAddress(a, b string) bool {
	if address.HasHexPrefix(a) && address.HasHexPrefix(b) {
		return strings.EqualFold(a, b)
	}
	return a == b
}

type contactSource []Contact

func (s contactSource) Len() int { return len(s) }

func (s contactSource) String(i int) string {
	return strings.ToLower(s[i].Name + " " + s[i].Address)
}

func (m *Matcher) matchContacts(input string) []Candidate {
	if m.contacts == nil {
		return nil
	}
	needle := strings.ToLower(input)

	var hits contactSource
	for _, contact := range m.contacts.Contacts() {
		if strings.Contains(strings.ToLower(contact.Name), needle) ||
			strings.Contains(strings.ToLower(contact.Address), needle) {
			hits = append(hits, contact)
		}
	}
	if len(hits) == 0 {
		return nil
	}

	scores := make([]int, len(hits))
	for _, match := range fuzzy.FindFrom(needle, hits) {
		scores[match.Index] = match.Score
	}

	out := make([]Candidate, 0, len(hits))
	for i, contact := range hits {
		score := scores[i]
		if sameAddress(contact.Address, input) {
			// an exact address hit outranks any name similarity
			score = int(^uint(0) >> 1)
		}
		out = append(out, Candidate{
			Selected: models.SelectedAddress{
				Address:       contact.Address,
				EthAddress:    contact.EthAddress,
				ChainName:     m.contactChain(contact),
				Name:          contact.Name,
				SelectionType: models.SelectionSaved,
			},
			Score: score,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Selected.Name < out[j].Selected.Name
	})
	return out
}

func (m *Matcher) contactChain(contact Contact) string {
	if contact.ChainKey != "" {
		return contact.ChainKey
	}
	prefix, _, err := bech32.Decode(contact.Address)
	if err != nil {
		return ""
	}
	if keys := m.chains.ChainsForPrefix(prefix); len(keys) == 1 {
		return keys[0]
	}
	return ""
}
