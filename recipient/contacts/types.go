package contacts

import "github.com/Cogwheel-Validator/spectra-send/recipient/models"

// Contact is a saved address book entry.
type Contact struct {
	Name    string `json:"name" toml:"name"`
	Address string `json:"address" toml:"address"`
	// ChainKey is inferred from the bech32 prefix when empty
	ChainKey   string `json:"chainKey,omitempty" toml:"chain_key,omitempty"`
	EthAddress string `json:"ethAddress,omitempty" toml:"eth_address,omitempty"`
	Memo       string `json:"memo,omitempty" toml:"memo,omitempty"`
}

// Wallet is one of the user's own wallets.
type Wallet struct {
	ID   string            `json:"id" toml:"id"`
	Name string            `json:"name" toml:"name"`
	Type models.WalletType `json:"type" toml:"type"`
	// Addresses maps chain key to the wallet address on that chain
	Addresses map[string]string `json:"addresses" toml:"addresses"`
	// PubKeys maps chain key to the compressed secp256k1 public key, hex or
	// base64 encoded
	PubKeys map[string]string `json:"pubKeys,omitempty" toml:"pub_keys,omitempty"`
}

// ContactStore is a synchronous read of the saved address book.
type ContactStore interface {
	Contacts() []Contact
}

// WalletList is the read-only list of the user's wallets.
type WalletList interface {
	Wallets() []Wallet
	ActiveWalletID() string
}

// ActiveWallet returns the active wallet of the list.
func ActiveWallet(list WalletList) (Wallet, bool) {
	if list == nil {
		return Wallet{}, false
	}
	id := list.ActiveWalletID()
	for _, w := range list.Wallets() {
		if w.ID == id {
			return w, true
		}
	}
	return Wallet{}, false
}
