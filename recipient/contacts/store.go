package contacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// AddressBook is the persisted address book: saved contacts and the user's
// wallets. It implements ContactStore and WalletList.
type AddressBook struct {
	Active      string    `json:"activeWallet" toml:"active_wallet"`
	ContactList []Contact `json:"contacts" toml:"contacts"`
	WalletItems []Wallet  `json:"wallets" toml:"wallets"`
}

func (b *AddressBook) Contacts() []Contact {
	if b == nil {
		return nil
	}
	return b.ContactList
}

func (b *AddressBook) Wallets() []Wallet {
	if b == nil {
		return nil
	}
	return b.WalletItems
}

func (b *AddressBook) ActiveWalletID() string {
	if b == nil {
		return ""
	}
	return b.Active
}

// LoadFile reads an address book from a .toml or .json file.
func LoadFile(path string) (*AddressBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read address book: %w", err)
	}

	var book AddressBook
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &book)
	case ".json":
		err = json.Unmarshal(data, &book)
	default:
		return nil, fmt.Errorf("unsupported address book format: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse address book: %w", err)
	}

	for i, w := range book.WalletItems {
		if w.ID == "" {
			return nil, fmt.Errorf("wallet %d has no id", i)
		}
	}
	return &book, nil
}
