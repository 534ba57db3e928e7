package models

import "strings"

// SelectionType tells how the recipient was picked and drives the trust level
// shown to the user.
type SelectionType string

const (
	SelectionCurrentWallet SelectionType = "currentWallet"
	SelectionSaved         SelectionType = "saved"
	SelectionNameService   SelectionType = "nameService"
	SelectionNotSaved      SelectionType = "notSaved"
)

// AddressInformation carries provenance of a resolved recipient.
type AddressInformation struct {
	NameService string `json:"nameService,omitempty"`
	ChainID     string `json:"chain_id,omitempty"`
	Autofill    bool   `json:"autofill,omitempty"`
}

// SelectedAddress is the resolved recipient of a send.
type SelectedAddress struct {
	// Address in the chain-native encoding
	Address string `json:"address"`
	// EthAddress is the 0x form for chains with a dual representation
	EthAddress string `json:"ethAddress,omitempty"`
	// ChainName is the resolved destination chain key
	ChainName     string              `json:"chainName"`
	Name          string              `json:"name"`
	SelectionType SelectionType       `json:"selectionType"`
	Information   *AddressInformation `json:"information,omitempty"`
}

// Valid reports whether the recipient carries an address and a chain.
func (s *SelectedAddress) Valid() bool {
	return s != nil && s.Address != "" && s.ChainName != ""
}

// TruncateAddress shortens an address for display, e.g. "cosmos1abc...wxyz".
func TruncateAddress(address string) string {
	if len(address) <= 16 {
		return address
	}
	return address[:10] + "..." + address[len(address)-5:]
}

// Channel option subtitles.
const (
	SubTitleDefault    = "Default channel"
	SubTitleCustom     = "Custom channel"
	SubTitlePrefetched = "Prefetched from registry"
)

// ChannelOption is one selectable IBC channel.
type ChannelOption struct {
	Title    string `json:"title"`
	SubTitle string `json:"subTitle"`
	Value    string `json:"value"`
}

// Token is the asset selected in the send form.
type Token struct {
	Denom    string `json:"denom"`
	Symbol   string `json:"symbol,omitempty"`
	IBCDenom string `json:"ibcDenom,omitempty"`
	CW20     bool   `json:"cw20,omitempty"`
}

// IsCW20 reports whether the token is a cw20 contract token.
func (t *Token) IsCW20() bool {
	if t == nil {
		return false
	}
	return t.CW20 || strings.HasPrefix(t.Denom, "cw20:")
}

// IsIBC reports whether the token is an IBC voucher on the source chain.
func (t *Token) IsIBC() bool {
	if t == nil {
		return false
	}
	return t.IBCDenom != "" || strings.HasPrefix(t.Denom, "ibc/")
}

// WalletType is the kind of key backing the active wallet.
type WalletType string

const (
	WalletSeed       WalletType = "seed"
	WalletPrivateKey WalletType = "private_key"
	WalletLedger     WalletType = "ledger"
	WalletWatch      WalletType = "watch"
)
