package guard

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-send/recipient/address"
	"github.com/Cogwheel-Validator/spectra-send/recipient/chains"
	"github.com/Cogwheel-Validator/spectra-send/recipient/metrics"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "guard").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "guard").Logger()
}

// LedgerApps maps SLIP-44 coin types to the Ledger app signing for them.
var LedgerApps = map[int]string{
	0:   "Bitcoin",
	1:   "Bitcoin Test",
	60:  "Ethereum",
	118: "Cosmos",
	501: "Solana",
	637: "Aptos",
	784: "Sui",
}

// DefaultLedgerCoinTypes are the coin types a Ledger wallet signs for unless
// the input says otherwise.
var DefaultLedgerCoinTypes = []int{118, 60}

// Input is everything the guard looks at.
type Input struct {
	// RawInput is the text typed by the user
	RawInput    string
	Selected    *models.SelectedAddress
	SourceChain string
	// DestinationChain defaults to Selected.ChainName
	DestinationChain string
	Network          models.Network
	Token            *models.Token
	WalletType       models.WalletType
	// LedgerCoinTypes overrides DefaultLedgerCoinTypes when set
	LedgerCoinTypes []int

	// SenderAddress is the active wallet's address on the source chain
	SenderAddress string
	IsOwnAddress  bool

	// Channel state, only read for IBC transfers
	DiscoveryFinished bool
	DefaultChannelID  string
	CustomChannelID   string
	Acknowledged      bool
}

// Result is the verdict. Error and Warning are never both set.
type Result struct {
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
	// Recoverable marks an error the user can fix by picking a channel
	Recoverable bool `json:"recoverable,omitempty"`
	// RequiresAck is set while the warning needs explicit consent
	RequiresAck bool `json:"requiresAck,omitempty"`
}

// CanSubmit reports whether the send form may be submitted.
func (r Result) CanSubmit() bool {
	return r.Error == "" && !r.RequiresAck
}

// Guard cross-checks recipient, chains, token and wallet.
type Guard struct {
	chains     *registry.Registry
	classifier *address.Classifier

	exchangeAddresses map[string]struct{}
	exchangePatterns  []*regexp.Regexp
}

// Option configures the guard.
type Option func(*Guard)

// WithExchangeAddresses marks known centralized-exchange deposit addresses.
func WithExchangeAddresses(addrs ...string) Option {
	return func(g *Guard) {
		for _, addr := range addrs {
			g.exchangeAddresses[strings.ToLower(strings.TrimSpace(addr))] = struct{}{}
		}
	}
}

// WithExchangePatterns marks addresses matching any pattern as
// centralized-exchange addresses.
func WithExchangePatterns(patterns ...*regexp.Regexp) Option {
	return func(g *Guard) {
		g.exchangePatterns = append(g.exchangePatterns, patterns...)
	}
}

// New creates a guard.
func New(chains *registry.Registry, classifier *address.Classifier, opts ...Option) *Guard {
	g := &Guard{
		chains:            chains,
		classifier:        classifier,
		exchangeAddresses: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate applies the rules in priority order. It never panics: an internal
// failure yields the invalid address error.
func (g *Guard) Evaluate(in Input) (result Result) {
	defer func() {
		if rvr := recover(); rvr != nil {
			log.Error().Interface("panic", rvr).Str("source", in.SourceChain).Msg("Recovered from panic in guard")
			result = Result{Error: models.ErrMsgInvalidAddress}
		}
		switch {
		case result.Error != "":
			metrics.GuardEvaluations.WithLabelValues("error").Inc()
		case result.Warning != "":
			metrics.GuardEvaluations.WithLabelValues("warning").Inc()
		default:
			metrics.GuardEvaluations.WithLabelValues("ok").Inc()
		}
	}()
	return g.evaluate(in)
}

func (g *Guard) evaluate(in Input) Result {
	destination := in.DestinationChain
	if destination == "" && in.Selected != nil {
		destination = in.Selected.ChainName
	}
	crossChain := destination != "" && destination != in.SourceChain

	if in.Token.IsCW20() && crossChain {
		return Result{Error: models.ErrMsgCW20NotSupported}
	}

	if msg := g.addressError(in, destination); msg != "" {
		return Result{Error: msg}
	}
	if in.Selected == nil || !in.Selected.Valid() {
		return Result{}
	}

	ibc := chains.IsIBCTransfer(g.chains, in.SourceChain, destination)
	if ibc && in.DiscoveryFinished && in.DefaultChannelID == "" && in.CustomChannelID == "" {
		return Result{Error: models.ErrMsgNoVerifiedRoutes, Recoverable: true}
	}

	if in.WalletType == models.WalletLedger {
		if msg := g.ledgerError(in, destination); msg != "" {
			return Result{Error: msg}
		}
	}

	if ibc && in.CustomChannelID != "" && in.CustomChannelID != in.DefaultChannelID {
		return Result{Warning: models.WarnMsgUnverifiedChannel, RequiresAck: !in.Acknowledged}
	}
	if in.IsOwnAddress || (destination == in.SourceChain && in.SenderAddress != "" && sameAddress(in.SenderAddress, in.Selected.Address)) {
		return Result{Warning: models.WarnMsgSelfTransfer}
	}
	if in.Token.IsIBC() && g.isExchange(in.Selected.Address) {
		return Result{Warning: models.WarnMsgCentralizedExchange}
	}
	return Result{}
}

func (g *Guard) addressError(in Input, destination string) string {
	if in.Selected == nil {
		raw := strings.TrimSpace(in.RawInput)
		if raw == "" {
			return ""
		}
		switch g.classifier.Classify(raw, in.SourceChain).Status {
		case address.StatusUnknownPrefix:
			return models.ErrMsgUnsupportedChain
		case address.StatusMalformed:
			return models.ErrMsgInvalidAddress
		default:
			// valid but unresolved, or waiting for the name services
			return ""
		}
	}

	classification := g.classifier.Classify(in.Selected.Address, in.SourceChain)
	switch classification.Status {
	case address.StatusValid:
	case address.StatusUnknownPrefix:
		return models.ErrMsgUnsupportedChain
	default:
		return models.ErrMsgInvalidAddress
	}
	if destination == "" || !slices.Contains(classification.ChainKeys, destination) {
		return models.ErrMsgInvalidAddress
	}

	chain, ok := g.chains.Chain(destination)
	if !ok || (in.Network != "" && !chain.AvailableOn(in.Network)) {
		return models.ErrMsgUnsupportedChain
	}

	source, _ := g.chains.Chain(in.SourceChain)
	if source.EvmOnlyChain && destination != in.SourceChain {
		return models.ErrMsgEvmOnlyCrossChain
	}
	return ""
}

func (g *Guard) ledgerError(in Input, destination string) string {
	chain, ok := g.chains.Chain(destination)
	if !ok {
		return ""
	}
	supported := in.LedgerCoinTypes
	if supported == nil {
		supported = DefaultLedgerCoinTypes
	}
	if slices.Contains(supported, chain.Bip44.CoinType) {
		return ""
	}
	app, ok := LedgerApps[chain.Bip44.CoinType]
	if !ok {
		app = fmt.Sprintf("coin type %d", chain.Bip44.CoinType)
	}
	name := chain.ChainName
	if name == "" {
		name = chain.Key
	}
	return fmt.Sprintf(models.ErrMsgLedgerAppFormat, app, name)
}

func (g *Guard) isExchange(addr string) bool {
	if _, ok := g.exchangeAddresses[strings.ToLower(addr)]; ok {
		return true
	}
	for _, pattern := range g.exchangePatterns {
		if pattern.MatchString(addr) {
			return true
		}
	}
	return false
}

func sameAddress(a, b string) bool {
	if address.HasHexPrefix(a) && address.HasHexPrefix(b) {
		return strings.EqualFold(a, b)
	}
	return a == b
}
