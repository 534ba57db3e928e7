package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-send/recipient/address"
	"github.com/Cogwheel-Validator/spectra-send/recipient/chains"
	"github.com/Cogwheel-Validator/spectra-send/recipient/channels"
	"github.com/Cogwheel-Validator/spectra-send/recipient/contacts"
	"github.com/Cogwheel-Validator/spectra-send/recipient/guard"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/nameservice"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "session").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "session").Logger()
}

// DefaultDebounce is the delay between the last keystroke and the name lookup.
const DefaultDebounce = 300 * time.Millisecond

// ErrUnknownChain is returned for a chain key missing from the registry.
var ErrUnknownChain = errors.New("unknown chain")

// Deps are the collaborators of a session. Names, Contacts and Wallets may be
// nil.
type Deps struct {
	Chains     *registry.Registry
	Classifier *address.Classifier
	Allowlist  nameservice.Allowlist
	Names      *nameservice.Resolver
	Matcher    *contacts.Matcher
	Wallets    contacts.WalletList
	Resolver   *chains.Resolver
	Selector   *channels.Selector
	Guard      *guard.Guard
}

// Option configures a session.
type Option func(*Session)

// WithDebounce sets the name lookup debounce.
func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		s.debounce = d
	}
}

// Session is the recipient state of one send form. Every transition is an
// explicit method; asynchronous work writes back only while the input
// generation it was started for is still current.
type Session struct {
	deps     Deps
	debounce time.Duration

	baseCtx context.Context
	stop    context.CancelFunc

	mu         sync.Mutex
	generation uint64
	raw        string
	source     string
	token      *models.Token
	walletType models.WalletType
	ledgerApps []int

	classification    address.Classification
	selected          *models.SelectedAddress
	chainCandidates   []string
	contactCandidates []contacts.Candidate
	resolveErr        error

	nameTimer      *time.Timer
	nameCancel     context.CancelFunc
	nameLoading    bool
	nameResults    map[string]nameservice.Result
	nameCandidates []nameservice.Candidate
	nameOutcome    nameservice.Outcome

	discoveryGen uint64

	pending int
	idle    chan struct{}
}

// New creates a session sending from sourceChain.
func New(deps Deps, sourceChain string, opts ...Option) (*Session, error) {
	if deps.Chains == nil || deps.Classifier == nil || deps.Resolver == nil || deps.Selector == nil || deps.Guard == nil {
		return nil, fmt.Errorf("session needs chains, classifier, resolver, selector and guard")
	}
	if _, ok := deps.Chains.Chain(sourceChain); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, sourceChain)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		deps:     deps,
		debounce: DefaultDebounce,
		baseCtx:  ctx,
		stop:     cancel,
		source:   sourceChain,
		idle:     make(chan struct{}),
	}
	close(s.idle)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close cancels in-flight work.
func (s *Session) Close() {
	s.mu.Lock()
	s.cancelNamesLocked()
	s.mu.Unlock()
	s.stop()
}

// SetInput replaces the raw recipient input.
func (s *Session) SetInput(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if raw == s.raw {
		return
	}
	s.raw = raw
	s.resolveLocked()
}

// Clear empties the input and every resolution.
func (s *Session) Clear() {
	s.SetInput("")
}

// SetSourceChain switches the chain the transfer is sent from. Switching away
// from an EVM-only chain with a 0x input clears input and recipient.
func (s *Session) SetSourceChain(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.deps.Chains.Chain(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChain, key)
	}
	if key == s.source {
		return nil
	}
	prev, _ := s.deps.Chains.Chain(s.source)
	s.source = key

	if prev.EvmOnlyChain && !next.EvmOnlyChain && address.HasHexPrefix(strings.TrimSpace(s.raw)) {
		log.Debug().Str("from", prev.Key).Str("to", key).Msg("clearing 0x recipient after leaving EVM-only chain")
		s.raw = ""
	}
	if s.pickedLocked() && s.reachableLocked(*s.selected) {
		s.refreshPickedLocked()
		return nil
	}
	s.resolveLocked()
	return nil
}

// pickedLocked reports whether the recipient was picked from the contact,
// wallet or name-service candidates rather than typed.
func (s *Session) pickedLocked() bool {
	if s.selected == nil || s.selected.Address == strings.TrimSpace(s.raw) {
		return false
	}
	switch s.selected.SelectionType {
	case models.SelectionSaved, models.SelectionCurrentWallet, models.SelectionNameService:
		return true
	default:
		return false
	}
}

// reachableLocked reports whether selected is still a valid recipient when
// sending from the current source chain: the same chain or an IBC hop away.
func (s *Session) reachableLocked(selected models.SelectedAddress) bool {
	classification := s.deps.Classifier.Classify(selected.Address, s.source)
	if classification.Status != address.StatusValid || !slices.Contains(classification.ChainKeys, selected.ChainName) {
		return false
	}
	chain, ok := s.deps.Chains.Chain(selected.ChainName)
	if !ok || !chain.AvailableOn(s.deps.Resolver.Network()) {
		return false
	}
	return selected.ChainName == s.source || chains.IsIBCTransfer(s.deps.Chains, s.source, selected.ChainName)
}

// refreshPickedLocked keeps the picked recipient and recomputes what depends
// on the source chain around it.
func (s *Session) refreshPickedLocked() {
	s.generation++
	s.cancelNamesLocked()
	s.nameLoading = false
	s.chainCandidates = nil
	s.resolveErr = nil

	input := strings.TrimSpace(s.raw)
	s.contactCandidates = nil
	if s.deps.Matcher != nil && input != "" {
		s.contactCandidates = s.deps.Matcher.Match(input, s.source)
	}
	s.classification = s.deps.Classifier.Classify(input, s.source)
	if s.nameResults != nil {
		s.applyNamesLocked(false)
	}
	s.updateRouteLocked()
}

// SetToken sets the token being sent.
func (s *Session) SetToken(token *models.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// SetWallet sets the kind of the active wallet and, for Ledger wallets, the
// coin types the connected device can sign for (nil for the defaults).
func (s *Session) SetWallet(walletType models.WalletType, ledgerCoinTypes []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.walletType = walletType
	s.ledgerApps = ledgerCoinTypes
}

// SelectCandidate makes a contact, own-wallet or name-service candidate the
// recipient.
func (s *Session) SelectCandidate(selected models.SelectedAddress) error {
	if !selected.Valid() {
		return fmt.Errorf("candidate has no address or chain")
	}
	if _, ok := s.deps.Chains.Chain(selected.ChainName); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChain, selected.ChainName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelNamesLocked()
	s.nameLoading = false
	s.chainCandidates = nil
	s.selected = &selected
	s.updateRouteLocked()
	return nil
}

// ChooseDestinationChain resolves a shared-prefix address to one of its
// candidate chains.
func (s *Session) ChooseDestinationChain(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	input := strings.TrimSpace(s.raw)
	resolution, err := s.deps.Resolver.ResolveChain(input, s.source, key)
	if err != nil {
		return err
	}
	s.chainCandidates = resolution.Candidates
	s.resolveErr = nil
	s.selected = s.recipientLocked(input, resolution.ChainKey)
	s.updateRouteLocked()
	return nil
}

// SelectChannel toggles an IBC channel option.
func (s *Session) SelectChannel(channelID string) error {
	return s.deps.Selector.Select(channelID)
}

// AddCustomChannel stores a custom channel for the current route and selects
// it.
func (s *Session) AddCustomChannel(ctx context.Context, raw string) (channels.AddResult, error) {
	return s.deps.Selector.AddCustomChannel(ctx, raw)
}

// AcknowledgeUnverified records consent to use the unverified channel.
func (s *Session) AcknowledgeUnverified() {
	s.deps.Selector.Acknowledge()
}

// Selector exposes the channel selector for Open, Confirm and Cancel.
func (s *Session) Selector() *channels.Selector {
	return s.deps.Selector
}

// Settle blocks until debounced and in-flight work has finished.
func (s *Session) Settle(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.pending == 0 {
			s.mu.Unlock()
			return nil
		}
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) beginLocked() {
	if s.pending == 0 {
		s.idle = make(chan struct{})
	}
	s.pending++
}

func (s *Session) endLocked() {
	s.pending--
	if s.pending == 0 {
		close(s.idle)
	}
}

// resolveLocked recomputes everything derived from raw and source. It bumps
// the generation so that older async work is discarded.
func (s *Session) resolveLocked() {
	s.generation++
	s.cancelNamesLocked()
	s.nameLoading = false
	s.nameResults = nil
	s.nameCandidates = nil
	s.nameOutcome = nameservice.OutcomePending
	s.chainCandidates = nil
	s.contactCandidates = nil
	s.resolveErr = nil

	input := strings.TrimSpace(s.raw)
	if s.selected != nil && s.selected.Address != input {
		s.selected = nil
	}
	if input == "" {
		s.selected = nil
		s.classification = address.Classification{}
		s.updateRouteLocked()
		return
	}

	if s.deps.Matcher != nil {
		s.contactCandidates = s.deps.Matcher.Match(input, s.source)
	}
	s.classification = s.deps.Classifier.Classify(input, s.source)

	switch s.classification.Status {
	case address.StatusValid:
		resolution, err := s.deps.Resolver.ResolveChain(input, s.source, "")
		switch {
		case err != nil:
			s.selected = nil
			s.resolveErr = err
		case resolution.NeedsDisambiguation:
			s.selected = nil
			s.chainCandidates = resolution.Candidates
		default:
			s.chainCandidates = resolution.Candidates
			s.selected = s.recipientLocked(input, resolution.ChainKey)
		}
	case address.StatusNameCandidate:
		s.selected = nil
		switch {
		case !nameservice.ShowNameServiceResults(input, s.deps.Allowlist):
		case s.deps.Names == nil:
			s.nameOutcome = nameservice.OutcomeNoResults
		default:
			s.scheduleNamesLocked(input)
		}
	default:
		s.selected = nil
	}
	s.updateRouteLocked()
}

// recipientLocked builds the recipient of a typed address, labelled from the
// user's wallets or contacts when they know it.
func (s *Session) recipientLocked(input, chainKey string) *models.SelectedAddress {
	selected := &models.SelectedAddress{
		Address:       input,
		ChainName:     chainKey,
		Name:          models.TruncateAddress(input),
		SelectionType: models.SelectionNotSaved,
	}
	for _, c := range s.contactCandidates {
		if c.Selected.Address != input {
			continue
		}
		if c.Selected.SelectionType == models.SelectionCurrentWallet || c.Selected.ChainName == chainKey {
			selected.Name = c.Selected.Name
			selected.SelectionType = c.Selected.SelectionType
			break
		}
	}
	if chain, ok := s.deps.Chains.Chain(chainKey); ok && chain.HasFeature(models.FeatureEVM) {
		if eth, err := address.Bech32ToHex(input); err == nil {
			selected.EthAddress = eth
		}
	}
	return selected
}

func (s *Session) cancelNamesLocked() {
	if s.nameTimer != nil {
		if s.nameTimer.Stop() {
			s.endLocked()
		}
		s.nameTimer = nil
	}
	if s.nameCancel != nil {
		s.nameCancel()
		s.nameCancel = nil
	}
}

func (s *Session) scheduleNamesLocked(name string) {
	gen := s.generation
	s.nameLoading = true
	s.beginLocked()
	s.nameTimer = time.AfterFunc(s.debounce, func() {
		s.runNames(gen, name)
	})
}

func (s *Session) runNames(gen uint64, name string) {
	s.mu.Lock()
	if gen != s.generation {
		s.endLocked()
		s.mu.Unlock()
		return
	}
	s.nameTimer = nil
	ctx, cancel := context.WithCancel(s.baseCtx)
	s.nameCancel = cancel
	network := s.deps.Resolver.Network()
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.endLocked()
		s.mu.Unlock()
	}()

	res := s.deps.Names.Resolve(ctx, name, network)
	for range res.Updates() {
		s.mu.Lock()
		if gen != s.generation {
			s.mu.Unlock()
			log.Debug().Str("name", name).Msg("discarding stale name resolution")
			return
		}
		s.nameResults = res.Results()
		s.applyNamesLocked(res.IsLoading())
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.nameResults = res.Results()
	s.nameLoading = false
	s.nameCancel = nil
	s.applyNamesLocked(false)
}

func (s *Session) applyNamesLocked(loading bool) {
	active, _ := s.deps.Chains.Chain(s.source)
	s.nameCandidates, s.nameOutcome = nameservice.Filter(s.nameResults, loading, active, s.deps.Chains)

	// a single unambiguous result fills in the recipient once every provider
	// has answered
	if !loading && s.selected == nil && len(s.nameCandidates) == 1 {
		candidate := s.nameCandidates[0]
		selected := candidate.Selected(strings.TrimSpace(s.raw))
		selected.Information.Autofill = true
		s.selected = &selected
		s.updateRouteLocked()
	}
}

// updateRouteLocked points the channel selector at the current route and
// starts discovery when the route changed.
func (s *Session) updateRouteLocked() {
	destination := s.source
	if s.selected != nil {
		destination = s.selected.ChainName
	}
	ibc := chains.IsIBCTransfer(s.deps.Chains, s.source, destination)
	routeGen := s.deps.Selector.SetRoute(s.source, destination, ibc)
	if !ibc || routeGen == s.discoveryGen {
		return
	}
	s.discoveryGen = routeGen

	s.beginLocked()
	go func() {
		defer func() {
			s.mu.Lock()
			s.endLocked()
			s.mu.Unlock()
		}()
		s.deps.Selector.Discover(s.baseCtx, routeGen)
	}()
}

// Output is the state consumed by the send form.
type Output struct {
	Input                  string                  `json:"input"`
	SourceChain            string                  `json:"sourceChain"`
	SelectedAddress        *models.SelectedAddress `json:"selectedAddress,omitempty"`
	AddressError           string                  `json:"addressError,omitempty"`
	AddressWarning         string                  `json:"addressWarning,omitempty"`
	RecoverableError       bool                    `json:"recoverableError,omitempty"`
	RequiresAck            bool                    `json:"requiresAck,omitempty"`
	CustomChannelID        string                  `json:"customChannelId,omitempty"`
	IsIBCTransfer          bool                    `json:"isIBCTransfer"`
	ChannelOptions         []models.ChannelOption  `json:"channelOptions"`
	ChannelState           string                  `json:"channelState"`
	IsLoading              bool                    `json:"isLoading"`
	ShowNameServiceResults bool                    `json:"showNameServiceResults"`
	NameServiceOutcome     string                  `json:"nameServiceOutcome,omitempty"`
	NameServiceCandidates  []nameservice.Candidate `json:"nameServiceCandidates,omitempty"`
	ContactCandidates      []contacts.Candidate    `json:"contactCandidates,omitempty"`
	NeedsDisambiguation    bool                    `json:"needsDisambiguation"`
	ChainCandidates        []string                `json:"chainCandidates,omitempty"`
	CanSubmit              bool                    `json:"canSubmit"`
}

// Output evaluates the guard over the current state.
func (s *Session) Output() Output {
	s.mu.Lock()
	defer s.mu.Unlock()

	input := strings.TrimSpace(s.raw)
	snap := s.deps.Selector.Snapshot()

	out := Output{
		Input:                  s.raw,
		SourceChain:            s.source,
		IsIBCTransfer:          snap.State != channels.StateNoChannelNeeded,
		ChannelOptions:         snap.Options,
		ChannelState:           snap.State.String(),
		CustomChannelID:        snap.CustomChannelID,
		IsLoading:              s.nameLoading || snap.State == channels.StateDiscovering,
		ShowNameServiceResults: input != "" && nameservice.ShowNameServiceResults(input, s.deps.Allowlist),
		ContactCandidates:      s.contactCandidates,
		NameServiceCandidates:  s.nameCandidates,
		NeedsDisambiguation:    s.selected == nil && len(s.chainCandidates) > 1,
		ChainCandidates:        s.chainCandidates,
	}
	if out.ShowNameServiceResults {
		out.NameServiceOutcome = s.nameOutcome.String()
	}

	in := guard.Input{
		RawInput:          input,
		SourceChain:       s.source,
		Network:           s.deps.Resolver.Network(),
		Token:             s.token,
		WalletType:        s.walletType,
		LedgerCoinTypes:   s.ledgerApps,
		DiscoveryFinished: snap.DiscoveryOutcome != "",
		DefaultChannelID:  snap.DefaultChannelID,
		CustomChannelID:   snap.CustomChannelID,
		Acknowledged:      snap.Acknowledged,
	}
	if s.selected != nil {
		selected := *s.selected
		out.SelectedAddress = &selected
		in.Selected = &selected
		if s.deps.Matcher != nil && selected.ChainName == s.source {
			in.IsOwnAddress = s.deps.Matcher.IsOwnAddress(selected.Address, s.source)
		}
	} else if out.NeedsDisambiguation {
		// the address is valid, the user still has to pick the chain
		in.RawInput = ""
		if len(s.chainCandidates) > 0 && s.chainCandidates[0] != s.source {
			in.DestinationChain = s.chainCandidates[0]
		}
	} else if s.classification.Status == address.StatusMalformed && len(s.contactCandidates) > 0 {
		// a contact search in progress
		in.RawInput = ""
	}
	if active, ok := contacts.ActiveWallet(s.deps.Wallets); ok {
		in.SenderAddress = active.Addresses[s.source]
	}

	verdict := s.deps.Guard.Evaluate(in)
	if verdict.Error == "" && errors.Is(s.resolveErr, chains.ErrUnsupportedChain) {
		// the prefix is known but none of its chains is enabled on the network
		verdict = guard.Result{Error: models.ErrMsgUnsupportedChain}
	}
	out.AddressError = verdict.Error
	out.AddressWarning = verdict.Warning
	out.RecoverableError = verdict.Recoverable
	out.RequiresAck = verdict.RequiresAck
	out.CanSubmit = verdict.CanSubmit() && s.selected != nil
	return out
}
