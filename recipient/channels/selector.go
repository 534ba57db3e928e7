package channels

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-send/recipient/metrics"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Cogwheel-Validator/spectra-send/recipient/channels"

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "channels").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "channels").Logger()
}

// State of the channel selector.
type State int

const (
	StateNoChannelNeeded State = iota
	StateDiscovering
	StateHasVerifiedDefault
	StateNoVerifiedChannel
	StateSelecting
	StateSelected
)

func (s State) String() string {
	switch s {
	case StateNoChannelNeeded:
		return "no_channel_needed"
	case StateDiscovering:
		return "discovering"
	case StateHasVerifiedDefault:
		return "has_verified_default"
	case StateNoVerifiedChannel:
		return "no_verified_channel"
	case StateSelecting:
		return "selecting"
	case StateSelected:
		return "selected"
	default:
		return "unknown"
	}
}

// DefaultChannelSource looks up the registry-verified channel of a pair.
// found is false when the registry has no entry.
type DefaultChannelSource interface {
	DefaultChannel(ctx context.Context, source, destination string) (channelID string, found bool, err error)
}

// ChannelLister lists every channel the registry knows for a pair.
type ChannelLister interface {
	RegistryChannels(ctx context.Context, source, destination string) ([]string, error)
}

var (
	// ErrInvalidChannelID is returned for a channel id that cannot be normalised
	ErrInvalidChannelID = errors.New("invalid channel id")
	// ErrNoRoute is returned by operations that need an IBC route
	ErrNoRoute = errors.New("no IBC route")
	// ErrUnknownChannel is returned when selecting a channel that is not an option
	ErrUnknownChannel = errors.New("channel is not an option")
)

var channelSuffix = regexp.MustCompile(`^[a-z0-9]+$`)

// NormalizeChannelID turns "42", "channel-42" or "Channel-42" into
// "channel-42".
func NormalizeChannelID(raw string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	id = strings.TrimPrefix(id, "channel-")
	if !channelSuffix.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidChannelID, raw)
	}
	return "channel-" + id, nil
}

// AddResult is the outcome of AddCustomChannel. A rejected duplicate is not an
// error: Added is false and Message explains why.
type AddResult struct {
	ChannelID string
	Added     bool
	Message   string
}

// Snapshot is a consistent view of the selector.
type Snapshot struct {
	Source      string
	Destination string
	State       State
	// DiscoveryOutcome is found, none or failed once discovery finished
	DiscoveryOutcome  string
	DefaultChannelID  string
	Options           []models.ChannelOption
	SelectedChannelID string
	CustomChannelID   string
	UnverifiedInUse   bool
	Acknowledged      bool
}

// Selector discovers and selects the IBC channel of a transfer.
type Selector struct {
	defaults DefaultChannelSource
	lister   ChannelLister
	store    CustomChannelStore

	mu         sync.Mutex
	generation uint64
	source     string
	dest       string
	ibc        bool
	discovered bool
	outcome    string
	defaultID  string
	custom     []string
	prefetched []string

	selected     string
	acknowledged bool

	open  bool
	draft string
}

// SelectorOption configures the selector.
type SelectorOption func(*Selector)

// WithChannelLister adds registry-prefetched channels to the options.
func WithChannelLister(lister ChannelLister) SelectorOption {
	return func(s *Selector) {
		s.lister = lister
	}
}

// NewSelector creates a selector. defaults may be nil, in which case no pair
// has a verified channel.
func NewSelector(defaults DefaultChannelSource, store CustomChannelStore, opts ...SelectorOption) *Selector {
	if store == nil {
		store = NewMemoryStore()
	}
	s := &Selector{defaults: defaults, store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetRoute sets the transfer route and returns the generation discovery must
// be run with. ibc is false when no channel is needed. Any change of the pair
// drops the selection.
func (s *Selector) SetRoute(source, destination string, ibc bool) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == source && s.dest == destination && s.ibc == ibc {
		return s.generation
	}

	s.generation++
	s.source, s.dest, s.ibc = source, destination, ibc
	s.discovered = false
	s.outcome = ""
	s.defaultID = ""
	s.custom = nil
	s.prefetched = nil
	s.selected = ""
	s.acknowledged = false
	s.open = false
	s.draft = ""
	return s.generation
}

// Generation returns the current route generation.
func (s *Selector) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Discover looks up the default, custom and prefetched channels of the route
// set with generation gen. A result for a superseded route is discarded.
// Lookup failures are logged and never returned.
func (s *Selector) Discover(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if gen != s.generation || !s.ibc {
		s.mu.Unlock()
		return
	}
	source, dest := s.source, s.dest
	s.mu.Unlock()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "channels.discover", trace.WithAttributes(
		attribute.String("ibc.source", source),
		attribute.String("ibc.destination", dest),
	))
	defer span.End()

	defaultID, outcome := s.lookupDefault(ctx, source, dest)
	custom := s.listCustom(ctx, source, dest)

	var prefetched []string
	if s.lister != nil {
		ids, err := s.lister.RegistryChannels(ctx, source, dest)
		if err != nil {
			log.Debug().Err(err).Str("source", source).Str("destination", dest).Msg("failed to list registry channels")
		}
		prefetched = ids
	}

	span.SetAttributes(
		attribute.String("ibc.discovery", outcome),
		attribute.String("ibc.default_channel", defaultID),
		attribute.Int("ibc.custom_channels", len(custom)),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		span.SetAttributes(attribute.Bool("stale", true))
		log.Debug().Str("source", source).Str("destination", dest).Msg("discarding stale channel discovery")
		return
	}
	s.discovered = true
	s.outcome = outcome
	s.defaultID = defaultID
	s.custom = custom
	s.prefetched = prefetched
}

func (s *Selector) lookupDefault(ctx context.Context, source, dest string) (string, string) {
	if s.defaults == nil {
		metrics.ChannelDiscoveries.WithLabelValues(metrics.DiscoveryNone).Inc()
		return "", metrics.DiscoveryNone
	}

	id, found, err := s.defaults.DefaultChannel(ctx, source, dest)
	switch {
	case err != nil:
		metrics.ChannelDiscoveries.WithLabelValues(metrics.DiscoveryFailed).Inc()
		log.Warn().Err(err).Str("source", source).Str("destination", dest).Msg("default channel lookup failed")
		return "", metrics.DiscoveryFailed
	case !found || id == "":
		metrics.ChannelDiscoveries.WithLabelValues(metrics.DiscoveryNone).Inc()
		log.Info().Str("source", source).Str("destination", dest).Msg("no verified channel in registry")
		return "", metrics.DiscoveryNone
	default:
		metrics.ChannelDiscoveries.WithLabelValues(metrics.DiscoveryFound).Inc()
		log.Debug().Str("source", source).Str("destination", dest).Str("channel", id).Msg("verified channel found")
		return id, metrics.DiscoveryFound
	}
}

func (s *Selector) listCustom(ctx context.Context, source, dest string) []string {
	ids, err := s.store.List(ctx, source, dest)
	if err != nil {
		log.Warn().Err(err).Str("source", source).Str("destination", dest).Msg("failed to list custom channels")
		return nil
	}
	return ids
}

// Refresh reloads the custom channels of the current route.
func (s *Selector) Refresh(ctx context.Context) {
	s.mu.Lock()
	if !s.ibc {
		s.mu.Unlock()
		return
	}
	gen, source, dest := s.generation, s.source, s.dest
	s.mu.Unlock()

	custom := s.listCustom(ctx, source, dest)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.custom = custom
	}
}

// Options returns the selectable channels: the default first, then custom and
// prefetched channels deduplicated and sorted by id.
func (s *Selector) Options() []models.ChannelOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.optionsLocked()
}

func (s *Selector) optionsLocked() []models.ChannelOption {
	if !s.ibc || !s.discovered {
		return []models.ChannelOption{}
	}

	options := make([]models.ChannelOption, 0, 1+len(s.custom)+len(s.prefetched))
	if s.defaultID != "" {
		options = append(options, option(s.defaultID, models.SubTitleDefault))
	}

	subTitles := make(map[string]string)
	for _, id := range s.prefetched {
		subTitles[id] = models.SubTitlePrefetched
	}
	for _, id := range s.custom {
		subTitles[id] = models.SubTitleCustom
	}
	delete(subTitles, s.defaultID)

	ids := make([]string, 0, len(subTitles))
	for id := range subTitles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		options = append(options, option(id, subTitles[id]))
	}
	return options
}

func option(id, subTitle string) models.ChannelOption {
	return models.ChannelOption{Title: id, SubTitle: subTitle, Value: id}
}

func (s *Selector) isOptionLocked(id string) bool {
	return slices.ContainsFunc(s.optionsLocked(), func(o models.ChannelOption) bool {
		return o.Value == id
	})
}

// Select toggles a channel: selecting the current selection clears it,
// selecting another option replaces it. While the selector is open the
// change only applies to the pending choice.
func (s *Selector) Select(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ibc {
		return ErrNoRoute
	}
	if !s.isOptionLocked(channelID) {
		return fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}

	current := &s.selected
	if s.open {
		current = &s.draft
	}
	if *current == channelID {
		*current = ""
	} else {
		*current = channelID
	}
	if !s.open {
		s.acknowledged = false
	}
	return nil
}

// Open starts a selection the user can confirm or cancel.
func (s *Selector) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ibc {
		return
	}
	s.open = true
	s.draft = s.selected
}

// Confirm commits the pending choice.
func (s *Selector) Confirm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return
	}
	if s.draft != s.selected {
		s.selected = s.draft
		s.acknowledged = false
	}
	s.open = false
	s.draft = ""
}

// Cancel closes the selector and keeps the committed selection.
func (s *Selector) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.draft = ""
}

// AddCustomChannel normalises raw to channel-<id>, stores it for the current
// pair and makes it the active selection.
func (s *Selector) AddCustomChannel(ctx context.Context, raw string) (AddResult, error) {
	id, err := NormalizeChannelID(raw)
	if err != nil {
		return AddResult{}, err
	}

	s.mu.Lock()
	if !s.ibc {
		s.mu.Unlock()
		return AddResult{}, ErrNoRoute
	}
	gen, source, dest, defaultID := s.generation, s.source, s.dest, s.defaultID
	s.mu.Unlock()

	if id == defaultID {
		metrics.CustomChannelsAdded.WithLabelValues("duplicate").Inc()
		return AddResult{ChannelID: id, Message: fmt.Sprintf("%s is already the default channel", id)}, nil
	}

	if err := s.store.Add(ctx, source, dest, id); err != nil {
		if errors.Is(err, ErrDuplicateChannel) {
			metrics.CustomChannelsAdded.WithLabelValues("duplicate").Inc()
			return AddResult{ChannelID: id, Message: fmt.Sprintf("%s already exists for this route", id)}, nil
		}
		metrics.CustomChannelsAdded.WithLabelValues("error").Inc()
		return AddResult{}, fmt.Errorf("failed to store custom channel: %w", err)
	}
	metrics.CustomChannelsAdded.WithLabelValues("added").Inc()
	log.Info().Str("source", source).Str("destination", dest).Str("channel", id).Msg("custom channel added")

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return AddResult{ChannelID: id, Added: true}, nil
	}
	if !slices.Contains(s.custom, id) {
		s.custom = append(s.custom, id)
		sort.Strings(s.custom)
	}
	s.selected = id
	s.acknowledged = false
	if s.open {
		s.draft = id
	}
	return AddResult{ChannelID: id, Added: true}, nil
}

// Acknowledge records the user's consent to use an unverified channel.
func (s *Selector) Acknowledge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unverifiedLocked() {
		s.acknowledged = true
	}
}

func (s *Selector) unverifiedLocked() bool {
	return s.ibc && s.selected != "" && s.selected != s.defaultID
}

// UnverifiedChannelInUse reports whether a non-default channel is committed.
func (s *Selector) UnverifiedChannelInUse() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unverifiedLocked()
}

// CustomChannelID returns the committed channel when it is not the default.
func (s *Selector) CustomChannelID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unverifiedLocked() {
		return s.selected
	}
	return ""
}

// Snapshot returns the selector state.
func (s *Selector) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Source:            s.source,
		Destination:       s.dest,
		State:             s.stateLocked(),
		DiscoveryOutcome:  s.outcome,
		DefaultChannelID:  s.defaultID,
		Options:           s.optionsLocked(),
		SelectedChannelID: s.selected,
		UnverifiedInUse:   s.unverifiedLocked(),
		Acknowledged:      s.acknowledged,
	}
	if snap.UnverifiedInUse {
		snap.CustomChannelID = s.selected
	}
	return snap
}

// State returns the selector state.
func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Selector) stateLocked() State {
	switch {
	case !s.ibc:
		return StateNoChannelNeeded
	case s.open:
		return StateSelecting
	case s.selected != "":
		return StateSelected
	case !s.discovered:
		return StateDiscovering
	case s.defaultID != "":
		return StateHasVerifiedDefault
	default:
		return StateNoVerifiedChannel
	}
}
