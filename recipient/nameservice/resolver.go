package nameservice

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-send/recipient/metrics"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/Cogwheel-Validator/spectra-send/recipient/nameservice"

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "nameservice").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "nameservice").Logger()
}

// DefaultProviderTimeout is the maximum wait for a single provider.
const DefaultProviderTimeout = 5 * time.Second

// Resolver fans a name out to every provider.
type Resolver struct {
	providers []Provider
	timeout   time.Duration
}

// NewResolver creates a resolver. A non-positive timeout uses
// DefaultProviderTimeout.
func NewResolver(timeout time.Duration, providers ...Provider) *Resolver {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Resolver{providers: providers, timeout: timeout}
}

// ProviderIDs returns the provider ids in registration order.
func (r *Resolver) ProviderIDs() []string {
	ids := make([]string, len(r.providers))
	for i, p := range r.providers {
		ids[i] = p.ID()
	}
	return ids
}

// Update is one provider settling.
type Update struct {
	ProviderID string
	// Result is nil when the provider had no record, failed or timed out
	Result Result
}

// Resolution is the in-flight state of one name lookup. Results arrive
// incrementally; a provider that fails or times out settles with nil.
type Resolution struct {
	Name    string
	Network models.Network

	mu      sync.RWMutex
	results map[string]Result
	pending int

	updates chan Update
	done    chan struct{}
}

// Resolve starts a lookup of name on every provider and returns
// immediately.
func (r *Resolver) Resolve(ctx context.Context, name string, network models.Network) *Resolution {
	res := &Resolution{
		Name:    name,
		Network: network,
		results: make(map[string]Result, len(r.providers)),
		pending: len(r.providers),
		updates: make(chan Update, len(r.providers)),
		done:    make(chan struct{}),
	}

	var g errgroup.Group
	for _, provider := range r.providers {
		g.Go(func() error {
			result := r.lookup(ctx, provider, name, network)
			res.settle(provider.ID(), result)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(res.updates)
		close(res.done)
	}()

	return res
}

func (r *Resolver) lookup(ctx context.Context, provider Provider, name string, network models.Network) (result Result) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	start := time.Now()
	outcome := metrics.LookupEmpty

	ctx, span := otel.Tracer(tracerName).Start(ctx, "nameservice.lookup", trace.WithAttributes(
		attribute.String("nameservice.provider", provider.ID()),
		attribute.String("nameservice.name", name),
		attribute.String("network", string(network)),
	))

	defer func() {
		if rvr := recover(); rvr != nil {
			log.Error().Interface("panic", rvr).Str("provider", provider.ID()).Msg("Recovered from panic in provider")
			result = nil
			outcome = metrics.LookupError
		}
		metrics.NameServiceLookups.WithLabelValues(provider.ID(), outcome).Inc()
		metrics.NameServiceLatency.WithLabelValues(provider.ID()).Observe(time.Since(start).Seconds())

		span.SetAttributes(attribute.String("nameservice.outcome", outcome))
		if outcome == metrics.LookupError || outcome == metrics.LookupTimeout {
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	result, err := provider.Resolve(ctx, name, network)
	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		outcome = metrics.LookupTimeout
		log.Warn().Str("provider", provider.ID()).Str("name", name).Dur("timeout", r.timeout).Msg("name lookup timed out")
		return nil
	case err != nil:
		outcome = metrics.LookupError
		log.Warn().Err(err).Str("provider", provider.ID()).Str("name", name).Msg("name lookup failed")
		return nil
	case result != nil:
		outcome = metrics.LookupFound
	}
	return result
}

func (res *Resolution) settle(providerID string, result Result) {
	res.mu.Lock()
	res.results[providerID] = result
	res.pending--
	res.mu.Unlock()
	res.updates <- Update{ProviderID: providerID, Result: result}
}

// IsLoading reports whether any provider has not settled yet.
func (res *Resolution) IsLoading() bool {
	res.mu.RLock()
	defer res.mu.RUnlock()
	return res.pending > 0
}

// Results returns the settled providers. A provider that settled without a
// result maps to nil; a provider still running is absent.
func (res *Resolution) Results() map[string]Result {
	res.mu.RLock()
	defer res.mu.RUnlock()
	out := make(map[string]Result, len(res.results))
	for id, result := range res.results {
		out[id] = result
	}
	return out
}

// Updates yields every provider as it settles and is closed once all did.
func (res *Resolution) Updates() <-chan Update {
	return res.updates
}

// Done is closed when every provider has settled.
func (res *Resolution) Done() <-chan struct{} {
	return res.done
}

// Wait blocks until every provider has settled or ctx is done.
func (res *Resolution) Wait(ctx context.Context) error {
	select {
	case <-res.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
