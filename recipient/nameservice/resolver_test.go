package nameservice_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/nameservice"
	"github.com/zeebo/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func staticProvider(id string, result nameservice.Result, err error, delay time.Duration) nameservice.Provider {
	return nameservice.ProviderFunc{
		ProviderID: id,
		Fn: func(ctx context.Context, name string, network models.Network) (nameservice.Result, error) {
			select {
			case <-time.After(delay):
				return result, err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

func TestResolverSettlesEveryProvider(t *testing.T) {
	release := make(chan struct{})
	blocked := nameservice.ProviderFunc{
		ProviderID: "blocked",
		Fn: func(ctx context.Context, name string, network models.Network) (nameservice.Result, error) {
			<-release
			return nameservice.Single{Address: "osmo1blocked"}, nil
		},
	}

	resolver := nameservice.NewResolver(time.Second,
		staticProvider("fast", nameservice.Single{Address: "osmo1fast"}, nil, 0),
		staticProvider("failing", nil, errors.New("boom"), 0),
		blocked,
	)

	res := resolver.Resolve(context.Background(), "leap.arch", models.NetworkMainnet)
	assert.Equal(t, res.Name, "leap.arch")

	// two providers settle while the third is still blocked
	seen := map[string]nameservice.Result{}
	for len(seen) < 2 {
		update := <-res.Updates()
		seen[update.ProviderID] = update.Result
	}
	assert.True(t, res.IsLoading())
	assert.DeepEqual(t, seen["fast"], nameservice.Result(nameservice.Single{Address: "osmo1fast"}))
	assert.Nil(t, seen["failing"])

	close(release)
	assert.NoError(t, res.Wait(context.Background()))
	assert.False(t, res.IsLoading())

	results := res.Results()
	assert.Equal(t, len(results), 3)
	assert.DeepEqual(t, results["blocked"], nameservice.Result(nameservice.Single{Address: "osmo1blocked"}))

	_, open := <-res.Updates()
	for open {
		_, open = <-res.Updates()
	}
}

func TestResolverTimeoutResolvesToNil(t *testing.T) {
	resolver := nameservice.NewResolver(50*time.Millisecond,
		staticProvider("slow", nameservice.Single{Address: "osmo1slow"}, nil, time.Hour),
		staticProvider("fast", nameservice.Single{Address: "osmo1fast"}, nil, 0),
	)

	res := resolver.Resolve(context.Background(), "leap.arch", models.NetworkMainnet)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, res.Wait(ctx))

	results := res.Results()
	slow, ok := results["slow"]
	assert.True(t, ok)
	assert.Nil(t, slow)
	assert.NotNil(t, results["fast"])
}

func TestResolverRecoversProviderPanic(t *testing.T) {
	panicking := nameservice.ProviderFunc{
		ProviderID: "panicking",
		Fn: func(ctx context.Context, name string, network models.Network) (nameservice.Result, error) {
			panic("provider bug")
		},
	}
	res := nameservice.NewResolver(time.Second, panicking).Resolve(context.Background(), "leap.arch", models.NetworkMainnet)
	assert.NoError(t, res.Wait(context.Background()))
	assert.Nil(t, res.Results()["panicking"])
}

func TestResolverWithoutProviders(t *testing.T) {
	res := nameservice.NewResolver(0).Resolve(context.Background(), "leap.arch", models.NetworkTestnet)
	assert.NoError(t, res.Wait(context.Background()))
	assert.False(t, res.IsLoading())
	assert.Equal(t, len(res.Results()), 0)
}

func TestRESTProvider(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		switch r.URL.Query().Get("name") {
		case "leap.arch":
			assert.Equal(t, r.URL.Query().Get("network"), "mainnet")
			_, _ = w.Write([]byte(`{"addresses":[{"chain_id":"osmosis-1","address":"osmo1leap"}]}`))
		case "flaky.arch":
			if n%2 == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`"osmo1flaky"`))
		case "broken.arch":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := nameservice.NewRESTProvider(nameservice.RESTProviderConfig{
		ID:            "icns",
		URL:           server.URL + "/",
		Timeout:       time.Second,
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	})
	assert.Equal(t, provider.ID(), "icns")

	t.Run("multi chain", func(t *testing.T) {
		got, err := provider.Resolve(context.Background(), "leap.arch", models.NetworkMainnet)
		assert.NoError(t, err)
		assert.DeepEqual(t, got, nameservice.Result(nameservice.MultiChain{
			Entries: []nameservice.Entry{{ChainID: "osmosis-1", Address: "osmo1leap"}},
		}))
	})

	t.Run("not found", func(t *testing.T) {
		got, err := provider.Resolve(context.Background(), "nobody.arch", models.NetworkMainnet)
		assert.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("retry", func(t *testing.T) {
		calls.Store(0)
		got, err := provider.Resolve(context.Background(), "flaky.arch", models.NetworkMainnet)
		assert.NoError(t, err)
		assert.DeepEqual(t, got, nameservice.Result(nameservice.Single{Address: "osmo1flaky"}))
		assert.Equal(t, calls.Load(), int32(2))
	})

	t.Run("server error", func(t *testing.T) {
		_, err := provider.Resolve(context.Background(), "broken.arch", models.NetworkMainnet)
		assert.Error(t, err)
	})
}

func TestResolverTracesLookups(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	resolver := nameservice.NewResolver(50*time.Millisecond,
		staticProvider("fast", nameservice.Single{Address: "osmo1fast"}, nil, 0),
		staticProvider("slow", nameservice.Single{Address: "osmo1slow"}, nil, time.Hour),
	)
	res := resolver.Resolve(context.Background(), "leap.arch", models.NetworkMainnet)
	assert.NoError(t, res.Wait(context.Background()))

	outcomes := map[string]string{}
	failed := map[string]bool{}
	for _, span := range recorder.Ended() {
		assert.Equal(t, span.Name(), "nameservice.lookup")
		var provider, outcome string
		for _, kv := range span.Attributes() {
			switch kv.Key {
			case "nameservice.provider":
				provider = kv.Value.AsString()
			case "nameservice.outcome":
				outcome = kv.Value.AsString()
			case "nameservice.name":
				assert.Equal(t, kv.Value.AsString(), "leap.arch")
			}
		}
		outcomes[provider] = outcome
		failed[provider] = span.Status().Code == codes.Error
	}
	assert.DeepEqual(t, outcomes, map[string]string{"fast": "found", "slow": "timeout"})
	assert.DeepEqual(t, failed, map[string]bool{"fast": false, "slow": true})
}
