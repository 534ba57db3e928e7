package rpc_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Cogwheel-Validator/spectra-send/recipient/address"
	"github.com/Cogwheel-Validator/spectra-send/recipient/channels"
	"github.com/Cogwheel-Validator/spectra-send/recipient/guard"
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/nameservice"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry/registrytest"
	"github.com/Cogwheel-Validator/spectra-send/recipient/rpc"
	"github.com/Cogwheel-Validator/spectra-send/recipient/session"
	"github.com/zeebo/assert"
)

const cosmosAddr = "cosmos14w46h2at4w46h2at4w46h2at4w46h2atuw643a"

type mapDefaults map[string]string

func (m mapDefaults) DefaultChannel(ctx context.Context, source, destination string) (string, bool, error) {
	id, ok := m[source+"/"+destination]
	return id, ok, nil
}

func newHandler(t *testing.T, cfg *rpc.ServerConfig, defaults mapDefaults) http.Handler {
	t.Helper()
	return newServer(t, cfg, defaults).Handler()
}

func newServer(t *testing.T, cfg *rpc.ServerConfig, defaults mapDefaults) *rpc.Server {
	t.Helper()
	reg := registrytest.New(t)
	allow := nameservice.NewAllowlist(reg.Prefixes(), nameservice.DefaultSuffixes...)
	classifier := address.NewClassifier(reg, address.WithNameCheck(allow.Eligible))

	factory := &session.Factory{
		Chains:     reg,
		Classifier: classifier,
		Allowlist:  allow,
		Guard:      guard.New(reg, classifier),
		Network:    models.NetworkMainnet,
		Defaults:   defaults,
		Store:      channels.NewMemoryStore(),
	}
	if cfg == nil {
		cfg = &rpc.ServerConfig{Address: "localhost:0", AllowedOrigins: []string{"*"}}
	}
	return rpc.NewServer(context.Background(), cfg, factory)
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		assert.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := newHandler(t, nil, mapDefaults{})

	for _, path := range []string{"/server/health", "/server/ready"} {
		rec := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, rec.Code, http.StatusOK)
	}
	// metrics are off unless enabled
	assert.Equal(t, do(t, h, http.MethodGet, "/server/metrics", nil).Code, http.StatusNotFound)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHandler(t, &rpc.ServerConfig{Address: "localhost:0", EnableMetrics: true}, mapDefaults{})
	assert.Equal(t, do(t, h, http.MethodGet, "/server/metrics", nil).Code, http.StatusOK)
}

func TestListChains(t *testing.T) {
	h := newHandler(t, nil, mapDefaults{})

	rec := do(t, h, http.MethodGet, "/v1/chains", nil)
	assert.Equal(t, rec.Code, http.StatusOK)

	var entries []rpc.ChainEntry
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	// testnet-only chains are hidden on mainnet
	assert.DeepEqual(t, keys, []string{
		"aptos", "bitcoin", "cosmos", "echelon", "ethereum", "evmos",
		"initia", "juno", "osmosis", "solana", "sui",
	})
}

func TestResolve(t *testing.T) {
	h := newHandler(t, nil, mapDefaults{"osmosis/cosmos": "channel-0"})

	tests := []struct {
		name       string
		body       any
		wantStatus int
		check      func(t *testing.T, out session.Output)
	}{
		{
			name:       "ibc recipient",
			body:       rpc.ResolveRequest{Input: cosmosAddr, SourceChain: "osmosis"},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, out session.Output) {
				assert.NotNil(t, out.SelectedAddress)
				assert.Equal(t, out.SelectedAddress.ChainName, "cosmos")
				assert.True(t, out.IsIBCTransfer)
				assert.DeepEqual(t, out.ChannelOptions, []models.ChannelOption{
					{Title: "channel-0", SubTitle: models.SubTitleDefault, Value: "channel-0"},
				})
				assert.True(t, out.CanSubmit)
			},
		},
		{
			name:       "invalid address",
			body:       rpc.ResolveRequest{Input: "nope", SourceChain: "osmosis"},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, out session.Output) {
				assert.Equal(t, out.AddressError, models.ErrMsgInvalidAddress)
				assert.False(t, out.CanSubmit)
			},
		},
		{
			name: "cw20 across chains",
			body: rpc.ResolveRequest{
				Input: cosmosAddr, SourceChain: "osmosis",
				Token: &models.Token{Denom: "cw20:osmo1contract", CW20: true},
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, out session.Output) {
				assert.Equal(t, out.AddressError, models.ErrMsgCW20NotSupported)
			},
		},
		{
			name:       "shared prefix with chosen destination",
			body:       rpc.ResolveRequest{Input: "init14w46h2at4w46h2at4w46h2at4w46h2atjc6x6l", SourceChain: "initia", DestinationChain: "echelon"},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, out session.Output) {
				assert.Equal(t, out.SelectedAddress.ChainName, "echelon")
				assert.False(t, out.NeedsDisambiguation)
			},
		},
		{
			name:       "unknown source chain",
			body:       rpc.ResolveRequest{Input: cosmosAddr, SourceChain: "nowhere"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing source chain",
			body:       rpc.ResolveRequest{Input: cosmosAddr},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			body:       map[string]string{"recipient": cosmosAddr},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "channel that is not an option",
			body:       rpc.ResolveRequest{Input: cosmosAddr, SourceChain: "osmosis", ChannelID: "99"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/resolve", tt.body)
			assert.Equal(t, rec.Code, tt.wantStatus)
			assert.Equal(t, rec.Header().Get("Cache-Control"), "no-store, no-cache, must-revalidate")
			if tt.check == nil {
				return
			}
			var out session.Output
			assert.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
			tt.check(t, out)
		})
	}
}

func TestCustomChannelFlow(t *testing.T) {
	h := newHandler(t, nil, mapDefaults{})

	rec := do(t, h, http.MethodGet, "/v1/channels?source=osmosis&destination=cosmos", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	var listed rpc.ChannelsResponse
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	assert.True(t, listed.IsIBCTransfer)
	assert.Equal(t, listed.State, channels.StateNoVerifiedChannel.String())
	assert.Equal(t, len(listed.Options), 0)

	rec = do(t, h, http.MethodPost, "/v1/channels", rpc.AddChannelRequest{Source: "osmosis", Destination: "cosmos", ChannelID: "42"})
	assert.Equal(t, rec.Code, http.StatusCreated)
	var added rpc.AddChannelResponse
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&added))
	assert.True(t, added.Added)
	assert.Equal(t, added.ChannelID, "channel-42")

	rec = do(t, h, http.MethodPost, "/v1/channels", rpc.AddChannelRequest{Source: "osmosis", Destination: "cosmos", ChannelID: "channel-42"})
	assert.Equal(t, rec.Code, http.StatusOK)
	var dup rpc.AddChannelResponse
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&dup))
	assert.False(t, dup.Added)
	assert.NotEqual(t, dup.Message, "")

	// the stored channel now backs a resolve
	rec = do(t, h, http.MethodPost, "/v1/resolve", rpc.ResolveRequest{
		Input: cosmosAddr, SourceChain: "osmosis", ChannelID: "42", AcknowledgeUnverified: true,
	})
	assert.Equal(t, rec.Code, http.StatusOK)
	var out session.Output
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, out.CustomChannelID, "channel-42")
	assert.Equal(t, out.AddressWarning, models.WarnMsgUnverifiedChannel)
	assert.False(t, out.RequiresAck)
	assert.True(t, out.CanSubmit)
}

func TestChannelRequestErrors(t *testing.T) {
	h := newHandler(t, nil, mapDefaults{})

	tests := []struct {
		name   string
		method string
		target string
		body   any
	}{
		{"missing destination", http.MethodGet, "/v1/channels?source=osmosis", nil},
		{"unknown chain", http.MethodGet, "/v1/channels?source=osmosis&destination=nowhere", nil},
		{"not an ibc pair", http.MethodPost, "/v1/channels", rpc.AddChannelRequest{Source: "osmosis", Destination: "ethereum", ChannelID: "1"}},
		{"bad channel id", http.MethodPost, "/v1/channels", rpc.AddChannelRequest{Source: "osmosis", Destination: "cosmos", ChannelID: "chan 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, rec.Code, http.StatusBadRequest)
		})
	}
}

func TestRateLimit(t *testing.T) {
	limit := 1
	h := newHandler(t, &rpc.ServerConfig{Address: "localhost:0", RatePerMinute: &limit}, mapDefaults{})

	assert.Equal(t, do(t, h, http.MethodGet, "/server/health", nil).Code, http.StatusOK)
	assert.Equal(t, do(t, h, http.MethodGet, "/server/health", nil).Code, http.StatusTooManyRequests)
}

func TestServerWithTracing(t *testing.T) {
	var nilConfig *rpc.OTelConfig
	assert.False(t, nilConfig.Enabled())
	assert.False(t, (&rpc.OTelConfig{UsePrometheus: true}).Enabled())

	cfg := &rpc.ServerConfig{
		Address:        "localhost:0",
		AllowedOrigins: []string{"*"},
		OTelConfig: &rpc.OTelConfig{
			ServiceName:     "spectra-send-test",
			EnableTracing:   true,
			DevelopmentMode: true,
		},
	}
	assert.True(t, cfg.OTelConfig.Enabled())

	server := newServer(t, cfg, mapDefaults{"osmosis/cosmos": "channel-0"})
	rec := do(t, server.Handler(), http.MethodGet, "/server/health", nil)
	assert.Equal(t, rec.Code, http.StatusOK)

	rec = do(t, server.Handler(), http.MethodPost, "/v1/resolve", rpc.ResolveRequest{
		Input:       cosmosAddr,
		SourceChain: "osmosis",
	})
	assert.Equal(t, rec.Code, http.StatusOK)

	assert.NoError(t, server.Shutdown(context.Background()))
}

func TestRateLimitKeysOnForwardedClient(t *testing.T) {
	limit := 1
	h := newHandler(t, &rpc.ServerConfig{Address: "localhost:0", RatePerMinute: &limit}, mapDefaults{})

	get := func(header, value string) int {
		req := httptest.NewRequest(http.MethodGet, "/server/health", nil)
		req.Header.Set(header, value)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, get("X-Forwarded-For", "203.0.113.1, 10.0.0.1"), http.StatusOK)
	assert.Equal(t, get("X-Forwarded-For", "203.0.113.1, 10.0.0.2"), http.StatusTooManyRequests)
	assert.Equal(t, get("CF-Connecting-IP", "203.0.113.2"), http.StatusOK)
}

func TestCORSAllowsTraceHeaders(t *testing.T) {
	h := newHandler(t, nil, mapDefaults{})

	tests := []struct {
		name    string
		headers string
		allowed bool
	}{
		{name: "traceparent", headers: "content-type, traceparent", allowed: true},
		{name: "unknown header", headers: "x-wallet-secret", allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/v1/resolve", nil)
			req.Header.Set("Origin", "https://wallet.example")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", tt.headers)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			origin := rec.Header().Get("Access-Control-Allow-Origin")
			if tt.allowed {
				assert.Equal(t, origin, "*")
			} else {
				assert.Equal(t, origin, "")
			}
		})
	}
}
