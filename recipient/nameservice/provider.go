package nameservice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
)

// Provider resolves names for one name service.
type Provider interface {
	ID() string
	// Resolve returns nil when the service has no record for the name.
	Resolve(ctx context.Context, name string, network models.Network) (Result, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc struct {
	ProviderID string
	Fn         func(ctx context.Context, name string, network models.Network) (Result, error)
}

func (p ProviderFunc) ID() string { return p.ProviderID }

func (p ProviderFunc) Resolve(ctx context.Context, name string, network models.Network) (Result, error) {
	return p.Fn(ctx, name, network)
}

// RESTProvider queries a JSON name-service endpoint:
//
//	GET <baseURL>?name=<name>&network=<network>
//
// The response body is decoded with DecodeResult. 404 means no record.
type RESTProvider struct {
	id            string
	baseURL       string
	client        *http.Client
	retryAttempts int
	retryDelay    time.Duration
}

// RESTProviderConfig configures a RESTProvider.
type RESTProviderConfig struct {
	ID            string        `mapstructure:"id" toml:"id"`
	URL           string        `mapstructure:"url" toml:"url"`
	Timeout       time.Duration `mapstructure:"timeout" toml:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts" toml:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" toml:"retry_delay"`
}

// NewRESTProvider creates a provider for the endpoint.
func NewRESTProvider(cfg RESTProviderConfig) *RESTProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RESTProvider{
		id:      cfg.ID,
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
	}
}

func (p *RESTProvider) ID() string { return p.id }

func (p *RESTProvider) Resolve(ctx context.Context, name string, network models.Network) (Result, error) {
	query := url.Values{}
	query.Set("name", name)
	query.Set("network", string(network))
	endpoint := p.baseURL + "?" + query.Encode()

	var lastErr error
	for attempt := 0; attempt <= p.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.retryDelay):
			}
		}

		result, err := p.doGet(ctx, endpoint)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug().Err(err).Str("provider", p.id).Int("attempt", attempt+1).Msg("name lookup failed")
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", p.retryAttempts+1, lastErr)
}

func (p *RESTProvider) doGet(ctx context.Context, endpoint string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return DecodeResult(body)
}
