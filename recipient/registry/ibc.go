package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "registry").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "registry").Logger()
}

// TransferPort is the ICS-20 port id.
const TransferPort = "transfer"

// DefaultRawBaseURL serves single files of the cosmos chain registry.
const DefaultRawBaseURL = "https://raw.githubusercontent.com/cosmos/chain-registry/master/_IBC"

// PairFileName returns the `_IBC` file describing the connection between two
// registry chains. The registry orders the names alphabetically.
func PairFileName(a, b string) string {
	names := []string{a, b}
	sort.Strings(names)
	return fmt.Sprintf("%s-%s.json", names[0], names[1])
}

// TransferChannels returns the ICS-20 channels of the file as seen from the
// given registry chain. It returns nil when the chain is on neither side.
func (d *ChainIbcData) TransferChannels(fromChain string) []ChannelEnd {
	var fromFirst bool
	switch fromChain {
	case d.Chain1.ChainName:
		fromFirst = true
	case d.Chain2.ChainName:
		fromFirst = false
	default:
		return nil
	}

	ends := make([]ChannelEnd, 0, len(d.Channels))
	for _, channel := range d.Channels {
		local, remote, connection := channel.Chain1, channel.Chain2, d.Chain1.ConnectionID
		if !fromFirst {
			local, remote, connection = channel.Chain2, channel.Chain1, d.Chain2.ConnectionID
		}
		if local.PortID != TransferPort || remote.PortID != TransferPort {
			continue
		}
		ends = append(ends, ChannelEnd{
			ChannelID:             local.ChannelID,
			CounterpartyChannelID: remote.ChannelID,
			PortID:                local.PortID,
			ConnectionID:          connection,
			Preferred:             channel.Tags.Preferred,
			Status:                channel.Tags.Status,
		})
	}
	return ends
}

func isActive(status string) bool {
	status = strings.ToUpper(status)
	return status == "ACTIVE" || status == "LIVE"
}

// PickDefault returns the verified default channel: the preferred active
// channel, or the only active one when none is tagged preferred.
func PickDefault(ends []ChannelEnd) (ChannelEnd, bool) {
	var active []ChannelEnd
	for _, end := range ends {
		if !isActive(end.Status) {
			continue
		}
		if end.Preferred {
			return end, true
		}
		active = append(active, end)
	}
	if len(active) == 1 {
		return active[0], true
	}
	return ChannelEnd{}, false
}

// fetchFunc loads one `_IBC` file. found is false when the registry has no
// file for the pair.
type fetchFunc func(ctx context.Context, fileName string) (data *ChainIbcData, found bool, err error)

// channelSource answers default-channel lookups for chain keys on top of a
// registry file fetcher.
type channelSource struct {
	chains *Registry
	fetch  fetchFunc

	mu    sync.RWMutex
	cache map[string]*ChainIbcData // file name -> data, nil when not found
}

func newChannelSource(chains *Registry, fetch fetchFunc) *channelSource {
	return &channelSource{
		chains: chains,
		fetch:  fetch,
		cache:  make(map[string]*ChainIbcData),
	}
}

func (s *channelSource) registryName(chainKey string) (string, error) {
	chain, ok := s.chains.Chain(chainKey)
	if !ok {
		return "", fmt.Errorf("unknown chain: %s", chainKey)
	}
	if chain.RegistryName != "" {
		return chain.RegistryName, nil
	}
	return chain.Key, nil
}

func (s *channelSource) channelEnds(ctx context.Context, source, destination string) ([]ChannelEnd, bool, error) {
	from, err := s.registryName(source)
	if err != nil {
		return nil, false, err
	}
	to, err := s.registryName(destination)
	if err != nil {
		return nil, false, err
	}
	fileName := PairFileName(from, to)

	s.mu.RLock()
	data, cached := s.cache[fileName]
	s.mu.RUnlock()

	if !cached {
		var found bool
		data, found, err = s.fetch(ctx, fileName)
		if err != nil {
			return nil, false, fmt.Errorf("failed to load %s: %w", fileName, err)
		}
		if !found {
			data = nil
		}
		s.mu.Lock()
		s.cache[fileName] = data
		s.mu.Unlock()
	}

	if data == nil {
		return nil, false, nil
	}
	return data.TransferChannels(from), true, nil
}

// DefaultChannel returns the registry-verified channel id on the source chain
// towards the destination. found is false when the registry has no entry.
func (s *channelSource) DefaultChannel(ctx context.Context, source, destination string) (string, bool, error) {
	ends, found, err := s.channelEnds(ctx, source, destination)
	if err != nil || !found {
		return "", false, err
	}
	end, ok := PickDefault(ends)
	if !ok {
		return "", false, nil
	}
	return end.ChannelID, true, nil
}

// RegistryChannels lists every active transfer channel id the registry knows
// for the pair.
func (s *channelSource) RegistryChannels(ctx context.Context, source, destination string) ([]string, error) {
	ends, _, err := s.channelEnds(ctx, source, destination)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ends))
	for _, end := range ends {
		if isActive(end.Status) {
			ids = append(ids, end.ChannelID)
		}
	}
	return ids, nil
}

// DirSource reads a local mirror of the registry `_IBC` directory.
type DirSource struct {
	*channelSource
	dir string
}

// NewDirSource creates a source over a directory populated by Download.
func NewDirSource(chains *Registry, dir string) *DirSource {
	src := &DirSource{dir: dir}
	src.channelSource = newChannelSource(chains, src.readFile)
	return src
}

func (d *DirSource) readFile(_ context.Context, fileName string) (*ChainIbcData, bool, error) {
	body, err := os.ReadFile(filepath.Join(d.dir, fileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read file: %w", err)
	}
	var data ChainIbcData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal file: %w", err)
	}
	return &data, true, nil
}

// HTTPSource fetches single `_IBC` files over HTTP.
type HTTPSource struct {
	*channelSource
	baseURL       string
	client        *http.Client
	retryAttempts int
	retryDelay    time.Duration
}

// NewHTTPSource creates a source for the given base URL (DefaultRawBaseURL
// when empty).
func NewHTTPSource(chains *Registry, baseURL string, timeout time.Duration, retryAttempts int, retryDelay time.Duration) *HTTPSource {
	if baseURL == "" {
		baseURL = DefaultRawBaseURL
	}
	src := &HTTPSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		retryAttempts: retryAttempts,
		retryDelay:    retryDelay,
	}
	src.channelSource = newChannelSource(chains, src.get)
	return src
}

func (h *HTTPSource) get(ctx context.Context, fileName string) (*ChainIbcData, bool, error) {
	url := fmt.Sprintf("%s/%s", h.baseURL, fileName)
	var lastErr error

	for attempt := 0; attempt <= h.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-time.After(h.retryDelay):
			}
		}

		data, found, err := h.doGet(ctx, url)
		if err == nil {
			return data, found, nil
		}
		lastErr = err
		log.Debug().Err(err).Str("url", url).Int("attempt", attempt+1).Msg("registry fetch failed")
	}

	return nil, false, fmt.Errorf("request failed after %d attempts: %w", h.retryAttempts+1, lastErr)
}

func (h *HTTPSource) doGet(ctx context.Context, url string) (*ChainIbcData, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	var data ChainIbcData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false, fmt.Errorf("failed to parse registry file: %w", err)
	}
	return &data, true, nil
}
