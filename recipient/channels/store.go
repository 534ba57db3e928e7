package channels

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/redis/go-redis/v9"
)

// ErrDuplicateChannel is returned by Add when the pair already has the channel.
var ErrDuplicateChannel = errors.New("channel already exists")

// CustomChannelStore persists user-added channels per (source, destination)
// pair. There is no removal.
type CustomChannelStore interface {
	// List returns the channel ids of the pair, sorted
	List(ctx context.Context, source, destination string) ([]string, error)
	// Add stores a channel id, ErrDuplicateChannel when already present
	Add(ctx context.Context, source, destination, channelID string) error
}

type pairKey struct {
	source      string
	destination string
}

// MemoryStore keeps custom channels in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	channels map[pairKey][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{channels: make(map[pairKey][]string)}
}

func (s *MemoryStore) List(_ context.Context, source, destination string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.channels[pairKey{source, destination}]), nil
}

func (s *MemoryStore) Add(_ context.Context, source, destination, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{source, destination}
	if slices.Contains(s.channels[key], channelID) {
		return ErrDuplicateChannel
	}
	s.channels[key] = append(s.channels[key], channelID)
	sort.Strings(s.channels[key])
	return nil
}

// customChannelFile is the on-disk layout of a FileStore.
type customChannelFile struct {
	Channels []customChannelEntry `toml:"channels"`
}

type customChannelEntry struct {
	Source      string `toml:"source"`
	Destination string `toml:"destination"`
	ChannelID   string `toml:"channel_id"`
}

// FileStore keeps custom channels in a TOML file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created on the
// first Add.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (*customChannelFile, error) {
	var file customChannelFile
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &file, nil
		}
		return nil, fmt.Errorf("failed to read custom channels: %w", err)
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse custom channels: %w", err)
	}
	return &file, nil
}

func (s *FileStore) List(_ context.Context, source, destination string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0)
	for _, entry := range file.Channels {
		if entry.Source == source && entry.Destination == destination {
			ids = append(ids, entry.ChannelID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileStore) Add(_ context.Context, source, destination, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	for _, entry := range file.Channels {
		if entry.Source == source && entry.Destination == destination && entry.ChannelID == channelID {
			return ErrDuplicateChannel
		}
	}
	file.Channels = append(file.Channels, customChannelEntry{
		Source:      source,
		Destination: destination,
		ChannelID:   channelID,
	})

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode custom channels: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write custom channels: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace custom channels: %w", err)
	}
	return nil
}

// RedisStore keeps custom channels in one redis set per pair.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func channelsKey(source, destination string) string {
	return fmt.Sprintf("custom_channels:%s:%s", source, destination)
}

func (s *RedisStore) List(ctx context.Context, source, destination string) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, channelsKey(source, destination)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers failed: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisStore) Add(ctx context.Context, source, destination, channelID string) error {
	added, err := s.rdb.SAdd(ctx, channelsKey(source, destination), channelID).Result()
	if err != nil {
		return fmt.Errorf("sadd failed: %w", err)
	}
	if added == 0 {
		return ErrDuplicateChannel
	}
	return nil
}
