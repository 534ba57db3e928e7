package channels_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Cogwheel-Validator/spectra-send/recipient/channels"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/zeebo/assert"
)

func TestCustomChannelStores(t *testing.T) {
	stores := map[string]func(t *testing.T) channels.CustomChannelStore{
		"memory": func(t *testing.T) channels.CustomChannelStore {
			return channels.NewMemoryStore()
		},
		"file": func(t *testing.T) channels.CustomChannelStore {
			return channels.NewFileStore(filepath.Join(t.TempDir(), "state", "custom_channels.toml"))
		},
		"redis": func(t *testing.T) channels.CustomChannelStore {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return channels.NewRedisStore(rdb)
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := newStore(t)

			ids, err := store.List(ctx, "osmosis", "cosmos")
			assert.NoError(t, err)
			assert.Equal(t, len(ids), 0)

			assert.NoError(t, store.Add(ctx, "osmosis", "cosmos", "channel-9"))
			assert.NoError(t, store.Add(ctx, "osmosis", "cosmos", "channel-10"))
			assert.NoError(t, store.Add(ctx, "osmosis", "juno", "channel-9"))

			err = store.Add(ctx, "osmosis", "cosmos", "channel-9")
			assert.True(t, errors.Is(err, channels.ErrDuplicateChannel))

			ids, err = store.List(ctx, "osmosis", "cosmos")
			assert.NoError(t, err)
			assert.DeepEqual(t, ids, []string{"channel-10", "channel-9"})

			// pairs are directional
			ids, err = store.List(ctx, "cosmos", "osmosis")
			assert.NoError(t, err)
			assert.Equal(t, len(ids), 0)
		})
	}
}

func TestFileStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "custom_channels.toml")

	assert.NoError(t, channels.NewFileStore(path).Add(ctx, "osmosis", "cosmos", "channel-42"))

	ids, err := channels.NewFileStore(path).List(ctx, "osmosis", "cosmos")
	assert.NoError(t, err)
	assert.DeepEqual(t, ids, []string{"channel-42"})
}
