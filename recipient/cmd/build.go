package main

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/Cogwheel-Validator/spectra-send/recipient/address"
	"github.com/Cogwheel-Validator/spectra-send/recipient/channels"
	"github.com/Cogwheel-Validator/spectra-send/recipient/config"
	"github.com/Cogwheel-Validator/spectra-send/recipient/contacts"
	"github.com/Cogwheel-Validator/spectra-send/recipient/guard"
	"github.com/Cogwheel-Validator/spectra-send/recipient/nameservice"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry"
	"github.com/Cogwheel-Validator/spectra-send/recipient/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// buildFactory wires the session factory from the service config. The
// returned cleanup closes the connections it opened.
func buildFactory(ctx context.Context, cfg *config.SendServiceConfig) (*session.Factory, func(), error) {
	if cfg.DevelopmentMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	reg, err := config.LoadChains(cfg.ChainsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load chains: %w", err)
	}
	log.Info().Int("count", len(reg.Keys())).Str("network", string(cfg.NetworkMode())).Msg("Loaded chains")

	suffixes := append(append([]string{}, nameservice.DefaultSuffixes...), cfg.NameServiceSuffixes...)
	allow := nameservice.NewAllowlist(reg.Prefixes(), suffixes...)
	classifier := address.NewClassifier(reg, address.WithNameCheck(allow.Eligible))

	var names *nameservice.Resolver
	if len(cfg.NameServices) > 0 {
		providers := make([]nameservice.Provider, 0, len(cfg.NameServices))
		for _, ns := range cfg.NameServices {
			providers = append(providers, nameservice.NewRESTProvider(ns))
		}
		names = nameservice.NewResolver(ms(cfg.NameServiceTimeoutMs), providers...)
		log.Info().Strs("providers", names.ProviderIDs()).Msg("Name services configured")
	}

	factory := &session.Factory{
		Chains:     reg,
		Classifier: classifier,
		Allowlist:  allow,
		Names:      names,
		Network:    cfg.NetworkMode(),
	}

	if cfg.ContactsFile != "" {
		book, err := contacts.LoadFile(cfg.ContactsFile)
		if err != nil {
			return nil, nil, err
		}
		factory.Matcher = contacts.NewMatcher(reg, book, book)
		factory.Wallets = book
		log.Info().Int("contacts", len(book.Contacts())).Int("wallets", len(book.Wallets())).Msg("Loaded address book")
	} else {
		factory.Matcher = contacts.NewMatcher(reg, nil, nil)
	}

	if cfg.IBCRegistryDir != "" {
		src := registry.NewDirSource(reg, cfg.IBCRegistryDir)
		factory.Defaults, factory.Lister = src, src
	} else {
		src := registry.NewHTTPSource(reg, cfg.IBCRegistryURL, ms(cfg.RegistryTimeoutMs), cfg.RegistryRetryAttempts, ms(cfg.RegistryRetryDelayMs))
		factory.Defaults, factory.Lister = src, src
	}

	cleanup := func() {}
	switch {
	case cfg.RedisURL != "":
		rdb, err := newRedisClient(ctx, cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		factory.Store = channels.NewRedisStore(rdb)
		cleanup = func() {
			if err := rdb.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close redis client")
			}
		}
	case cfg.CustomChannelsFile != "":
		factory.Store = channels.NewFileStore(cfg.CustomChannelsFile)
	default:
		log.Warn().Msg("No custom channel store configured, custom channels are kept in memory")
		factory.Store = channels.NewMemoryStore()
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.ExchangePatterns))
	for _, p := range cfg.ExchangePatterns {
		patterns = append(patterns, regexp.MustCompile(p))
	}
	factory.Guard = guard.New(reg, classifier,
		guard.WithExchangeAddresses(cfg.ExchangeAddresses...),
		guard.WithExchangePatterns(patterns...),
	)

	return factory, cleanup, nil
}

func newRedisClient(ctx context.Context, url, password string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}
