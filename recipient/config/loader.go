package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadSendServiceConfig loads the service config from the given path, or from
// SPECTRA_SEND_* environment variables when path is nil.
func LoadSendServiceConfig(configPath *string) (*SendServiceConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == nil {
		// if no file expect envs
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	}

	config, err := loadFile(v, *configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", string(models.NetworkMainnet))
	v.SetDefault("rate_per_minute", 120)
	v.SetDefault("max_concurrent_requests", 100)
	v.SetDefault("registry_timeout_ms", 10000)
	v.SetDefault("registry_retry_attempts", 2)
	v.SetDefault("registry_retry_delay_ms", 500)
	v.SetDefault("name_service_timeout_ms", 5000)
	v.SetDefault("service_name", "spectra-send")
	v.SetDefault("service_version", "1.0.0")
	v.SetDefault("environment", "development")
	v.SetDefault("otlp_traces_url", "http://localhost:4318/v1/traces")
	v.SetDefault("otlp_metrics_url", "http://localhost:4318/v1/metrics")
	v.SetDefault("otlp_logs_url", "http://localhost:4318/v1/logs")
}

func loadEnv(v *viper.Viper) (*SendServiceConfig, error) {
	// godot might fail if .env file is missing but
	// env can be applied through docker, systemd or other means, so skip error
	_ = godotenv.Load()
	v.SetEnvPrefix("SPECTRA_SEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config SendServiceConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded. Name services can only be set from a file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests",
		"network", "chains_path", "contacts_file",
		"ibc_registry_dir", "ibc_registry_url",
		"registry_timeout_ms", "registry_retry_attempts", "registry_retry_delay_ms",
		"custom_channels_file", "redis_url", "redis_password",
		"name_service_timeout_ms", "name_service_suffixes",
		"exchange_addresses", "exchange_patterns",
		"service_name", "service_version", "environment",
		"enable_tracing", "use_otlp_traces", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "use_otlp_metrics", "otlp_metrics_url",
		"enable_logs", "use_otlp_logs", "otlp_logs_url",
		"insecure_otlp",
		"development_mode",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*SendServiceConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config SendServiceConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}

	return &config, nil
}

func verifyConfig(config *SendServiceConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if config.Host == "" {
		return fmt.Errorf("host is required")
	}

	if len(config.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required")
	}

	if config.ChainsPath == "" {
		return fmt.Errorf("chains_path is required")
	}

	switch models.Network(config.Network) {
	case models.NetworkMainnet, models.NetworkTestnet:
	default:
		return fmt.Errorf("network must be mainnet or testnet, got %q", config.Network)
	}

	if config.RatePerMinute <= 0 {
		return fmt.Errorf("rate_per_minute must be positive")
	}

	seen := make(map[string]struct{}, len(config.NameServices))
	for i, ns := range config.NameServices {
		if ns.ID == "" || ns.URL == "" {
			return fmt.Errorf("name_services[%d] needs an id and a url", i)
		}
		if _, ok := seen[ns.ID]; ok {
			return fmt.Errorf("duplicate name service id: %s", ns.ID)
		}
		seen[ns.ID] = struct{}{}
	}

	otlpURLs := []struct {
		enabled bool
		key     string
		url     string
	}{
		{config.EnableTracing && config.UseOTLPTraces, "otlp_traces_url", config.OTLPTracesURL},
		{config.EnableMetrics && config.UseOTLPMetrics, "otlp_metrics_url", config.OTLPMetricsURL},
		{config.EnableLogs && config.UseOTLPLogs, "otlp_logs_url", config.OTLPLogsURL},
	}
	for _, otlp := range otlpURLs {
		if !otlp.enabled {
			continue
		}
		if u, err := url.Parse(otlp.url); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", otlp.key, otlp.url)
		}
	}

	for _, pattern := range config.ExchangePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid exchange pattern %q: %w", pattern, err)
		}
	}

	return nil
}
