package config

import (
	"github.com/Cogwheel-Validator/spectra-send/recipient/models"
	"github.com/Cogwheel-Validator/spectra-send/recipient/nameservice"
)

type SendServiceConfig struct {
	// rpc configs
	Port int    `mapstructure:"port" toml:"port"`
	Host string `mapstructure:"host" toml:"host"`

	// CORS configs
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `mapstructure:"rate_per_minute" toml:"rate_per_minute"`
	MaxConcurrentRequests int `mapstructure:"max_concurrent_requests" toml:"max_concurrent_requests"`

	// mainnet or testnet
	Network string `mapstructure:"network" toml:"network"`

	// chain registry, a TOML/JSON file or a directory of keplr chain configs
	ChainsPath   string `mapstructure:"chains_path" toml:"chains_path"`
	ContactsFile string `mapstructure:"contacts_file" toml:"contacts_file"`

	// IBC registry, a local `_IBC` mirror takes precedence over the URL
	IBCRegistryDir        string `mapstructure:"ibc_registry_dir" toml:"ibc_registry_dir"`
	IBCRegistryURL        string `mapstructure:"ibc_registry_url" toml:"ibc_registry_url"`
	RegistryTimeoutMs     int    `mapstructure:"registry_timeout_ms" toml:"registry_timeout_ms"`
	RegistryRetryAttempts int    `mapstructure:"registry_retry_attempts" toml:"registry_retry_attempts"`
	RegistryRetryDelayMs  int    `mapstructure:"registry_retry_delay_ms" toml:"registry_retry_delay_ms"`

	// custom channels are kept in redis when a URL is set, in the file
	// otherwise
	CustomChannelsFile string `mapstructure:"custom_channels_file" toml:"custom_channels_file"`
	RedisURL           string `mapstructure:"redis_url" toml:"redis_url"`
	RedisPassword      string `mapstructure:"redis_password" toml:"redis_password"`

	// name services
	NameServices         []nameservice.RESTProviderConfig `mapstructure:"name_services" toml:"name_services"`
	NameServiceTimeoutMs int                              `mapstructure:"name_service_timeout_ms" toml:"name_service_timeout_ms"`
	NameServiceSuffixes  []string                         `mapstructure:"name_service_suffixes" toml:"name_service_suffixes"`

	// centralized exchange deposit addresses and regex patterns
	ExchangeAddresses []string `mapstructure:"exchange_addresses" toml:"exchange_addresses"`
	ExchangePatterns  []string `mapstructure:"exchange_patterns" toml:"exchange_patterns"`

	// OpenTelemetry configs
	ServiceName    string `mapstructure:"service_name" toml:"service_name"`
	ServiceVersion string `mapstructure:"service_version" toml:"service_version"`
	Environment    string `mapstructure:"environment" toml:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `mapstructure:"enable_tracing" toml:"enable_tracing"`
	UseOTLPTraces  bool   `mapstructure:"use_otlp_traces" toml:"use_otlp_traces"`
	OTLPTracesURL  string `mapstructure:"otlp_traces_url" toml:"otlp_traces_url"`
	EnableMetrics  bool   `mapstructure:"enable_metrics" toml:"enable_metrics"`
	UsePrometheus  bool   `mapstructure:"use_prometheus" toml:"use_prometheus"`
	UseOTLPMetrics bool   `mapstructure:"use_otlp_metrics" toml:"use_otlp_metrics"`
	OTLPMetricsURL string `mapstructure:"otlp_metrics_url" toml:"otlp_metrics_url"`
	EnableLogs     bool   `mapstructure:"enable_logs" toml:"enable_logs"`
	UseOTLPLogs    bool   `mapstructure:"use_otlp_logs" toml:"use_otlp_logs"`
	OTLPLogsURL    string `mapstructure:"otlp_logs_url" toml:"otlp_logs_url"`
	InsecureOTLP   bool   `mapstructure:"insecure_otlp" toml:"insecure_otlp"`

	// Development mode logs at debug level and prints telemetry to stdout
	DevelopmentMode bool `mapstructure:"development_mode" toml:"development_mode"`
}

// NetworkMode returns the configured network, mainnet when unset.
func (c *SendServiceConfig) NetworkMode() models.Network {
	if c.Network == string(models.NetworkTestnet) {
		return models.NetworkTestnet
	}
	return models.NetworkMainnet
}
