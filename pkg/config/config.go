package config

// Package config provides a reusable loader for weavegate's configuration
// files and environment variables, following the teacher's viper-backed
// Load/LoadFromEnv shape (pkg/config/config.go in the teacher tree).
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"weavegate/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified gateway configuration, mirroring spec §6's
// recognized-options table. It is populated from cmd/config/*.yaml plus
// any WEAVEGATE_ENV-specific overlay and environment variables.
type Config struct {
	Retrieval struct {
		OnDemandOrder    []string `mapstructure:"on_demand_retrieval_order" json:"on_demand_retrieval_order"`
		BackgroundOrder  []string `mapstructure:"background_retrieval_order" json:"background_retrieval_order"`
		SkipDataCache    bool     `mapstructure:"skip_data_cache" json:"skip_data_cache"`
		MaxHops          int      `mapstructure:"max_hops" json:"max_hops"`
	} `mapstructure:"retrieval" json:"retrieval"`

	ArNS struct {
		PreferredNames     []string `mapstructure:"preferred_arns_names" json:"preferred_arns_names"`
		PreferredBaseNames []string `mapstructure:"preferred_arns_base_names" json:"preferred_arns_base_names"`
	} `mapstructure:"arns" json:"arns"`

	Bundles struct {
		MaxNestingDepth int  `mapstructure:"max_bundle_nesting_depth" json:"max_bundle_nesting_depth"`
		LegacyEnabled   bool `mapstructure:"legacy_root_index_enabled" json:"legacy_root_index_enabled"`
	} `mapstructure:"bundles" json:"bundles"`

	Metadata struct {
		MRUArNSLength int `mapstructure:"mru_arns_length" json:"mru_arns_length"`
	} `mapstructure:"metadata" json:"metadata"`

	RateLimit struct {
		ResourceCapacity     float64  `mapstructure:"resource_capacity" json:"resource_capacity"`
		ResourceRefillRate   float64  `mapstructure:"resource_refill_rate" json:"resource_refill_rate"`
		IPCapacity           float64  `mapstructure:"ip_capacity" json:"ip_capacity"`
		IPRefillRate         float64  `mapstructure:"ip_refill_rate" json:"ip_refill_rate"`
		CapacityMultiplier   float64  `mapstructure:"capacity_multiplier" json:"capacity_multiplier"`
		IPAllowlist          []string `mapstructure:"ip_allowlist" json:"ip_allowlist"`
		BucketCap            int      `mapstructure:"bucket_cap" json:"bucket_cap"`
		RemoteBackendAddr    string   `mapstructure:"remote_backend_addr" json:"remote_backend_addr"`
	} `mapstructure:"rate_limit" json:"rate_limit"`

	TrustedGateways struct {
		URLWeights         map[string]float64 `mapstructure:"url_weights" json:"url_weights"`
		RequestTimeoutMs   int                `mapstructure:"request_timeout_ms" json:"request_timeout_ms"`
		ReweighIntervalMs  int                `mapstructure:"reweigh_interval_ms" json:"reweigh_interval_ms"`
	} `mapstructure:"trusted_gateways" json:"trusted_gateways"`

	Storage struct {
		ContentDir  string `mapstructure:"content_dir" json:"content_dir"`
		MetadataCap int    `mapstructure:"metadata_cap" json:"metadata_cap"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the WEAVEGATE_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("WEAVEGATE_ENV", ""))
}

// Watch re-unmarshals AppConfig whenever the on-disk config file changes and
// invokes onChange so long-lived callers (the rate limiter's capacity
// knobs, the trusted-gateway pool) can pick up new values without a
// restart. Must be called after Load/LoadFromEnv has established viper's
// config file path.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if err := viper.Unmarshal(&AppConfig); err != nil {
			return
		}
		if onChange != nil {
			onChange(&AppConfig)
		}
	})
	viper.WatchConfig()
}
