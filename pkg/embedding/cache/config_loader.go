package cache

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfigFromViper reads cache configuration from viper under the
// "cache.embedding" key, overlaying defaults. Example YAML:
//
//	cache:
//	  embedding:
//	    hot_capacity: 1000
//	    warm_capacity: 5000
//	    hot_ttl: 1h
//	    eviction_policy: adaptive
//	    enable_compression: true
//	    supported_dimensions: [256, 512, 1024, 2048]
func LoadConfigFromViper(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	config := DefaultConfig()

	if capacity := v.GetInt("cache.embedding.hot_capacity"); capacity > 0 {
		config.HotCapacity = capacity
	}
	if capacity := v.GetInt("cache.embedding.warm_capacity"); capacity > 0 {
		config.WarmCapacity = capacity
	}
	if ttl := v.GetDuration("cache.embedding.hot_ttl"); ttl > 0 {
		config.HotTTL = ttl
	}
	if ttl := v.GetDuration("cache.embedding.warm_ttl"); ttl > 0 {
		config.WarmTTL = ttl
	}
	if ttl := v.GetDuration("cache.embedding.cold_ttl"); ttl > 0 {
		config.ColdTTL = ttl
	}
	if policy := v.GetString("cache.embedding.eviction_policy"); policy != "" {
		config.EvictionPolicy = policy
	}
	if fraction := v.GetFloat64("cache.embedding.eviction_fraction"); fraction > 0 {
		config.EvictionFraction = fraction
	}
	if dims := v.GetIntSlice("cache.embedding.supported_dimensions"); len(dims) > 0 {
		config.SupportedDimensions = dims
	}
	if v.IsSet("cache.embedding.enable_compression") {
		config.EnableCompression = v.GetBool("cache.embedding.enable_compression")
	}
	if decimals := v.GetInt("cache.embedding.quantize_decimals"); decimals > 0 {
		config.QuantizeDecimals = decimals
	}
	if timeout := v.GetDuration("cache.embedding.cold_read_timeout"); timeout > 0 {
		config.ColdReadTimeout = timeout
	}
	if timeout := v.GetDuration("cache.embedding.cold_write_timeout"); timeout > 0 {
		config.ColdWriteTimeout = timeout
	}
	if interval := v.GetDuration("cache.embedding.sweep_interval"); interval > 0 {
		config.SweepInterval = interval
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("loaded configuration invalid: %w", err)
	}
	return config, nil
}
