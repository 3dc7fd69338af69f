// Package config loads the router/engine options from spec.md §6 via
// viper, generalizing the teacher's conf.Server.DLNA struct (a single
// hardcoded config block read through a global) into an explicit,
// loadable Config value with no package-level singleton, per
// spec.md §9 ("no module-level singleton").
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every option spec.md §6 names for the router/engines.
type Config struct {
	MulticastAddress     string        `mapstructure:"multicastAddress"`
	MulticastPort        int           `mapstructure:"multicastPort"`
	StreamListenPort     int           `mapstructure:"streamListenPort"`
	TTL                  int           `mapstructure:"ttl"`
	MaxDatagramBytes     int           `mapstructure:"maxDatagramBytes"`
	SearchMX             time.Duration `mapstructure:"searchMx"`
	AdvertiseIntervalSec int           `mapstructure:"advertiseIntervalSec"`
	MinLeaseSec          int           `mapstructure:"minLeaseSec"`
	MaxLeaseSec          int           `mapstructure:"maxLeaseSec"`
	RenewalSlackSec      int           `mapstructure:"renewalSlackSec"`
	IncludeInterfaces    []string      `mapstructure:"includeInterfaces"`
	ExcludeInterfaces    []string      `mapstructure:"excludeInterfaces"`
	UserAgentProduct     string        `mapstructure:"userAgentProduct"`
	PathPrefix           string        `mapstructure:"pathPrefix"`
}

// Defaults returns the out-of-the-box configuration, matching common
// UPnP device behavior: an 1800 s maximum lease and an advertise
// interval of half that (900 s, 15 min).
func Defaults() Config {
	return Config{
		MulticastAddress:     "239.255.255.250",
		MulticastPort:        1900,
		StreamListenPort:     8200,
		TTL:                  4,
		MaxDatagramBytes:     65535,
		SearchMX:             3 * time.Second,
		AdvertiseIntervalSec: 1800 / 2,
		MinLeaseSec:          180,
		MaxLeaseSec:          1800,
		RenewalSlackSec:      30,
		UserAgentProduct:     "goupnp-core/1.0",
		PathPrefix:           "/upnp",
	}
}

// Load reads configuration from an optional file plus
// UPNP_-prefixed environment variables, overlaying Defaults().
func Load(path string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("UPNP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about, so bind each one to
	// its UPNP_ variable explicitly.
	for _, key := range []string{
		"multicastAddress", "multicastPort", "streamListenPort", "ttl",
		"maxDatagramBytes", "searchMx", "advertiseIntervalSec", "minLeaseSec",
		"maxLeaseSec", "renewalSlackSec", "includeInterfaces", "excludeInterfaces",
		"userAgentProduct", "pathPrefix",
	} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration error class spec.md §6/§7 calls a
// "configuration error" (exit code 3 for CLI consumers).
func (c Config) Validate() error {
	if c.MinLeaseSec <= 0 || c.MaxLeaseSec <= 0 || c.MinLeaseSec > c.MaxLeaseSec {
		return fmt.Errorf("config: minLeaseSec/maxLeaseSec must satisfy 0 < min <= max")
	}
	if c.SearchMX <= 0 || c.SearchMX > 5*time.Second {
		return fmt.Errorf("config: searchMx must be in (0, 5s]")
	}
	if c.MulticastPort <= 0 || c.StreamListenPort <= 0 {
		return fmt.Errorf("config: multicastPort/streamListenPort must be positive")
	}
	return nil
}
