// Package config provides the unified configuration struct for gatelist.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all settings for a gatelist run. Flags override values
// loaded from a YAML file, which override Defaults.
type Config struct {
	// Reference set
	Reference     string `yaml:"reference"`      // inline comma-separated entries
	ReferenceFile string `yaml:"reference_file"` // path of the reference list
	Fix           bool   `yaml:"fix"`            // rewrite list files in place

	// Resolver
	DNSServers  []string      `yaml:"dns_servers"` // "ip" or "ip:port"
	DNSTimeout  time.Duration `yaml:"dns_timeout"`
	DNSAttempts int           `yaml:"dns_attempts"`
	Concurrency int           `yaml:"concurrency"` // queries in flight per batch
	BatchSize   int           `yaml:"batch_size"`  // domains per resolution batch
	DNSBind     string        `yaml:"dns_bind"`

	// Subnet inference for bare list addresses
	AutoFix     bool   `yaml:"auto_fix"`
	RouteSource string `yaml:"route_source"` // "mrt", "kernel", "mmdb" or empty
	RoutePath   string `yaml:"route_path"`
	RouteNetns  string `yaml:"route_netns"`
	MinPrefix4  int    `yaml:"min_prefix_v4"`
	MinPrefix6  int    `yaml:"min_prefix_v6"`

	// Output
	Quiet      bool   `yaml:"quiet"`
	Verbose    bool   `yaml:"verbose"`
	ReportPath string `yaml:"report"`
	NoReport   bool   `yaml:"no_report"`
	PcapPath   string `yaml:"dns_pcap"`

	// Export and service
	NFTTable string `yaml:"nft_table"`
	Listen   string `yaml:"listen"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		DNSTimeout:  2 * time.Second,
		DNSAttempts: 3,
		Concurrency: 256,
		BatchSize:   500,
		DNSBind:     ":0",
		AutoFix:     true,
		MinPrefix4:  8,
		MinPrefix6:  16,
		NFTTable:    "default",
		Listen:      "127.0.0.1:8053",
	}
}

// LoadFile reads a YAML file over Defaults. Keys missing from the file
// keep their default.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %q: %w", path, err)
	}
	return cfg, nil
}

// HasReference reports whether a reference set was given.
func (c *Config) HasReference() bool {
	return c.Reference != "" || c.ReferenceFile != ""
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Quiet && c.Verbose {
		return fmt.Errorf("--quiet and --verbose are mutually exclusive")
	}

	if c.DNSTimeout <= 0 {
		return fmt.Errorf("dns timeout must be positive (got %s)", c.DNSTimeout)
	}
	if c.DNSAttempts <= 0 {
		return fmt.Errorf("dns attempts must be positive (got %d)", c.DNSAttempts)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive (got %d)", c.Concurrency)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive (got %d)", c.BatchSize)
	}

	for _, s := range c.DNSServers {
		if _, err := netip.ParseAddr(s); err == nil {
			continue
		}
		if _, err := netip.ParseAddrPort(s); err != nil {
			return fmt.Errorf("invalid DNS server: %s", s)
		}
	}

	switch c.RouteSource {
	case "":
	case "mrt", "mmdb":
		if c.RoutePath == "" {
			return fmt.Errorf("route source %s needs a path", c.RouteSource)
		}
	case "kernel":
	default:
		return fmt.Errorf("unknown route source %q: use mrt, kernel or mmdb", c.RouteSource)
	}

	if c.MinPrefix4 < 0 || c.MinPrefix4 > 32 {
		return fmt.Errorf("minimum IPv4 prefix must be in [0,32] (got %d)", c.MinPrefix4)
	}
	if c.MinPrefix6 < 0 || c.MinPrefix6 > 128 {
		return fmt.Errorf("minimum IPv6 prefix must be in [0,128] (got %d)", c.MinPrefix6)
	}

	return nil
}

// InferenceEnabled reports whether bare list addresses get inferred masks.
func (c *Config) InferenceEnabled() bool {
	return c.AutoFix && c.RouteSource != ""
}
