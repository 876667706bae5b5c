// Package config loads auctionview configuration.
//
// Configuration comes from a YAML file named by the --config flag or the AUCTIONVIEW_CONFIG
// environment variable. A .env file in the working directory is loaded first, then
// AUCTIONVIEW_* environment variables override file values. Without a file the defaults
// target the public testnet deployment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cloudx-io/auctionview/dispatch"
)

// Config is the auctionview configuration.
type Config struct {
	// ProgramID is the auction program on the ledger.
	// Default: private_auction.aleo
	ProgramID string `yaml:"program_id"`

	// Network is the ledger network name used in node URLs and transactions.
	// Default: testnet
	Network string `yaml:"network"`

	// NodeURL serves point mapping queries.
	NodeURL string `yaml:"node_url"`

	// ListingURL serves full mapping listings.
	ListingURL string `yaml:"listing_url"`

	// Wallet configures the session's wallet.
	Wallet WalletConfig `yaml:"wallet"`

	// QueryConcurrency bounds parallel point queries per refresh.
	QueryConcurrency int `yaml:"query_concurrency"`

	// MetadataCacheSize is the number of metadata documents kept in memory.
	MetadataCacheSize int `yaml:"metadata_cache_size"`

	// RefreshInterval is how often the read API refreshes state, e.g. "30s". "0" disables it.
	RefreshInterval string `yaml:"refresh_interval"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Listen is the read API address.
	Listen string `yaml:"listen"`
}

// WalletConfig configures the wallet.
type WalletConfig struct {
	// Kind is "event" or "direct".
	Kind string `yaml:"kind"`

	// RecordsFile is a JSON export of decrypted records. Private refreshes are disabled
	// when empty.
	RecordsFile string `yaml:"records_file"`

	// Session is the public key of the connected account.
	Session string `yaml:"session"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		ProgramID:  "private_auction.aleo",
		Network:    "testnet",
		NodeURL:    "https://api.explorer.provable.com/v1",
		ListingURL: "https://api.testnet.aleoscan.io",
		Wallet: WalletConfig{
			Kind: string(dispatch.DirectWallet),
		},
		QueryConcurrency:  8,
		MetadataCacheSize: 512,
		RefreshInterval:   "30s",
		LogLevel:          "info",
		Listen:            ":8080",
	}
}

// Load reads the configuration. An empty path falls back to AUCTIONVIEW_CONFIG; when neither
// is set only defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("AUCTIONVIEW_CONFIG")
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides file values with AUCTIONVIEW_* variables.
func (c *Config) applyEnv() error {
	stringVars := map[string]*string{
		"AUCTIONVIEW_PROGRAM_ID":       &c.ProgramID,
		"AUCTIONVIEW_NETWORK":          &c.Network,
		"AUCTIONVIEW_NODE_URL":         &c.NodeURL,
		"AUCTIONVIEW_LISTING_URL":      &c.ListingURL,
		"AUCTIONVIEW_WALLET_KIND":      &c.Wallet.Kind,
		"AUCTIONVIEW_RECORDS_FILE":     &c.Wallet.RecordsFile,
		"AUCTIONVIEW_SESSION":          &c.Wallet.Session,
		"AUCTIONVIEW_REFRESH_INTERVAL": &c.RefreshInterval,
		"AUCTIONVIEW_LOG_LEVEL":        &c.LogLevel,
		"AUCTIONVIEW_LISTEN":           &c.Listen,
	}
	for name, dst := range stringVars {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"AUCTIONVIEW_QUERY_CONCURRENCY":   &c.QueryConcurrency,
		"AUCTIONVIEW_METADATA_CACHE_SIZE": &c.MetadataCacheSize,
	}
	for name, dst := range intVars {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s=%q: %w", name, v, err)
		}
		*dst = n
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.ProgramID == "" {
		errs = append(errs, errors.New("program_id is required"))
	}
	if c.Network == "" {
		errs = append(errs, errors.New("network is required"))
	}
	for name, raw := range map[string]string{"node_url": c.NodeURL, "listing_url": c.ListingURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an http(s) url, got %q", name, raw))
		}
	}
	if _, err := dispatch.ParseWalletKind(c.Wallet.Kind); err != nil {
		errs = append(errs, fmt.Errorf("wallet.kind: %w", err))
	}
	if c.QueryConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("query_concurrency must be positive, got %d", c.QueryConcurrency))
	}
	if c.MetadataCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("metadata_cache_size must be positive, got %d", c.MetadataCacheSize))
	}
	if _, err := c.Interval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Interval parses RefreshInterval. Zero means no periodic refresh.
func (c *Config) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return 0, fmt.Errorf("refresh_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("refresh_interval must not be negative, got %s", d)
	}
	return d, nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// WalletKind returns the parsed wallet kind. Call after Validate.
func (c *Config) WalletKind() dispatch.WalletKind {
	kind, _ := dispatch.ParseWalletKind(c.Wallet.Kind)
	return kind
}
