package config

import (
	"time"

	"github.com/dmitrijs2005/saveme/internal/export"
	"github.com/dmitrijs2005/saveme/internal/services"
)

// Config holds runtime settings for the saveme CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of a saveme daemon. Empty runs the vault
//     in-process against DatabaseDSN.
//   - OnlineCheckInterval: how often the client probes a daemon.
//   - DatabaseDSN, BlobDir: local store and blob directory.
//   - UserID: default user for setup and unlock.
//   - NATSURL: view notifications are published here in local mode.
//   - LogLevel: level of the stderr logger.
//   - Policy, S3: local-mode retention policy and export upload target.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	DatabaseDSN         string
	BlobDir             string
	UserID              string
	NATSURL             string
	LogLevel            string
	Policy              services.Policy
	S3                  export.S3Config
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = ""
	c.OnlineCheckInterval = 3 * time.Second
	c.DatabaseDSN = "saveme.db"
	c.BlobDir = "blobs"
	c.LogLevel = "warn"
	c.Policy = services.DefaultPolicy()
	c.S3 = export.S3Config{Region: "us-east-1"}
}

// Remote reports whether the CLI talks to a daemon.
func (c *Config) Remote() bool { return c.ServerEndpointAddr != "" }

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
