// Package config handles configuration for the daemon: defaults, an optional
// JSON file overlay and command-line flags, applied in that order.
package config

import (
	"time"

	"github.com/dmitrijs2005/saveme/internal/export"
	"github.com/dmitrijs2005/saveme/internal/services"
)

// Config holds runtime settings for the saveme daemon.
//
// Fields:
//   - EndpointAddrGRPC: bind address for the gRPC endpoint.
//   - DatabaseDSN: record store DSN; postgres:// URLs select PostgreSQL,
//     anything else is a SQLite path.
//   - BlobDir: where encrypted media is kept.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use test defaults in prod.
//   - AccessTokenValidityDuration: token lifetime.
//   - LoginRatePerMinute / LoginBurst: per-user login attempt limiter.
//   - SweepInterval: periodic auto-delete sweep, zero disables it.
//   - NATSURL: view notifications are published here when set.
//   - AllowRemoteWipe: whether clients may call Wipe.
//   - Policy: retention and view limits.
//   - S3: export upload target, disabled when the bucket is empty.
type Config struct {
	EndpointAddrGRPC            string
	DatabaseDSN                 string
	BlobDir                     string
	SecretKey                   string
	AccessTokenValidityDuration time.Duration
	LoginRatePerMinute          int
	LoginBurst                  int
	SweepInterval               time.Duration
	NATSURL                     string
	AllowRemoteWipe             bool
	LogLevel                    string
	Policy                      services.Policy
	S3                          export.S3Config
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey must be overridden outside development.
func (c *Config) LoadDefaults() {
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDSN = "saveme-server.db"
	c.BlobDir = "blobs"
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.LoginRatePerMinute = 10
	c.LoginBurst = 5
	c.SweepInterval = 5 * time.Minute
	c.LogLevel = "info"
	c.Policy = services.DefaultPolicy()
	c.S3 = export.S3Config{Region: "us-east-1"}
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
