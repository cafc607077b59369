package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/saveme/internal/export"
	"github.com/dmitrijs2005/saveme/internal/flagx"
	"github.com/dmitrijs2005/saveme/internal/services"
	"github.com/dmitrijs2005/saveme/internal/timex"
)

// JsonConfig is the on-disk shape of Config. Durations use timex.Duration,
// so both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC            string          `json:"endpoint_addr_grpc"`
	DatabaseDSN                 string          `json:"database_dsn"`
	BlobDir                     string          `json:"blob_dir"`
	SecretKey                   string          `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration  `json:"access_token_validity_duration"`
	LoginRatePerMinute          int             `json:"login_rate_per_minute"`
	LoginBurst                  int             `json:"login_burst"`
	SweepInterval               timex.Duration  `json:"sweep_interval"`
	NATSURL                     string          `json:"nats_url"`
	AllowRemoteWipe             bool            `json:"allow_remote_wipe"`
	LogLevel                    string          `json:"log_level"`
	Policy                      services.Policy `json:"policy"`
	S3                          export.S3Config `json:"s3"`
}

// parseJson overlays the file named by -c/-config onto config. The file is
// decoded on top of the current values, so keys it omits keep their
// defaults. A missing flag loads nothing; an unreadable or invalid file
// panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{
		EndpointAddrGRPC:            config.EndpointAddrGRPC,
		DatabaseDSN:                 config.DatabaseDSN,
		BlobDir:                     config.BlobDir,
		SecretKey:                   config.SecretKey,
		AccessTokenValidityDuration: timex.Duration{Duration: config.AccessTokenValidityDuration},
		LoginRatePerMinute:          config.LoginRatePerMinute,
		LoginBurst:                  config.LoginBurst,
		SweepInterval:               timex.Duration{Duration: config.SweepInterval},
		NATSURL:                     config.NATSURL,
		AllowRemoteWipe:             config.AllowRemoteWipe,
		LogLevel:                    config.LogLevel,
		Policy:                      config.Policy,
		S3:                          config.S3,
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrGRPC = c.EndpointAddrGRPC
	config.DatabaseDSN = c.DatabaseDSN
	config.BlobDir = c.BlobDir
	config.SecretKey = c.SecretKey
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.LoginRatePerMinute = c.LoginRatePerMinute
	config.LoginBurst = c.LoginBurst
	config.SweepInterval = c.SweepInterval.Duration
	config.NATSURL = c.NATSURL
	config.AllowRemoteWipe = c.AllowRemoteWipe
	config.LogLevel = c.LogLevel
	config.Policy = c.Policy
	config.S3 = c.S3
}
