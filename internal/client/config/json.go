package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/saveme/internal/export"
	"github.com/dmitrijs2005/saveme/internal/flagx"
	"github.com/dmitrijs2005/saveme/internal/services"
	"github.com/dmitrijs2005/saveme/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Intervals use
// timex.Duration, so "3s" and integer nanoseconds both work.
type JsonConfig struct {
	ServerEndpointAddr  string          `json:"server_endpoint_addr"`
	OnlineCheckInterval timex.Duration  `json:"online_check_interval"`
	DatabaseDSN         string          `json:"database_dsn"`
	BlobDir             string          `json:"blob_dir"`
	UserID              string          `json:"user_id"`
	NATSURL             string          `json:"nats_url"`
	LogLevel            string          `json:"log_level"`
	Policy              services.Policy `json:"policy"`
	S3                  export.S3Config `json:"s3"`
}

// parseJson overlays Config with the file named by -c/-config. Keys the file
// omits keep their current values. Read or decode errors panic.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	jc := JsonConfig{
		ServerEndpointAddr:  cfg.ServerEndpointAddr,
		OnlineCheckInterval: timex.Duration{Duration: cfg.OnlineCheckInterval},
		DatabaseDSN:         cfg.DatabaseDSN,
		BlobDir:             cfg.BlobDir,
		UserID:              cfg.UserID,
		NATSURL:             cfg.NATSURL,
		LogLevel:            cfg.LogLevel,
		Policy:              cfg.Policy,
		S3:                  cfg.S3,
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerEndpointAddr = jc.ServerEndpointAddr
	cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	cfg.DatabaseDSN = jc.DatabaseDSN
	cfg.BlobDir = jc.BlobDir
	cfg.UserID = jc.UserID
	cfg.NATSURL = jc.NATSURL
	cfg.LogLevel = jc.LogLevel
	cfg.Policy = jc.Policy
	cfg.S3 = jc.S3
}
