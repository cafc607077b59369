package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/saveme/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     gRPC bind address (e.g. ":50051")
//	-d string     record store DSN
//	-b string     blob directory
//	-s string     JWT HMAC secret key
//	-t int        access token validity, minutes
//	-i duration   sweep interval (0 disables)
//	-n string     NATS server URL
//	-l string     log level (debug, info, warn, error)
//
// os.Args is filtered with flagx.FilterArgs first so the -c/-config flag of
// the JSON loader does not trip this flag set.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-b", "-s", "-t", "-i", "-n", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "record store DSN")
	fs.StringVar(&config.BlobDir, "b", config.BlobDir, "blob directory")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.DurationVar(&config.SweepInterval, "i", config.SweepInterval, "auto-delete sweep interval")
	fs.StringVar(&config.NATSURL, "n", config.NATSURL, "NATS server URL")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}
