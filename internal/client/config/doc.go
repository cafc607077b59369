// Package config loads runtime configuration for the saveme CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or -config.
//  3. Command-line flags, which override earlier values.
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "database_dsn": "saveme.db",
//	  "blob_dir": "blobs",
//	  "user_id": "alice",
//	  "policy": {"share_ttl": "24h", "max_views": 1},
//	  "s3": {"bucket": "exports", "region": "us-east-1"}
//	}
//
// With server_endpoint_addr empty the CLI runs the vault in-process; the
// store, policy, NATS and S3 settings only apply in that mode.
package config
