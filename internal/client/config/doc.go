// Package config loads runtime configuration for the gophmail CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   path of the local SQLite database
//	-k string   base URL of the public key server
//	-i int      background sync interval (seconds, 0 disables it)
//	-l string   log level
//	-m string   metrics listen address
//
// # JSON schema
//
// Durations use timex.Duration, so values can be either strings like "5m"
// or integer nanoseconds. Keys left out keep their default:
//
//	{
//	  "database_path": "/var/lib/gophmail/mail.db",
//	  "key_server_url": "https://keys.example.com",
//	  "key_server_timeout": "10s",
//	  "sync_interval": "5m",
//	  "kdf_iterations": 65536,
//	  "worker_pool_size": 4,
//	  "fetch_limit": 200,
//	  "log_level": "info",
//	  "metrics_addr": "127.0.0.1:9090",
//	  "attachment_store": "s3",
//	  "attachment_dir": "attachments",
//	  "s3_endpoint": "http://127.0.0.1:9000",
//	  "s3_region": "us-east-1",
//	  "s3_bucket": "gophmail",
//	  "s3_user": "minio",
//	  "s3_password": "minio123"
//	}
//
// This package does not read environment variables directly; use the JSON
// file or flags to configure values.
package config
