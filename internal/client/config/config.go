package config

import (
	"time"

	"github.com/dmitrijs2005/gophmail/internal/common"
)

// Config holds runtime settings for the gophmail CLI.
//
// Units: SyncInterval and KeyServerTimeout are time.Duration values.
type Config struct {
	DatabasePath     string
	KeyServerURL     string
	KeyServerTimeout time.Duration
	SyncInterval     time.Duration
	KDFIterations    int
	WorkerPoolSize   int
	FetchLimit       int
	LogLevel         string
	MetricsAddr      string

	AttachmentStore string
	AttachmentDir   string
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3User          string
	S3Password      string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "gophmail.db"
	c.KeyServerURL = ""
	c.KeyServerTimeout = 10 * time.Second
	c.SyncInterval = 5 * time.Minute
	c.KDFIterations = common.DefaultKDFIterations
	c.WorkerPoolSize = 4
	c.FetchLimit = common.DefaultFetchLimit
	c.LogLevel = "info"
	c.AttachmentStore = "fs"
	c.AttachmentDir = "attachments"
	c.S3Region = "us-east-1"
}

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
