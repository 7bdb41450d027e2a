package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophmail/internal/flagx"
	"github.com/dmitrijs2005/gophmail/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer fields
// distinguish "absent" from a zero value so a partial file only overrides
// what it names.
type JsonConfig struct {
	DatabasePath     *string         `json:"database_path"`
	KeyServerURL     *string         `json:"key_server_url"`
	KeyServerTimeout *timex.Duration `json:"key_server_timeout"`
	SyncInterval     *timex.Duration `json:"sync_interval"`
	KDFIterations    *int            `json:"kdf_iterations"`
	WorkerPoolSize   *int            `json:"worker_pool_size"`
	FetchLimit       *int            `json:"fetch_limit"`
	LogLevel         *string         `json:"log_level"`
	MetricsAddr      *string         `json:"metrics_addr"`

	AttachmentStore *string `json:"attachment_store"`
	AttachmentDir   *string `json:"attachment_dir"`
	S3Endpoint      *string `json:"s3_endpoint"`
	S3Region        *string `json:"s3_region"`
	S3Bucket        *string `json:"s3_bucket"`
	S3User          *string `json:"s3_user"`
	S3Password      *string `json:"s3_password"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c or -config. Without either flag nothing is loaded. Read and unmarshal
// errors panic, like flag errors in parseFlags.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	jc.apply(cfg)
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (jc *JsonConfig) apply(cfg *Config) {
	set(&cfg.DatabasePath, jc.DatabasePath)
	set(&cfg.KeyServerURL, jc.KeyServerURL)
	if jc.KeyServerTimeout != nil {
		cfg.KeyServerTimeout = jc.KeyServerTimeout.Duration
	}
	if jc.SyncInterval != nil {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	set(&cfg.KDFIterations, jc.KDFIterations)
	set(&cfg.WorkerPoolSize, jc.WorkerPoolSize)
	set(&cfg.FetchLimit, jc.FetchLimit)
	set(&cfg.LogLevel, jc.LogLevel)
	set(&cfg.MetricsAddr, jc.MetricsAddr)
	set(&cfg.AttachmentStore, jc.AttachmentStore)
	set(&cfg.AttachmentDir, jc.AttachmentDir)
	set(&cfg.S3Endpoint, jc.S3Endpoint)
	set(&cfg.S3Region, jc.S3Region)
	set(&cfg.S3Bucket, jc.S3Bucket)
	set(&cfg.S3User, jc.S3User)
	set(&cfg.S3Password, jc.S3Password)
}
