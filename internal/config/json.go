package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gymbridge/internal/timex"
)

// JsonConfig is the on-disk shape. Durations accept "8s" strings or integer
// nanoseconds. Zero values leave the current setting untouched.
type JsonConfig struct {
	DatabaseDSN      string         `json:"database_dsn"`
	AutoMigrate      *bool          `json:"auto_migrate"`
	RegistryBaseURL  string         `json:"registry_base_url"`
	RegistryPagePath string         `json:"registry_page_path"`
	RegistryToken    string         `json:"registry_token"`
	RegistryTimeout  timex.Duration `json:"registry_timeout"`
	PerPage          int            `json:"per_page"`
	RedisURL         string         `json:"redis_url"`
	LockTTL          timex.Duration `json:"lock_ttl"`
	ResolverCacheTTL timex.Duration `json:"resolver_cache_ttl"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	S3AccessKey      string         `json:"s3_access_key"`
	S3SecretKey      string         `json:"s3_secret_key"`
	S3Prefix         string         `json:"s3_prefix"`
	PushgatewayURL   string         `json:"pushgateway_url"`
	HTTPAddr         string         `json:"http_addr"`
	OpsToken         string         `json:"ops_token"`
	LogLevel         string         `json:"log_level"`
	LogFormat        string         `json:"log_format"`
	BcryptCost       int            `json:"bcrypt_cost"`
}

// parseJson overlays the file at path onto config. An empty path is a no-op.
func parseJson(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	if c.AutoMigrate != nil {
		config.AutoMigrate = *c.AutoMigrate
	}
	setString(&config.RegistryBaseURL, c.RegistryBaseURL)
	setString(&config.RegistryPagePath, c.RegistryPagePath)
	setString(&config.RegistryToken, c.RegistryToken)
	if c.RegistryTimeout.Duration > 0 {
		config.RegistryTimeout = c.RegistryTimeout.Duration
	}
	if c.PerPage > 0 {
		config.PerPage = c.PerPage
	}
	setString(&config.RedisURL, c.RedisURL)
	if c.LockTTL.Duration > 0 {
		config.LockTTL = c.LockTTL.Duration
	}
	if c.ResolverCacheTTL.Duration > 0 {
		config.ResolverCacheTTL = c.ResolverCacheTTL.Duration
	}
	setString(&config.S3.Bucket, c.S3Bucket)
	setString(&config.S3.Region, c.S3Region)
	setString(&config.S3.BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3.AccessKey, c.S3AccessKey)
	setString(&config.S3.SecretKey, c.S3SecretKey)
	setString(&config.S3.Prefix, c.S3Prefix)
	setString(&config.PushgatewayURL, c.PushgatewayURL)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.OpsToken, c.OpsToken)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
	if c.BcryptCost > 0 {
		config.BcryptCost = c.BcryptCost
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
