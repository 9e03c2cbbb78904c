package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Flag names shared by every command.
const (
	FlagConfig          = "config"
	FlagDatabaseDSN     = "database-dsn"
	FlagAutoMigrate     = "auto-migrate"
	FlagRegistryURL     = "registry-url"
	FlagRegistryPath    = "registry-path"
	FlagRegistryTimeout = "registry-timeout"
	FlagRedisURL        = "redis-url"
	FlagLockTTL         = "lock-ttl"
	FlagResolverTTL     = "resolver-ttl"
	FlagS3Bucket        = "s3-bucket"
	FlagS3Region        = "s3-region"
	FlagS3Endpoint      = "s3-endpoint"
	FlagS3AccessKey     = "s3-access-key"
	FlagS3Prefix        = "s3-prefix"
	FlagPushgateway     = "pushgateway-url"
	FlagHTTPAddr        = "http-addr"
	FlagLogLevel        = "log-level"
	FlagLogFormat       = "log-format"
	FlagBcryptCost      = "bcrypt-cost"
)

// RegisterFlags declares the configuration flags on fs. Defaults shown in
// help come from LoadDefaults; only flags set explicitly override lower layers.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP(FlagConfig, "c", "", "path to JSON config file")
	fs.String(FlagDatabaseDSN, d.DatabaseDSN, "PostgreSQL DSN (env "+EnvDatabaseDSN+")")
	fs.Bool(FlagAutoMigrate, d.AutoMigrate, "apply migrations on startup")
	fs.String(FlagRegistryURL, d.RegistryBaseURL, "registry base URL")
	fs.String(FlagRegistryPath, d.RegistryPagePath, "registry page endpoint path")
	fs.Duration(FlagRegistryTimeout, d.RegistryTimeout, "registry request timeout")
	fs.String(FlagRedisURL, d.RedisURL, "redis URL for the run lock and resolver cache")
	fs.Duration(FlagLockTTL, d.LockTTL, "run lock lease")
	fs.Duration(FlagResolverTTL, d.ResolverCacheTTL, "resolver cache TTL")
	fs.String(FlagS3Bucket, d.S3.Bucket, "S3 bucket for page archives")
	fs.String(FlagS3Region, d.S3.Region, "S3 region")
	fs.String(FlagS3Endpoint, d.S3.BaseEndpoint, "S3 base endpoint, e.g. http://127.0.0.1:9000")
	fs.String(FlagS3AccessKey, d.S3.AccessKey, "S3 access key (secret via env "+EnvS3SecretKey+")")
	fs.String(FlagS3Prefix, d.S3.Prefix, "S3 key prefix")
	fs.String(FlagPushgateway, d.PushgatewayURL, "Prometheus Pushgateway URL")
	fs.String(FlagHTTPAddr, d.HTTPAddr, "ops server listen address")
	fs.String(FlagLogLevel, d.LogLevel, "log level: debug, info, warn, error")
	fs.String(FlagLogFormat, d.LogFormat, "log format: text or json")
	fs.Int(FlagBcryptCost, d.BcryptCost, "bcrypt cost for materialized identities")
}

// parseFlags copies explicitly set flags onto config.
func parseFlags(config *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = applyFlag(config, fs, f.Name)
	})
	return err
}

func applyFlag(c *Config, fs *pflag.FlagSet, name string) error {
	var err error
	switch name {
	case FlagDatabaseDSN:
		c.DatabaseDSN, err = fs.GetString(name)
	case FlagAutoMigrate:
		c.AutoMigrate, err = fs.GetBool(name)
	case FlagRegistryURL:
		c.RegistryBaseURL, err = fs.GetString(name)
	case FlagRegistryPath:
		c.RegistryPagePath, err = fs.GetString(name)
	case FlagRegistryTimeout:
		c.RegistryTimeout, err = fs.GetDuration(name)
	case FlagRedisURL:
		c.RedisURL, err = fs.GetString(name)
	case FlagLockTTL:
		c.LockTTL, err = fs.GetDuration(name)
	case FlagResolverTTL:
		c.ResolverCacheTTL, err = fs.GetDuration(name)
	case FlagS3Bucket:
		c.S3.Bucket, err = fs.GetString(name)
	case FlagS3Region:
		c.S3.Region, err = fs.GetString(name)
	case FlagS3Endpoint:
		c.S3.BaseEndpoint, err = fs.GetString(name)
	case FlagS3AccessKey:
		c.S3.AccessKey, err = fs.GetString(name)
	case FlagS3Prefix:
		c.S3.Prefix, err = fs.GetString(name)
	case FlagPushgateway:
		c.PushgatewayURL, err = fs.GetString(name)
	case FlagHTTPAddr:
		c.HTTPAddr, err = fs.GetString(name)
	case FlagLogLevel:
		c.LogLevel, err = fs.GetString(name)
	case FlagLogFormat:
		c.LogFormat, err = fs.GetString(name)
	case FlagBcryptCost:
		c.BcryptCost, err = fs.GetInt(name)
	}
	if err != nil {
		return fmt.Errorf("flag --%s: %w", name, err)
	}
	return nil
}
