package config

import (
	"fmt"
	"time"
)

// Environment variables read by parseEnv.
const (
	EnvAddress             = "DAIRYKEEPER_ADDRESS"
	EnvOnlineCheckInterval = "DAIRYKEEPER_ONLINE_CHECK_INTERVAL"
	EnvDatabase            = "DAIRYKEEPER_DATABASE"
	EnvStore               = "DAIRYKEEPER_STORE"
	EnvAccessToken         = "DAIRYKEEPER_ACCESS_TOKEN"
	EnvFetchTimeout        = "DAIRYKEEPER_FETCH_TIMEOUT"
	EnvLogLevel            = "DAIRYKEEPER_LOG_LEVEL"
	EnvSnapshotSecret      = "DAIRYKEEPER_SNAPSHOT_SECRET"
	EnvS3Bucket            = "DAIRYKEEPER_S3_BUCKET"
	EnvS3Prefix            = "DAIRYKEEPER_S3_PREFIX"
	EnvS3Region            = "DAIRYKEEPER_S3_REGION"
	EnvS3Endpoint          = "DAIRYKEEPER_S3_ENDPOINT"
	EnvS3AccessKey         = "DAIRYKEEPER_S3_ACCESS_KEY"
	EnvS3SecretKey         = "DAIRYKEEPER_S3_SECRET_KEY"
)

// parseEnv overlays Config with DAIRYKEEPER_* variables found by lookup.
// Durations use time.ParseDuration syntax.
func parseEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvAddress:        &cfg.ServerEndpointAddr,
		EnvDatabase:       &cfg.DatabasePath,
		EnvStore:          &cfg.StoreKind,
		EnvAccessToken:    &cfg.AccessToken,
		EnvLogLevel:       &cfg.LogLevel,
		EnvSnapshotSecret: &cfg.SnapshotSecret,
		EnvS3Bucket:       &cfg.S3Bucket,
		EnvS3Prefix:       &cfg.S3Prefix,
		EnvS3Region:       &cfg.S3Region,
		EnvS3Endpoint:     &cfg.S3Endpoint,
		EnvS3AccessKey:    &cfg.S3AccessKey,
		EnvS3SecretKey:    &cfg.S3SecretKey,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		EnvOnlineCheckInterval: &cfg.OnlineCheckInterval,
		EnvFetchTimeout:        &cfg.FetchTimeout,
	}
	for name, dst := range durations {
		v, ok := lookup(name)
		if !ok || v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
	}
	return nil
}
