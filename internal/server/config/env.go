package config

import (
	"fmt"
	"time"
)

// Environment variables read by parseEnv.
const (
	EnvAddress       = "DAIRYKEEPER_SERVER_ADDRESS"
	EnvDatabaseDSN   = "DAIRYKEEPER_SERVER_DATABASE_DSN"
	EnvSecretKey     = "DAIRYKEEPER_SERVER_SECRET_KEY"
	EnvTokenValidity = "DAIRYKEEPER_SERVER_TOKEN_VALIDITY"
	EnvLogLevel      = "DAIRYKEEPER_SERVER_LOG_LEVEL"
	EnvLogFormat     = "DAIRYKEEPER_SERVER_LOG_FORMAT"
)

func parseEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		EnvAddress:     &cfg.EndpointAddrGRPC,
		EnvDatabaseDSN: &cfg.DatabaseDSN,
		EnvSecretKey:   &cfg.SecretKey,
		EnvLogLevel:    &cfg.LogLevel,
		EnvLogFormat:   &cfg.LogFormat,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup(EnvTokenValidity); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTokenValidity, err)
		}
		cfg.AccessTokenValidityDuration = d
	}
	return nil
}
