package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Store kinds accepted by -s.
const (
	StoreSQLite = "sqlite"
	StoreS3     = "s3"
	StoreMemory = "memory"
)

// Config holds runtime settings for the DairyKeeper client.
//
// Fields:
//   - ServerEndpointAddr: host:port of the entitlement gRPC endpoint.
//   - OnlineCheckInterval: how often the client probes server reachability.
//   - DatabasePath: SQLite file of the local key-value store.
//   - StoreKind: sqlite, s3 or memory.
//   - AccessToken: bearer token sent with every call; its UserID claim
//     namespaces the persisted cache.
//   - FetchTimeout: bound on a single entitlement refresh.
//   - LogLevel: debug, info, warn or error.
//   - SnapshotSecret: when set, the persisted snapshot is sealed with a key
//     derived from it.
//   - S3*: object storage settings used when StoreKind is s3.
type Config struct {
	ServerEndpointAddr  string
	OnlineCheckInterval time.Duration
	DatabasePath        string
	StoreKind           string
	AccessToken         string
	FetchTimeout        time.Duration
	LogLevel            string
	SnapshotSecret      string
	S3Bucket            string
	S3Prefix            string
	S3Region            string
	S3Endpoint          string
	S3AccessKey         string
	S3SecretKey         string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.DatabasePath = "dairykeeper.db"
	c.StoreKind = StoreSQLite
	c.FetchTimeout = 20 * time.Second
	c.LogLevel = "info"
	c.S3Prefix = "dairykeeper"
	c.S3Region = "us-east-1"
}

// Validate reports settings the client cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreKind {
	case StoreSQLite, StoreS3, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store kind %q", c.StoreKind))
	}
	if c.StoreKind == StoreS3 && c.S3Bucket == "" {
		errs = append(errs, errors.New("s3 store requires a bucket"))
	}
	if c.StoreKind == StoreSQLite && c.DatabasePath == "" {
		errs = append(errs, errors.New("sqlite store requires a database path"))
	}
	if c.OnlineCheckInterval <= 0 {
		errs = append(errs, errors.New("online check interval must be positive"))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	return errors.Join(errs...)
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment (a .env file is loaded first when present), JSON and
// command-line flags. Later sources take precedence over earlier ones.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	parseJson(cfg, os.Args[1:])
	parseFlags(cfg, os.Args[1:])
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
