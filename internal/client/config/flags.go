package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/dairykeeper/internal/flagx"
)

var clientFlags = []string{"-a", "-i", "-d", "-s", "-t", "-f", "-l", "-k", "-s3-bucket", "-s3-endpoint"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the entitlement server
//	-i int      online check interval in seconds
//	-d string   local database path
//	-s string   store kind: sqlite, s3 or memory
//	-t string   access token
//	-f duration refresh timeout, e.g. 20s
//	-l string   log level
//	-k string   snapshot sealing secret
//	-s3-bucket, -s3-endpoint   object storage settings
//
// Only the flags above are parsed; the rest of args is left to other
// components. Panics on malformed values.
func parseFlags(cfg *Config, args []string) {
	args = flagx.FilterArgs(args, clientFlags)

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	fs.StringVar(&cfg.StoreKind, "s", cfg.StoreKind, "store kind (sqlite, s3, memory)")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	fs.DurationVar(&cfg.FetchTimeout, "f", cfg.FetchTimeout, "entitlement refresh timeout")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.SnapshotSecret, "k", cfg.SnapshotSecret, "snapshot sealing secret")
	fs.StringVar(&cfg.S3Bucket, "s3-bucket", cfg.S3Bucket, "s3 bucket")
	fs.StringVar(&cfg.S3Endpoint, "s3-endpoint", cfg.S3Endpoint, "s3 endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
}
