package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/dairykeeper/internal/client/cache"
	"github.com/dmitrijs2005/dairykeeper/internal/client/cli"
	"github.com/dmitrijs2005/dairykeeper/internal/client/client"
	"github.com/dmitrijs2005/dairykeeper/internal/client/config"
	"github.com/dmitrijs2005/dairykeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/dairykeeper/internal/client/services"
	"github.com/dmitrijs2005/dairykeeper/internal/flagx"
	"github.com/dmitrijs2005/dairykeeper/internal/jwtx"
	"github.com/dmitrijs2005/dairykeeper/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger := logging.New(os.Stderr, "text", cfg.LogLevel)

	token := cfg.AccessToken
	if token == "" {
		token, err = cli.GetSecret("Access token (empty for anonymous)", os.Stdout)
		if err != nil && !errors.Is(err, cli.ErrNoTerminal) {
			return err
		}
	}

	namespace := cache.AnonymousNamespace
	if token != "" {
		if id, err := jwtx.UnverifiedUserID(token); err == nil {
			namespace = id
		} else {
			logger.Warn(ctx, "access token carries no user, using anonymous namespace")
		}
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	api, err := client.NewEntitlementClient(cfg.ServerEndpointAddr, token)
	if err != nil {
		return fmt.Errorf("client init error: %w", err)
	}
	defer api.Close()

	reg := prometheus.NewRegistry()
	metrics, err := cache.NewMetrics("", reg)
	if err != nil {
		return err
	}

	opts := []cache.Option{
		cache.WithLogger(logger),
		cache.WithMetrics(metrics),
		cache.WithNamespace(namespace),
		cache.WithFetchTimeout(cfg.FetchTimeout),
	}
	if cfg.SnapshotSecret != "" {
		codec, err := cache.NewSealedCodec(cfg.SnapshotSecret, namespace)
		if err != nil {
			return err
		}
		opts = append(opts, cache.WithCodec(codec))
	}
	ec := cache.New(api, store, opts...)

	purchases := services.NewPurchaseService(api, ec, logger)
	app := cli.NewApp(cfg, ec, purchases, api, store, reg, logger)
	if args := flagx.Positional(os.Args[1:]); len(args) > 0 {
		return app.RunOnce(ctx, args)
	}
	app.Run(ctx)
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (kv.Repository, func(), error) {
	switch cfg.StoreKind {
	case config.StoreMemory:
		return kv.NewMemoryRepository(), func() {}, nil
	case config.StoreS3:
		api, err := kv.NewS3Client(ctx, kv.S3Options{
			Region:       cfg.S3Region,
			Endpoint:     cfg.S3Endpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			UsePathStyle: cfg.S3Endpoint != "",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("s3 init error: %w", err)
		}
		return kv.NewS3Repository(api, cfg.S3Bucket, cfg.S3Prefix), func() {}, nil
	default:
		db, err := client.InitDatabase(ctx, cfg.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing database: %w", err)
		}
		return kv.NewSQLiteRepository(db), func() { _ = db.Close() }, nil
	}
}
