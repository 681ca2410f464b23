// Package server wires the entitlement server: it opens PostgreSQL, applies
// migrations and serves the entitlement gRPC service until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/dairykeeper/internal/jwtx"
	"github.com/dmitrijs2005/dairykeeper/internal/logging"
	"github.com/dmitrijs2005/dairykeeper/internal/server/config"
	"github.com/dmitrijs2005/dairykeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/dairykeeper/internal/server/services"
	"github.com/dmitrijs2005/dairykeeper/internal/timex"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/dairykeeper/internal/server/grpc"
)

const dbPingTimeout = 5 * time.Second

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

type App struct {
	config      *config.Config
	logger      logging.Logger
	repomanager repomanager.RepositoryManager
}

func NewApp(c *config.Config, out io.Writer) *App {
	return &App{
		config:      c,
		logger:      logging.New(out, c.LogFormat, c.LogLevel),
		repomanager: repomanager.NewPostgresRepositoryManager(),
	}
}

// IssueToken writes an access token for config.IssueTokenFor to w.
func (app *App) IssueToken(w io.Writer) error {
	token, err := jwtx.GenerateToken(app.config.IssueTokenFor, []byte(app.config.SecretKey), app.config.AccessTokenValidityDuration)
	if err != nil {
		return fmt.Errorf("token error: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) openDatabase(ctx context.Context) (*sql.DB, error) {
	db, err := openDB(app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	if err := app.repomanager.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return db, nil
}

// Run serves until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	db, err := app.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	subs := services.NewSubscriptionService(db, app.repomanager, timex.SystemClock{}, app.logger)
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, subs, app.config.SecretKey)

	var (
		wg     sync.WaitGroup
		runErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			runErr = err
			cancelFunc()
		}
	}()

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
	return runErr
}
