package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/dairykeeper/internal/client/cache"
	"github.com/dmitrijs2005/dairykeeper/internal/client/config"
	"github.com/dmitrijs2005/dairykeeper/internal/client/services"
	"github.com/dmitrijs2005/dairykeeper/internal/entitlements"
	"github.com/dmitrijs2005/dairykeeper/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const pingTimeout = 3 * time.Second

// EntitlementCache is the cache surface the CLI drives.
type EntitlementCache interface {
	Namespace() string
	InitializeFromStorage(ctx context.Context)
	FetchStatus(ctx context.Context) *entitlements.AggregateStatus
	FetchTabData(ctx context.Context, tab entitlements.TabID) *entitlements.TabEntitlement
	PreloadAll(ctx context.Context)
	HasTabAccess(tab entitlements.TabID) bool
	State(key cache.Key) cache.State
	Snapshot() entitlements.Snapshot
	CompatibilityFlag(ctx context.Context, tab entitlements.TabID) bool
	Clear(ctx context.Context)
}

// LocalStore is the durable store behind the cache, seen whole rather than
// through one user's keys.
type LocalStore interface {
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}

// Pinger probes server reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	config    *config.Config
	cache     EntitlementCache
	purchases services.PurchaseService
	pinger    Pinger
	store     LocalStore
	gatherer  prometheus.Gatherer
	logger    logging.Logger
	reader    *bufio.Reader
	out       io.Writer

	mu   sync.RWMutex
	mode Mode
}

// NewApp wires the REPL to its collaborators. gatherer may be nil, in which
// case the stats command reports nothing.
func NewApp(c *config.Config, ec EntitlementCache, ps services.PurchaseService, p Pinger, st LocalStore, g prometheus.Gatherer, l logging.Logger) *App {
	if l == nil {
		l = logging.Nop{}
	}
	return &App{
		config:    c,
		cache:     ec,
		purchases: ps,
		pinger:    p,
		store:     st,
		gatherer:  g,
		logger:    l.With("module", "cli"),
		reader:    bufio.NewReader(os.Stdin),
		out:       os.Stdout,
	}
}

func (a *App) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// setMode reports whether the mode changed.
func (a *App) setMode(ctx context.Context, mode Mode) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == mode {
		return false
	}
	a.mode = mode
	a.logger.Info(ctx, "connectivity changed", "mode", mode)
	return true
}

// Run restores the persisted entitlements, starts the connectivity watcher
// and blocks in the REPL until the user exits or ctx ends.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.cache.InitializeFromStorage(ctx)

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	printlnFn("Welcome to DairyKeeper (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

// RunOnce executes a single command given on the command line and returns.
// No connectivity watcher is started; the command itself decides whether the
// server is called.
func (a *App) RunOnce(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("no command given")
	}
	a.cache.InitializeFromStorage(ctx)

	_, err := dispatch(ctx, a, strings.ToLower(args[0]), args[1:])
	return err
}

// checkOnline pings the server once. Coming online counts as the app
// returning to the foreground: every key is refreshed.
func (a *App) checkOnline(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := a.pinger.Ping(pctx)
	cancel()

	if err != nil {
		if a.setMode(ctx, ModeOffline) {
			a.logger.Debug(ctx, "server unreachable", "error", err)
		}
		return
	}
	if a.setMode(ctx, ModeOnline) {
		a.cache.PreloadAll(ctx)
	}
}

// StartOnlineStatusWatcher checks connectivity immediately and then every
// interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	a.checkOnline(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}
