package daemon

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/omninudge/nudge/internal/account"
	"github.com/omninudge/nudge/internal/bus"
	"github.com/omninudge/nudge/internal/config"
	"github.com/omninudge/nudge/internal/live"
	"github.com/omninudge/nudge/internal/lock"
	"github.com/omninudge/nudge/internal/logging"
	"github.com/omninudge/nudge/internal/outbox"
	"github.com/omninudge/nudge/internal/rest"
	"github.com/omninudge/nudge/internal/status"
	"github.com/omninudge/nudge/internal/store"
	intsync "github.com/omninudge/nudge/internal/sync"
)

// Params holds the resolved account configuration passed to the fx module.
type Params struct {
	AccountName string
	SocketPath  string // optional override for testing; empty = use default
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideTokenStore,
			provideRESTClient,
			provideConnector,
			provideMerger,
			provideSender,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() *config.Config {
	return config.LoadOrDefault(account.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(account.LogPath(p.AccountName), p.AccountName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := account.EnsureDir(p.AccountName); err != nil {
		return nil, err
	}
	logger.Info("acquiring account lock", zap.String("account", p.AccountName))
	l, err := lock.Acquire(account.Dir(p.AccountName))
	if err != nil {
		return nil, err
	}
	logger.Info("account lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := account.DBPath(p.AccountName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideTokenStore(p Params) *account.TokenStore {
	return account.NewTokenStore(account.TokenPath(p.AccountName))
}

func provideRESTClient(cfg *config.Config, tokens *account.TokenStore, logger *zap.Logger) (*rest.Client, error) {
	return rest.New(cfg.ServerURL, tokens, logger)
}

func provideConnector(cfg *config.Config, client *rest.Client, tokens *account.TokenStore, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *live.Connector {
	return live.New(live.WebsocketDialer{}, tokens, machine, b, logger, live.Endpoint(client.BaseURL()), cfg.ReconnectDelay())
}

func provideMerger(db *store.DB, b *bus.Bus, client *rest.Client, tokens *account.TokenStore, logger *zap.Logger) *intsync.Merger {
	m := intsync.NewMerger(db, b, client, logger)
	m.SetViewer(tokens.UserID())
	return m
}

func provideSender(db *store.DB, b *bus.Bus, client *rest.Client, tokens *account.TokenStore, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(db, b, client, tokens, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, connector *live.Connector, merger *intsync.Merger, sender *outbox.Sender, db *store.DB, logger *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// Merge pushed messages into the cache.
			go merger.Run(runCtx)

			// Drain queued sends.
			go sender.Run(runCtx)

			// Serve the local API in background.
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("api server error", zap.Error(err))
				}
			}()

			// Bring up the live channel; with no stored token this parks
			// in AUTH_REQUIRED until a login arrives over the API.
			go func() {
				if err := connector.Connect(runCtx); err != nil {
					logger.Error("initial connect failed", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			connector.Stop()
			cancel()
			srv.Stop(ctx)
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
