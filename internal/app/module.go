package app

import (
	"context"
	"time"

	"github.com/glowstudio-app/glowchat/internal/account"
	"github.com/glowstudio-app/glowchat/internal/api"
	"github.com/glowstudio-app/glowchat/internal/badge"
	"github.com/glowstudio-app/glowchat/internal/bus"
	"github.com/glowstudio-app/glowchat/internal/cache"
	"github.com/glowstudio-app/glowchat/internal/chat"
	"github.com/glowstudio-app/glowchat/internal/config"
	"github.com/glowstudio-app/glowchat/internal/connstate"
	"github.com/glowstudio-app/glowchat/internal/lock"
	"github.com/glowstudio-app/glowchat/internal/logging"
	"github.com/glowstudio-app/glowchat/internal/mirror"
	"github.com/glowstudio-app/glowchat/internal/notify"
	"github.com/glowstudio-app/glowchat/internal/transport"
	"github.com/glowstudio-app/glowchat/internal/tui"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved account configuration passed to the fx module.
type Params struct {
	AccountName string
}

// Module returns the fx module for the chat client, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("glowchat",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideCredential,
			provideClient,
			provideCache,
			provideChannel,
			provideCoordinator,
			provideMirror,
			provideBadge,
			provideNotify,
			provideTUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() *config.Config {
	return config.LoadOrDefault(account.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	// The TUI owns the terminal; logs go to the account log file only.
	return logging.NewFileOnly(account.LogPath(p.AccountName), p.AccountName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *connstate.Machine {
	return connstate.NewMachine(b)
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

func provideCredential(p Params, _ *lock.Lock) (*account.Credential, error) {
	cred, err := account.LoadCredential(p.AccountName)
	if err != nil {
		return nil, err
	}
	if cred.Expired(time.Now()) {
		return nil, account.ErrNoCredential
	}
	return cred, nil
}

func provideClient(cfg *config.Config, cred *account.Credential, logger *zap.Logger) *api.Client {
	return api.New(cfg.ServerURL, cred.Token, logger)
}

func provideCache(p Params, logger *zap.Logger) (*cache.DB, error) {
	dbPath := account.CacheDBPath(p.AccountName)
	db, err := cache.Open(dbPath)
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
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideChannel(p Params, cfg *config.Config, cred *account.Credential, machine *connstate.Machine, b *bus.Bus, logger *zap.Logger) (*transport.Channel, error) {
	clientID, err := account.ClientID(p.AccountName)
	if err != nil {
		return nil, err
	}
	token := cred.Token
	return transport.NewChannel(
		cfg.WebSocketURL,
		func() string { return token },
		machine, b, logger,
		transport.WithReconnectDelay(time.Duration(cfg.ReconnectSecs)*time.Second),
		transport.WithHeartbeat(time.Duration(cfg.HeartbeatSecs)*time.Second),
		transport.WithClientID(clientID),
	), nil
}

func provideCoordinator(client *api.Client, channel *transport.Channel, b *bus.Bus, cred *account.Credential, logger *zap.Logger) *chat.Coordinator {
	return chat.NewCoordinator(client, channel, b, cred.Profile, logger)
}

func provideMirror(db *cache.DB, b *bus.Bus, cred *account.Credential, logger *zap.Logger) *mirror.Writer {
	return mirror.NewWriter(db, b, cred.Profile.ID, logger)
}

func provideBadge(client *api.Client, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *badge.Aggregator {
	return badge.NewAggregator(client, b, time.Duration(cfg.BadgePollSecs)*time.Second, logger)
}

func provideNotify(client *api.Client, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *notify.Poller {
	return notify.NewPoller(client, b, time.Duration(cfg.NotifyPollSecs)*time.Second, logger)
}

func provideTUI(p Params, coord *chat.Coordinator, badges *badge.Aggregator, alerts *notify.Poller, b *bus.Bus, machine *connstate.Machine) *tui.App {
	return tui.NewApp(coord, badges, alerts, b, machine, p.AccountName)
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, coord *chat.Coordinator, channel *transport.Channel, writer *mirror.Writer, badges *badge.Aggregator, alerts *notify.Poller, app *tui.App, db *cache.DB, lk *lock.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The mirror and coordinator subscribe to the bus before the
			// transport produces its first event.
			writer.Start(context.Background())
			coord.Start(context.Background())
			badges.Start(context.Background())
			alerts.Start(context.Background())

			// Paint cached partners, then fetch live data and connect.
			if seed, err := writer.Seed(); err == nil && len(seed) > 0 {
				coord.SeedPartners(seed)
			}
			coord.LoadPartners()
			channel.Connect()
			badges.Refresh(context.Background())

			go func() {
				if err := app.Run(); err != nil {
					logger.Error("tui error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			app.Stop()
			alerts.Stop()
			badges.Stop()
			coord.Stop()
			channel.Disconnect()
			writer.Stop()
			_ = db.Close()
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
