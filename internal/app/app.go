package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"github.com/m3rciful/vpnshop/core/bootstrap"
	"github.com/m3rciful/vpnshop/core/cmd"
	"github.com/m3rciful/vpnshop/core/logger"
	"github.com/m3rciful/vpnshop/core/metrics"
	coretelegram "github.com/m3rciful/vpnshop/core/telegram"
	"github.com/m3rciful/vpnshop/internal/bot"
	"github.com/m3rciful/vpnshop/internal/bridge"
	"github.com/m3rciful/vpnshop/internal/flow"
	"github.com/m3rciful/vpnshop/internal/ledger"
	"github.com/m3rciful/vpnshop/internal/ledger/sqlstore"
	"github.com/m3rciful/vpnshop/internal/session"

	"github.com/jmoiron/sqlx"
)

// App holds the wired bot and the resources it owns.
type App struct {
	cfg       *Config
	db        *sqlx.DB
	redis     redis.UniversalClient
	engine    *flow.Engine
	messenger *bot.Messenger
	handler   *bot.Handler
	digest    *Digest

	stopMetrics context.CancelFunc
	metricsDone sync.WaitGroup
}

var _ cmd.TelegramApp = (*App)(nil)

// Bootstrap initializes logging and storage and builds the engine.
func Bootstrap(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	opts := bootstrap.Options{Config: cfg.CoreConfig()}
	if cfg.Store.Backend == StoreSQL {
		opts.Database = &cfg.Database
	}
	res, err := bootstrap.Run(opts)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, db: res.DB, messenger: bot.NewMessenger()}
	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	ctx := logger.Background()
	cfg := a.cfg

	var store ledger.Store = ledger.NewMemoryStore()
	if a.db != nil {
		store = sqlstore.New(a.db)
	}

	sessions := session.NewTable(nil)
	registry := bridge.NewMemoryRegistry()
	if cfg.Session.Backend == SessionRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("app: redis ping: %w", err)
		}
		prefix := cfg.Session.Redis.Prefix
		sessions = session.NewTable(session.NewRedisStore(a.redis, prefix+"session:"))
		registry = bridge.NewRedisRegistry(a.redis, prefix+"bridge:")
	}

	flows, err := flow.Builtin()
	if err != nil {
		return fmt.Errorf("app: flow registry: %w", err)
	}
	a.engine, err = flow.NewEngine(flow.Options{
		Store:            store,
		Sessions:         sessions,
		Bridge:           registry,
		Registry:         flows,
		Messenger:        a.messenger,
		AdminID:          cfg.Telegram.AdminID,
		Catalog:          cfg.Catalog,
		BroadcastWorkers: cfg.Broadcast.Workers,
	})
	if err != nil {
		return fmt.Errorf("app: engine: %w", err)
	}
	a.handler = bot.NewHandler(a.engine)

	a.digest, err = NewDigest(cfg.Digest.Cron, cfg.Location(), a.engine)
	if err != nil {
		return err
	}

	logger.Info(ctx, "app", "app.wired",
		slog.String("store", cfg.Store.Backend),
		slog.String("session", cfg.Session.Backend),
		slog.Int("flows", len(flows.FlowNames())),
		slog.Bool("digest", a.digest != nil),
	)
	return nil
}

// TelegramRunOptions binds the engine to the Telegram runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	if a.handler == nil {
		return coretelegram.RunOptions{}, errors.New("app: not bootstrapped")
	}
	core := a.cfg.CoreConfig()
	return coretelegram.RunOptions{
		Config:      core,
		Middlewares: coretelegram.DefaultMiddlewares(core, bot.OnLimited),
		Routes:      a.handler.Routes(),
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.messenger.Attach(rt.Bot)

	reg := a.engine.Registry()
	err := coretelegram.PublishCommands(rt.Bot,
		bot.Commands(reg.Commands(false)),
		bot.Commands(reg.Commands(true)),
		a.cfg.Telegram.AdminID,
	)
	if err != nil {
		// Serving continues without a command menu.
		logger.Warn(ctx, "tg.wire", "commands.publish", slog.String("err", err.Error()))
	}

	if listen := a.cfg.Metrics.Listen; listen != "" {
		mctx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel
		a.metricsDone.Add(1)
		go func() {
			defer a.metricsDone.Done()
			_ = metrics.Serve(mctx, listen)
		}()
	}
	if a.digest != nil {
		a.digest.Start()
	}
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	if a.digest != nil {
		<-a.digest.Stop().Done()
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
		a.metricsDone.Wait()
	}
	return nil
}

// Close releases database and redis connections.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// Run is the process entrypoint: it loads configPath (or CONFIG_PATH) and
// serves until interrupted.
func Run(configPath string) error {
	return cmd.Run(cmd.Options{
		ConfigPath:        configPath,
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return LoadConfig(path)
		},
		Bootstrap: func(cfg cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			c, ok := cfg.(*Config)
			if !ok {
				return nil, fmt.Errorf("app: unexpected config type %T", cfg)
			}
			a, err := Bootstrap(c)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	})
}
