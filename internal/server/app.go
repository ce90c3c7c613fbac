// Package server assembles and runs the BarkBot process: PostgreSQL for
// custodial accounts, redis for verification codes, the aggregator and
// RPC clients, and the two transports (REST and Telegram).
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"

	"github.com/barklabs/barkbot/internal/common"
	"github.com/barklabs/barkbot/internal/cryptox"
	"github.com/barklabs/barkbot/internal/dbx"
	"github.com/barklabs/barkbot/internal/jupiter"
	"github.com/barklabs/barkbot/internal/logging"
	"github.com/barklabs/barkbot/internal/server/bot"
	"github.com/barklabs/barkbot/internal/server/config"
	"github.com/barklabs/barkbot/internal/server/httpapi"
	"github.com/barklabs/barkbot/internal/server/metrics"
	"github.com/barklabs/barkbot/internal/server/repositories/repomanager"
	"github.com/barklabs/barkbot/internal/server/repositories/users"
	"github.com/barklabs/barkbot/internal/server/services"
	"github.com/barklabs/barkbot/internal/server/trade"
	"github.com/barklabs/barkbot/internal/solanax"
)

const shutdownTimeout = 10 * time.Second

// App owns the process-level resources and the shutdown sequence.
type App struct {
	cfg *config.Config
	log logging.Logger

	db      *sql.DB
	rdb     *redis.Client
	repoMgr repomanager.RepositoryManager
	httpSrv *http.Server
	bot     *bot.Bot
}

// NewApp wires every component from the configuration. The key-sealing
// cipher is derived once here; the passphrase and derived key are wiped
// as soon as the cipher exists.
func NewApp(cfg *config.Config) (*App, error) {
	log := newLogger(cfg.LogLevel)

	passphrase, err := config.ResolvePassphrase(cfg)
	if err != nil {
		return nil, err
	}
	key := cryptox.DeriveKey([]byte(passphrase), []byte(cfg.KeySalt))
	cipher, err := cryptox.NewCipher(key)
	common.Wipe(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	repoMgr := repomanager.NewPostgresRepositoryManager()
	usersRepo := repoMgr.Users(db)
	inTx := func(ctx context.Context, fn func(r users.Repository) error) error {
		return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return fn(repoMgr.Users(tx))
		})
	}

	codes := services.NewVerificationCodes(rdb, cfg.VerificationTTL)
	userSvc := services.NewUserService(usersRepo, inTx, cipher, codes,
		[]byte(cfg.JWTSecret), cfg.TokenTTL, log)

	aggregator := jupiter.NewClient(cfg.JupiterBaseURL, cfg.JupiterAPIKey)
	chain := solanax.NewClient(cfg.SolanaRPCEndpoint)

	orchestrator := trade.NewOrchestrator(usersRepo, cipher, aggregator, chain,
		trade.Defaults{
			SlippageBPS:  cfg.DefaultSlippageBPS,
			PriorityTier: cfg.DefaultPriorityTier,
		}, log, metrics.New())

	api := httpapi.NewServer(userSvc, orchestrator, httpapi.Config{
		JWTSecret:      []byte(cfg.JWTSecret),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, log)

	tg, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	return &App{
		cfg:     cfg,
		log:     log,
		db:      db,
		rdb:     rdb,
		repoMgr: repoMgr,
		httpSrv: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           api,
			ReadHeaderTimeout: 5 * time.Second,
		},
		bot: bot.New(tg, userSvc, orchestrator, nil, log),
	}, nil
}

// Run starts the transports and blocks until a termination signal or a
// fatal startup error.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := a.repoMgr.RunMigrations(ctx, a.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	a.log.Info(ctx, "starting", "config", a.cfg.String())

	errCh := make(chan error, 2)

	go func() {
		a.log.Info(ctx, "http listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	go func() {
		a.log.Info(ctx, "bot polling")
		if err := a.bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("bot: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info(context.Background(), "shutting down")
	case err := <-errCh:
		a.log.Error(context.Background(), "fatal", "error", err)
		stop()
		a.shutdown()
		return err
	}

	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpSrv.Shutdown(ctx); err != nil {
		a.log.Warn(ctx, "http shutdown", "error", err)
	}
	if err := a.rdb.Close(); err != nil {
		a.log.Warn(ctx, "redis close", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn(ctx, "database close", "error", err)
	}
}

func newLogger(level string) logging.Logger {
	return logging.NewJSON(os.Stdout, level)
}
