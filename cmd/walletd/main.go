package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"mochifi/internal/directory"
	"mochifi/internal/domain"
	"mochifi/internal/events"
	"mochifi/internal/guardian"
	"mochifi/internal/keyring"
	"mochifi/internal/ledger"
	"mochifi/internal/localstore"
	"mochifi/internal/platform/config"
	"mochifi/internal/platform/httpserver"
	"mochifi/internal/platform/logger"
	"mochifi/internal/platform/metrics"
	platformredis "mochifi/internal/platform/redis"
	"mochifi/internal/recovery"
	"mochifi/internal/state"
	"mochifi/internal/token"
	httptransport "mochifi/internal/transport/http"
	"mochifi/internal/wallet"
)

// main wires dependencies and runs the daemon: the notification channel in
// the background, the control API in front, startup reconciliation in
// between. Business logic lives in the internal services.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New(os.Getenv("MOCHIFI_LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	store, err := openStore(ctx, cfg, rdb, log)
	if err != nil {
		return err
	}
	session, err := state.NewSession(store, state.WithSessionLogger(log))
	if err != nil {
		return err
	}

	var keys domain.KeySource
	if cfg.KeyringURL != "" {
		keys = keyring.NewClient(cfg.KeyringURL)
	} else {
		keys = keyring.Deterministic{}
	}
	if err := session.Restore(keys); err != nil {
		return err
	}

	dir, pool, err := openDirectory(ctx, cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	eventLog, closeLog, err := openEventLog(ctx, cfg, rdb, log)
	if err != nil {
		return err
	}
	defer closeLog()

	m := metrics.New()

	var backend ledger.Ledger
	if cfg.LedgerURL != "" {
		backend = ledger.NewClient(cfg.LedgerURL, cfg.ChainID)
	} else if cfg.DevMode {
		backend = ledger.NewFakeLedger()
	} else {
		return fmt.Errorf("MOCHIFI_LEDGER_URL is required outside dev mode")
	}
	orchOpts := []ledger.Option{ledger.WithLogger(log), ledger.WithMetrics(m)}
	if cfg.WalletCodeID != 0 {
		orchOpts = append(orchOpts, ledger.WithWalletCodeID(cfg.WalletCodeID))
	}
	orch, err := ledger.New(backend, orchOpts...)
	if err != nil {
		return err
	}

	guardians, err := guardian.New(session, orch, dir, eventLog,
		guardian.WithLogger(log), guardian.WithMetrics(m))
	if err != nil {
		return err
	}
	recoveries, err := recovery.New(session, orch, dir, eventLog, keys,
		recovery.WithLogger(log), recovery.WithMetrics(m))
	if err != nil {
		return err
	}
	wallets, err := wallet.New(session, orch, dir, eventLog, keys, wallet.WithLogger(log))
	if err != nil {
		return err
	}

	channel, err := events.NewChannel(eventLog, session,
		events.WithChannelLogger(log), events.WithChannelMetrics(m))
	if err != nil {
		return err
	}

	// One-shot triggers set by the channel are consumed here so the session
	// converges without the operator polling.
	session.Watch(func(s state.State) {
		switch {
		case s.ShouldReloadGuardians:
			go func() {
				if err := guardians.Reload(context.WithoutCancel(ctx)); err != nil {
					log.Warn("guardian reload failed", "error", err)
				}
			}()
		case s.ShouldCheckRecoveryProgress:
			go func() {
				if _, err := recoveries.CheckProgress(context.WithoutCancel(ctx)); err != nil {
					log.Warn("recovery progress check failed", "error", err)
				}
			}()
		}
	})

	reconcile(ctx, log, guardians, recoveries)

	tokens := token.NewService(cfg.JWTSigningKey, time.Hour)
	handler := httptransport.NewHandler(session, wallets, guardians, recoveries, tokens, cfg.APISecret, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, tokens, log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := channel.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("starting walletd", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// reconcile refreshes local caches from the ledger after a restart: the ward
// list gating recovery broadcasts, the guardian lists, and an in-flight
// recovery whose invite may need re-broadcasting.
func reconcile(ctx context.Context, log *slog.Logger, guardians *guardian.Service, recoveries *recovery.Service) {
	if err := guardians.ReloadFamily(ctx); err != nil {
		log.Warn("startup family reload failed", "error", err)
	}
	if err := guardians.Reload(ctx); err != nil {
		log.Warn("startup guardian reload failed", "error", err)
	}
	if err := recoveries.ResumeIfFunded(ctx); err != nil {
		log.Warn("startup recovery resume failed", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.Config, rdb *platformredis.Client, log *slog.Logger) (localstore.Store, error) {
	var secrets localstore.SecretSource
	switch {
	case cfg.StateSecret != "":
		secrets = localstore.StaticSecret(cfg.StateSecret)
	case rdb != nil:
		secrets = localstore.NewRedisSecret(rdb.Client, "mochifi:app-secret")
	case cfg.DevMode:
		secrets = localstore.StaticSecret("dev-state-secret")
	default:
		return nil, fmt.Errorf("MOCHIFI_STATE_SECRET or redis is required outside dev mode")
	}
	secret, err := secrets.AppSecret(ctx)
	if err != nil {
		// Fall open: no restored wallet rather than no daemon.
		log.Warn("state secret unavailable, running with in-memory state", "error", err)
		return localstore.NewMemory(), nil
	}
	return localstore.OpenSecureFile(cfg.StatePath, secret)
}

func openDirectory(ctx context.Context, cfg config.Config) (directory.Directory, *pgxpool.Pool, error) {
	if cfg.PostgresURL == "" {
		if !cfg.DevMode {
			return nil, nil, fmt.Errorf("MOCHIFI_POSTGRES_URL is required outside dev mode")
		}
		return directory.NewMemory(), nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return directory.NewPostgres(pool), pool, nil
}

func openEventLog(ctx context.Context, cfg config.Config, rdb *platformredis.Client, log *slog.Logger) (events.Log, func(), error) {
	switch cfg.EventBackend {
	case config.EventBackendRedis:
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis event backend requires MOCHIFI_REDIS_URL")
		}
		l, err := events.NewRedisLog(rdb.Client, events.WithRedisLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return l, func() {}, nil
	case config.EventBackendKafka:
		l, err := events.NewKafkaLog(ctx, cfg.KafkaBrokers, events.WithKafkaLogger(log))
		if err != nil {
			return nil, nil, err
		}
		return l, l.Close, nil
	case config.EventBackendMemory:
		return events.NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown event backend %q", cfg.EventBackend)
	}
}
