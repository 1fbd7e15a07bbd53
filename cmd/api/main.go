package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	v1 "matchchat/cmd/api/router/v1"
	"matchchat/internal/config"
	"matchchat/internal/infrastructure/auth"
	cacheAdapter "matchchat/internal/infrastructure/cache/adapter"
	cacheport "matchchat/internal/infrastructure/cache/port"
	"matchchat/internal/infrastructure/database"
	"matchchat/internal/infrastructure/logging"
	queueAdapter "matchchat/internal/infrastructure/queue/adapter"
	qport "matchchat/internal/infrastructure/queue/port"
	"matchchat/internal/infrastructure/realtime"
	"matchchat/internal/infrastructure/telemetry"
	"matchchat/internal/pkg/chat/application/task"
	"matchchat/internal/pkg/chat/application/usecase"
	repoAdapter "matchchat/internal/pkg/chat/persistence/repository/adapter"
	repository "matchchat/internal/pkg/chat/persistence/repository/port"
	httpHandler "matchchat/internal/pkg/chat/presentation/http"
	"matchchat/internal/pkg/chat/presentation/controller"
	connAdapter "matchchat/internal/repository/adapter"
	connections "matchchat/internal/repository/port"
)

func main() {
	cfg, found := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if !found {
		log.Debug(".env file not found; using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("matchchat stopped")
	}
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	store, gate, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	cache := openCache(ctx, cfg, log)
	if cache != nil {
		defer cache.Close()
	}

	metrics, err := telemetry.NewMetrics("matchchat")
	if err != nil {
		return err
	}
	metrics.Install()
	defer func() {
		if err := metrics.Shutdown(context.Background()); err != nil {
			log.WithError(err).Debug("meter provider shutdown")
		}
	}()

	hub := realtime.NewHub()
	deps := usecase.Deps{
		Store:  store,
		Fanout: hub,
		Cache:  cache,
		Locks:  usecase.NewUserLocks(),
		Retry: usecase.RetryPolicy{
			MaxAttempts:     cfg.RetryMaxAttempts,
			InitialInterval: cfg.RetryInitialInterval,
			MaxInterval:     cfg.RetryMaxInterval,
			Multiplier:      cfg.RetryMultiplier,
		},
		DedupeTTL: cfg.DedupeTTL,
		Log:       log,
		Meter:     metrics.Meter("matchchat/chat"),
	}

	var worker qport.Server
	if cfg.RedisURL != "" {
		client, err := queueAdapter.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("repair queue disabled")
		} else {
			defer client.Close()
			deps.Queue = client
			worker, err = queueAdapter.NewAsynqServer(cfg.RedisURL, cfg.AsynqConcurrency, cfg.AsynqQueues, log)
			if err != nil {
				log.WithError(err).Warn("repair worker disabled")
				worker = nil
			}
		}
	}

	engine := usecase.NewEngine(deps, hub, gate)
	if worker != nil {
		task.RegisterRepairCopyTask(worker, engine.Repair)
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.WithError(err).Error("repair worker stopped")
			}
		}()
	}

	var ident controller.Identifier
	if cfg.JWTSecret != "" {
		ident.Auth = auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
	} else {
		log.Warn("JWT_SECRET not set; trusting user_id from requests")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), v1.RequestLogger(log))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	v1.RegisterRoutes(r, httpHandler.Options{
		Hub:             hub,
		Engine:          engine,
		Identifier:      ident,
		Log:             log,
		InflightTimeout: cfg.InflightTimeout,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	log.Info("shutdown complete")
	return nil
}

func openStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (repository.MessageStore, connections.ConnectionRepository, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory message store; messages are lost on restart")
		return repoAdapter.NewMemoryMessageStore(), connections.AllowAll{}, func() {}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := database.Connect(connectCtx, cfg.DBURL, database.PoolOptions{
		MaxConns:        int32(cfg.DBMaxConns),
		MinConns:        int32(cfg.DBMinConns),
		MaxConnIdleTime: cfg.DBMaxConnIdle,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		ApplicationName: "matchchat",
	})
	if err != nil {
		return nil, nil, nil, err
	}
	store := repoAdapter.NewPgMessageStore(pool)
	if err := store.EnsureSchema(connectCtx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return store, gateFor(cfg, pool), pool.Close, nil
}

func gateFor(cfg config.Config, pool *pgxpool.Pool) connections.ConnectionRepository {
	if !cfg.ConnectionGate {
		return connections.AllowAll{}
	}
	return connAdapter.NewSQLConnectionRepository(database.OpenDB(pool))
}

// openCache returns nil when Redis is not configured or unreachable; the
// engine then dedupes through the store only.
func openCache(ctx context.Context, cfg config.Config, log logrus.FieldLogger) cacheport.Cache {
	if cfg.RedisURL == "" {
		return nil
	}
	cache, err := cacheAdapter.NewRedisCache(ctx, cfg.RedisURL, "matchchat")
	if err != nil {
		log.WithError(err).Warn("redis cache disabled")
		return nil
	}
	return cache
}
