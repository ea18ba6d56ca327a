package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"wmscore/audit"
	"wmscore/config"
	"wmscore/engine"
	"wmscore/idempotency"
	"wmscore/logging"
	"wmscore/metrics"
	"wmscore/stockstate"
	"wmscore/store"
	"wmscore/tracing"
	"wmscore/www"
)

var Version = "dev"

// Finalized idempotency records older than this are purged.
const idempotencyRetention = 7 * 24 * time.Hour

// idempotencyLockGrace is how long an in-flight key may stay unfinished
// before the purge treats it as orphaned.
const idempotencyLockGrace = time.Hour

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "wmscore.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if *showVersion {
		fmt.Println("wmscore", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "load env: %v\n", err)
		os.Exit(1)
	}

	logging.Init("wmscore", cfg.Log.Development)
	logging.SetLevel(cfg.Log.Level)
	log := logging.Logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.Init(ctx, "wmscore", Version, cfg.Tracing)
	if err != nil {
		log.Fatal().Err(err).Msg("init tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracing.Shutdown(shutdownCtx, tp)
	}()

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	log.Info().Str("driver", cfg.Database.Driver).Msg("wmscore: database open")

	// Redis is optional; without it caches fall through to SQL.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	redisStore := stockstate.NewRedisStore(redisClient)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	redisUp := redisStore.Ping(pingCtx) == nil
	cancel()
	if redisUp {
		log.Info().Str("address", cfg.Redis.Address).Msg("wmscore: redis connected")
	} else {
		log.Warn().Str("address", cfg.Redis.Address).Msg("wmscore: redis not available, running without cache")
	}

	// Engine
	eng := engine.New(engine.Config{DB: db, Audit: audit.NewSQLSink(db)})
	eng.Start()
	defer eng.Stop()

	m := metrics.New()
	m.Subscribe(eng.Events)

	var stockRedis *stockstate.RedisStore
	var replayCache idempotency.Cache
	if redisUp {
		stockRedis = redisStore
		replayCache = idempotency.NewRedisCache(redisClient, cfg.Redis.ReplayTTL)
	}
	stock := stockstate.NewManager(db, stockRedis)
	stock.Subscribe(eng.Events)
	if err := stock.SyncRedisFromSQL(ctx); err != nil {
		log.Warn().Err(err).Msg("wmscore: redis sync from SQL")
	}

	gateway := idempotency.New(db, replayCache)

	handler, err := www.NewRouter(www.Deps{
		Config:  cfg,
		Engine:  eng,
		Gateway: gateway,
		Stock:   stock,
		Metrics: m,
		RedisPing: redisStore.Ping,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build router")
	}

	go purgeIdempotency(ctx, db)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("wmscore: web server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("web server")
		}
	}()

	log.Info().Str("version", Version).Msg("wmscore: ready")
	<-ctx.Done()

	log.Info().Msg("wmscore: shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)
	log.Info().Msg("wmscore: stopped")
}

func purgeIdempotency(ctx context.Context, db *store.DB) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			n, err := db.PurgeIdempotencyRecords(ctx, now.Add(-idempotencyRetention), now.Add(-idempotencyLockGrace))
			if err != nil {
				logging.Logger.Warn().Err(err).Msg("wmscore: purge idempotency records")
				continue
			}
			if n > 0 {
				logging.Logger.Info().Int64("purged", n).Msg("wmscore: purged idempotency records")
			}
		}
	}
}
