package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"arabia.app/internal/audit"
	"arabia.app/internal/auth"
	"arabia.app/internal/config"
	"arabia.app/internal/httpapi"
	"arabia.app/internal/maintenance"
	"arabia.app/internal/obs"
	"arabia.app/internal/ratelimit"
	"arabia.app/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	configFile := flag.String("config", os.Getenv("ARABIA_CONFIG_FILE"), "Path to YAML config file")
	flag.Parse()

	// .env is optional in every environment.
	_ = godotenv.Load()

	cfg, err := config.Load(config.WithConfigFile(*configFile))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := obs.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	obs.SetLogger(logger)
	defer func() { _ = logger.Sync() }()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	store, err := pg.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer store.Close()

	issuer, err := auth.NewIssuer(cfg.JWT.Key, cfg.JWT.Issuer, cfg.JWT.Audience, auth.WithAccessTTL(cfg.JWT.AccessTTL))
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}

	sessionOpts := []auth.ServiceOption{
		auth.WithRefreshTTL(cfg.JWT.RefreshTTL),
		auth.WithLogger(logger.Named("auth")),
		auth.WithMetrics(obs.SessionMetrics{}),
	}
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		limiter, err := ratelimit.New(rdb, cfg.Login.MaxAttempts, cfg.Login.Window)
		if err != nil {
			logger.Fatal("login throttle", zap.Error(err))
		}
		sessionOpts = append(sessionOpts, auth.WithLoginThrottle(limiter))
	} else {
		logger.Warn("redis.addr not set, login throttling disabled")
	}

	sessions, err := auth.NewService(store, issuer, sessionOpts...)
	if err != nil {
		logger.Fatal("session service", zap.Error(err))
	}

	catalog := maintenance.NewService(store,
		maintenance.WithLogger(logger.Named("maintenance")),
		maintenance.WithStatusHook(func(ctx context.Context, req maintenance.Request, from maintenance.Status) {
			err := audit.LogEvent(ctx, audit.RequestStatus, map[string]any{
				"service_request_id": req.ID,
				"from":               string(from),
				"to":                 string(req.Status),
			})
			if err != nil {
				logger.Warn("audit status change", zap.Error(err))
			}
		}),
	)

	proxies, err := httpapi.ParseTrustedProxies(cfg.HTTP.Proxies())
	if err != nil {
		logger.Fatal("http.trusted_proxies", zap.Error(err))
	}

	api := httpapi.New(sessions, catalog,
		httpapi.WithVersion(version),
		httpapi.WithLogger(logger),
		httpapi.WithReadyProbe(httpapi.ReadyProbe{DB: store.DB()}),
		httpapi.WithRateLimit(cfg.HTTP.RateBurst, cfg.HTTP.RatePerSecond),
		httpapi.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		httpapi.WithAllowedOrigins(cfg.CORS.Origins()),
		httpapi.WithTrustedProxies(proxies),
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting arabia-api", zap.String("version", version), zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	logger.Info("stopped")
}
