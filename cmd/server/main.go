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

	"github.com/diewo77/microloan/auth"
	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/internal/api"
	"github.com/diewo77/microloan/internal/config"
	"github.com/diewo77/microloan/internal/db"
	"github.com/diewo77/microloan/internal/identity"
	"github.com/diewo77/microloan/internal/jobs"
	"github.com/diewo77/microloan/internal/logger"
	"github.com/diewo77/microloan/internal/metrics"
	"github.com/diewo77/microloan/internal/moderation"
	"github.com/diewo77/microloan/internal/roles"
	"github.com/diewo77/microloan/internal/storage"
	"go.uber.org/zap"
)

var migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")

const (
	pruneSpec = "@every 10m"
	pruneIdle = 30 * time.Minute
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.LogLevel, cfg.App.Dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	m := metrics.New()

	dbConn, err := db.Open(cfg.Database, log)
	if err != nil {
		return err
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn); err != nil {
			return err
		}
		log.Info("migrations completed")
		return nil
	}
	if cfg.App.Migrations {
		if err := db.Migrate(dbConn); err != nil {
			return err
		}
		log.Info("migrations completed")
	}

	sessions := auth.NewManager(auth.NewGormStore(dbConn), auth.Options{
		Secret:       cfg.Session.Secret,
		TTL:          cfg.Session.TTL,
		SecureCookie: cfg.Session.SecureCookie,
	}, log)

	client := api.New(cfg.API.BaseURL, cfg.API.Timeout, log, m)

	ctx := context.Background()
	var roleCache gate.RoleCache[string] = gate.NewMemoryCache[string](cfg.Roles.CacheTTL)
	if cfg.Roles.RedisAddr != "" {
		rdb, err := roles.NewRedisClient(ctx, cfg.Roles.RedisAddr, cfg.Roles.RedisPassword, cfg.Roles.RedisDB, log)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		roleCache = roles.NewRedisCache(rdb, cfg.Roles.CacheTTL, log)
	}
	resolver := roles.NewResolver(client, roleCache, roles.Options{
		Wait:         cfg.Roles.Wait,
		FetchTimeout: cfg.Roles.FetchTimeout,
	}, log, m)

	deps := Deps{
		Config:   cfg,
		Logger:   log,
		Metrics:  m,
		Sessions: sessions,
		API:      client,
		Roles:    resolver,
		Provider: identity.NewJWTProvider(identity.JWTConfig{
			SignInURL:  cfg.Identity.SignInURL,
			SignOutURL: cfg.Identity.SignOutURL,
			Issuer:     cfg.Identity.Issuer,
			Audience:   cfg.Identity.Audience,
			Secret:     cfg.Identity.Secret,
			Leeway:     30 * time.Second,
		}),
		Moderation: moderation.NewService(client, cfg.Lists.Staleness, log),
	}

	if cfg.Storage.Enabled() {
		up, err := storage.NewMinioUploader(storage.Options{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
			PublicURL: cfg.Storage.PublicURL,
		}, log)
		if err != nil {
			return err
		}
		if err := up.EnsureBucket(ctx); err != nil {
			return err
		}
		deps.Uploader = up
	} else {
		log.Info("image uploads disabled, MINIO_ENDPOINT is empty")
	}

	app, err := NewApp(deps)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	scheduler := jobs.NewScheduler(log)
	if err := scheduler.SweepSessions(cfg.Session.SweepSpec, sessions); err != nil {
		return err
	}
	if err := scheduler.PruneWorkingSets(pruneSpec, deps.Moderation, pruneIdle); err != nil {
		return err
	}
	// Redis expires roles itself; only the local cache needs sweeping.
	if c, ok := roleCache.(jobs.ExpirySweeper); ok {
		if err := scheduler.SweepRoleCache(pruneSpec, c); err != nil {
			return err
		}
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
	log.Info("server stopped gracefully")
	return nil
}
