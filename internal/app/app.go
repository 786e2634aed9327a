// Package app wires configuration, storage, and HTTP serving into a
// runnable key service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vorahub/keyserver/internal/audit"
	"github.com/vorahub/keyserver/internal/config"
	"github.com/vorahub/keyserver/internal/db"
	internalhttp "github.com/vorahub/keyserver/internal/http"
	"github.com/vorahub/keyserver/internal/keylock"
	"github.com/vorahub/keyserver/internal/logging"
	"github.com/vorahub/keyserver/internal/ownercache"
	"github.com/vorahub/keyserver/internal/ratelimit"
	"github.com/vorahub/keyserver/internal/service"
	"github.com/vorahub/keyserver/internal/store"
)

// seedStaffUsername is the initial admin account created on an empty database.
const seedStaffUsername = "admin"

// shutdownTimeout bounds graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}

// RunServer boots the key service and blocks until ctx is cancelled.
func RunServer(ctx context.Context, configPath string) error {
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	logging.Setup(cfg.Log.Level, cfg.Log.File)

	conn, errOpen := db.Open(cfg.Database.DSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errSeed := db.SeedStaff(conn, seedStaffUsername); errSeed != nil {
		return errSeed
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
	}
	limiter := ratelimit.New(rdb, time.Duration(cfg.Keys.CooldownSeconds)*time.Second)

	keys := store.NewKeyStore(conn)
	cacheTTL := time.Duration(cfg.Keys.CacheTTLSeconds) * time.Second
	svc := service.New(service.Dependencies{
		Keys:      keys,
		Vouchers:  store.NewVoucherStore(conn),
		Whitelist: store.NewWhitelistStore(conn),
		Blacklist: store.NewBlacklistStore(conn),
		Cache:     ownercache.New(keys, cfg.Keys.CacheCapacity, cacheTTL),
		Locks:     keylock.New(),
		Audit:     audit.New(cfg.Discord.WebhookURL),
		KeyPrefix: cfg.Keys.Prefix,
	})

	router := internalhttp.NewRouter(cfg, conn, svc, limiter)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", cfg.Server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case errServe := <-serveErr:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", errServe)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown: %w", errShutdown)
	}
	return nil
}
