package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/castlegate/chessd/internal/config"
	"github.com/castlegate/chessd/internal/httpd"
	"github.com/castlegate/chessd/internal/hub"
	"github.com/castlegate/chessd/internal/obslog"
	"github.com/castlegate/chessd/internal/service"
	"github.com/castlegate/chessd/internal/store"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	games, auths, users, cleanup, err := buildStores(cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer cleanup()

	userSvc := service.NewUserService(users, auths)
	gameSvc := service.NewGameService(games)
	gameHub := hub.New(auths, games)
	server := httpd.NewServer(userSvc, gameSvc, gameHub, games, auths, users)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.ListenAddr),
			zap.String("store_backend", cfg.StoreBackend),
			zap.String("auth_backend", cfg.AuthBackend))
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

// buildStores wires the configured backends. The cleanup closes
// whatever connections were opened.
func buildStores(cfg *appcfg.AppConfig) (store.GameStore, store.AuthStore, store.UserStore, func(), error) {
	cleanup := func() {}

	var db *sql.DB
	if cfg.StoreBackend == appcfg.BackendPostgres || cfg.AuthBackend == appcfg.BackendPostgres {
		var err error
		db, err = store.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = store.EnsureSchema(ctx, db)
		cancel()
		if err != nil {
			_ = db.Close()
			return nil, nil, nil, nil, err
		}
		cleanup = func() { _ = db.Close() }
	}

	var (
		games store.GameStore
		auths store.AuthStore
		users store.UserStore
	)
	if cfg.StoreBackend == appcfg.BackendPostgres {
		games = store.NewPostgresGames(db)
		users = store.NewPostgresUsers(db)
	} else {
		games = store.NewMemoryGames()
		users = store.NewMemoryUsers()
	}

	switch cfg.AuthBackend {
	case appcfg.BackendPostgres:
		auths = store.NewPostgresAuths(db)
	case appcfg.BackendRedis:
		redisAuths, err := store.NewRedisAuths(cfg.RedisURL, cfg.AuthTTL)
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, err
		}
		prev := cleanup
		cleanup = func() {
			_ = redisAuths.Close()
			prev()
		}
		auths = redisAuths
	default:
		auths = store.NewMemoryAuths()
	}
	return games, auths, users, cleanup, nil
}
