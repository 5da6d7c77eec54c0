// Command storegate runs the multi-tenant storage gateway: a gin HTTP
// server exposing both the JSON API and the WebDAV surface over one or
// more S3-compatible storage backends.
//
// Bootstrap is deliberately simple: one process, one listener, one
// signal-driven graceful shutdown, rather than a multi-pool,
// hot-reloadable server registry (see DESIGN.md).
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sabouaram/storegate/internal/authresolver"
	"github.com/sabouaram/storegate/internal/filesystem"
	"github.com/sabouaram/storegate/internal/gwconfig"
	"github.com/sabouaram/storegate/internal/gwlog"
	"github.com/sabouaram/storegate/internal/httpsurface"
	"github.com/sabouaram/storegate/internal/metastore"
	"github.com/sabouaram/storegate/internal/webdavfs"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	log := gwlog.New("storegate")

	cfg, err := gwconfig.Load(*configPath)
	if err != nil {
		log.Error("loading configuration", err, nil)
		os.Exit(1)
	}
	if cfg.EncryptionSecret == "" {
		log.Error("ENCRYPTION_SECRET is not set", nil, nil)
		os.Exit(1)
	}

	db, err := openDB(cfg.Metastore)
	if err != nil {
		log.Error("opening metadata store", err, nil)
		os.Exit(1)
	}
	if err := metastore.Migrate(db); err != nil {
		log.Error("migrating metadata store", err, nil)
		os.Exit(1)
	}

	adminToken := cfg.Auth.AdminToken
	if adminToken == "" {
		adminToken = uuid.NewString()
		log.Warn("no adminToken configured, generated a random one for this process", map[string]any{"adminToken": adminToken})
	}

	store := metastore.New(db, adminToken)
	fs := filesystem.New(store, cfg, log.With(map[string]any{"component": "filesystem"}))
	auth := authresolver.New(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	locks := webdavfs.NewLockManager(ctx, cfg.WebDAV.DefaultLockTimeout, cfg.WebDAV.MinLockTimeout, cfg.WebDAV.MaxLockTimeout, cfg.WebDAV.LockSweepInterval)
	dav := webdavfs.New(fs, locks, log.With(map[string]any{"component": "webdav"}))
	api := httpsurface.New(fs, log.With(map[string]any{"component": "api"}))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	authMW := authresolver.Middleware(auth, true)
	api.Register(router, authMW)

	davGroup := router.Group(cfg.WebDAV.BasePath)
	davGroup.Use(httpsurface.CORS(), authMW)
	dav.Register(davGroup)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout,
	}

	go func() {
		log.Info("listening", map[string]any{"addr": cfg.Server.Addr})
		if serr := srv.ListenAndServe(); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			log.Error("server stopped unexpectedly", serr, nil)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", err, nil)
	}
}

func openDB(cfg gwconfig.MetastoreConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	default:
		return gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{})
	}
}
