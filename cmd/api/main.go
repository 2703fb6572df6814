package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bank.com/mop/internal/cases"
	"bank.com/mop/internal/config"
	"bank.com/mop/internal/httpapi"
	"bank.com/mop/internal/notify"
	"bank.com/mop/internal/obs"
	"bank.com/mop/internal/params"
	"bank.com/mop/internal/rbac"
	"bank.com/mop/internal/store/mem"
	"bank.com/mop/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)
	logger := obs.Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.AuthSecret == "" {
		logger.Fatal("MOP_AUTH_SECRET is required")
	}

	var (
		rbacStore  rbac.Store
		caseStore  cases.Store
		paramStore params.Store
		db         *sql.DB
	)
	if cfg.PostgresDSN != "" {
		store, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("open postgres", zap.Error(err))
		}
		defer store.Close()
		rbacStore, caseStore, paramStore = store, store, store
		db = store.DB()
		logger.Info("using postgres store")
	} else {
		store := mem.New()
		rbacStore, caseStore, paramStore = store, store, store
		logger.Info("using in-memory store; data will not survive restarts")
	}

	if cfg.AdminPassword == "" {
		logger.Warn("MOP_ADMIN_PASSWORD is not set; no bootstrap admin will be seeded")
	}
	svc, err := rbac.NewService(rbacStore,
		rbac.WithEmailDomain(cfg.EmailDomain),
		rbac.WithBootstrapAdmin(cfg.AdminEmail, cfg.AdminPassword),
	)
	if err != nil {
		logger.Fatal("rbac service", zap.Error(err))
	}
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 15*time.Second)
	if err := svc.EnsureDefaults(seedCtx); err != nil {
		cancelSeed()
		logger.Fatal("seed defaults", zap.Error(err))
	}
	cancelSeed()

	tokens, err := rbac.NewTokenIssuer(cfg.AuthSecret, cfg.TokenTTL)
	if err != nil {
		logger.Fatal("token issuer", zap.Error(err))
	}

	events := notify.New()
	workflow, err := cases.NewWorkflow(caseStore,
		cases.WithNotifier(events),
		cases.WithIDPrefix(cfg.CaseIDPrefix),
	)
	if err != nil {
		logger.Fatal("case workflow", zap.Error(err))
	}
	paramsSvc, err := params.NewService(paramStore)
	if err != nil {
		logger.Fatal("params service", zap.Error(err))
	}

	api := httpapi.New(httpapi.Deps{
		RBAC:       svc,
		Tokens:     tokens,
		Workflow:   workflow,
		Params:     paramsSvc,
		Stream:     events,
		Ready:      httpapi.ReadyProbe{DB: db},
		Version:    version,
		RateBurst:  cfg.RateBurst,
		RatePerSec: cfg.RatePerSec,
	})

	// No WriteTimeout: /v1/cases/events holds the connection open.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting mop-api",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
		zap.String("environment", cfg.Environment),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	logger.Info("stopped")
}
