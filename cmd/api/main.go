package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/vouchers-backend/api/controllers"
	"github.com/angelmondragon/vouchers-backend/api/routes"
	"github.com/angelmondragon/vouchers-backend/internal/auth"
	"github.com/angelmondragon/vouchers-backend/internal/vouchers"
	"github.com/angelmondragon/vouchers-backend/pkg/artifact"
	"github.com/angelmondragon/vouchers-backend/pkg/config"
	"github.com/angelmondragon/vouchers-backend/pkg/db"
	"github.com/angelmondragon/vouchers-backend/pkg/idp"
	"github.com/angelmondragon/vouchers-backend/pkg/logger"
	"github.com/angelmondragon/vouchers-backend/pkg/mailer"
	"github.com/angelmondragon/vouchers-backend/pkg/metrics"
	"github.com/angelmondragon/vouchers-backend/pkg/migrate"
	"github.com/angelmondragon/vouchers-backend/pkg/redis"
	"github.com/angelmondragon/vouchers-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	storageClient, err := gcs.NewClient(context.Background(), cfg.Storage, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap object storage", err)
		os.Exit(1)
	}

	keySet, err := idp.NewKeySet(cfg.IdP.KeySetURL, cfg.IdP.KeySetTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to build key set cache", err)
		os.Exit(1)
	}
	verifier, err := idp.NewVerifier(keySet, cfg.IdP)
	if err != nil {
		logg.Error(context.Background(), "failed to build token verifier", err)
		os.Exit(1)
	}
	idpClient, err := idp.NewClient(cfg.IdP)
	if err != nil {
		logg.Error(context.Background(), "failed to build identity provider client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	voucherMetrics := metrics.NewVoucherMetrics(registry)

	generator, err := artifact.NewGenerator(storageClient, cfg.Storage, cfg.Artifact)
	if err != nil {
		logg.Error(context.Background(), "failed to build artifact generator", err)
		os.Exit(1)
	}

	var sender *mailer.Mailer
	if m := mailer.New(cfg.Email, logg); m != nil {
		sender = m
	} else {
		logg.Info(context.Background(), "email dispatch disabled")
	}

	authService, err := auth.NewService(idpClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	var voucherSender vouchers.ArtifactSender
	if sender != nil {
		voucherSender = sender
	}
	voucherService, err := vouchers.NewService(
		vouchers.NewRepository(dbClient.DB()),
		generator,
		voucherSender,
		voucherMetrics,
		logg,
		cfg.Vouchers.ConflictStatus,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create voucher service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:     cfg,
			Logger:     logg,
			Redis:      redisClient,
			Verifier:   verifier,
			AuthSvc:    authService,
			VoucherSvc: voucherService,
			Registry:   registry,
			Readiness: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
				"storage":  storageClient,
			},
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
