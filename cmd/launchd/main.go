// launchd runs the token launch layer: the REST API, the websocket event
// firehose, the Prometheus endpoint and the background claim sweeper.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/launchlayer/curve_layer/internal/app"
	"github.com/launchlayer/curve_layer/internal/app/httpapi"
	"github.com/launchlayer/curve_layer/internal/app/metrics"
	"github.com/launchlayer/curve_layer/internal/app/storage/postgres"
	"github.com/launchlayer/curve_layer/internal/config"
	"github.com/launchlayer/curve_layer/internal/platform/migrations"
	"github.com/launchlayer/curve_layer/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/launchd.yaml", "path to configuration file")
	flag.Parse()

	_ = godotenv.Load() // allow .env for local runs

	cfg, err := config.LoadFromPath(*configPath)
	if err != nil {
		logger.NewDefault("launchd").WithError(err).Error("load configuration")
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Logger()).WithComponent("launchd")

	params, err := cfg.CurveParams()
	if err != nil {
		log.WithError(err).Error("curve configuration")
		os.Exit(1)
	}
	issuance, err := cfg.TokenIssuance()
	if err != nil {
		log.WithError(err).Error("issuance configuration")
		os.Exit(1)
	}
	if cfg.Curve.Treasury == "" {
		log.Error("curve.treasury (or LAUNCH_TREASURY) is required")
		os.Exit(1)
	}
	if cfg.Vesting.Authority == "" {
		log.Error("vesting.authority (or LAUNCH_AUTHORITY) is required")
		os.Exit(1)
	}

	stores := app.Stores{}
	if cfg.Database.URL != "" {
		db, err := sqlx.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.WithError(err).Error("open database")
			os.Exit(1)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := migrations.Apply(ctx, db.DB); err != nil {
			cancel()
			log.WithError(err).Error("apply migrations")
			os.Exit(1)
		}
		cancel()

		pg := postgres.New(db)
		stores = app.Stores{
			Tokens:   pg,
			Curves:   pg,
			Vestings: pg,
			Bank:     pg,
			Balances: pg,
			Events:   pg,
			Ledger:   pg,
		}
		log.Info("using postgres persistence")
	} else {
		log.Warn("LAUNCH_DATABASE_URL not set; using in-memory store")
	}

	application, err := app.New(stores, app.Options{
		CurveParams:   params,
		Issuance:      issuance,
		Treasury:      cfg.Curve.Treasury,
		Authority:     cfg.Vesting.Authority,
		ClaimSchedule: cfg.Vesting.ClaimSchedule,
	}, log)
	if err != nil {
		log.WithError(err).Error("initialise application")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start services")
		os.Exit(1)
	}

	handler := httpapi.NewHandler(application, httpapi.Config{
		JWTSecret:     cfg.HTTP.JWTSecret,
		RatePerSecond: cfg.HTTP.RatePerSecond,
		Burst:         cfg.HTTP.RateBurst,
	}, log)

	apiServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           metrics.InstrumentHandler(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infof("api listening on %s", cfg.HTTP.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("api server")
			stop()
		}
	}()

	var metricsServer *http.Server
	if cfg.HTTP.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.HTTP.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Infof("metrics listening on %s", cfg.HTTP.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Warn("metrics server")
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("api shutdown")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("metrics shutdown")
		}
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("stop services")
	}
}
