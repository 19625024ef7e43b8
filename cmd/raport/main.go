// Command raport serves the monthly report API and pages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"raport/internal/backend"
	"raport/internal/cache"
	"raport/internal/cli"
	"raport/internal/core"
	apphttp "raport/internal/http"
	applog "raport/internal/log"
	"raport/internal/reportclient"
	"raport/internal/services"
)

const janitorInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	reportCache := cache.NewLRUCache[core.MonthlyReport](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	janitor := cache.NewJanitor(logger)
	janitor.Register(reportCache)
	janitor.Start(janitorInterval)

	reports := services.NewReportService(be.Store, reportCache, logger)
	opts := []services.ExpenseOption{
		services.WithInvalidator(reports),
		services.WithCloser(be.Cleanup),
		services.WithExpenseLogger(logger),
	}
	if be.Publisher != nil {
		opts = append(opts, services.WithPublisher(be.Publisher))
	}
	expenses := services.NewExpenseService(be.Store, opts...)

	// The pages read the report through the same HTTP API external callers use.
	client, err := reportclient.New(cfg.ReportAPIURL,
		reportclient.WithToken(cfg.ReportAPIToken),
		reportclient.WithTimeout(cfg.ReportAPITimeout))
	if err != nil {
		logger.Error("Invalid report API URL", applog.FieldError, err, "url", cfg.ReportAPIURL)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Reports:   reports,
		Expenses:  expenses,
		Fetcher:   client,
		Ready:     be.Ready,
		APIToken:  cfg.ReportAPIToken,
		UITimeout: cfg.ReportAPITimeout,
		Logger:    logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	go func() {
		logger.Info("Starting raport server",
			"port", cfg.Port,
			applog.FieldBackend, cfg.DataBackend,
			"report_api", cfg.ReportAPIURL,
			"amqp_enabled", be.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
			cancel()
		}
	}()

	<-ctx.Done()
	cli.Shutdown(logger, 30*time.Second, func(ctx context.Context) error {
		janitor.Stop()
		return errors.Join(srv.Shutdown(ctx), expenses.Close())
	})
}
