package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"churn-calculator/config"
	httpLayer "churn-calculator/http"
	"churn-calculator/hubspot"
	"churn-calculator/logging"
	"churn-calculator/repository"
	"churn-calculator/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "churn-calculator",
		Short: "Churn loss projections and HubSpot lead sync",
		Long: `churn-calculator projects how much revenue a merchant loses to customer
churn and forwards qualified leads, with their projection, to HubSpot.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "optional config file (yaml, toml or json)")

	loadConfig := func() (config.Config, error) {
		var opts []config.Option
		if configFile != "" {
			opts = append(opts, config.WithConfigFile(configFile))
		}
		return config.Load(opts...)
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
	root.AddCommand(serve, newProjectCmd())
	root.RunE = serve.RunE

	return root
}

func newProjectCmd() *cobra.Command {
	var req service.CalculatorRequest

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Print the churn projection for the given metrics as JSON",
		Example: `  churn-calculator project --aov '$100' --customers 1000 --frequency 4 --churn 20%
  churn-calculator project --aov 85.5 --customers 2500 --frequency 3 --churn 12.5 --margin 40 --cac 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := req.ToInputs()
			if err != nil {
				return err
			}
			if err := service.Validate(inputs); err != nil {
				return err
			}
			results, err := service.Calculate(inputs)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.AverageOrderValue, "aov", "", "average order value")
	flags.StringVar(&req.NumberOfCustomers, "customers", "", "number of customers")
	flags.StringVar(&req.PurchaseFrequency, "frequency", "", "purchases per customer per year")
	flags.StringVar(&req.ChurnRate, "churn", "", "annual churn rate in percent")
	flags.StringVar(&req.CustomerAcquisitionCost, "cac", "", "customer acquisition cost (optional)")
	flags.StringVar(&req.GrossMargin, "margin", "", "gross margin in percent (optional)")
	for _, name := range []string{"aov", "customers", "frequency", "churn"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runServer(parent context.Context, cfg config.Config) error {
	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	var cache repository.CacheRepository
	if cfg.Cache.RedisAddr != "" {
		redisCache := repository.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.TTL)
		defer redisCache.Close()
		if err := redisCache.Ping(parent); err != nil {
			logger.Warn("redis unreachable, projections will be recomputed until it recovers",
				zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		}
		cache = redisCache
	} else {
		cache = repository.NewMemoryCache()
	}

	crm := newCRMClient(cfg, logger)

	retry := hubspot.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Retry.MaxAttempts
	retry.Backoff = hubspot.ExponentialBackoff(cfg.Retry.InitialBackoff)

	projectionService := service.NewProjectionService(cache, logger.Named("projection"))
	syncService := service.NewLeadSyncService(crm, service.SyncConfig{
		PortalID:           cfg.HubSpot.PortalID,
		FormID:             cfg.HubSpot.FormID,
		ListID:             cfg.HubSpot.CalculatorListID,
		WorkflowID:         cfg.HubSpot.WorkflowID,
		DealThreshold:      cfg.Deal.Threshold,
		DealCaptureRate:    cfg.Deal.CaptureRate,
		DealHorizonYears:   cfg.Deal.HorizonYears,
		Retry:              retry,
		MetadataProperties: cfg.HubSpot.MetadataProperties,
	}, logger.Named("lead_sync"))

	rateLimiter := httpLayer.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.Refill)
	defer rateLimiter.Stop()

	router := httpLayer.NewRouter(
		httpLayer.NewProjectionHandler(projectionService, logger),
		httpLayer.NewLeadHandler(projectionService, syncService, logger),
		rateLimiter,
		cfg.Server.WriteTimeout,
		logger,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("API listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		logger.Error("server failed", zap.Error(err))
		return err
	case <-ctx.Done():
		logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", zap.Error(err))
		return err
	}

	logger.Info("server exited")
	return nil
}

// newCRMClient builds the shared HubSpot client and warns when contact sync
// cannot authenticate.
func newCRMClient(cfg config.Config, logger *zap.Logger) *hubspot.Client {
	crm := hubspot.NewClient(hubspot.Config{
		AccessToken:  cfg.HubSpot.AccessToken,
		APIBaseURL:   cfg.HubSpot.APIBaseURL,
		FormsBaseURL: cfg.HubSpot.FormsBaseURL,
		Timeout:      cfg.HubSpot.Timeout,
	})
	if !crm.HasAccessToken() {
		logger.Warn("HUBSPOT_ACCESS_TOKEN is not set; contact sync will fail and use the email-only fallback")
	}
	return crm
}
