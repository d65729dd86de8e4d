package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/jf-navica/hydroqc-ha/internal/adapters/driven/auth"
	"github.com/jf-navica/hydroqc-ha/internal/adapters/driven/opendata"
	"github.com/jf-navica/hydroqc-ha/internal/adapters/driven/portal"
	"github.com/jf-navica/hydroqc-ha/internal/adapters/driving/http"
	"github.com/jf-navica/hydroqc-ha/internal/config"
	"github.com/jf-navica/hydroqc-ha/internal/core/domain"
	"github.com/jf-navica/hydroqc-ha/internal/core/ports/driven"
	"github.com/jf-navica/hydroqc-ha/internal/core/services"
	"github.com/jf-navica/hydroqc-ha/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator and the control API",
	Long: `Run the update coordinator and/or the control API.

Configuration comes from an optional YAML file (--config), a .env file next to it
and environment variables. The run mode selects what this instance does:
- all:         coordinator and API in one process (default)
- coordinator: update tick only
- api:         API only, serving the snapshot from the shared state store`,
	RunE: runServe,
}

const defaultGracefulTimeout = 30 * time.Second

func init() {
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML)")
	serveCmd.Flags().String("address", "", "Address to listen on (overrides config)")
	serveCmd.Flags().String("run-mode", "", "Run mode: all, coordinator or api (overrides config)")

	for _, name := range []string{"config", "address", "run-mode"} {
		if err := viper.BindPFlag(name, serveCmd.Flags().Lookup(name)); err != nil {
			slog.Error("Failed to bind flag", "flag", name, "error", err)
		}
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if address := viper.GetString("address"); address != "" {
		cfg.Address = address
	}
	if runMode := viper.GetString("run-mode"); runMode != "" {
		cfg.RunMode = runMode
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Log, viper.GetBool("debug"))
	slog.SetDefault(logger)
	if cfg.API.JWTSecret == config.DevelopmentSecret {
		logger.Warn("using the development JWT secret, set JWT_SECRET in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.NewMeterProvider(ctx,
		telemetry.WithServiceVersion(Version),
		telemetry.WithMetricsConfig(&cfg.Metrics),
	)
	if err != nil {
		return fmt.Errorf("failed to create meter provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("meter provider shutdown failed", "error", err)
		}
	}()
	metrics, err := telemetry.NewMetrics(provider)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	b, err := openBackends(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	mode, _ := cfg.Contract.ModeValue()
	identity := cfg.Contract.Identity(mode)
	loc, _ := cfg.Contract.Location()
	runtimeCfg := domain.NewRuntimeConfig(cfg.RunMode, b.stateBackend, b.lockBackend)

	authService := services.NewAuthService(cfg.API.Users, auth.NewAdapter(cfg.API.JWTSecret), cfg.API.TokenTTL)
	if len(cfg.API.Users) == 0 {
		logger.Warn("no api.users configured, the control API only serves health endpoints")
	}

	var calendarSync *services.CalendarSync
	if cfg.Sync.Calendar {
		calendarSync = services.NewCalendarSync(services.CalendarSyncConfig{
			Store:      b.calendar,
			ContractID: identity.ID,
			Logger:     logger,
		})
	}

	svc := http.Services{
		Auth:    authService,
		Metrics: provider.Handler(),
		Checks: map[string]http.Pinger{
			"state": b.state,
			"lock":  b.lock,
		},
	}
	if calendarSync != nil {
		svc.Calendar = calendarSync
	}

	var coordinator *services.Coordinator
	if runtimeCfg.RunsCoordinator() {
		coordinator = newCoordinator(cfg, mode, identity, loc, b, calendarSync, runtimeCfg, metrics, logger)
		if err := coordinator.Start(ctx); err != nil {
			return fmt.Errorf("failed to start coordinator: %w", err)
		}
		svc.Coordinator = coordinator
	} else {
		svc.Snapshots = services.NewStoredSnapshotReader(b.state, identity.ID)
	}

	g, gctx := errgroup.WithContext(ctx)

	var server *http.Server
	if cfg.RunMode != config.RunModeCoordinator {
		serverCfg, err := serverConfig(cfg, logger)
		if err != nil {
			return err
		}
		http.SwaggerInfo.Version = Version
		server = http.NewServer(serverCfg, svc)
		g.Go(server.ListenAndServe)
	}

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("systemd readiness notification failed", "error", err)
	} else if sent {
		logger.Debug("notified systemd of readiness")
	}

	logger.Info("hydroqc-coordinator started",
		"version", Version,
		"run_mode", cfg.RunMode,
		"mode", mode,
		"contract_id", identity.ID,
		"state_backend", b.stateBackend,
		"lock_backend", b.lockBackend,
	)

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultGracefulTimeout)
		defer cancel()

		var errs []error
		if server != nil {
			if err := server.Stop(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		if coordinator != nil {
			if err := coordinator.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown completed with errors", "error", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// newCoordinator wires the clients, background tasks and orchestrator.
func newCoordinator(
	cfg *config.Config,
	mode domain.Mode,
	identity domain.ContractIdentity,
	loc *time.Location,
	b *backends,
	calendarSync *services.CalendarSync,
	runtimeCfg *domain.RuntimeConfig,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
) *services.Coordinator {
	plan := cfg.Contract.RatePlan()

	public := opendata.NewClient(opendata.Config{
		BaseURL:         cfg.OpenData.BaseURL,
		Offer:           plan.PeakOffer(),
		PreheatDuration: cfg.Contract.PreheatDuration(),
		Timeout:         cfg.OpenData.Timeout,
		MaxRetries:      cfg.OpenData.MaxRetries,
		Logger:          logger.With("source", domain.SourcePublic),
	})

	var portalClient driven.PortalClient
	var consumption *services.ConsumptionSync
	if mode.IsPortal() {
		portalClient = portal.NewClient(portal.Config{
			BaseURL:  cfg.Portal.BaseURL,
			ClientID: cfg.Portal.ClientID,
			Username: cfg.Portal.Username,
			Password: cfg.Portal.Password,
			Timeout:  cfg.Portal.Timeout,
			Logger:   logger.With("source", domain.SourcePortal),
		})
		consumption = services.NewConsumptionSync(services.ConsumptionSyncConfig{
			Portal:     portalClient,
			Store:      b.consumption,
			ContractID: identity.ID,
			Logger:     logger,
			Location:   loc,
		})
	}

	tasks := services.NewTaskDeduper(services.TaskDeduperConfig{
		Logger:  logger,
		Metrics: metrics,
	})

	orchestrator := services.NewUpdateOrchestrator(services.OrchestratorConfig{
		Mode:                  mode,
		Contract:              identity,
		RatePlan:              plan,
		CustomerID:            cfg.Contract.CustomerID,
		AccountID:             cfg.Contract.AccountID,
		PreheatDuration:       cfg.Contract.PreheatDuration(),
		EnableCalendarSync:    calendarSync != nil,
		EnableConsumptionSync: consumption != nil && cfg.Sync.Consumption,
		Public:                public,
		Portal:                portalClient,
		Tasks:                 tasks,
		Calendar:              calendarSync,
		Consumption:           consumption,
		Policy:                services.NewTimingPolicy(loc),
		Metrics:               metrics,
		Logger:                logger,
	})

	return services.NewCoordinator(services.CoordinatorConfig{
		Orchestrator:  orchestrator,
		Tasks:         tasks,
		Consumption:   consumption,
		Public:        public,
		Portal:        portalClient,
		State:         b.state,
		Lock:          b.lock,
		Runtime:       runtimeCfg,
		Metrics:       metrics,
		Logger:        logger,
		Interval:      cfg.Sync.Interval,
		HourlyRefresh: cfg.Sync.HourlyRefresh,
		Location:      loc,
	})
}

func serverConfig(cfg *config.Config, logger *slog.Logger) (http.Config, error) {
	host, portStr, err := net.SplitHostPort(cfg.Address)
	if err != nil {
		return http.Config{}, fmt.Errorf("invalid address %q: %w", cfg.Address, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return http.Config{}, fmt.Errorf("invalid port in address %q: %w", cfg.Address, err)
	}

	serverCfg := http.DefaultConfig()
	serverCfg.Host = host
	serverCfg.Port = port
	serverCfg.Version = Version
	serverCfg.RefreshEvery = cfg.API.RefreshEvery
	serverCfg.RefreshBurst = cfg.API.RefreshBurst
	serverCfg.AllowedOrigins = cfg.API.AllowedOrigins
	serverCfg.Logger = logger
	return serverCfg, nil
}

// newLogger builds the slog handler from the log configuration
func newLogger(cfg config.LogConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
