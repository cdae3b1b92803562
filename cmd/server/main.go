package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tpms-dashboard/backend/internal/api"
	"github.com/tpms-dashboard/backend/internal/archive"
	"github.com/tpms-dashboard/backend/internal/config"
	"github.com/tpms-dashboard/backend/internal/layout"
	"github.com/tpms-dashboard/backend/internal/logging"
	"github.com/tpms-dashboard/backend/internal/metrics"
	"github.com/tpms-dashboard/backend/internal/mirror"
	"github.com/tpms-dashboard/backend/internal/models"
	"github.com/tpms-dashboard/backend/internal/scheduler"
	"github.com/tpms-dashboard/backend/internal/session"
	"github.com/tpms-dashboard/backend/internal/simulator"
	"github.com/tpms-dashboard/backend/internal/status"
	"github.com/tpms-dashboard/backend/internal/storage"
	"github.com/tpms-dashboard/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to TPMSDashboard.config (default: next to the executable)")
	flag.Parse()

	if *configPath == "" {
		// Get the executable's directory for config resolution
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		*configPath = filepath.Join(filepath.Dir(exePath), "TPMSDashboard.config")
	}

	// Load XML configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Options{
		Level:  cfg.Advanced.LogLevel,
		Pretty: cfg.Advanced.PrettyLogs,
	})

	if err := run(cfg, *configPath, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.AppConfig, configPath string, log zerolog.Logger) error {
	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	if cfg.Advanced.EnableMetrics {
		metrics.Init()
	}

	thresholds := status.DefaultThresholds()
	if cfg.Simulation.ThresholdsFile != "" {
		loaded, err := status.LoadThresholds(cfg.Simulation.ThresholdsFile)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		thresholds = loaded
	}

	profile, ok := layout.ProfileByName(cfg.Simulation.LayoutProfile)
	if !ok {
		return fmt.Errorf("unknown layout profile %q", cfg.Simulation.LayoutProfile)
	}
	mode, err := simulator.ParseMode(cfg.Simulation.Mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	profiles, err := storage.NewProfileStore(cfg.Storage.ProfilesDirectory)
	if err != nil {
		return fmt.Errorf("profile storage: %w", err)
	}

	// Publishers fed by every completed tick
	hub := api.NewHub(nil, int64(cfg.Advanced.WebSocketMaxMessageSize)*1024, log)
	publishers := session.Fanout{hub}

	var archiveReader api.ArchiveReader
	if cfg.Storage.EnableArchive {
		arc, err := archive.Open(cfg.Storage.ArchivePath, archive.Options{
			BatchSize:   cfg.Storage.ArchiveBatchSize,
			MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
			Threads:     cfg.Advanced.DuckDBThreads,
			Logger:      logging.Component(log, "archive"),
		})
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		flushEvery := time.Duration(cfg.Storage.ArchiveFlushSeconds) * time.Second
		if flushEvery <= 0 {
			flushEvery = 10 * time.Second
		}
		flushed := make(chan struct{})
		go func() {
			arc.Run(ctx, flushEvery)
			close(flushed)
		}()
		defer func() {
			stop()
			<-flushed
			if err := arc.Close(); err != nil {
				log.Error().Err(err).Msg("closing archive")
			}
		}()

		publishers = append(publishers, arc)
		archiveReader = arc
	}

	mir := mirror.New(mirror.Config{
		Enabled:       cfg.Redis.Enabled,
		Addr:          cfg.GetRedisAddr(),
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		Prefix:        cfg.Redis.Prefix,
		HistoryLength: cfg.Redis.HistoryLength,
		TTL:           time.Duration(cfg.Redis.TTLSeconds) * time.Second,
	}, logging.Component(log, "mirror"))
	if mir.Enabled() {
		if err := mir.Connect(ctx); err != nil {
			// keep serving; writes are retried per tick
			log.Warn().Err(err).Msg("redis mirror unavailable")
		}
		defer mir.Close()
		publishers = append(publishers, mir)
	}

	sessionMgr := session.NewManager(session.Options{
		Profile:       profile,
		Limits:        layout.Limits{MinTires: cfg.Simulation.MinTires, MaxTires: cfg.Simulation.MaxTires},
		Classifier:    status.NewClassifier(thresholds),
		HistoryPoints: cfg.Simulation.HistoryPoints,
		LabelLayout:   cfg.Simulation.LabelLayout,
		Mode:          mode,
		Seed:          cfg.Simulation.Seed,
		Scheduler:     scheduler.IntervalFactory(cfg.SimulationInterval()),
		Publisher:     publishers,
		Logger:        log,
	})
	sessionMgr.SetMaxSessions(cfg.Processing.MaxSessions)
	hub.SetSessions(sessionMgr)
	defer sessionMgr.CloseAll()
	defer hub.Close()

	// Start background session cleanup
	go func() {
		ticker := time.NewTicker(cfg.CleanupInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessionMgr.CleanupOldSessions(cfg.SessionTimeout())
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.ShowErrorDetails = cfg.Advanced.LogLevel == "debug"
	api.SetupMiddleware(e, api.MiddlewareOptions{
		EnableRequestLogging: cfg.Advanced.EnableRequestLogging,
		EnableGzip:           cfg.Server.EnableGzip,
		EnableCORS:           cfg.Server.EnableCORS,
		AllowOrigins:         cfg.Server.AllowOrigins,
		BodyLimit:            cfg.Server.BodyLimit,
	}, log)

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Sessions:         sessionMgr,
		Profiles:         profiles,
		Archive:          archiveReader,
		Hub:              hub,
		Thresholds:       thresholds,
		DefaultDevice:    defaultDevice(cfg),
		DefaultTireCount: cfg.Simulation.DefaultTireCount,
		ChartAssetsHost:  cfg.Advanced.EChartsAssetsHost,
		Version:          Version,
		Logger:           log,
	}))

	// Register embedded frontend if available
	if web.HasEmbeddedFiles() {
		if err := web.RegisterStaticRoutes(e); err != nil {
			log.Warn().Err(err).Msg("failed to register static routes")
		}
	}

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	log.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("config", configPath).
		Str("listen", "http://"+cfg.GetServerAddr()).
		Str("data_dir", cfg.GetDataDir()).
		Bool("archive", cfg.Storage.EnableArchive).
		Bool("redis", mir.Enabled()).
		Dur("interval", cfg.SimulationInterval()).
		Msg("TPMS dashboard server starting")

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func defaultDevice(cfg *config.AppConfig) models.DeviceSettings {
	return models.DeviceSettings{
		RxID:     cfg.Device.RxID,
		TxID:     cfg.Device.TxID,
		BaudRate: cfg.Device.BaudRate,
	}
}
