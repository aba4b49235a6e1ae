package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/docfill/backend/internal/api"
	"github.com/docfill/backend/internal/artifacts"
	"github.com/docfill/backend/internal/assistant"
	"github.com/docfill/backend/internal/config"
	"github.com/docfill/backend/internal/conversation"
	"github.com/docfill/backend/internal/detect"
	"github.com/docfill/backend/internal/docproc"
	"github.com/docfill/backend/internal/session"
	"github.com/docfill/backend/internal/storage"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	exeDir := filepath.Dir(exePath)

	configPath := filepath.Join(exeDir, "docfill.yaml")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Printf("Failed to create directories: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Advanced.LogLevel)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	files, err := storage.NewManager(cfg.Storage.UploadsDirectory, cfg.Storage.ProcessedDirectory)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err))
	}

	registry := artifacts.NewRegistry(
		time.Duration(cfg.Sessions.ArtifactTTLHours)*time.Hour,
		time.Duration(cfg.Sessions.ArtifactPurgeMinutes)*time.Minute,
		logger,
	)

	store := session.NewStore()
	orch := conversation.NewOrchestrator(
		store,
		files,
		registry,
		docproc.NewProcessor(),
		detect.NewDetector(),
		assistant.NewService(),
		logger,
	)

	// Background expiry sweep
	sessionTTL := time.Duration(cfg.Sessions.TTLHours) * time.Hour
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.Sessions.SweepIntervalMinutes) * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			orch.SweepExpiredSessions(time.Now(), sessionTTL)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = api.ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.Advanced.EnableRequestLogging {
				return true
			}
			return c.Request().URL.Path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	e.Use(middleware.BodyLimit(cfg.Server.BodyLimit))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	}))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	api.RegisterRoutes(e, api.NewHandler(orch, logger, Version))

	e.Server.ReadTimeout = time.Duration(cfg.Server.ReadTimeout) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.Server.WriteTimeout) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.Server.IdleTimeout) * time.Second

	logger.Info("server starting",
		zap.String("addr", cfg.Addr()),
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	if err := e.Start(cfg.Addr()); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// newLogger builds a production zap logger at the configured level.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
