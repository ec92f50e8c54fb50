package app

import (
	"fmt"
	"os"
	"path/filepath"

	"profiler-service/internal/config"
	"profiler-service/internal/crypto"
	"profiler-service/internal/events"
	"profiler-service/internal/extract"
	"profiler-service/internal/fetcher"
	"profiler-service/internal/handler"
	"profiler-service/internal/llm"
	"profiler-service/internal/middleware"
	"profiler-service/internal/repository"
	"profiler-service/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config   *config.Config
	Profiler *service.Profiler
	Records  repository.RecordStore
	Events   *events.Log

	model   *llm.MultiProviderClient
	browser *fetcher.BrowserLoader
	logger  *zap.Logger
}

// New builds every component described by cfg.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	loader, err := a.pageLoader()
	if err != nil {
		return nil, err
	}

	records, err := openRecords(cfg.Storage, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Records = records

	var model service.Completer
	if len(cfg.LLM.Providers) > 0 {
		client, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
			Providers:   cfg.LLM.Providers,
			MaxFailures: cfg.LLM.MaxFailures,
		}, logger)
		if err != nil {
			logger.Warn("No generative model available, synthesis and persona are disabled", zap.Error(err))
		} else {
			a.model = client
			model = client
			logger.Info("Multi-provider client initialized",
				zap.Int("provider_count", len(cfg.LLM.Providers)))
		}
	} else {
		logger.Warn("No LLM providers configured, synthesis and persona are disabled")
	}

	userAgent := cfg.Fetch.UserAgent
	if userAgent == "" {
		userAgent = fetcher.DefaultUserAgent
	}

	a.Events = events.NewLog(cfg.Events.Capacity, logger)
	a.Profiler = service.NewProfiler(service.Config{
		Documents: fetcher.NewDocumentFetcher(extract.NewRegistry()),
		Web:       fetcher.NewWebFetcher(loader, cfg.Fetch.WebTimeout, userAgent),
		Social:    fetcher.NewSocialFetcher(loader, cfg.Fetch.SocialTimeout, cfg.Fetch.MinSocialChars),
		Fetch: fetcher.Options{
			SocialStagger:  cfg.Fetch.SocialStagger,
			MaxConcurrency: cfg.Fetch.MaxConcurrency,
		},
		Model:    model,
		Records:  records,
		Events:   a.Events,
		Baseline: cfg.Baseline,
	}, logger)

	return a, nil
}

func (a *App) pageLoader() (fetcher.PageLoader, error) {
	if a.Config.Fetch.Renderer != "browser" {
		return fetcher.NewHTTPLoader(nil), nil
	}

	userAgent := a.Config.Fetch.UserAgent
	if userAgent == "" {
		userAgent = fetcher.BrowserUserAgent
	}
	headless := a.Config.Fetch.Headless == nil || *a.Config.Fetch.Headless
	browser, err := fetcher.NewBrowserLoader(userAgent, headless, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start browser renderer: %w", err)
	}
	a.browser = browser
	return browser, nil
}

func openRecords(cfg config.StorageConfig, logger *zap.Logger) (repository.RecordStore, error) {
	var sealer *crypto.Sealer
	if cfg.EncryptionKey != "" {
		s, err := crypto.NewSealerFromBase64(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("storage.encryption_key: %w", err)
		}
		sealer = s
	}

	switch cfg.Backend {
	case "postgres":
		return repository.NewPostgresStore(cfg.DSN, sealer, logger)
	case "file":
		return repository.NewFileStore(cfg.ProfilesDir, sealer, logger)
	default:
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		return repository.NewSQLiteStore(cfg.Path, sealer, logger)
	}
}

// ModelInfo describes the configured providers, nil when none is available.
func (a *App) ModelInfo() map[string]interface{} {
	if a.model == nil {
		return nil
	}
	return a.model.GetModelInfo()
}

// Router builds the HTTP surface.
func (a *App) Router() *gin.Engine {
	gin.SetMode(a.Config.Server.Mode)
	router := gin.Default()
	router.Use(middleware.CORS())

	var guards []gin.HandlerFunc
	if a.Config.Auth.JWTSecret != "" {
		guards = append(guards, middleware.AuthMiddleware([]byte(a.Config.Auth.JWTSecret), a.logger))
	} else {
		a.logger.Warn("auth.jwt_secret is not set, the API is unauthenticated")
	}

	handler.NewHandler(a.Profiler, a.logger).RegisterRoutes(router, guards...)
	return router
}

// Close stops background work and releases every resource.
func (a *App) Close() {
	if a.Profiler != nil {
		a.Profiler.Close()
	}
	if a.model != nil {
		if err := a.model.Close(); err != nil {
			a.logger.Warn("Failed to close model clients", zap.Error(err))
		}
	}
	if a.Records != nil {
		if err := a.Records.Close(); err != nil {
			a.logger.Warn("Failed to close record store", zap.Error(err))
		}
	}
	if a.browser != nil {
		a.browser.Close()
	}
}
