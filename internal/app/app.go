// Package app wires configuration, storage, cache, clients, and the
// research service into one application core shared by the server binary
// and its tests.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/tally/internal/cache"
	"github.com/bobmcallan/tally/internal/clients/gemini"
	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	storeprovider "github.com/bobmcallan/tally/internal/providers/store"
	"github.com/bobmcallan/tally/internal/services/research"
	"github.com/bobmcallan/tally/internal/storage"
)

// App holds all initialized services, clients, and the MCP server.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	Cache       interfaces.Cache
	Provider    interfaces.DataProvider
	Narrative   interfaces.NarrativeClient
	Research    interfaces.ResearchService
	MCPServer   *server.MCPServer
	StartupTime time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, cache, clients, the research service, and
// the MCP server. configPath may be empty, in which case the default
// resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	// Get binary directory for self-contained operation
	binDir := getBinaryDir()

	// Load configuration - check provided path, TALLY_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("TALLY_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "tally.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tally.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage path to binary directory
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a, err := build(config, logger, storageManager)
	if err != nil {
		storageManager.Close()
		return nil, err
	}
	a.StartupTime = startupStart

	// Load any pending record files before the server starts answering.
	if config.Storage.ImportDir != "" {
		if err := a.ImportRecords(context.Background(), config.Storage.ImportDir); err != nil {
			logger.Warn().Err(err).Str("dir", config.Storage.ImportDir).Msg("Record import failed")
		}
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")
	return a, nil
}

// build assembles the app core on an already-open storage manager. Split
// out so tests can wire a temp-dir store without config file resolution.
func build(config *common.Config, logger *common.Logger, storageManager *storage.Manager) (*App, error) {
	ctx := context.Background()

	memory := cache.NewMemory(logger, config.Cache.GetJanitorInterval())
	provider := storeprovider.NewProvider(storageManager.Companies())

	var narrative interfaces.NarrativeClient
	geminiKey, err := common.ResolveAPIKey(ctx, storageManager.System(), "gemini_api_key", config.Clients.Gemini.APIKey)
	if err != nil {
		logger.Warn().Msg("Gemini API key not configured - macro-risk narrative will be unavailable")
	} else {
		client, err := gemini.NewClient(ctx, geminiKey,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
			gemini.WithTimeout(config.Clients.Gemini.GetTimeout()),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			narrative = client
		}
	}

	researchService := research.NewService(logger, config.Scoring, provider, storageManager, memory, narrative)

	mcpServer := server.NewMCPServer(
		"tally",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	a := &App{
		Config:    config,
		Logger:    logger,
		Storage:   storageManager,
		Cache:     memory,
		Provider:  provider,
		Narrative: narrative,
		Research:  researchService,
		MCPServer: mcpServer,
	}

	a.registerTools()
	return a, nil
}

// MCPHandler returns the streamable HTTP handler for the MCP endpoint.
func (a *App) MCPHandler() http.Handler {
	return server.NewStreamableHTTPServer(a.MCPServer,
		server.WithStateLess(true),
	)
}

// Close releases all resources held by the App.
// Shutdown order: stop the cache janitor, close clients, close storage.
func (a *App) Close() {
	if a.Cache != nil {
		a.Cache.Close()
		a.Cache = nil
	}
	if a.Narrative != nil {
		a.Narrative.Close()
		a.Narrative = nil
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}
