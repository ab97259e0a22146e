// Package canvaspad wires the collaboration service, the durable store, and
// the HTTP surface into a runnable application.
package canvaspad

import (
	"fmt"
	"os"
	"time"

	"github.com/canvaspad/canvaspad/pkg/logger"
	"github.com/canvaspad/canvaspad/pkg/service"
	"github.com/canvaspad/canvaspad/pkg/store"
	"github.com/canvaspad/canvaspad/pkg/store/postgres"
)

// Config holds application configuration shared across commands.
type Config struct {
	// PostgresDSN is the durable store connection string. Ignored with the
	// in-memory backend.
	PostgresDSN string

	// MemoryStore selects the in-memory backend instead of PostgreSQL,
	// mainly for local development and tests.
	MemoryStore bool

	// FlushDebounce and EvictGrace tune the collaboration service; zero
	// values pick the service defaults.
	FlushDebounce time.Duration
	EvictGrace    time.Duration

	// ServerPort is the HTTP listen port.
	ServerPort string

	// LogPath appends logs to a file instead of stdout when set.
	LogPath string
}

// App holds the application state: the durable store, the page registry, and
// the logger they share.
type App struct {
	config   *Config
	store    store.Store
	registry *service.Registry
	log      logger.Logger
}

// New creates an application instance and connects its store.
func New(config *Config) (*App, error) {
	build := logger.New()
	if config.LogPath != "" {
		build = build.FromPath(config.LogPath)
	}
	log, err := build.Make()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var appStore store.Store
	if config.MemoryStore {
		appStore = store.NewMemoryStore()
		log.Info("using in-memory store")
	} else {
		appStore, err = postgres.NewPostgresStore(config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		log.Info("connected to PostgreSQL")
	}

	app := &App{
		config: config,
		store:  appStore,
		log:    log,
		registry: service.NewRegistry(appStore, log, service.Config{
			FlushDebounce: config.FlushDebounce,
			EvictGrace:    config.EvictGrace,
		}),
	}
	return app, nil
}

// Close releases the application's resources.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Store returns the underlying store, useful for testing.
func (a *App) Store() store.Store {
	return a.store
}

// Registry returns the page registry, useful for testing.
func (a *App) Registry() *service.Registry {
	return a.registry
}

// getEnv retrieves an environment variable with a fallback default. Empty
// values count as unset.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
