// Package main is the entry point for the flowexec server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tcmartin/flowexec/pkg/api"
	"github.com/tcmartin/flowexec/pkg/config"
	"github.com/tcmartin/flowexec/pkg/registry"
	"github.com/tcmartin/flowexec/pkg/runtime"
	"github.com/tcmartin/flowexec/pkg/storage"
	"github.com/tcmartin/flowexec/pkg/triggers"
)

var (
	// Command-line flags
	configPath = flag.String("config", "", "Path to config file")
	version    = flag.Bool("version", false, "Print version information")
)

// Version information
const (
	AppVersion = "0.1.0"
	AppName    = "flowexec"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s version %s\n", AppName, AppVersion)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Handle graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Application failed: %v", err)
		}
	case <-stop:
		log.Println("Shutting down gracefully...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			log.Fatalf("Error during shutdown: %v", err)
		}
	}
}

// loadConfig loads the configuration from the specified path or searches
// the standard locations, then overlays environment variables.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config

	if *configPath != "" {
		var err error
		cfg, err = config.LoadConfig(*configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", *configPath, err)
		}
	} else {
		locations := []string{
			"./config.json",
			"./configs/config.json",
			filepath.Join(os.Getenv("HOME"), ".flowexec", "config.json"),
			"/etc/flowexec/config.json",
		}

		for _, path := range locations {
			if loadedCfg, err := config.LoadConfig(path); err == nil {
				cfg = loadedCfg
				break
			}
		}

		if cfg == nil {
			cfg = config.DefaultConfig()
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// App wires the engine, trigger manager and HTTP server together.
type App struct {
	config  *config.Config
	server  *api.Server
	manager *triggers.Manager
	history storage.HistoryStore
	store   triggers.Store
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config) (*App, error) {
	history, err := newHistoryStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize history store: %w", err)
	}
	if err := history.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize history storage: %w", err)
	}

	executors := runtime.NewExecutorRegistry()
	if cfg.Executor.AgentURL != "" {
		client := &http.Client{Timeout: time.Duration(cfg.Executor.TimeoutSeconds) * time.Second}
		executors.SetFallback(runtime.NewHTTPExecutor(cfg.Executor.AgentURL, client))
		log.Printf("Routing node execution to agent service at %s", cfg.Executor.AgentURL)
	} else {
		log.Println("No agent URL configured; node kinds must be registered programmatically")
	}

	engine := runtime.NewEngine(executors, history)
	graphs := registry.NewGraphRegistry()
	bus := triggers.NewEventBus()

	triggerStore, err := newTriggerStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize trigger store: %w", err)
	}

	manager, err := triggers.NewManager(triggerStore, graphs, engine, bus, cfg.ResolveBaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize trigger manager: %w", err)
	}

	server := api.NewServer(cfg, engine, graphs, manager, bus)

	return &App{
		config:  cfg,
		server:  server,
		manager: manager,
		history: history,
		store:   triggerStore,
	}, nil
}

func newHistoryStore(cfg *config.Config) (storage.HistoryStore, error) {
	switch cfg.Storage.Type {
	case "memory", "":
		log.Println("Using in-memory execution history")
		return storage.NewHistoryStore(storage.ProviderConfig{Type: storage.MemoryProviderType})
	case "dynamodb":
		log.Printf("Using DynamoDB execution history in region %s", cfg.Storage.DynamoDB.Region)
		return storage.NewHistoryStore(storage.ProviderConfig{
			Type: storage.DynamoDBProviderType,
			DynamoDB: &storage.DynamoConfig{
				Region:      cfg.Storage.DynamoDB.Region,
				Endpoint:    cfg.Storage.DynamoDB.Endpoint,
				TablePrefix: cfg.Storage.DynamoDB.TablePrefix,
			},
		})
	case "postgres", "postgresql":
		log.Printf("Using PostgreSQL execution history at %s:%d/%s",
			cfg.Storage.Postgres.Host, cfg.Storage.Postgres.Port, cfg.Storage.Postgres.Database)
		return storage.NewHistoryStore(storage.ProviderConfig{
			Type: storage.PostgresProviderType,
			Postgres: &storage.PostgresConfig{
				Host:     cfg.Storage.Postgres.Host,
				Port:     cfg.Storage.Postgres.Port,
				User:     cfg.Storage.Postgres.User,
				Password: cfg.Storage.Postgres.Password,
				Database: cfg.Storage.Postgres.Database,
				SSLMode:  cfg.Storage.Postgres.SSLMode,
			},
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

func newTriggerStore(cfg *config.Config) (triggers.Store, error) {
	switch cfg.Triggers.Store {
	case "memory", "":
		log.Println("Using in-memory trigger store")
		return triggers.NewMemoryStore(), nil
	case "redis":
		log.Printf("Using Redis trigger store at %s", cfg.Triggers.Redis.Addr)
		return triggers.NewRedisStore(triggers.RedisConfig{
			Addr:     cfg.Triggers.Redis.Addr,
			Password: cfg.Triggers.Redis.Password,
			DB:       cfg.Triggers.Redis.DB,
		})
	default:
		return nil, fmt.Errorf("unsupported trigger store: %s", cfg.Triggers.Store)
	}
}

// Start starts the application
func (a *App) Start() error {
	fmt.Printf("Starting %s version %s\n", AppName, AppVersion)
	go a.manager.Run()
	return a.server.Start()
}

// Stop stops the application gracefully
func (a *App) Stop(ctx context.Context) error {
	a.manager.Stop()

	if err := a.server.Stop(ctx); err != nil {
		return err
	}

	if err := a.store.Close(); err != nil {
		return fmt.Errorf("failed to close trigger store: %w", err)
	}
	if err := a.history.Close(); err != nil {
		return fmt.Errorf("failed to close history storage: %w", err)
	}

	return nil
}
