// File: cmd/orchestrator/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/marketpulse/orchestrator/internal/automation"
	"github.com/marketpulse/orchestrator/internal/cache"
	"github.com/marketpulse/orchestrator/internal/config"
	"github.com/marketpulse/orchestrator/internal/metrics"
	"github.com/marketpulse/orchestrator/internal/monitor"
	"github.com/marketpulse/orchestrator/internal/notification"
	"github.com/marketpulse/orchestrator/internal/scheduler"
	"github.com/marketpulse/orchestrator/internal/server"
	"github.com/marketpulse/orchestrator/internal/storage"
	"github.com/marketpulse/orchestrator/internal/supervisor"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// AppVersion contains the application version
const AppVersion = "1.0.0"

// Application wires the orchestration components together
type Application struct {
	config     *config.Config
	logger     *logrus.Logger
	storage    storage.Storage
	cache      *cache.MemoryCache
	warmer     *cache.Warmer
	scheduler  *scheduler.TaskScheduler
	monitor    *monitor.AlertEngine
	notifier   *notification.Dispatcher
	rules      *automation.RuleEngine
	supervisor *supervisor.Supervisor
	metrics    *metrics.Manager
	server     *server.HTTPServer
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewApplication creates a new application instance
func NewApplication(cfg *config.Config) (*Application, error) {
	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeLogger(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return app, nil
}

func (app *Application) initializeLogger() error {
	logCfg := app.config.Logging
	if err := utils.InitLogger(logCfg.Level, logCfg.Format, logCfg.Output, logCfg.File); err != nil {
		return err
	}

	app.logger = utils.GetLogger()
	app.logger.WithFields(logrus.Fields{
		"level":  logCfg.Level,
		"format": logCfg.Format,
	}).Info("Logger initialized")
	return nil
}

func (app *Application) initializeComponents() error {
	app.logger.Info("Initializing application components")

	app.metrics = metrics.NewManager()

	if err := app.initializeStorage(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.cache = cache.NewMemoryCache(&cache.Config{
		Capacity:   app.config.Cache.Capacity,
		DefaultTTL: app.config.Cache.DefaultTTL,
	}, app.metrics)
	app.warmer = cache.NewWarmer(app.cache, app.storage)

	registry := scheduler.NewRegistry()
	handlers := scheduler.NewHandlers(app.storage, app.cache)
	if err := handlers.RegisterAll(registry); err != nil {
		return fmt.Errorf("failed to register task handlers: %w", err)
	}

	app.scheduler = scheduler.NewTaskScheduler(app.storage, registry, &scheduler.Config{
		BatchSize:      app.config.Scheduler.BatchSize,
		Concurrency:    app.config.Scheduler.Concurrency,
		HandlerTimeout: app.config.Scheduler.HandlerTimeout,
	}, app.metrics)

	app.notifier = notification.NewDispatcher(app.storage, &notification.Config{
		DeliveryTimeout: app.config.Notifications.DeliveryTimeout,
		RatePerSecond:   app.config.Notifications.RatePerSecond,
		RateBurst:       app.config.Notifications.RateBurst,
		DashboardURL:    app.config.Notifications.DashboardURL,
	}, app.metrics)

	app.rules = automation.NewRuleEngine(app.storage, app.scheduler, app.metrics)

	app.monitor = monitor.NewAlertEngine(app.storage, &monitor.Config{
		LookbackWindow: app.config.Monitor.LookbackWindow,
	}, app.metrics)
	// order matters: notify first, then automation, then conditional tasks
	app.monitor.AddSink(app.notifier)
	app.monitor.AddSink(app.rules)
	app.monitor.AddSink(app.scheduler)

	if err := app.initializeSupervisor(); err != nil {
		return fmt.Errorf("failed to initialize supervisor: %w", err)
	}

	app.server = server.NewHTTPServer(
		&app.config.Server,
		app.storage,
		app.scheduler,
		app.monitor,
		app.notifier,
		app.rules,
		app.cache,
		app.warmer,
		app.supervisor,
		app.metrics,
	)

	app.logger.Info("All components initialized successfully")
	return nil
}

func (app *Application) initializeStorage() error {
	store, err := storage.NewStorage(&storage.StorageConfig{
		Type:             app.config.Storage.Type,
		ConnectionString: app.config.Storage.ConnectionString,
		MaxConnections:   app.config.Storage.MaxConnections,
		MaxIdleTime:      app.config.Storage.MaxIdleTime,
	})
	if err != nil {
		return err
	}
	if err := store.Connect(); err != nil {
		return err
	}
	if err := store.Migrate(); err != nil {
		return err
	}

	app.storage = store
	return nil
}

func (app *Application) initializeSupervisor() error {
	app.supervisor = supervisor.New()

	jobs := []struct {
		name string
		spec string
		fn   supervisor.JobFunc
	}{
		{
			name: "execute_due_tasks",
			spec: app.config.Scheduler.TickSpec,
			fn: func(ctx context.Context) error {
				_, err := app.scheduler.ExecuteDueTasks(ctx, time.Now().UTC())
				return err
			},
		},
		{
			name: "alert_check",
			spec: app.config.Monitor.CheckSpec,
			fn: func(ctx context.Context) error {
				_, err := app.monitor.CheckAll(ctx)
				return err
			},
		},
		{
			name: "cache_sweep",
			spec: app.config.Cache.SweepSpec,
			fn: func(ctx context.Context) error {
				app.cache.Sweep()
				return nil
			},
		},
	}
	for _, j := range jobs {
		if err := app.supervisor.Register(j.name, j.spec, j.fn); err != nil {
			return err
		}
	}
	return nil
}

// Start starts all application components
func (app *Application) Start() error {
	app.logger.WithField("version", AppVersion).Info("Starting MarketPulse orchestrator")

	if err := app.supervisor.Start(app.ctx); err != nil {
		return err
	}
	if err := app.server.Start(); err != nil {
		return err
	}

	app.logger.Info("MarketPulse orchestrator started")
	return nil
}

// Stop stops all application components in reverse order
func (app *Application) Stop() error {
	app.logger.Info("Stopping MarketPulse orchestrator")
	app.cancel()

	if app.server != nil {
		if err := app.server.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop HTTP server")
		}
	}
	if app.supervisor != nil {
		if err := app.supervisor.Stop(); err != nil {
			app.logger.WithError(err).Error("Failed to stop supervisor")
		}
	}
	if app.storage != nil {
		if err := app.storage.Close(); err != nil {
			app.logger.WithError(err).Error("Failed to close storage")
		}
	}

	app.logger.Info("MarketPulse orchestrator stopped")
	return nil
}

// CLI Commands

var rootCmd = &cobra.Command{
	Use:     "orchestrator",
	Short:   "MarketPulse task orchestration and alerting service",
	Long:    `Schedules and executes recurring marketing analysis tasks, watches metric snapshots for threshold breaches, and routes the resulting alerts to configured notification channels.`,
	Version: AppVersion,
	RunE:    runOrchestrator,
}

func runOrchestrator(cmd *cobra.Command, args []string) error {
	configPath := viper.GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	if err := app.Start(); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	<-signalChan
	fmt.Println("\nReceived shutdown signal, stopping application...")

	if err := app.Stop(); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MarketPulse orchestrator %s\n", AppVersion)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("Database: %s\n", cfg.Storage.Type)
		fmt.Printf("Executor tick: %s\n", cfg.Scheduler.TickSpec)
		fmt.Printf("Monitoring check: %s\n", cfg.Monitor.CheckSpec)
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test storage connectivity and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := viper.GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		fmt.Printf("Testing storage connection (%s)...\n", cfg.Storage.Type)
		store, err := storage.NewStorage(&storage.StorageConfig{
			Type:             cfg.Storage.Type,
			ConnectionString: cfg.Storage.ConnectionString,
			MaxConnections:   cfg.Storage.MaxConnections,
		})
		if err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		if err := store.Connect(); err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
		defer store.Close()
		fmt.Println("✓ Storage connection successful")

		if err := store.Migrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		fmt.Println("✓ Migrations applied")

		fmt.Println("\nAll connectivity tests passed! ✓")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(testCmd)
	configCmd.AddCommand(validateConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
