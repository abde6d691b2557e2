package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/robbyautoki/attio-hub/pkg/api"
	"github.com/robbyautoki/attio-hub/pkg/auth"
	"github.com/robbyautoki/attio-hub/pkg/config"
	"github.com/robbyautoki/attio-hub/pkg/engine"
	"github.com/robbyautoki/attio-hub/pkg/integrations"
	"github.com/robbyautoki/attio-hub/pkg/logging"
	"github.com/robbyautoki/attio-hub/pkg/scheduler"
	"github.com/robbyautoki/attio-hub/pkg/storage"
	"github.com/robbyautoki/attio-hub/pkg/templates"
	"github.com/robbyautoki/attio-hub/pkg/vault"
)

// app bundles everything the serve and dispatch commands build from config
type app struct {
	cfg       *config.Config
	logger    logging.Logger
	provider  storage.StorageProvider
	vault     *vault.Service
	clients   *integrations.Factory
	templates *templates.Registry
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}
	if _, err := os.Stat("config.json"); err == nil {
		return config.LoadConfig("config.json")
	}
	cfg := config.DefaultConfig()
	cfg.ApplyEnv()
	return cfg, nil
}

func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Output:   cfg.Logging.Output,
		FilePath: cfg.Logging.FilePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	provider, err := storage.NewProvider(providerConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage provider: %w", err)
	}
	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if cfg.Auth.EncryptionKey == "" {
		return nil, fmt.Errorf("auth.encryption_key is required (generate one with %s keygen)", appName)
	}
	key, err := vault.EncryptionKeyFromHex(cfg.Auth.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}
	vaultSvc, err := vault.NewService(provider.GetCredentialStore(), key)
	if err != nil {
		return nil, err
	}

	registry := templates.Defaults()
	if cfg.Templates.Path != "" {
		registry, err = templates.Load(cfg.Templates.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to load email templates: %w", err)
		}
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		provider:  provider,
		vault:     vaultSvc,
		clients:   &integrations.Factory{Mailbox: cfg.Email},
		templates: registry,
	}, nil
}

func providerConfig(cfg *config.Config) storage.ProviderConfig {
	pc := storage.ProviderConfig{Type: storage.ProviderType(cfg.Storage.Type)}
	switch pc.Type {
	case storage.DynamoDBProviderType:
		pc.DynamoDB = &storage.DynamoDBProviderConfig{
			Region:      cfg.Storage.DynamoDB.Region,
			Endpoint:    cfg.Storage.DynamoDB.Endpoint,
			TablePrefix: cfg.Storage.DynamoDB.TablePrefix,
		}
	case storage.PostgreSQLProviderType:
		pc.PostgreSQL = &storage.PostgreSQLProviderConfig{
			Host:     cfg.Storage.Postgres.Host,
			Port:     cfg.Storage.Postgres.Port,
			User:     cfg.Storage.Postgres.User,
			Password: cfg.Storage.Postgres.Password,
			Database: cfg.Storage.Postgres.Database,
			SSLMode:  cfg.Storage.Postgres.SSLMode,
		}
	}
	return pc
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.provider.Close()

			stream := engine.NewStreamPublisher()
			defer stream.Close()

			eng := engine.New(engine.Config{
				Workflows:  a.provider.GetWorkflowStore(),
				Executions: a.provider.GetExecutionStore(),
				Bookings:   a.provider.GetBookingStore(),
				Vault:      a.vault,
				Clients:    a.clients,
				Templates:  a.templates,
				Logger:     a.logger,
				Publisher:  stream,
			})

			accountService := auth.NewAccountService(a.provider.GetAccountStore())
			jwtService := auth.NewJWTService(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenExpiration)

			var sched *scheduler.Scheduler
			if a.cfg.Scheduler.Enabled {
				dispatcher := scheduler.NewDispatcher(a.provider.GetBookingStore(), a.vault, a.clients, a.templates, a.logger)

				var locker scheduler.Locker
				if a.cfg.Storage.RedisAddr != "" {
					locker = scheduler.NewRedisLocker(redis.NewClient(&redis.Options{Addr: a.cfg.Storage.RedisAddr}))
				}

				sched = scheduler.NewScheduler(dispatcher, locker, a.logger, a.cfg.Scheduler.CronSpec)
				if err := sched.Start(); err != nil {
					return fmt.Errorf("failed to start scheduler: %w", err)
				}
			}

			server := api.NewServer(api.Deps{
				Config:         a.cfg,
				AccountService: accountService,
				JWTService:     jwtService,
				Vault:          a.vault,
				Clients:        a.clients,
				Engine:         eng,
				Workflows:      a.provider.GetWorkflowStore(),
				Executions:     a.provider.GetExecutionStore(),
				Bookings:       a.provider.GetBookingStore(),
				Stream:         stream,
				Logger:         a.logger,
			})

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case <-sigCh:
			}

			if sched != nil {
				sched.Stop()
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return server.Stop(ctx)
		},
	}
}

func dispatchRemindersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch-reminders",
		Short: "Run one reminder dispatch pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.provider.Close()

			dispatcher := scheduler.NewDispatcher(a.provider.GetBookingStore(), a.vault, a.clients, a.templates, a.logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), 4*time.Minute)
			defer cancel()

			result, err := dispatcher.Dispatch(ctx, time.Now())
			if err != nil {
				return err
			}

			return json.NewEncoder(os.Stdout).Encode(result)
		},
	}
}
