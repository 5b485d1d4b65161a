// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/autobrr/mulebridge/internal/api"
	"github.com/autobrr/mulebridge/internal/buildinfo"
	"github.com/autobrr/mulebridge/internal/config"
	"github.com/autobrr/mulebridge/internal/database"
	"github.com/autobrr/mulebridge/internal/domain"
	"github.com/autobrr/mulebridge/internal/metrics"
	"github.com/autobrr/mulebridge/internal/models"
	"github.com/autobrr/mulebridge/internal/services/emulex"
)

// Set via ldflags.
var (
	version = "dev"
	commit  = ""
	date    = ""
)

const (
	shutdownTimeout     = 30 * time.Second
	cacheJanitorPeriod  = 15 * time.Minute
	cacheJanitorTimeout = 30 * time.Second
	validateTimeout     = 60 * time.Second
)

func main() {
	buildinfo.Set(version, commit, date)
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "mulebridge",
		Short: "Torznab indexer for an emulex eMule catalog",
		Long: `mulebridge - exposes an emulex eMule search daemon as a Torznab
indexer, normalizing Spanish catalog titles into scene-style releases.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand())
	rootCmd.AddCommand(RunGenerateConfigCommand())
	rootCmd.AddCommand(RunSetAPIKeyCommand())
	rootCmd.AddCommand(RunSearchCommand())
	rootCmd.AddCommand(RunStatusCommand())
	rootCmd.AddCommand(RunTestConfigCommand())
	rootCmd.AddCommand(RunCanonicalizeCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		dataDir   string
		logPath   string
		validate  bool
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the Torznab server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/mulebridge/ or %APPDATA%\\mulebridge\\). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&dataDir, "data-dir", "", "data directory for the search cache database (default is next to config file)")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")
	command.Flags().BoolVar(&validate, "validate", false, "run the emulex test search before serving and exit if it fails")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		app := NewApplication(configDir, dataDir, logPath, validate)
		return app.runServer()
	}

	return command
}

func RunVersionCommand() *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of mulebridge",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(buildinfo.Version)
			if buildinfo.Commit != "" {
				fmt.Printf("commit: %s\n", buildinfo.Commit)
			}
			if buildinfo.Date != "" {
				fmt.Printf("built: %s\n", buildinfo.Date)
			}
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/mulebridge/config.toml
- Windows: %APPDATA%\mulebridge\config.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := resolveConfigFile(configDir)

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return errors.Wrap(err, "failed to create configuration file")
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

func RunSetAPIKeyCommand() *cobra.Command {
	var configDir, apiKey string

	command := &cobra.Command{
		Use:   "set-api-key",
		Short: "Store the emulex API key in the config file",
		Long: fmt.Sprintf(`Store the emulex API key in the config file.

The key must be exactly %d characters. It is read from a hidden prompt when
--api-key is not given.`, config.APIKeyLength),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(configDir, buildinfo.Version)
			if err != nil {
				return errors.Wrap(err, "failed to initialize configuration")
			}

			if apiKey == "" {
				apiKey, err = readSecret("Enter emulex API key: ")
				if err != nil {
					return err
				}
			}

			if err := cfg.SetAPIKey(apiKey); err != nil {
				return errors.Wrap(err, "failed to store api key")
			}

			cmd.Printf("API key saved to %s\n", cfg.ConfigFileUsed())
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")
	command.Flags().StringVar(&apiKey, "api-key", "",
		"emulex API key (will prompt if not provided)")

	return command
}

func resolveConfigFile(configDir string) string {
	if configDir == "" {
		return filepath.Join(config.GetDefaultConfigDir(), "config.toml")
	}
	if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
		return configDir
	}
	if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
		return configDir
	}
	return filepath.Join(configDir, "config.toml")
}

func readSecret(prompt string) (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Print(prompt)
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", errors.Wrap(err, "failed to read secret")
		}
		return string(secret), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	var secret string
	if _, err := fmt.Scanln(&secret); err != nil {
		return "", errors.Wrap(err, "failed to read secret from stdin")
	}
	return secret, nil
}

type Application struct {
	configDir string
	dataDir   string
	logPath   string
	validate  bool
}

func NewApplication(configDir, dataDir, logPath string, validate bool) *Application {
	return &Application{
		configDir: configDir,
		dataDir:   dataDir,
		logPath:   logPath,
		validate:  validate,
	}
}

func (app *Application) runServer() error {
	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		return errors.Wrap(err, "failed to initialize configuration")
	}

	if app.dataDir != "" {
		os.Setenv("MULEBRIDGE__DATA_DIR", app.dataDir)
		cfg.SetDataDir(app.dataDir)
	}
	if app.logPath != "" {
		os.Setenv("MULEBRIDGE__LOG_PATH", app.logPath)
		cfg.Config.LogPath = app.logPath
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Str("emulex", cfg.Config.EmulexURL).Msg("Starting mulebridge")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	if err := emulex.CheckConfiguration(cfg.Config); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	var opts []emulex.ServiceOption
	if cfg.Config.SearchCacheEnabled {
		db, err := database.Open(ctx, cfg.GetDatabasePath())
		if err != nil {
			return errors.Wrap(err, "failed to initialize search cache database")
		}
		defer db.Close()

		opts = append(opts, emulex.WithSearchCache(models.NewSearchCacheStore(db), emulex.SearchCacheConfig{
			TTL: time.Duration(cfg.Config.SearchCacheTTLMinutes) * time.Minute,
		}))
	}

	emulexService := emulex.NewService(cfg.Config, opts...)
	log.Info().Bool("searchCache", cfg.Config.SearchCacheEnabled).Msg("Emulex service initialized")

	httpServer := api.NewServer(&api.Dependencies{
		Config:        cfg.Config,
		EmulexService: emulexService,
	})

	if app.validate {
		validateCtx, cancel := context.WithTimeout(ctx, validateTimeout)
		err := emulexService.Validate(validateCtx)
		cancel()
		if err != nil {
			return errors.Wrap(err, "startup validation failed")
		}
		log.Info().Msg("emulex configuration validated")
	}

	cfg.RegisterReloadListener(func(conf *domain.Config) {
		if err := emulexService.Reconfigure(conf); err != nil {
			log.Error().Err(err).Msg("Rejected config reload, keeping previous emulex settings")
		}
		httpServer.ApplyConfiguration(conf)
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("got error during graceful http shutdown")
			return err
		}
		return nil
	})

	if cfg.Config.MetricsEnabled {
		metricsServer := metrics.NewMetricsServer(
			cfg.Config.MetricsHost,
			cfg.Config.MetricsPort,
			cfg.Config.MetricsBasicAuthUsers,
		)

		g.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if cfg.Config.SearchCacheEnabled {
		g.Go(func() error {
			runCacheJanitor(gctx, emulexService)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("got unexpected error from server")
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}

// runCacheJanitor prunes expired search cache rows until ctx is done.
func runCacheJanitor(ctx context.Context, service *emulex.Service) {
	ticker := time.NewTicker(cacheJanitorPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanupCtx, cancel := context.WithTimeout(ctx, cacheJanitorTimeout)
			deleted, err := service.CleanupSearchCache(cleanupCtx)
			cancel()
			if err != nil {
				log.Warn().Err(err).Msg("Search cache cleanup failed")
				continue
			}
			if deleted > 0 {
				log.Debug().Int64("deleted", deleted).Msg("Pruned expired search cache entries")
			}
		}
	}
}
