// Command salvoserver runs the salvo REST, WebSocket and SSE API server.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/yourusername/salvo/internal/config"
	"github.com/yourusername/salvo/internal/logging"
	"github.com/yourusername/salvo/pkg/api"
	"github.com/yourusername/salvo/pkg/engine"
	"github.com/yourusername/salvo/pkg/external"
	"go.uber.org/zap"
)

const version = "0.1.0"

type serverFlags struct {
	cfgPath      string
	envFile      string
	host         string
	port         int
	externalAddr string
	verbose      bool
}

func newRootCmd() *cobra.Command {
	f := &serverFlags{}

	cmd := &cobra.Command{
		Use:          "salvoserver",
		Short:        "Run the salvo API server",
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging, f.verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			return serve(cfg, logger)
		},
	}

	cmd.Flags().StringVarP(&f.cfgPath, "config", "c", "salvo.yaml", "Path to a YAML config file")
	cmd.Flags().StringVar(&f.envFile, "env-file", ".env", "Dotenv file loaded before reading SALVO_* variables")
	cmd.Flags().StringVar(&f.host, "host", "localhost", "Host to bind to (use 0.0.0.0 for all interfaces)")
	cmd.Flags().IntVarP(&f.port, "port", "p", 8080, "Port to listen on")
	cmd.Flags().StringVar(&f.externalAddr, "external-addr", "", "Also serve the TCP agent protocol on this address (e.g. :1234)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

// loadConfig reads the dotenv file, the config file and the flags, in
// increasing order of precedence.
func loadConfig(cmd *cobra.Command, f *serverFlags) (*config.Config, error) {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f.envFile, err)
		}
	}

	cfg, err := config.Load(f.cfgPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = f.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = f.port
	}
	if cmd.Flags().Changed("external-addr") {
		cfg.Server.ExternalAddr = f.externalAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// serverConfig maps the server section onto the API server settings.
func serverConfig(sc config.ServerConfig) api.ServerConfig {
	return api.ServerConfig{
		Host:           sc.Host,
		Port:           sc.Port,
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
		IdleTimeout:    sc.IdleTimeout,
		MaxFastWorkers: sc.MaxFastWorkers,
		MaxSlowWorkers: sc.MaxSlowWorkers,
		MaxGames:       sc.MaxGames,
		GameTTL:        sc.GameTTL,
	}
}

func serve(cfg *config.Config, logger *zap.Logger) error {
	opts := cfg.EngineOptions()
	opts.Logger = logger
	eng, err := engine.NewEngine(opts)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	if cfg.Server.ExternalAddr != "" {
		ext := external.NewServer(eng, external.ServerOptions{
			Addr:           cfg.Server.ExternalAddr,
			PromptEnabled:  true,
			MonteCarloJobs: cfg.MonteCarlo.Workers,
		}, logger.Named("external"))
		if err := ext.Start(); err != nil {
			return err
		}
		defer ext.Stop()
	}

	server := api.NewServer(eng, serverConfig(cfg.Server), version, logger)
	if err := server.ListenAndServeWithGracefulShutdown(); err != nil {
		logger.Error("server error", zap.Error(err))
		return err
	}
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
