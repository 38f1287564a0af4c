// Command ec-server runs the certificate issuance gRPC API and the public verification endpoint.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/and161185/eventcert/internal/config"
)

const programName = "ec-server"

var (
	version   = "dev"
	buildDate = "unknown"
)

var configFile string

// loadConfig reads the configuration and builds the process logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	var logger *zap.Logger
	if cfg.Dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	if _, err = maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof)); err != nil {
		logger.Warn("set GOMAXPROCS", zap.Error(err))
	}
	return cfg, logger, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "University event certificate issuance service",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to YAML config (default "+config.DefaultPath+" when present)")

	rootCmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		tokenCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
