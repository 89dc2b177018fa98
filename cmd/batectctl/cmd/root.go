package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/batect-launcher/internal/config"
	"github.com/oshokin/batect-launcher/internal/logger"
	"github.com/oshokin/batect-launcher/internal/version"
)

var (
	// cacheDir overrides the cache root resolved from the environment.
	cacheDir string
	// logLevel is the level of batectctl's own logs.
	logLevel string

	// rootCmd represents the base command for maintaining the launcher installation.
	rootCmd = &cobra.Command{
		Use:           "batectctl",
		Short:         "Maintain the Batect launcher and its artifact cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the batectctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	// Setup graceful shutdown handling.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	err := rootCmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(1)
	}
}

// loadConfig resolves the launcher configuration, applying the --cache-dir override.
func loadConfig() (*config.Config, error) {
	environ := os.Environ()
	if cacheDir != "" {
		environ = append(environ, config.EnvCacheDir+"="+cacheDir)
	}

	return config.Load(environ)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "cache root (default $"+config.EnvCacheDir+" or ~/.batect/cache)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")
}
