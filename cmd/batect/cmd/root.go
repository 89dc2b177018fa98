package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/batect-launcher/internal/config"
	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/logger"
	"github.com/oshokin/batect-launcher/internal/service/launcher"
)

// launchFunc runs one invocation and returns the application's exit code.
type launchFunc func(ctx context.Context, args []string) (int, error)

// newRootCmd builds the command that forwards every argument to launch
// and stores the application's exit code in exitCode.
func newRootCmd(launch launchFunc, exitCode *int) *cobra.Command {
	return &cobra.Command{
		Use:                "batect [arguments...]",
		Short:              "Run Batect, downloading it and locating Java as needed",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceErrors:      true,
		SilenceUsage:       true,
		RunE: func(_ *cobra.Command, args []string) error {
			// Cancel downloads on termination; a running application receives the signals itself.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			code, err := launch(ctx, args)
			*exitCode = code

			return err
		},
	}
}

// dispatch runs root on args without cobra's command lookup, which would claim
// arguments such as "__complete" or "help" that belong to the application.
func dispatch(root *cobra.Command, args []string) error {
	return root.RunE(root, args)
}

// Execute runs the launcher and exits with the application's exit code,
// or with a reserved code and a single diagnostic line when the launcher fails.
func Execute() {
	var exitCode int

	rootCmd := newRootCmd(run, &exitCode)

	if err := dispatch(rootCmd, os.Args[1:]); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		os.Exit(bootstrap.ExitCode(err))
	}

	os.Exit(exitCode)
}

// run resolves the configuration and launches the application.
func run(ctx context.Context, args []string) (int, error) {
	cfg, err := config.Load(os.Environ())
	if err != nil {
		return bootstrap.ExitFailure, err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	} else {
		logger.WarnKV(ctx, "Unknown log level, keeping the default", "level", cfg.LogLevel)
	}

	return launcher.New(ctx, cfg).Run(ctx, args)
}
