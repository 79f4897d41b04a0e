package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"BookMentions/internal/app"
	"BookMentions/internal/config"
	"BookMentions/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "bookmentions",
	Short:         "Ranks books by how often they are mentioned on social media",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// command builds a subcommand that runs fn against a freshly wired
// application. Batch commands push their metrics before exiting.
func command(use, short string, batch bool, fn func(*app.Application, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.Load()
			logger := logging.New(cfg.Logging.Level)

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := application.Close(); err != nil {
					logger.Warn("close", "error", err)
				}
			}()

			runErr := fn(application, ctx)
			if batch {
				if err := application.PushMetrics(context.WithoutCancel(ctx)); err != nil {
					logger.Warn("metrics not pushed", "error", err)
				}
			}
			if runErr != nil {
				logger.Error("command failed", "command", use, "error", runErr)
			}
			return runErr
		},
	}
}

func execute(ctx context.Context) error {
	rootCmd.AddCommand(
		command("extract", "Extract books from the web archive and queue bookset queries", true, (*app.Application).Extract),
		command("count", "Advance the counting cycle by one step", true, (*app.Application).Count),
		command("rank", "Rank the staged top book counts", true, (*app.Application).Rank),
		command("import-editions", "Refresh the earliest-edition list", true, (*app.Application).ImportEditions),
		command("run", "Step the counting cycle on an interval", false, (*app.Application).Run),
		command("dashboard", "Serve the dashboard API", false, (*app.Application).Dashboard),
	)
	return rootCmd.ExecuteContext(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
