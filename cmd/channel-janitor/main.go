package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/3cpo-dev/channel-janitor/internal/ui"
)

var (
	version   = "1.0.0"
	commit    = ""
	buildDate = ""
)

// Create the root command
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel-janitor",
		Short: "Close Flex chat channels whose proxy session outlived its task",
		Long: "channel-janitor finds Flex Proxy sessions that are still open although no TaskRouter task\n" +
			"references their chat channel any more, and marks those channels INACTIVE.",
		RunE:          runCleanupCmd,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("log", "l", "info", "Set log level. Available: trace, debug, info, warn, error, fatal")
	cmd.PersistentFlags().String("config", "", "config file (default $XDG_CONFIG_HOME/channel-janitor/config.yaml)")
	cmd.PersistentFlags().String("proxy", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	cmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	addCleanupFlags(cmd)

	cmd.PersistentPreRun = func(c *cobra.Command, args []string) {
		levelStr, _ := c.Flags().GetString("log")
		level, err := zerolog.ParseLevel(levelStr)
		if err != nil || level == zerolog.NoLevel {
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
		if proxy, _ := c.Flags().GetString("proxy"); proxy != "" {
			_ = os.Setenv("HTTP_PROXY", proxy)
			_ = os.Setenv("HTTPS_PROXY", proxy)
		}
		if noColor, _ := c.Flags().GetBool("no-color"); noColor {
			ui.ForceNoColor()
		}
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newHistoryCmd())
	return cmd
}

// Create the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "channel-janitor %s (%s) %s\n", version, commit, buildDate)
		},
	}
}

// Setup the logger
func setupLogger() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// Main entry point
func main() {
	setupLogger()
	root := newRootCmd()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root.SetContext(ctx)
	if err := root.Execute(); err != nil {
		ui.Failure(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}
