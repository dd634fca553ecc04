package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	core "github.com/3cpo-dev/channel-janitor/internal/core"
	"github.com/3cpo-dev/channel-janitor/internal/telemetry"
	"github.com/3cpo-dev/channel-janitor/internal/twilio"
	"github.com/3cpo-dev/channel-janitor/internal/ui"
)

func addCleanupFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("account-sid", "", "Twilio account SID (env TWILIO_ACCOUNT_SID)")
	f.String("auth-token", "", "Twilio auth token (env TWILIO_AUTH_TOKEN)")
	f.String("chat-service", "", "chat service friendly name (env CHAT_SERVICE, default \""+core.DefaultChatService+"\")")
	f.String("workspace", "", "TaskRouter workspace friendly name (env TASKROUTER_WORKSPACE, default \""+core.DefaultWorkspace+"\")")
	f.String("proxy-service", "", "Proxy service unique name (env PROXY_SERVICE, default \""+core.DefaultProxyService+"\")")
	f.Int("batch-size", core.DefaultBatchSize, "channels updated concurrently per batch (env BATCH_SIZE)")
	f.Bool("serial", false, "update channels one at a time and stop at the first failure")
	f.Bool("dry-run", false, "report stale sessions without touching any channel")
	f.Bool("no-history", false, "do not record this run in the history database")
}

// Resolve the configuration: file, then secrets.env and environment, then flags
func resolveConfig(cmd *cobra.Command) (core.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := core.LoadConfig(cfgPath)
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}
	str("account-sid", &cfg.Twilio.AccountSID)
	str("auth-token", &cfg.Twilio.AuthToken)
	str("chat-service", &cfg.Services.ChatService)
	str("workspace", &cfg.Services.Workspace)
	str("proxy-service", &cfg.Services.ProxyService)
	if f.Changed("batch-size") {
		cfg.Cleanup.BatchSize, _ = f.GetInt("batch-size")
	}
	boolean("serial", &cfg.Cleanup.Serial)
	boolean("dry-run", &cfg.Cleanup.DryRun)
	boolean("no-history", &cfg.History.Disabled)
	return cfg, cfg.Validate()
}

func runCleanupCmd(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	client, err := twilio.New(cfg.ClientOptions())
	if err != nil {
		return err
	}
	_, err = runCleanup(cmd.Context(), cfg, client, cmd.OutOrStdout())
	return err
}

// runCleanup executes the pipeline, records it and prints the summary. The
// returned error is the pipeline's; history failures are only logged.
func runCleanup(ctx context.Context, cfg core.Config, api core.FlexAPI, out io.Writer) (*core.Run, error) {
	telemetry.InitGlobal(cfg.Telemetry.Enabled)
	defer func() { _ = telemetry.Shutdown() }()

	p := &core.Pipeline{
		API:      api,
		Names:    cfg.Services,
		Runner:   cfg.Runner(),
		Reporter: core.ReporterFunc(func(msg string) { ui.Status(out, msg) }),
		DryRun:   cfg.Cleanup.DryRun,
	}
	run, runErr := p.Run(ctx)

	if run != nil && !cfg.History.Disabled {
		if err := recordHistory(ctx, cfg.History.Path, run, runErr); err != nil {
			log.Warn().Err(err).Str("path", cfg.History.Path).Msg("Could not record run history")
		}
	}
	if runErr != nil {
		return run, runErr
	}

	switch {
	case run.SkipReason != "":
		ui.Skipped(out, run.SkipReason)
	default:
		msg := fmt.Sprintf("Cleaned up %d stale chat channel(s)", run.Updated())
		if n := len(run.Remediation.Failed); n > 0 {
			msg += fmt.Sprintf(", %d failed (see log)", n)
		}
		ui.Success(out, msg)
		for _, sid := range run.Remediation.CleanedUp {
			fmt.Fprintf(out, "  %s\n", sid)
		}
	}
	for _, sid := range orphansLeft(run) {
		log.Debug().Str("channel_sid", sid).Msg("Stale channel not cleaned up")
	}
	return run, nil
}

func orphansLeft(run *core.Run) []string {
	if run.Remediation != nil {
		return run.Remediation.Failed
	}
	if run.DryRun {
		return run.Orphans
	}
	return nil
}

func recordHistory(ctx context.Context, path string, run *core.Run, runErr error) error {
	store, err := core.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	// The run context may already be cancelled; history is still worth keeping.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return store.RecordRun(ctx, run, runErr)
}

// Show recorded runs, or the channels one run cleaned up
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show previous janitor runs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := core.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			store, err := core.NewStore(cfg.History.Path)
			if err != nil {
				return err
			}
			defer store.Close()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				sids, err := store.CleanedChannels(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				for _, sid := range sids {
					fmt.Fprintln(out, sid)
				}
				return nil
			}

			limit, _ := cmd.Flags().GetInt("limit")
			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tTASKS\tSESSIONS\tSTALE\tUPDATED\tFAILED\tNOTE")
			for _, r := range runs {
				note := r.SkipReason
				if r.Error != "" {
					note = "error: " + r.Error
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.RFC3339), r.TaskCount, r.SessionCount,
					r.OrphanCount, r.UpdatedCount, r.FailedCount, note)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "number of runs to show")
	return cmd
}
