package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/lead-enricher/internal/batch"
	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/resilience"
	"github.com/sells-group/lead-enricher/internal/store"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and replay leads that failed outright",
}

// -- dlq list --

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-letter entries that are due for replay",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate(config.ModeRuns); err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.DequeueDLQ(ctx, dlqFilterFromFlags(cmd))
		if err != nil {
			return eris.Wrap(err, "dlq list")
		}
		total, err := st.CountDLQ(ctx)
		if err != nil {
			return eris.Wrap(err, "dlq list")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		formatDLQList(os.Stdout, entries)
		fmt.Fprintf(os.Stderr, "%d due of %d total.\n", len(entries), total)
		return nil
	},
}

// -- dlq replay --

var dlqReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-enrich due dead-letter entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		offline, _ := cmd.Flags().GetBool("offline")
		mode := config.ModeEnrich
		if offline {
			mode = config.ModeEnrichOffline
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}
		if err := cfg.Validate(config.ModeRuns); err != nil {
			return err
		}

		env, err := initEnv(ctx, envOptions{Offline: offline, DNC: cfg.DNC.Enabled, Store: true})
		if err != nil {
			return err
		}
		defer env.Close()

		r := &batch.Replayer{
			Store:    env.Store,
			Enricher: env.Pipeline,
			Limiter:  env.Limiter,
		}
		sum, err := r.Replay(ctx, dlqFilterFromFlags(cmd))
		fmt.Fprintf(os.Stdout, "Due: %d  Replayed: %d  Failed again: %d\n", sum.Due, sum.Replayed, sum.Failed)
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{dlqListCmd, dlqReplayCmd} {
		c.Flags().String("run", "", "only entries from this run ID")
		c.Flags().String("error-type", "", "filter by error type (transient, permanent)")
		c.Flags().Int("limit", 100, "max entries")
	}
	dlqListCmd.Flags().Bool("json", false, "print entries as JSON")
	dlqReplayCmd.Flags().Bool("offline", false, "use deterministic stub providers")

	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqReplayCmd)
	rootCmd.AddCommand(dlqCmd)
}

func dlqFilterFromFlags(cmd *cobra.Command) resilience.DLQFilter {
	runID, _ := cmd.Flags().GetString("run")
	errType, _ := cmd.Flags().GetString("error-type")
	limit, _ := cmd.Flags().GetInt("limit")
	return resilience.DLQFilter{RunID: runID, ErrorType: errType, Limit: limit}
}

// formatDLQList writes a tabular list of dead-letter entries to w.
func formatDLQList(out io.Writer, entries []resilience.DLQEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tRUN\tPOS\tLEAD\tTYPE\tRETRIES\tERROR")
	_, _ = fmt.Fprintln(w, "--\t---\t---\t----\t----\t-------\t-----")
	for _, e := range entries {
		msg := e.Error
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d/%d\t%s\n",
			truncateID(e.ID),
			truncateID(e.RunID),
			e.Position,
			e.Lead.Name,
			e.ErrorType,
			e.RetryCount,
			e.MaxRetries,
			msg,
		)
	}
	_ = w.Flush()
}
