package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/batch"
	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/leadio"
	"github.com/sells-group/lead-enricher/internal/metrics"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/sink"
)

// enrichFlags holds the enrich command's flag values.
type enrichFlags struct {
	CheckpointEvery int
	Limit           int
	Offline         bool
	Resume          bool
	Format          string
	MetricsFile     string
	DNC             bool
}

var enrichOpts enrichFlags

var enrichCmd = &cobra.Command{
	Use:   "enrich <input-path> [output-path]",
	Short: "Enrich a lead file with phones, carriers, ages and DNC status",
	Long: "Reads leads from a JSON file, runs each through the enrichment pipeline in order, " +
		"checkpoints progress to <output>.partial.json and writes the results atomically.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input := args[0]
		output := defaultOutputPath(input)
		if len(args) > 1 {
			output = args[1]
		}

		opts := enrichOpts
		if !cmd.Flags().Changed("checkpoint-every") {
			opts.CheckpointEvery = cfg.Batch.CheckpointInterval
		}
		if !cmd.Flags().Changed("format") {
			opts.Format = cfg.Output.Format
		}
		if !cmd.Flags().Changed("metrics-file") {
			opts.MetricsFile = cfg.Metrics.File
		}
		if !cmd.Flags().Changed("dnc") {
			opts.DNC = cfg.DNC.Enabled
		}

		mode := config.ModeEnrich
		if opts.Offline {
			mode = config.ModeEnrichOffline
		}
		cfg.DNC.Enabled = opts.DNC
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		b, err := runEnrich(ctx, input, output, opts)
		if b != nil {
			formatBatchSummary(os.Stdout, b)
		}
		return err
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichOpts.CheckpointEvery, "checkpoint-every", batch.DefaultCheckpointInterval, "write a checkpoint after every N leads")
	enrichCmd.Flags().IntVar(&enrichOpts.Limit, "limit", 0, "process at most N leads (0 for all)")
	enrichCmd.Flags().BoolVar(&enrichOpts.Offline, "offline", false, "use deterministic stub providers instead of live APIs")
	enrichCmd.Flags().BoolVar(&enrichOpts.Resume, "resume", false, "continue from an existing checkpoint")
	enrichCmd.Flags().StringVar(&enrichOpts.Format, "format", sink.FormatJSON, "output format (json or csv)")
	enrichCmd.Flags().StringVar(&enrichOpts.MetricsFile, "metrics-file", "", "write Prometheus textfile metrics to this path")
	enrichCmd.Flags().BoolVar(&enrichOpts.DNC, "dnc", false, "run the DNC check inline for every lead with a phone")
	rootCmd.AddCommand(enrichCmd)
}

// runEnrich loads leads, drives the batch and writes every sink. Only input,
// checkpoint and output file failures are returned; per-lead errors are
// recorded in the results.
func runEnrich(ctx context.Context, input, output string, opts enrichFlags) (*model.EnrichedBatch, error) {
	leads, shape, err := leadio.LoadLeads(input)
	if err != nil {
		return nil, eris.Wrap(err, "load leads")
	}
	if opts.Limit > 0 && len(leads) > opts.Limit {
		leads = leads[:opts.Limit]
	}
	zap.L().Info("leads loaded",
		zap.String("input", input),
		zap.String("shape", shape.String()),
		zap.Int("leads", len(leads)),
	)

	env, err := initEnv(ctx, envOptions{
		Offline: opts.Offline,
		DNC:     opts.DNC,
		Store:   cfg.Store.Driver != "none",
	})
	if err != nil {
		return nil, err
	}
	defer env.Close()

	checkpoint := sink.NewCheckpoint(output)
	var prior []model.EnrichmentResult
	if opts.Resume {
		prior, err = checkpoint.Load()
		if err != nil {
			return nil, err
		}
	}

	runID := uuid.New().String()
	if env.Store != nil {
		run, err := env.Store.CreateRun(ctx, input, output)
		if err != nil {
			return nil, eris.Wrap(err, "create run")
		}
		runID = run.ID
	}
	log := zap.L().With(zap.String("run_id", runID))

	rec := metrics.New()
	driverOpts := []batch.Option{
		batch.WithLimiter(env.Limiter),
		batch.WithCheckpoint(checkpoint, opts.CheckpointEvery),
		batch.WithMetrics(rec),
		batch.WithResume(prior),
	}
	if env.Store != nil {
		driverOpts = append(driverOpts, batch.WithStore(env.Store, runID, cfg.Batch.DLQMaxRetries))
	}

	b, runErr := batch.New(env.Pipeline, driverOpts...).Run(ctx, leads)
	finishRun(env, runID, b, runErr)

	if werr := rec.WriteTextfile(opts.MetricsFile); werr != nil {
		log.Warn("write metrics textfile", zap.Error(werr))
	}
	if runErr != nil {
		log.Error("batch stopped early", zap.String("checkpoint", checkpoint.Path), zap.Error(runErr))
		return b, eris.Wrap(runErr, "run batch")
	}

	if err := sink.NewFileSink(output, opts.Format).Write(ctx, runID, b); err != nil {
		return b, eris.Wrap(err, "write output")
	}
	log.Info("output written", zap.String("path", output), zap.String("format", opts.Format))

	extras, closeExtras, err := buildExtraSinks(cfg.Output)
	defer closeExtras()
	if err != nil {
		log.Warn("extra sinks unavailable", zap.Error(err))
	} else if len(extras) > 0 {
		if err := extras.Write(ctx, runID, b); err != nil {
			log.Warn("extra sinks failed", zap.Error(err))
		}
	}

	if err := checkpoint.Remove(); err != nil {
		log.Warn("remove checkpoint", zap.Error(err))
	}
	return b, nil
}

// finishRun records the run's final status in the store.
func finishRun(env *enrichEnv, runID string, b *model.EnrichedBatch, runErr error) {
	if env.Store == nil {
		return
	}
	status := model.RunStatusComplete
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = model.RunStatusInterrupted
	case runErr != nil:
		status = model.RunStatusFailed
	}
	var stats model.BatchStats
	if b != nil {
		stats = b.Stats
	}
	// The run context may already be cancelled.
	if err := env.Store.FinishRun(context.Background(), runID, status, stats); err != nil {
		zap.L().Warn("finish run", zap.String("run_id", runID), zap.Error(err))
	}
}

// defaultOutputPath derives leads.enriched.json from leads.json.
func defaultOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".enriched.json"
}

// formatBatchSummary writes run totals and field completion to w.
func formatBatchSummary(out io.Writer, b *model.EnrichedBatch) {
	c := b.Completion()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total leads:\t%d\n", b.Stats.Total)
	_, _ = fmt.Fprintf(w, "Processed:\t%d\n", b.Stats.Processed)
	_, _ = fmt.Fprintf(w, "  Succeeded:\t%d\n", b.Stats.Succeeded)
	_, _ = fmt.Fprintf(w, "  Errored:\t%d\n", b.Stats.Errored)
	_, _ = fmt.Fprintf(w, "  Skipped:\t%d\n", b.Stats.Skipped)
	_, _ = fmt.Fprintf(w, "Spend:\t$%.2f\n", b.Stats.SpendUSD)
	_, _ = fmt.Fprintf(w, "With phone:\t%.1f%%\n", c.Phone)
	_, _ = fmt.Fprintf(w, "With email:\t%.1f%%\n", c.Email)
	_, _ = fmt.Fprintf(w, "With age:\t%.1f%%\n", c.Age)
	_, _ = fmt.Fprintf(w, "With ZIP:\t%.1f%%\n", c.ZipCode)
	_, _ = fmt.Fprintf(w, "With line type:\t%.1f%%\n", c.LineType)
	if c.DNC > 0 {
		_, _ = fmt.Fprintf(w, "DNC checked:\t%.1f%%\n", c.DNC)
	}
	_ = w.Flush()
}
