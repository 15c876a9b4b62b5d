package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/config"
	"github.com/sells-group/lead-enricher/internal/cost"
	"github.com/sells-group/lead-enricher/internal/enrich"
	"github.com/sells-group/lead-enricher/internal/leadio"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/sink"
	"github.com/sells-group/lead-enricher/internal/store"
)

// dncChecker is the subset of *enrich.DNCChecker the command uses.
type dncChecker interface {
	Check(ctx context.Context, phone string) (*model.DNCStatus, model.StageOutcome)
}

// waiter spaces consecutive checks.
type waiter interface {
	Wait(ctx context.Context) error
}

var dncCmd = &cobra.Command{
	Use:   "dnc [input-path] [output-path]",
	Short: "Check Do-Not-Call status for enriched results",
	Long: "Re-checks DNC status for every result with a phone in an enriched JSON file, " +
		"or with --from-store for stored results that were never checked.",
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		fromStore, _ := cmd.Flags().GetBool("from-store")
		offline, _ := cmd.Flags().GetBool("offline")
		limit, _ := cmd.Flags().GetInt("limit")

		if !fromStore && len(args) == 0 {
			return eris.New("dnc: input path is required unless --from-store is set")
		}
		if !offline {
			if err := cfg.Validate(config.ModeDNC); err != nil {
				return err
			}
		}

		env, err := initEnv(ctx, envOptions{Offline: offline, DNC: true, Store: fromStore})
		if err != nil {
			return err
		}
		defer env.Close()

		if fromStore {
			if env.Store == nil {
				return eris.New("dnc: --from-store needs store.driver sqlite or postgres")
			}
			n, err := checkStoredResults(ctx, env.Store, env.DNC, env.Limiter, env.Tally, limit)
			fmt.Fprintf(os.Stdout, "Checked %d stored results.\n", n)
			return err
		}

		input := args[0]
		output := dncOutputPath(input)
		if len(args) > 1 {
			output = args[1]
		}

		results, err := leadio.LoadResults(input)
		if err != nil {
			return eris.Wrap(err, "load results")
		}
		n, checkErr := checkResults(ctx, env.DNC, env.Limiter, env.Tally, results)

		b := &model.EnrichedBatch{Results: results}
		if err := sink.NewFileSink(output, sink.FormatJSON).Write(ctx, "", b); err != nil {
			return eris.Wrap(err, "write output")
		}
		fmt.Fprintf(os.Stdout, "Checked %d of %d results. Output: %s\n", n, len(results), output)
		return checkErr
	},
}

func init() {
	dncCmd.Flags().Bool("from-store", false, "check stored results with no DNC status instead of a file")
	dncCmd.Flags().Bool("offline", false, "use a stub DNC provider")
	dncCmd.Flags().Int("limit", 500, "max stored results to check with --from-store")
	rootCmd.AddCommand(dncCmd)
}

// checkResults updates each result with a phone in place. It stops early only
// when ctx is done.
func checkResults(ctx context.Context, checker dncChecker, lim waiter, tally *cost.Tally, results []model.EnrichmentResult) (int, error) {
	checked := 0
	for i := range results {
		phone := enrich.NormalizePhone(results[i].Phone)
		if phone == "" {
			continue
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return checked, err
			}
		}
		st, outcome := checker.Check(ctx, phone)
		applyDNC(&results[i], st, outcome)
		if st != nil {
			checked++
			if tally != nil {
				results[i].CostUSD += tally.Add(cost.DNCCheck)
			}
		}
	}
	zap.L().Info("dnc: file check complete", zap.Int("checked", checked), zap.Int("results", len(results)))
	return checked, nil
}

// resultStore is the subset of store.Store the stored-result check uses.
type resultStore interface {
	ListResults(ctx context.Context, filter store.ResultFilter) ([]model.StoredResult, error)
	UpdateResultDNC(ctx context.Context, resultID string, result model.EnrichmentResult, checkedAt time.Time) error
}

// checkStoredResults checks stored results that have a phone but no DNC
// status and writes each answer back.
func checkStoredResults(ctx context.Context, st resultStore, checker dncChecker, lim waiter, tally *cost.Tally, limit int) (int, error) {
	pending, err := st.ListResults(ctx, store.ResultFilter{MissingDNC: true, Limit: limit})
	if err != nil {
		return 0, eris.Wrap(err, "dnc: list pending results")
	}

	checked := 0
	for _, sr := range pending {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return checked, err
			}
		}
		res := sr.Result
		status, outcome := checker.Check(ctx, enrich.NormalizePhone(sr.Phone))
		if status == nil {
			zap.L().Warn("dnc: check skipped", zap.String("result_id", sr.ID), zap.String("reason", outcome.Reason))
			continue
		}
		applyDNC(&res, status, outcome)
		if tally != nil {
			res.CostUSD += tally.Add(cost.DNCCheck)
		}
		if err := st.UpdateResultDNC(ctx, sr.ID, res, time.Now().UTC()); err != nil {
			return checked, eris.Wrapf(err, "dnc: update result %s", sr.ID)
		}
		checked++
	}
	zap.L().Info("dnc: store check complete", zap.Int("checked", checked), zap.Int("pending", len(pending)))
	return checked, nil
}

// applyDNC stores status on r and replaces any earlier dnc stage outcome.
func applyDNC(r *model.EnrichmentResult, status *model.DNCStatus, outcome model.StageOutcome) {
	outcome.Name = model.StageDNC
	if status != nil {
		r.DNC = status
	}
	for i := range r.Stages {
		if r.Stages[i].Name == model.StageDNC {
			r.Stages[i] = outcome
			return
		}
	}
	r.Stages = append(r.Stages, outcome)
}

// dncOutputPath derives leads.enriched.dnc.json from leads.enriched.json.
func dncOutputPath(input string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + ".dnc.json"
}
