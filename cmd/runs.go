package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/blog-pipeline/internal/model"
	"github.com/sells-group/blog-pipeline/internal/monitoring"
	"github.com/sells-group/blog-pipeline/internal/runner"
	"github.com/sells-group/blog-pipeline/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect blog run history",
	Long:  "Commands for listing, viewing, deleting, and summarizing blog runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blog runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		since, _ := cmd.Flags().GetDuration("since")
		filter := store.CheckpointFilter{Limit: limit}
		if since > 0 {
			filter.UpdatedAfter = time.Now().Add(-since)
		}

		runs, err := env.Runner.List(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the status and stored checkpoint of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		st, err := env.Runner.GetStatus(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		cp, err := env.Runner.GetCheckpoint(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		return writeIndented(os.Stdout, struct {
			Status     *runner.Status    `json:"status"`
			Checkpoint *model.Checkpoint `json:"checkpoint"`
		}{st, cp})
	},
}

// -- runs delete --

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>...",
	Short: "Delete runs and their checkpoints",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		for _, id := range args {
			if err := env.Runner.Delete(ctx, id); err != nil {
				return eris.Wrap(err, "runs delete")
			}
			fmt.Fprintf(os.Stdout, "deleted %s\n", id)
		}
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		since, _ := cmd.Flags().GetDuration("since")
		snap, err := monitoring.NewCollector(env.Runner).Collect(ctx, int(since.Hours()))
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, snap)
		return nil
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Duration("since", 0, "only runs updated within this window (e.g. 24h)")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h; 0 for all)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []runner.Status) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTOPIC\tSTATUS\tSCORE\tREWRITES\tUPDATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t-----\t--------\t-------")

	for _, r := range runs {
		topic := []rune(r.Topic)
		if len(topic) > 30 {
			topic = append(topic[:27], []rune("...")...)
		}

		score := "-"
		if r.CriticScore != nil {
			score = fmt.Sprintf("%d", *r.CriticScore)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			r.RunID,
			string(topic),
			statusLabel(r),
			score,
			r.RewriteCount,
			r.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if s.LookbackHours > 0 {
		_, _ = fmt.Fprintf(w, "Window:\tlast %dh\n", s.LookbackHours)
	}
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.RunsTotal)
	_, _ = fmt.Fprintf(w, "Awaiting review:\t%d\n", s.Interrupted)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	_, _ = fmt.Fprintf(w, "Stuck:\t%d\n", s.Stuck)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "  Published:\t%d\n", s.Published)
	_, _ = fmt.Fprintf(w, "Rejected:\t%d\n", s.Rejected)
	if s.ScoredRuns > 0 {
		_, _ = fmt.Fprintf(w, "Avg critic score:\t%.1f (%d runs)\n", s.AvgCriticScore, s.ScoredRuns)
		_, _ = fmt.Fprintf(w, "Avg rewrites:\t%.1f\n", s.AvgRewrites)
	}
	for _, id := range s.StuckRunIDs {
		_, _ = fmt.Fprintf(w, "Stuck run:\t%s\n", id)
	}
	_ = w.Flush()
}
