package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/blog-pipeline/internal/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show where a run is",
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
			return err
		}
		renderStatus(os.Stdout, *st)
		resumeHint(os.Stdout, *st)
		return nil
	},
}

var stateCmd = &cobra.Command{
	Use:   "state <run-id>",
	Short: "Print the full state of a run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "status")
		if err != nil {
			return err
		}
		defer env.Close()

		state, err := env.Runner.GetState(ctx, args[0])
		if err != nil {
			return err
		}
		return writeIndented(os.Stdout, state)
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <run-id>",
	Short: "Re-run the step a stuck run failed at",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		runErr := env.Runner.Retry(ctx, args[0])
		if runErr != nil && !isNodeError(runErr) {
			return runErr
		}
		return driveRun(ctx, env.Runner, args[0], runErr, reviewStop, nil, os.Stdout)
	},
}

func isNodeError(err error) bool {
	var nodeErr *pipeline.NodeError
	return errors.As(err, &nodeErr)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(retryCmd)
}
