package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/blog-pipeline/internal/model"
)

var (
	resumeOutline     string
	resumeNotes       string
	resumePublish     string
	resumeTargets     []string
	resumeInteractive bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Answer the review gate a run is paused at",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		runID := args[0]

		if (resumeOutline == "") == (resumePublish == "") {
			return eris.New("exactly one of --outline or --publish is required")
		}

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		var runErr error
		if resumeOutline != "" {
			review, err := outlineReview(resumeOutline, resumeNotes)
			if err != nil {
				return err
			}
			runErr = env.Runner.ResumeOutline(ctx, runID, review)
		} else {
			state, err := env.Runner.GetState(ctx, runID)
			if err != nil {
				return err
			}
			review, err := publishReview(resumePublish, resumeTargets, state.Config().Languages())
			if err != nil {
				return err
			}
			runErr = env.Runner.ResumePublish(ctx, runID, review)
		}
		if runErr != nil && !isNodeError(runErr) {
			return runErr
		}

		mode := reviewStop
		if resumeInteractive {
			mode = reviewPrompt
		}
		return driveRun(ctx, env.Runner, runID, runErr, mode, newTerminalAsker(ctx, os.Stdin, os.Stdout), os.Stdout)
	},
}

func outlineReview(decision, notes string) (model.OutlineReview, error) {
	d, err := model.ParseDecision(decision)
	if err != nil {
		return model.OutlineReview{}, err
	}
	review := model.OutlineReview{Decision: d, Notes: notes}
	return review, review.Validate()
}

func publishReview(decision string, targets, langs []string) (model.PublishReview, error) {
	d, err := model.ParseDecision(decision)
	if err != nil {
		return model.PublishReview{}, err
	}
	review := model.PublishReview{Decision: d}
	if d == model.DecisionApprove {
		if review.Targets, err = parseTargets(targets, langs); err != nil {
			return model.PublishReview{}, err
		}
	}
	return review, review.Validate()
}

func init() {
	f := resumeCmd.Flags()
	f.StringVar(&resumeOutline, "outline", "", "outline decision: approve, edit or reject")
	f.StringVar(&resumeNotes, "notes", "", "notes for the writer (with --outline edit)")
	f.StringVar(&resumePublish, "publish", "", "publish decision: approve or reject")
	f.StringSliceVar(&resumeTargets, "targets", nil, "languages to publish, e.g. ko,en (default all)")
	f.BoolVar(&resumeInteractive, "interactive", false, "answer later review gates on the terminal")
	rootCmd.AddCommand(resumeCmd)
}
