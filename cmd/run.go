package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/ingest"
	"github.com/sells-group/blog-pipeline/internal/model"
)

var (
	runPDFs        []string
	runQuick       bool
	runInteractive bool
	runBlog        model.BlogConfig
	runOutputLang  string
)

var runCmd = &cobra.Command{
	Use:   "run [url|youtube-url|file.pdf ...]",
	Short: "Start a blog run from one or more sources",
	Long: "Ingests the given sources and runs the pipeline until the outline review gate. " +
		"With --interactive the review questions are asked on the terminal; with --quick every gate is approved.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		locs := runLocators(args, runPDFs)
		if len(locs) == 0 {
			return eris.New("at least one source is required")
		}

		env, err := initPipeline(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		sources, err := env.Ingest.IngestAll(ctx, locs)
		if err != nil {
			return eris.Wrap(err, "ingest sources")
		}
		zap.L().Info("sources ingested", zap.Int("requested", len(locs)), zap.Int("ingested", len(sources)))

		blog := runBlog
		blog.OutputLanguage = model.OutputLanguage(runOutputLang)
		runID, runErr := env.Runner.Start(ctx, sources, blog)
		if runID == "" {
			return runErr
		}
		return driveRun(ctx, env.Runner, runID, runErr, modeFromFlags(runQuick, runInteractive), newTerminalAsker(ctx, os.Stdin, os.Stdout), os.Stdout)
	},
}

// runLocators builds locators from positional sources, which are detected
// by shape, and --pdf paths.
func runLocators(args, pdfs []string) []ingest.Locator {
	locs := ingest.Locators(args)
	for _, p := range pdfs {
		locs = append(locs, ingest.Locator{Type: model.SourceTypePDF, Value: p})
	}
	return locs
}

func init() {
	f := runCmd.Flags()
	f.StringSliceVar(&runPDFs, "pdf", nil, "PDF file to ingest (repeatable)")
	f.BoolVar(&runQuick, "quick", false, "approve every review gate automatically")
	f.BoolVar(&runInteractive, "interactive", false, "answer review gates on the terminal")
	f.IntVar(&runBlog.WordCount, "words", 0, "target word count (default 1500)")
	f.StringVar(&runBlog.Tone, "tone", "", "writing tone (default professional)")
	f.StringVar(&runBlog.WritingStyle, "style", "", "writing style (default analysis)")
	f.StringVar(&runBlog.TargetAudience, "audience", "", "target audience")
	f.StringVar(&runOutputLang, "lang", string(model.OutputBoth), "output language: both, ko-only or en-only")
	f.StringVar(&runBlog.PrimaryKeyword, "keyword", "", "primary SEO keyword")
	f.StringSliceVar(&runBlog.Categories, "category", nil, "post category (repeatable)")
	f.BoolVar(&runBlog.IncludeCodeExamples, "code", false, "include code examples")
	f.BoolVar(&runBlog.IncludeTLDR, "tldr", false, "include a TL;DR section")
	f.StringVar(&runBlog.CustomInstructions, "instructions", "", "extra instructions for the writer")
	runCmd.MarkFlagsMutuallyExclusive("quick", "interactive")
	rootCmd.AddCommand(runCmd)
}
