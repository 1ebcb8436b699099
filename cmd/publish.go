package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/blog-pipeline/internal/pipeline"
	"github.com/sells-group/blog-pipeline/internal/publish"
)

var publishCmd = &cobra.Command{
	Use:   "publish <file.md>...",
	Short: "Publish saved posts to the Jekyll blog in one commit",
	Long:  "Reads posts written by a run (YAML frontmatter plus markdown body) and publishes them to the configured GitHub Pages repository.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("publish"); err != nil {
			return err
		}
		j, err := publish.NewJekyll(publish.JekyllConfig{
			RepoPath: cfg.Publish.JekyllRepoPath,
			PagesURL: cfg.Publish.GitHubPagesURL,
			Timezone: cfg.Publish.Timezone,
			Push:     cfg.Publish.GitPush,
		})
		if err != nil {
			return err
		}
		return publishFiles(cmd.Context(), j, args, os.Stdout)
	},
}

// publishFiles publishes every file through pub and commits once.
func publishFiles(ctx context.Context, pub pipeline.Publisher, paths []string, out io.Writer) error {
	var (
		title   string
		written []string
	)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}
		post, err := publish.ParsePost(data)
		if err != nil {
			return eris.Wrapf(err, "parse %s", path)
		}
		pp, err := pub.Publish(ctx, post)
		if err != nil {
			return eris.Wrapf(err, "publish %s", path)
		}
		_, _ = fmt.Fprintf(out, "%s -> %s\n", path, pp.URL)
		written = append(written, pp.Path)
		if title == "" {
			title = post.Title
		}
	}

	msg := "Add post: " + title
	if len(paths) > 1 {
		msg = fmt.Sprintf("Add %d posts: %s", len(paths), title)
	}
	return pub.Commit(ctx, msg, written)
}

func init() {
	rootCmd.AddCommand(publishCmd)
}
