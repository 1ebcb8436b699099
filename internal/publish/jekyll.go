// Package publish writes finished posts: to a Jekyll site for GitHub Pages,
// and to local Markdown files with YAML frontmatter.
package publish

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // timezone names like US/Eastern on hosts without zoneinfo

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// ErrPublish marks a failed publish or git operation.
var ErrPublish = eris.New("publish: jekyll publish failed")

// GitRunner runs one git command in dir.
type GitRunner func(ctx context.Context, dir string, args ...string) error

// JekyllConfig configures a Jekyll publisher.
type JekyllConfig struct {
	RepoPath string
	PagesURL string
	Timezone string
	Push     bool
}

type jekyllFrontMatter struct {
	Title         string   `yaml:"title"`
	Date          string   `yaml:"date"`
	Categories    []string `yaml:"categories"`
	Tags          []string `yaml:"tags"`
	Layout        string   `yaml:"layout"`
	AuthorProfile bool     `yaml:"author_profile"`
	ReadTime      bool     `yaml:"read_time"`
	Comments      bool     `yaml:"comments"`
	Share         bool     `yaml:"share"`
	Related       bool     `yaml:"related"`
}

// Jekyll publishes posts into the _posts directory of a Jekyll repo. It keeps
// no staging state: Commit is given the paths a caller's Publish calls wrote,
// so concurrent runs commit only their own posts.
type Jekyll struct {
	cfg JekyllConfig
	loc *time.Location
	git GitRunner
	now func() time.Time
}

// JekyllOption configures a Jekyll publisher.
type JekyllOption func(*Jekyll)

// WithGitRunner replaces the git CLI.
func WithGitRunner(g GitRunner) JekyllOption {
	return func(j *Jekyll) { j.git = g }
}

// WithClock sets the time source for post dates.
func WithClock(now func() time.Time) JekyllOption {
	return func(j *Jekyll) { j.now = now }
}

// NewJekyll creates a Jekyll publisher. The repo path is checked on each
// publish, not here.
func NewJekyll(cfg JekyllConfig, opts ...JekyllOption) (*Jekyll, error) {
	if cfg.Timezone == "" {
		cfg.Timezone = "US/Eastern"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "publish: load timezone %q", cfg.Timezone)
	}
	j := &Jekyll{cfg: cfg, loc: loc, git: execGit, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Publish writes post to _posts/<date>-<slug>_<lang>.md and returns the file
// path with the URL the post will have once the site rebuilds.
func (j *Jekyll) Publish(_ context.Context, post model.Post) (model.PublishedPost, error) {
	if j.cfg.RepoPath == "" {
		return model.PublishedPost{}, eris.Wrap(ErrPublish, "jekyll repo path is not configured")
	}
	if info, err := os.Stat(j.cfg.RepoPath); err != nil || !info.IsDir() {
		return model.PublishedPost{}, eris.Wrapf(ErrPublish, "jekyll repo path does not exist: %s", j.cfg.RepoPath)
	}
	postsDir := filepath.Join(j.cfg.RepoPath, "_posts")
	if err := os.MkdirAll(postsDir, 0o755); err != nil {
		return model.PublishedPost{}, eris.Wrapf(err, "publish: create %s", postsDir)
	}

	now := j.now().In(j.loc)
	slug := slugFor(post.Slug, post.Title)
	lang := post.Language
	if lang == "" {
		lang = model.LangKO
	}
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}

	data, err := renderDocument(jekyllFrontMatter{
		Title:         post.Title,
		Date:          now.Format("2006-01-02 15:04:05 -0700"),
		Categories:    []string{"blog"},
		Tags:          tags,
		Layout:        "single",
		AuthorProfile: true,
		ReadTime:      true,
		Related:       true,
	}, post.Body)
	if err != nil {
		return model.PublishedPost{}, err
	}

	path := filepath.Join(postsDir, now.Format(time.DateOnly)+"-"+slug+"_"+lang+".md")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return model.PublishedPost{}, eris.Wrapf(err, "publish: write %s", path)
	}
	zap.L().Info("publish: wrote jekyll post", zap.String("path", path))

	return model.PublishedPost{
		URL:  strings.TrimRight(j.cfg.PagesURL, "/") + "/blog/" + slug + "/",
		Path: path,
	}, nil
}

// Commit stages paths, commits them with message, and pushes when
// configured. Files outside paths are never staged. It is a no-op for an
// empty list.
func (j *Jekyll) Commit(ctx context.Context, message string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	rels := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(j.cfg.RepoPath, p)
		if err != nil {
			rel = p
		}
		rels = append(rels, rel)
	}
	// The pathspec on commit keeps files another caller left staged out of
	// this commit.
	steps := [][]string{
		append([]string{"add", "--"}, rels...),
		append([]string{"commit", "-m", message, "--"}, rels...),
	}
	if j.cfg.Push {
		steps = append(steps, []string{"push"})
	}
	for _, args := range steps {
		if err := j.git(ctx, j.cfg.RepoPath, args...); err != nil {
			return eris.Wrapf(ErrPublish, "git %s: %v", args[0], err)
		}
	}

	zap.L().Info("publish: committed posts",
		zap.Int("files", len(paths)),
		zap.String("message", message),
		zap.Bool("pushed", j.cfg.Push),
	)
	return nil
}

func execGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return eris.Errorf("%v: %s", err, strings.TrimSpace(out.String()))
	}
	return nil
}
