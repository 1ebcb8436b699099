package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// Publisher pushes posts to an external site. Publish writes one post and
// returns its public URL and local path; Commit finalizes exactly the given
// paths as one unit.
type Publisher interface {
	Publish(ctx context.Context, post model.Post) (model.PublishedPost, error)
	Commit(ctx context.Context, message string, paths []string) error
}

// OutputSaver writes the finished posts of a run locally and returns the
// file paths.
type OutputSaver interface {
	Save(ctx context.Context, runID string, s *model.PipelineState) ([]string, error)
}

// PublishNode returns the terminal publish step. It publishes every approved
// target through pub (nil disables external publishing), commits once, and
// always saves local copies through out. A run already marked published
// skips external publishing so a retry never publishes twice. Publisher
// errors are logged; local save errors fail the node.
func PublishNode(pub Publisher, out OutputSaver) NodeFunc {
	return func(ctx context.Context, s *model.PipelineState) (*model.PipelineState, error) {
		log := zap.L().With(zap.String("run_id", RunID(ctx)))
		upd := &model.PipelineState{}

		switch {
		case s.IsPublished():
			log.Info("pipeline: already published, skipping external publish")
		case pub != nil:
			publishTargets(ctx, pub, s, upd, log)
		}

		// Local files carry the URLs just published.
		view := *s
		view.Merge(upd)
		paths, err := out.Save(ctx, RunID(ctx), &view)
		if err != nil {
			return publishedOnly(upd), eris.Wrap(err, "pipeline: save posts")
		}
		for _, p := range paths {
			log.Info("pipeline: saved post", zap.String("path", p))
		}
		upd.SavedPaths = paths
		if upd.SavedPaths == nil {
			upd.SavedPaths = []string{}
		}
		return upd, nil
	}
}

func publishTargets(ctx context.Context, pub Publisher, s *model.PipelineState, upd *model.PipelineState, log *zap.Logger) {
	var (
		title string
		paths []string
		urls  = make(map[string]string)
	)
	for _, t := range s.PublishTargets {
		if !t.Publish || t.Platform != model.PlatformGitHubPages {
			continue
		}
		post := s.PostFor(t.Language)
		if post.Body == "" {
			log.Warn("pipeline: no post body for target", zap.String("language", t.Language))
			continue
		}
		pp, err := pub.Publish(ctx, post)
		if err != nil {
			log.Error("pipeline: publish failed", zap.String("language", t.Language), zap.Error(err))
			continue
		}
		log.Info("pipeline: post written", zap.String("language", t.Language), zap.String("url", pp.URL))
		urls[t.Language] = pp.URL
		paths = append(paths, pp.Path)
		if title == "" {
			title = post.Title
		}
	}
	if len(paths) == 0 {
		return
	}
	if title == "" {
		title = "New blog post"
	}
	if err := pub.Commit(ctx, "Add post: "+title, paths); err != nil {
		log.Error("pipeline: publish commit failed", zap.Error(err))
		return
	}
	// URLs are recorded only once the posts are actually committed.
	for lang, url := range urls {
		upd.SetBlogURL(lang, url)
	}
	upd.Published = model.Ptr(true)
}

// publishedOnly keeps the record of external publishing from a failed node.
func publishedOnly(upd *model.PipelineState) *model.PipelineState {
	if !upd.IsPublished() {
		return nil
	}
	return &model.PipelineState{Published: upd.Published, BlogURLKO: upd.BlogURLKO, BlogURLEN: upd.BlogURLEN}
}
