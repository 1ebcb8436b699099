package model

// Post is one finished language version handed to a publisher.
type Post struct {
	Title    string
	Body     string
	Slug     string
	Tags     []string
	Language string
}

// PublishedPost is where a publisher wrote a post. Path is what the
// publisher's Commit stages.
type PublishedPost struct {
	URL  string
	Path string
}

// PostFor assembles the post for lang from the SEO results, falling back to
// the edited draft when no final post exists. Slug is the SEO suggestion and
// may be empty.
func (s *PipelineState) PostFor(lang string) Post {
	p := Post{Body: s.Body(lang), Language: lang}
	if seo := s.SEO(lang); seo != nil {
		p.Title = seo.OptimizedTitle
		p.Slug = seo.SuggestedSlug
		p.Tags = seo.Tags()
	}
	if p.Title == "" && s.Outline != nil {
		p.Title = s.Outline.Topic
	}
	return p
}

// IsRejected reports whether a reviewer rejected the run at either gate.
func (s *PipelineState) IsRejected() bool {
	return (s.OutlineDecision != nil && *s.OutlineDecision == DecisionReject) ||
		(s.PublishDecision != nil && *s.PublishDecision == DecisionReject)
}
