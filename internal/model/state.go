package model

// PipelineState is the record threaded through every node of a run.
//
// Every field is optional. A nil pointer (or nil slice) means "not written
// yet"; Merge uses that to overlay partial updates field by field.
type PipelineState struct {
	Sources    []SourceContent `json:"sources"`
	BlogConfig *BlogConfig     `json:"blog_config,omitempty"`

	ResearchSummary *string  `json:"research_summary,omitempty"`
	Outline         *Outline `json:"outline,omitempty"`

	OutlineDecision   *HumanDecision `json:"outline_decision,omitempty"`
	OutlineHumanNotes *string        `json:"outline_human_notes,omitempty"`

	DraftKO        *string          `json:"draft_ko,omitempty"`
	DraftEN        *string          `json:"draft_en,omitempty"`
	FactCheck      *FactCheckResult `json:"fact_check,omitempty"`
	FactCheckDiff  *FactCheckDiff   `json:"fact_check_diff,omitempty"`
	CriticFeedback *CriticFeedback  `json:"critic_feedback,omitempty"`
	RewriteCount   *int             `json:"rewrite_count,omitempty"`

	EditedDraftKO *string      `json:"edited_draft_ko,omitempty"`
	EditedDraftEN *string      `json:"edited_draft_en,omitempty"`
	SEOMetadataKO *SEOMetadata `json:"seo_metadata_ko,omitempty"`
	SEOMetadataEN *SEOMetadata `json:"seo_metadata_en,omitempty"`
	FinalPostKO   *string      `json:"final_post_ko,omitempty"`
	FinalPostEN   *string      `json:"final_post_en,omitempty"`

	PublishDecision *HumanDecision  `json:"publish_decision,omitempty"`
	PublishTargets  []PublishTarget `json:"publish_targets"`

	BlogURLKO  *string  `json:"blog_url_ko,omitempty"`
	BlogURLEN  *string  `json:"blog_url_en,omitempty"`
	Published  *bool    `json:"published,omitempty"`
	SavedPaths []string `json:"saved_paths"`

	CurrentStep *string `json:"current_step,omitempty"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Merge overlays every field present in upd onto s. The new value always
// wins; absent fields leave s untouched. Nothing is ever cleared.
func (s *PipelineState) Merge(upd *PipelineState) {
	if upd == nil {
		return
	}
	if upd.Sources != nil {
		s.Sources = upd.Sources
	}
	overlay(&s.BlogConfig, upd.BlogConfig)
	overlay(&s.ResearchSummary, upd.ResearchSummary)
	overlay(&s.Outline, upd.Outline)
	overlay(&s.OutlineDecision, upd.OutlineDecision)
	overlay(&s.OutlineHumanNotes, upd.OutlineHumanNotes)
	overlay(&s.DraftKO, upd.DraftKO)
	overlay(&s.DraftEN, upd.DraftEN)
	overlay(&s.FactCheck, upd.FactCheck)
	overlay(&s.FactCheckDiff, upd.FactCheckDiff)
	overlay(&s.CriticFeedback, upd.CriticFeedback)
	overlay(&s.RewriteCount, upd.RewriteCount)
	overlay(&s.EditedDraftKO, upd.EditedDraftKO)
	overlay(&s.EditedDraftEN, upd.EditedDraftEN)
	overlay(&s.SEOMetadataKO, upd.SEOMetadataKO)
	overlay(&s.SEOMetadataEN, upd.SEOMetadataEN)
	overlay(&s.FinalPostKO, upd.FinalPostKO)
	overlay(&s.FinalPostEN, upd.FinalPostEN)
	overlay(&s.PublishDecision, upd.PublishDecision)
	if upd.PublishTargets != nil {
		s.PublishTargets = upd.PublishTargets
	}
	overlay(&s.BlogURLKO, upd.BlogURLKO)
	overlay(&s.BlogURLEN, upd.BlogURLEN)
	overlay(&s.Published, upd.Published)
	if upd.SavedPaths != nil {
		s.SavedPaths = upd.SavedPaths
	}
	overlay(&s.CurrentStep, upd.CurrentStep)
}

func overlay[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// Config returns the run's blog config, or the defaults if none was set.
func (s *PipelineState) Config() BlogConfig {
	if s.BlogConfig == nil {
		return DefaultBlogConfig()
	}
	return s.BlogConfig.WithDefaults()
}

// Rewrites returns the rewrite counter (0 when unset).
func (s *PipelineState) Rewrites() int {
	if s.RewriteCount == nil {
		return 0
	}
	return *s.RewriteCount
}

// Step returns the last completed node name.
func (s *PipelineState) Step() string {
	if s.CurrentStep == nil {
		return ""
	}
	return *s.CurrentStep
}

// Notes returns the outline reviewer's notes.
func (s *PipelineState) Notes() string { return deref(s.OutlineHumanNotes) }

// Summary returns the research summary.
func (s *PipelineState) Summary() string { return deref(s.ResearchSummary) }

// IsPublished reports whether the publish node already ran its side effects.
func (s *PipelineState) IsPublished() bool {
	return s.Published != nil && *s.Published
}

// Draft returns the writer/translator draft for lang.
func (s *PipelineState) Draft(lang string) string {
	if lang == LangEN {
		return deref(s.DraftEN)
	}
	return deref(s.DraftKO)
}

// Edited returns the editor output for lang.
func (s *PipelineState) Edited(lang string) string {
	if lang == LangEN {
		return deref(s.EditedDraftEN)
	}
	return deref(s.EditedDraftKO)
}

// Final returns the SEO-optimized post for lang.
func (s *PipelineState) Final(lang string) string {
	if lang == LangEN {
		return deref(s.FinalPostEN)
	}
	return deref(s.FinalPostKO)
}

// Body returns the most finished text available for lang.
func (s *PipelineState) Body(lang string) string {
	if f := s.Final(lang); f != "" {
		return f
	}
	return s.Edited(lang)
}

// SEO returns the SEO metadata for lang, or nil.
func (s *PipelineState) SEO(lang string) *SEOMetadata {
	if lang == LangEN {
		return s.SEOMetadataEN
	}
	return s.SEOMetadataKO
}

// BlogURL returns the published URL for lang.
func (s *PipelineState) BlogURL(lang string) string {
	if lang == LangEN {
		return deref(s.BlogURLEN)
	}
	return deref(s.BlogURLKO)
}

// SetEdited records the editor output for lang on an update.
func (s *PipelineState) SetEdited(lang, text string) {
	if lang == LangEN {
		s.EditedDraftEN = &text
		return
	}
	s.EditedDraftKO = &text
}

// SetFinal records the SEO results for lang on an update.
func (s *PipelineState) SetFinal(lang string, meta SEOMetadata, text string) {
	if lang == LangEN {
		s.SEOMetadataEN = &meta
		s.FinalPostEN = &text
		return
	}
	s.SEOMetadataKO = &meta
	s.FinalPostKO = &text
}

// SetBlogURL records a published URL for lang on an update.
func (s *PipelineState) SetBlogURL(lang, url string) {
	if lang == LangEN {
		s.BlogURLEN = &url
		return
	}
	s.BlogURLKO = &url
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
