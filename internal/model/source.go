package model

// SourceType identifies how a source document was ingested.
type SourceType string

const (
	SourceTypeURL     SourceType = "url"
	SourceTypePDF     SourceType = "pdf"
	SourceTypeYouTube SourceType = "youtube"
)

// SourceContent is one normalized input document for a run.
type SourceContent struct {
	SourceType SourceType     `json:"source_type"`
	Origin     string         `json:"origin"`
	Title      string         `json:"title,omitempty"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// DisplayName returns the title, or the origin when no title was extracted.
func (s SourceContent) DisplayName() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Origin
}
