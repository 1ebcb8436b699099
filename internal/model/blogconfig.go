package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// OutputLanguage selects which language versions a run produces.
type OutputLanguage string

const (
	OutputBoth   OutputLanguage = "both"
	OutputKOOnly OutputLanguage = "ko-only"
	OutputENOnly OutputLanguage = "en-only"
)

// Language codes used in per-language state fields.
const (
	LangKO = "ko"
	LangEN = "en"
)

// BlogConfig holds the per-run writing preferences.
type BlogConfig struct {
	WordCount           int            `json:"word_count" yaml:"word_count" mapstructure:"word_count"`
	Tone                string         `json:"tone" yaml:"tone" mapstructure:"tone"`
	WritingStyle        string         `json:"writing_style" yaml:"writing_style" mapstructure:"writing_style"`
	TargetAudience      string         `json:"target_audience,omitempty" yaml:"target_audience" mapstructure:"target_audience"`
	OutputLanguage      OutputLanguage `json:"output_language" yaml:"output_language" mapstructure:"output_language"`
	PrimaryKeyword      string         `json:"primary_keyword,omitempty" yaml:"primary_keyword" mapstructure:"primary_keyword"`
	Categories          []string       `json:"categories,omitempty" yaml:"categories" mapstructure:"categories"`
	IncludeCodeExamples bool           `json:"include_code_examples" yaml:"include_code_examples" mapstructure:"include_code_examples"`
	IncludeTLDR         bool           `json:"include_tldr" yaml:"include_tldr" mapstructure:"include_tldr"`
	CustomInstructions  string         `json:"custom_instructions,omitempty" yaml:"custom_instructions" mapstructure:"custom_instructions"`
}

// DefaultBlogConfig returns the defaults used when a run supplies no config.
func DefaultBlogConfig() BlogConfig {
	return BlogConfig{
		WordCount:      1500,
		Tone:           "professional",
		WritingStyle:   "analysis",
		OutputLanguage: OutputBoth,
	}
}

// WithDefaults fills zero-valued fields from DefaultBlogConfig.
func (c BlogConfig) WithDefaults() BlogConfig {
	d := DefaultBlogConfig()
	if c.WordCount <= 0 {
		c.WordCount = d.WordCount
	}
	if c.Tone == "" {
		c.Tone = d.Tone
	}
	if c.WritingStyle == "" {
		c.WritingStyle = d.WritingStyle
	}
	if c.OutputLanguage == "" {
		c.OutputLanguage = d.OutputLanguage
	}
	return c
}

// Validate checks enumerated fields.
func (c BlogConfig) Validate() error {
	switch c.OutputLanguage {
	case OutputBoth, OutputKOOnly, OutputENOnly:
	default:
		return eris.Errorf("model: invalid output_language %q", c.OutputLanguage)
	}
	if c.WordCount < 0 {
		return eris.Errorf("model: invalid word_count %d", c.WordCount)
	}
	return nil
}

// Languages returns the language codes the run publishes.
func (c BlogConfig) Languages() []string {
	switch c.OutputLanguage {
	case OutputKOOnly:
		return []string{LangKO}
	case OutputENOnly:
		return []string{LangEN}
	default:
		return []string{LangKO, LangEN}
	}
}

// PromptSection renders the config as a bullet list appended to agent prompts.
func (c BlogConfig) PromptSection() string {
	var b strings.Builder
	b.WriteString("\n## Blog Configuration\n")
	fmt.Fprintf(&b, "- Target word count: %d\n", c.WordCount)
	fmt.Fprintf(&b, "- Tone: %s\n", c.Tone)
	fmt.Fprintf(&b, "- Writing style: %s\n", c.WritingStyle)
	if c.TargetAudience != "" {
		fmt.Fprintf(&b, "- Target audience: %s\n", c.TargetAudience)
	}
	if c.IncludeCodeExamples {
		b.WriteString("- Include code examples where they help the reader\n")
	}
	if c.IncludeTLDR {
		b.WriteString("- Start the post with a TL;DR summary\n")
	}
	if c.CustomInstructions != "" {
		fmt.Fprintf(&b, "- Additional instructions: %s\n", c.CustomInstructions)
	}
	return strings.TrimRight(b.String(), "\n")
}
