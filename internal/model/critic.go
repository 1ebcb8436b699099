package model

// Verdict is the critic's pass/fail judgment.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// PassScore is the minimum critic score for a passing draft.
const PassScore = 7

// CriticFeedback is one critic evaluation. A rewrite round replaces it.
type CriticFeedback struct {
	Verdict             Verdict  `json:"verdict"`
	Score               int      `json:"score"`
	Strengths           []string `json:"strengths"`
	Weaknesses          []string `json:"weaknesses"`
	SpecificFeedback    string   `json:"specific_feedback"`
	RewriteInstructions string   `json:"rewrite_instructions,omitempty"`
}

// EvaluateVerdict applies the pass rule: score >= PassScore and no high
// severity fact issues.
func EvaluateVerdict(score int, fc *FactCheckResult) Verdict {
	if score >= PassScore && !fc.HasHighSeverity() {
		return VerdictPass
	}
	return VerdictFail
}

// SEOMetadata is the SEO optimizer's output for one language.
type SEOMetadata struct {
	OptimizedTitle    string   `json:"optimized_title"`
	MetaDescription   string   `json:"meta_description"`
	PrimaryKeyword    string   `json:"primary_keyword"`
	SecondaryKeywords []string `json:"secondary_keywords"`
	SuggestedSlug     string   `json:"suggested_slug"`
}

// Tags returns the primary keyword followed by the secondary keywords.
func (m *SEOMetadata) Tags() []string {
	if m == nil {
		return nil
	}
	var tags []string
	if m.PrimaryKeyword != "" {
		tags = append(tags, m.PrimaryKeyword)
	}
	return append(tags, m.SecondaryKeywords...)
}
