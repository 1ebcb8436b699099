package model

import (
	"fmt"
	"strings"
)

// OutlineSection is one heading of the planned post.
type OutlineSection struct {
	Heading   string   `json:"heading"`
	KeyPoints []string `json:"key_points"`
}

// Outline is the language-neutral plan produced by the research planner.
type Outline struct {
	Topic              string           `json:"topic"`
	Angle              string           `json:"angle"`
	TargetAudience     string           `json:"target_audience"`
	KeyPoints          []string         `json:"key_points"`
	Structure          []OutlineSection `json:"structure"`
	EstimatedWordCount int              `json:"estimated_word_count"`
}

// Format renders the outline as plain text for prompts and terminal review.
func (o Outline) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", o.Topic)
	fmt.Fprintf(&b, "Angle: %s\n", o.Angle)
	fmt.Fprintf(&b, "Target Audience: %s\n", o.TargetAudience)
	fmt.Fprintf(&b, "Estimated Word Count: %d\n\n", o.EstimatedWordCount)
	b.WriteString("Key Points:\n")
	for _, kp := range o.KeyPoints {
		fmt.Fprintf(&b, "- %s\n", kp)
	}
	b.WriteString("\nStructure:\n")
	for _, sec := range o.Structure {
		fmt.Fprintf(&b, "\n## %s\n", sec.Heading)
		for _, kp := range sec.KeyPoints {
			fmt.Fprintf(&b, "  - %s\n", kp)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
