package agent

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed style_guide.yaml
var defaultStyleGuide string

// StyleGuide is the structure a style guide file must have. The editor
// receives the raw YAML text.
type StyleGuide struct {
	Voice      []string            `yaml:"voice"`
	Formatting []string            `yaml:"formatting"`
	Korean     []string            `yaml:"korean"`
	English    []string            `yaml:"english"`
	Avoid      []string            `yaml:"avoid"`
	Extra      map[string][]string `yaml:",inline"`
}

// LoadStyleGuide reads and validates a style guide file. An empty path
// returns the embedded default.
func LoadStyleGuide(path string) (string, error) {
	if path == "" {
		return defaultStyleGuide, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "agent: read style guide %s", path)
	}
	raw := string(data)
	if err := ValidateStyleGuide(raw); err != nil {
		return "", err
	}
	return raw, nil
}

// ValidateStyleGuide checks that raw parses as a style guide with at least
// one rule.
func ValidateStyleGuide(raw string) error {
	var sg StyleGuide
	if err := yaml.Unmarshal([]byte(raw), &sg); err != nil {
		return eris.Wrap(err, "agent: parse style guide")
	}
	n := len(sg.Voice) + len(sg.Formatting) + len(sg.Korean) + len(sg.English) + len(sg.Avoid)
	for _, rules := range sg.Extra {
		n += len(rules)
	}
	if n == 0 {
		return eris.New("agent: style guide has no rules")
	}
	return nil
}
