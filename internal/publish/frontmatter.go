package publish

import (
	"bytes"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/blog-pipeline/internal/model"
)

const fence = "---"

// renderDocument writes meta as a YAML frontmatter block followed by body.
func renderDocument(meta any, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fence + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(meta); err != nil {
		return nil, eris.Wrap(err, "publish: encode frontmatter")
	}
	if err := enc.Close(); err != nil {
		return nil, eris.Wrap(err, "publish: encode frontmatter")
	}
	buf.WriteString(fence + "\n\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// splitDocument separates a leading frontmatter block from the body. A
// document without frontmatter returns an empty header.
func splitDocument(data []byte) (header []byte, body string) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(text, fence+"\n") {
		return nil, text
	}
	rest := text[len(fence)+1:]
	end := strings.Index(rest, "\n"+fence+"\n")
	if end < 0 {
		if strings.HasSuffix(rest, "\n"+fence) {
			return []byte(strings.TrimSuffix(rest, "\n"+fence)), ""
		}
		return nil, text
	}
	return []byte(rest[:end]), strings.TrimLeft(rest[end+len(fence)+2:], "\n")
}

// ParsePost reads a saved output file back into a Post. Tags come from an
// explicit tags list, or else from the primary and secondary keywords.
func ParsePost(data []byte) (model.Post, error) {
	header, body := splitDocument(data)
	if header == nil {
		return model.Post{}, eris.New("publish: document has no frontmatter")
	}
	var fm struct {
		outputFrontMatter `yaml:",inline"`
		Tags              []string `yaml:"tags"`
	}
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return model.Post{}, eris.Wrap(err, "publish: decode frontmatter")
	}
	if strings.TrimSpace(body) == "" {
		return model.Post{}, eris.New("publish: document has no body")
	}

	tags := fm.Tags
	if len(tags) == 0 {
		seo := model.SEOMetadata{PrimaryKeyword: fm.PrimaryKeyword, SecondaryKeywords: fm.SecondaryKeywords}
		tags = seo.Tags()
	}
	lang := fm.Language
	if lang == "" {
		lang = model.LangKO
	}
	return model.Post{
		Title:    fm.Title,
		Body:     body,
		Slug:     fm.Slug,
		Tags:     tags,
		Language: lang,
	}, nil
}
