package ingest

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// URLIngester extracts the main text of a web page.
type URLIngester struct {
	http *httpClient
}

// noiseSelectors are removed before text extraction.
const noiseSelectors = "script, style, noscript, nav, footer, aside, header, form, iframe, svg"

var (
	spaceRe     = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankLineRe = regexp.MustCompile(`\n{3,}`)
)

func (u *URLIngester) Ingest(ctx context.Context, rawURL string) (model.SourceContent, error) {
	html, err := u.http.get(ctx, rawURL)
	if err != nil {
		return model.SourceContent{}, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return model.SourceContent{}, eris.Wrapf(err, "ingest: parse html %s", rawURL)
	}

	meta := pageMetadata(doc)
	title := firstNonEmpty(metaContent(doc, "og:title"), strings.TrimSpace(doc.Find("title").First().Text()))

	doc.Find(noiseSelectors).Remove()
	text := mainText(doc)
	if text == "" {
		return model.SourceContent{}, eris.Errorf("ingest: no text content extracted from %s", rawURL)
	}

	return model.SourceContent{
		SourceType: model.SourceTypeURL,
		Origin:     rawURL,
		Title:      title,
		Content:    text,
		Metadata:   meta,
	}, nil
}

// mainText prefers <article>, then <main>, then the body.
func mainText(doc *goquery.Document) string {
	for _, sel := range []string{"article", "main", "[role=main]", "body"} {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := blockText(node); text != "" {
			return text
		}
	}
	return ""
}

// blockText joins the text of block elements with blank lines so paragraph
// structure survives.
func blockText(sel *goquery.Selection) string {
	var parts []string
	sel.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td").Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are collected on their own.
		if s.Find("p, li, pre, blockquote").Length() > 0 {
			return
		}
		if t := normalizeSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return normalizeSpace(sel.Text())
	}
	return strings.Join(parts, "\n\n")
}

func normalizeSpace(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLineRe.ReplaceAllString(s, "\n\n"))
}

func pageMetadata(doc *goquery.Document) map[string]any {
	meta := map[string]any{}
	if v := firstNonEmpty(metaContent(doc, "author"), metaContent(doc, "article:author")); v != "" {
		meta["author"] = v
	}
	if v := firstNonEmpty(metaContent(doc, "article:published_time"), metaContent(doc, "date"), timeAttr(doc)); v != "" {
		meta["date"] = v
	}
	if v := metaContent(doc, "og:site_name"); v != "" {
		meta["sitename"] = v
	}
	var tags []string
	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
			tags = append(tags, strings.TrimSpace(v))
		}
	})
	if len(tags) > 0 {
		meta["tags"] = tags
	}
	return meta
}

// metaContent reads <meta name=key> or <meta property=key>.
func metaContent(doc *goquery.Document, key string) string {
	sel := doc.Find(`meta[name="` + key + `"], meta[property="` + key + `"]`).First()
	v, _ := sel.Attr("content")
	return strings.TrimSpace(v)
}

func timeAttr(doc *goquery.Document) string {
	v, _ := doc.Find("time[datetime]").First().Attr("datetime")
	return strings.TrimSpace(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
