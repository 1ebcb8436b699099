package ingest

import (
	"context"
	"encoding/xml"
	"html"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/blog-pipeline/internal/model"
)

// DefaultYouTubeBaseURL serves the timedtext transcript endpoint.
const DefaultYouTubeBaseURL = "https://video.google.com"

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtube\.com/watch\?(?:.*&)?v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?youtu\.be/([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/embed/([A-Za-z0-9_-]{11})`),
}

// preferredTranscriptLangs are tried in order before any other track.
var preferredTranscriptLangs = []string{model.LangKO, model.LangEN}

// VideoID extracts the 11 character video ID from a YouTube URL.
func VideoID(locator string) (string, bool) {
	for _, re := range youtubePatterns {
		if m := re.FindStringSubmatch(locator); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// IsYouTubeURL reports whether locator is a YouTube video URL.
func IsYouTubeURL(locator string) bool {
	_, ok := VideoID(locator)
	return ok
}

// YouTubeIngester fetches video transcripts.
type YouTubeIngester struct {
	http    *httpClient
	baseURL string
}

type trackList struct {
	Tracks []struct {
		LangCode string `xml:"lang_code,attr"`
		Name     string `xml:"name,attr"`
	} `xml:"track"`
}

type transcript struct {
	Lines []struct {
		Start string `xml:"start,attr"`
		Text  string `xml:",chardata"`
	} `xml:"text"`
}

func (y *YouTubeIngester) Ingest(ctx context.Context, locator string) (model.SourceContent, error) {
	videoID, ok := VideoID(locator)
	if !ok {
		return model.SourceContent{}, eris.Errorf("ingest: could not extract video id from %q", locator)
	}

	var list trackList
	if err := y.getXML(ctx, url.Values{"type": {"list"}, "v": {videoID}}, &list); err != nil {
		return model.SourceContent{}, eris.Wrapf(err, "ingest: list transcripts for video %s", videoID)
	}
	lang, name, ok := pickTrack(list)
	if !ok {
		return model.SourceContent{}, eris.Errorf("ingest: no transcripts available for video %s", videoID)
	}

	q := url.Values{"v": {videoID}, "lang": {lang}}
	if name != "" {
		q.Set("name", name)
	}
	var tr transcript
	if err := y.getXML(ctx, q, &tr); err != nil {
		return model.SourceContent{}, eris.Wrapf(err, "ingest: fetch transcript for video %s", videoID)
	}

	lines := make([]string, 0, len(tr.Lines))
	for _, l := range tr.Lines {
		if t := strings.Join(strings.Fields(html.UnescapeString(l.Text)), " "); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) == 0 {
		return model.SourceContent{}, eris.Errorf("ingest: empty transcript for video %s", videoID)
	}

	return model.SourceContent{
		SourceType: model.SourceTypeYouTube,
		Origin:     locator,
		Title:      "YouTube: " + videoID,
		Content:    strings.Join(lines, " "),
		Metadata: map[string]any{
			"video_id": videoID,
			"language": lang,
		},
	}, nil
}

func pickTrack(list trackList) (lang, name string, ok bool) {
	for _, want := range preferredTranscriptLangs {
		for _, t := range list.Tracks {
			if t.LangCode == want {
				return t.LangCode, t.Name, true
			}
		}
	}
	if len(list.Tracks) > 0 {
		return list.Tracks[0].LangCode, list.Tracks[0].Name, true
	}
	return "", "", false
}

func (y *YouTubeIngester) getXML(ctx context.Context, q url.Values, dst any) error {
	body, err := y.http.get(ctx, strings.TrimRight(y.baseURL, "/")+"/timedtext?"+q.Encode())
	if err != nil {
		return err
	}
	if strings.TrimSpace(body) == "" {
		return nil
	}
	dec := xml.NewDecoder(strings.NewReader(body))
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: unsupported charset %q", charset)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	if err := dec.Decode(dst); err != nil {
		return eris.Wrap(err, "ingest: decode transcript xml")
	}
	return nil
}
