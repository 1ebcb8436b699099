package agent

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// cleanJSON strips markdown code fences and surrounding prose from an LLM
// response, leaving the outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// parseJSON decodes the JSON object of a response that contains nothing else
// of interest.
func parseJSON[T any](agent, text string) (T, error) {
	var out T
	cleaned := cleanJSON(text)
	if !strings.HasPrefix(cleaned, "{") {
		return out, eris.Errorf("agent: %s: no JSON object in response", agent)
	}
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return out, eris.Wrapf(err, "agent: %s: parse response", agent)
	}
	return out, nil
}

// splitJSON separates the first JSON object in text from the prose around
// it. A ```json fence takes precedence over a bare object, so prose after
// the object may itself contain braces.
func splitJSON(text string) (obj, rest string, ok bool) {
	const fence = "```json"
	if i := strings.Index(text, fence); i >= 0 {
		body := text[i+len(fence):]
		if j := strings.Index(body, "```"); j >= 0 {
			obj = strings.TrimSpace(body[:j])
			rest = joinProse(text[:i], body[j+3:])
			return obj, rest, strings.HasPrefix(obj, "{")
		}
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return "", strings.TrimSpace(text), false
	}
	dec := json.NewDecoder(strings.NewReader(text[start:]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return "", strings.TrimSpace(text), false
	}
	end := start + int(dec.InputOffset())
	return string(raw), joinProse(text[:start], text[end:]), true
}

func joinProse(before, after string) string {
	before, after = strings.TrimSpace(before), strings.TrimSpace(after)
	switch {
	case before == "":
		return after
	case after == "":
		return before
	}
	return before + "\n\n" + after
}

// decodeSplit is splitJSON followed by decoding the object into T.
func decodeSplit[T any](agent, text string) (T, string, error) {
	var out T
	obj, rest, ok := splitJSON(text)
	if !ok {
		return out, rest, eris.Errorf("agent: %s: no JSON object in response", agent)
	}
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return out, rest, eris.Wrapf(err, "agent: %s: parse response", agent)
	}
	return out, rest, nil
}
