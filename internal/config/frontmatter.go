package config

import (
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExtractFrontmatter splits a note's raw content into its frontmatter
// map and body. Frontmatter is delimited by `---` on line 1 and a later
// `---`; everything between is parsed as YAML. If the raw content has no
// such delimiter pair, the whole input is the body and the frontmatter
// map is empty (never an error — this is purely best-effort metadata
// extraction, not a strict parser).
func ExtractFrontmatter(raw string) (map[string]any, string) {
	lines := strings.Split(raw, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return map[string]any{}, raw
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end < 0 {
		return map[string]any{}, raw
	}

	fmBlock := strings.Join(lines[1:end], "\n")
	body := strings.Join(lines[end+1:], "\n")
	body = strings.TrimPrefix(body, "\n")

	fm := parseFrontmatterYAML(fmBlock)
	return fm, body
}

// parseFrontmatterYAML tries yaml.v3 first; on any parse failure it
// falls back to a minimal line-oriented scalar parser so that malformed
// or intentionally loose frontmatter never aborts ingestion.
func parseFrontmatterYAML(block string) map[string]any {
	var m map[string]any
	if err := yaml.Unmarshal([]byte(block), &m); err == nil && m != nil {
		return m
	}
	return parseFrontmatterMinimal(block)
}

var minimalKVLine = regexp.MustCompile(`^([A-Za-z0-9_.\-]+):\s*(.*)$`)

// parseFrontmatterMinimal handles `key: scalar` lines, stripping quotes
// and converting true/false/int/float literals, used only when the block
// isn't valid YAML.
func parseFrontmatterMinimal(block string) map[string]any {
	out := map[string]any{}
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		match := minimalKVLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		key := match[1]
		val := strings.TrimSpace(match[2])
		out[key] = coerceScalar(val)
	}
	return out
}

func coerceScalar(val string) any {
	if len(val) >= 2 {
		if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
			return val[1 : len(val)-1]
		}
	}
	switch strings.ToLower(val) {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(val, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(val, 64); err == nil {
		return f
	}
	return val
}

var (
	wikiLinkRe   = regexp.MustCompile(`\[\[([^\]|]+)(\|([^\]]+))?\]\]`)
	mdLinkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	atxHeaderRe  = regexp.MustCompile(`(?m)^(#{1,6})\s+`)
	codeFenceRe  = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe = regexp.MustCompile("`[^`]*`")
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	blankRunsRe  = regexp.MustCompile(`\n{3,}`)
)

// ExtractPlainText reduces a lightly-marked-up note body to noise-free
// plain text for the graph's extraction step. It never interprets the
// text further — purely a cleanup pass, not a content transform.
func ExtractPlainText(raw string) string {
	_, body := ExtractFrontmatter(raw)

	body = codeFenceRe.ReplaceAllString(body, "")
	body = inlineCodeRe.ReplaceAllString(body, "")
	body = wikiLinkRe.ReplaceAllStringFunc(body, func(m string) string {
		parts := wikiLinkRe.FindStringSubmatch(m)
		if parts[3] != "" {
			return parts[3]
		}
		return parts[1]
	})
	body = mdLinkRe.ReplaceAllString(body, "$1")
	body = atxHeaderRe.ReplaceAllString(body, "")
	body = htmlTagRe.ReplaceAllString(body, "")
	body = blankRunsRe.ReplaceAllString(body, "\n\n")

	return strings.TrimSpace(body)
}
