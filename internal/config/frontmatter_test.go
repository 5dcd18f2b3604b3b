package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFrontmatterRoundTrip(t *testing.T) {
	raw := "---\nk: v\n---\nbody"
	fm, body := ExtractFrontmatter(raw)
	require.Equal(t, "v", fm["k"])
	assert.Equal(t, "body", body)
}

func TestExtractFrontmatterNoDelimiters(t *testing.T) {
	fm, body := ExtractFrontmatter("just a note, no frontmatter")
	assert.Empty(t, fm)
	assert.Equal(t, "just a note, no frontmatter", body)
}

func TestExtractFrontmatterTypedScalars(t *testing.T) {
	raw := "---\ncount: 3\nratio: 1.5\ndone: true\ntitle: \"quoted\"\n---\nbody"
	fm, _ := ExtractFrontmatter(raw)
	assert.EqualValues(t, 3, fm["count"])
	assert.InDelta(t, 1.5, fm["ratio"], 0.0001)
	assert.Equal(t, true, fm["done"])
	assert.Equal(t, "quoted", fm["title"])
}

func TestExtractPlainTextStripsMarkupNoise(t *testing.T) {
	raw := "---\ntype: note\n---\n# Heading\nSee [[Target|Label]] and [link](http://x).\n```\ncode block\n```\nInline `code` here.\n\n\n\nMore text."
	text := ExtractPlainText(raw)

	assert.NotContains(t, text, "#")
	assert.Contains(t, text, "Label")
	assert.NotContains(t, text, "[[")
	assert.Contains(t, text, "link")
	assert.NotContains(t, text, "```")
	assert.NotContains(t, text, "`code`")
	assert.NotContains(t, text, "\n\n\n")
}
