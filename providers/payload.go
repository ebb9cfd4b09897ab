package providers

import (
	"strings"

	"github.com/goliatone/go-publisher/core"
)

// MessageText flattens a content row into the caption most platforms accept:
// body first, then mentions, then hashtags, each normalized to its sigil.
func MessageText(content core.Content) string {
	sections := make([]string, 0, 3)
	if body := strings.TrimSpace(content.Body); body != "" {
		sections = append(sections, body)
	}
	if mentions := joinTags(content.Mentions, "@"); mentions != "" {
		sections = append(sections, mentions)
	}
	if hashtags := joinTags(content.Hashtags, "#"); hashtags != "" {
		sections = append(sections, hashtags)
	}
	return strings.Join(sections, "\n\n")
}

// SplitTags parses a comma- or whitespace-separated tag list, dropping
// empties and duplicates while preserving order.
func SplitTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	seen := map[string]struct{}{}
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		tag := strings.TrimSpace(field)
		tag = strings.TrimLeft(tag, "#@")
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func joinTags(raw string, sigil string) string {
	tags := SplitTags(raw)
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tags))
	for _, tag := range tags {
		parts = append(parts, sigil+tag)
	}
	return strings.Join(parts, " ")
}
