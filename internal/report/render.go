package report

import (
	"strings"
)

// RenderHTML renders the report the way the tracking UI expects it: the
// message key as a heading followed by its detail lines. Detail lines carry
// their own trailing "<br>" markers where callers recorded them.
func RenderHTML(r *Report) string {
	var builder strings.Builder
	for _, key := range r.Keys() {
		builder.WriteString("<b>")
		builder.WriteString(key)
		builder.WriteString("</b><br>")
		for _, item := range r.Items(key) {
			builder.WriteString(item)
			if !strings.HasSuffix(item, "<br>") {
				builder.WriteString("<br>")
			}
		}
	}
	return builder.String()
}

// RenderText renders a plain-text summary for CLI output. HTML line break
// markers recorded for the tracking UI are stripped.
func RenderText(r *Report) string {
	var builder strings.Builder
	for _, key := range r.Keys() {
		builder.WriteString(key)
		builder.WriteByte('\n')
		for _, item := range r.Items(key) {
			builder.WriteString("  - ")
			builder.WriteString(StripMarkup(item))
			builder.WriteByte('\n')
		}
	}
	return builder.String()
}

// StripMarkup removes the HTML markers used by the tracking UI rendering.
func StripMarkup(s string) string {
	s = strings.ReplaceAll(s, "<br>", "")
	s = strings.ReplaceAll(s, "<b>", "")
	s = strings.ReplaceAll(s, "</b>", "")
	return strings.TrimSpace(s)
}
