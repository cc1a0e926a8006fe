package enrichment

import "strings"

// FormatSection wraps a tool's payload under its labeled heading, matching the source's
// _format_web_search_results / _format_video_results / _format_web_scrape_results
// section markers.
func FormatSection(label, payload string) string {
	var b strings.Builder
	b.WriteString("### ")
	b.WriteString(label)
	b.WriteString("\n\n")
	if strings.TrimSpace(payload) == "" {
		b.WriteString("No content available.\n\n")
		return b.String()
	}
	b.WriteString(payload)
	b.WriteString("\n\n")
	return b.String()
}

const (
	LabelWebSearch = "WEB SEARCH RESULTS"
	LabelVideo     = "VIDEO TRANSCRIPT"
	LabelWebScrape = "WEB CONTENT"
)
