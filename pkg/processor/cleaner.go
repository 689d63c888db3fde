package processor

import (
	"regexp"
	"strings"
)

var (
	tripleNewlines = regexp.MustCompile(`\n{3,}`)
	horizontalRuns = regexp.MustCompile(`[ \t]+`)
)

// Clean normalizes line endings and whitespace. It is total (no failure mode)
// and idempotent: Clean(Clean(x)) == Clean(x).
func (p *Processor) Clean(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	text = tripleNewlines.ReplaceAllString(text, "\n\n")
	text = horizontalRuns.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
