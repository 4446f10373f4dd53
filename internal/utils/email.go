package utils

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var quoteMarkers = []*regexp.Regexp{
	regexp.MustCompile(`^On .+wrote:`),
	regexp.MustCompile(`^From:\s`),
	regexp.MustCompile(`^-+\s*Original Message\s*-+`),
	regexp.MustCompile(`^>`),
}

// ExtractReplyContent keeps only the new content of a reply, dropping everything
// from the first quoted-thread marker onwards. Heuristic, not a thread parser.
func ExtractReplyContent(body string) string {
	lines := strings.Split(body, "\n")
	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		isMarker := false
		for _, marker := range quoteMarkers {
			if marker.MatchString(trimmed) {
				isMarker = true
				break
			}
		}
		if isMarker {
			break
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// StripHTML converts an HTML body to plain text
func StripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script,style").Remove()
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})
	text := doc.Text()
	text = regexp.MustCompile(`[ \t]+`).ReplaceAllString(text, " ")
	text = regexp.MustCompile(`\n{3,}`).ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ExtractEmailAddress pulls the bare address out of forms like "Name <a@b.com>"
func ExtractEmailAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "<") && strings.Contains(raw, ">") {
		startIdx := strings.LastIndex(raw, "<") + 1
		endIdx := strings.LastIndex(raw, ">")
		if startIdx > 0 && endIdx > startIdx {
			raw = raw[startIdx:endIdx]
		}
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// ExtractDisplayName pulls the display-name part out of forms like "Name <a@b.com>"
func ExtractDisplayName(raw string) string {
	raw = strings.TrimSpace(raw)
	idx := strings.LastIndex(raw, "<")
	if idx <= 0 {
		return ""
	}
	name := strings.TrimSpace(raw[:idx])
	return strings.Trim(name, `"`)
}
