package driver

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractTextFromHTML strips script/style/noscript nodes and returns the
// page title plus collapsed visible text, the way the teacher's
// goquery-based field extractors (engines/headed/rod.go) walk a parsed
// document rather than regex-scraping raw HTML.
func extractTextFromHTML(html string) (title string, text string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript").Remove()

	var parts []string
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		raw := s.Text()
		for _, line := range strings.Split(raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
	})

	return title, strings.Join(parts, "\n")
}
