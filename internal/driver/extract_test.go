package driver

import (
	"strings"
	"testing"
)

func TestExtractTextFromHTMLStripsScriptsAndStyles(t *testing.T) {
	html := `<html><head><title>Example Page</title><style>body{color:red}</style></head>
<body>
<script>alert('x')</script>
<h1>Hello</h1>
<p>World</p>
</body></html>`

	title, text := extractTextFromHTML(html)

	if title != "Example Page" {
		t.Fatalf("expected title %q, got %q", "Example Page", title)
	}
	if strings.Contains(text, "alert") {
		t.Fatalf("expected script contents to be stripped, got %q", text)
	}
	if strings.Contains(text, "color:red") {
		t.Fatalf("expected style contents to be stripped, got %q", text)
	}
	if !strings.Contains(text, "Hello") || !strings.Contains(text, "World") {
		t.Fatalf("expected visible text to be preserved, got %q", text)
	}
}

func TestExtractTextFromHTMLHandlesMissingTitle(t *testing.T) {
	html := `<html><body><p>No title here</p></body></html>`

	title, text := extractTextFromHTML(html)

	if title != "" {
		t.Fatalf("expected empty title, got %q", title)
	}
	if !strings.Contains(text, "No title here") {
		t.Fatalf("expected body text preserved, got %q", text)
	}
}

func TestExtractTextFromHTMLReturnsEmptyOnEmptyInput(t *testing.T) {
	title, text := extractTextFromHTML("")

	if title != "" || text != "" {
		t.Fatalf("expected empty title/text for empty input, got %q/%q", title, text)
	}
}
