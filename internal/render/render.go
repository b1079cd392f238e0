package render

import (
	"embed"
	"html/template"
	"regexp"
	"strings"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// PageTemplate is the entry template rendered for every state.
const PageTemplate = "page"

// New parses the embedded templates with the dashboard helpers.
func New() (*template.Template, error) {
	return template.New("paperlens").Funcs(Funcs()).ParseFS(templateFS, "templates/*.tmpl")
}

// Funcs returns the template helpers.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"cleanLatex": CleanLatex,
		"formatChat": FormatChat,
		"letter":     Letter,
		"inc":        func(i int) int { return i + 1 },
		"join":       strings.Join,
		"orText":     OrText,
		"items":      Items,
	}
}

// ListView is a list with the text shown when it is empty.
type ListView struct {
	Items []string
	Empty string
}

func Items(items []string, empty string) ListView {
	return ListView{Items: items, Empty: empty}
}

// CleanLatex strips markdown fences and $ or $$ delimiters around a formula.
func CleanLatex(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```latex")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	switch {
	case len(s) >= 4 && strings.HasPrefix(s, "$$") && strings.HasSuffix(s, "$$"):
		s = s[2 : len(s)-2]
	case len(s) >= 2 && strings.HasPrefix(s, "$") && strings.HasSuffix(s, "$"):
		s = s[1 : len(s)-1]
	}
	return strings.TrimSpace(s)
}

var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

// FormatChat escapes text, renders **bold** runs as <strong> and each line as
// a paragraph.
func FormatChat(text string) template.HTML {
	lines := strings.Split(text, "\n")
	var b strings.Builder
	for _, line := range lines {
		escaped := template.HTMLEscapeString(line)
		b.WriteString("<p>")
		b.WriteString(boldPattern.ReplaceAllString(escaped, "<strong>$1</strong>"))
		b.WriteString("</p>")
	}
	return template.HTML(b.String())
}

// Letter maps an option index to A, B, C...
func Letter(i int) string {
	if i < 0 || i > 25 {
		return "?"
	}
	return string(rune('A' + i))
}

// OrText returns fallback when s is blank.
func OrText(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
