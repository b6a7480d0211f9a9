package repair

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/browserlet/browserlet/internal/resolver"
)

// maxExcerptLen is the hard cap on the cleaned-HTML excerpt sent to a
// repair provider.
const maxExcerptLen = 600

// excerptFromDiagnostic builds the ≤600-char cleaned-HTML DOM excerpt a
// repair request carries: the resolver captures the nearest landmark's raw
// markup (or <body>'s, when none matches a searched hint value) into
// diag.LandmarkHTML at failure time, and this cleans it through cleanHTML.
// Falls back to a synthesized snippet from the top candidate's structured
// fields only when no live markup was captured (e.g. the page query itself
// errored); with neither markup nor candidates it returns "".
func excerptFromDiagnostic(diag *resolver.Diagnostic) string {
	if diag == nil {
		return ""
	}
	if diag.LandmarkHTML != "" {
		return cleanHTML(diag.LandmarkHTML)
	}
	if len(diag.TopCandidates) == 0 {
		return ""
	}
	best := diag.TopCandidates[0]

	var b strings.Builder
	b.WriteString("<")
	b.WriteString(orDefault(best.Tag, "div"))
	for k, v := range best.Attributes {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=\"")
		b.WriteString(cleanAttr(v))
		b.WriteString("\"")
	}
	b.WriteString(">")
	b.WriteString(cleanText(best.Text))
	b.WriteString("</")
	b.WriteString(orDefault(best.Tag, "div"))
	b.WriteString(">")

	return truncate(b.String(), maxExcerptLen)
}

// cleanHTML parses raw landmark/body markup and returns its visible text,
// stripped of script/style content, truncated to maxExcerptLen; grounded on
// the same parse-and-traverse shape used elsewhere in this codebase for
// HTML scraping.
func cleanHTML(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return truncate(cleanText(raw), maxExcerptLen)
	}

	var b strings.Builder
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		case html.TextNode:
			t := strings.TrimSpace(n.Data)
			if t != "" {
				b.WriteString(t)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return truncate(strings.TrimSpace(b.String()), maxExcerptLen)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cleanAttr(s string) string {
	return strings.ReplaceAll(s, "\"", "&quot;")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
