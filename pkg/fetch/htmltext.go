package fetch

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]+`)
	citationPattern     = regexp.MustCompile(`\[\d+\]`)
)

// skippedClasses are MediaWiki wrappers whose text is navigation or
// citation noise rather than article content.
var skippedClasses = []string{
	"mw-editsection",
	"reference",
	"mw-references-wrap",
	"reflist",
	"navbox",
	"hatnote",
	"noprint",
	"mw-empty-elt",
	"sistersitebox",
}

// HTMLToText converts rendered MediaWiki section HTML into compact
// markdown-flavoured plain text.
func HTMLToText(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	extractText(doc, &sb, 0)
	return cleanText(sb.String()), nil
}

func extractText(n *html.Node, sb *strings.Builder, depth int) {
	if depth > 200 {
		return
	}

	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			if n.Data[0] == ' ' || n.Data[0] == '\n' {
				sb.WriteString(" ")
			}
			sb.WriteString(text)
			last := n.Data[len(n.Data)-1]
			if last == ' ' || last == '\n' {
				sb.WriteString(" ")
			}
		}
		return
	case html.ElementNode:
		if skipped(n) {
			return
		}
		switch n.Data {
		case "script", "style", "noscript", "img", "figure", "math":
			return
		case "h1", "h2":
			sb.WriteString("\n\n## ")
		case "h3":
			sb.WriteString("\n\n### ")
		case "h4", "h5", "h6":
			sb.WriteString("\n\n#### ")
		case "p", "div", "table":
			sb.WriteString("\n\n")
		case "tr":
			sb.WriteString("\n")
		case "th", "td":
			sb.WriteString(" | ")
		case "br":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
		case "dt":
			sb.WriteString("\n")
		case "dd":
			sb.WriteString("\n  ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, depth+1)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6", "p", "table":
			sb.WriteString("\n\n")
		}
	}
}

func skipped(n *html.Node) bool {
	for _, class := range skippedClasses {
		if hasClass(n, class) {
			return true
		}
	}
	return getAttr(n, "role") == "navigation"
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// cleanText collapses whitespace and blank lines.
func cleanText(s string) string {
	s = citationPattern.ReplaceAllString(s, "")
	s = multiSpacePattern.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "| ")
		lines[i] = line
	}
	s = strings.Join(lines, "\n")

	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
