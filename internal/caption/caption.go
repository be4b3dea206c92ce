// Package caption extracts human-readable caption text from HTML subtrees
// of an ar5iv rendering. Embedded MathML is converted back to LaTeX-delimited
// text so captions survive the round trip into markdown.
package caption

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	figLabelRe   = regexp.MustCompile(`(?i)^(figure|table)\s*(\d+)[:.]?\s*`)
	subLabelRe   = regexp.MustCompile(`^\(([a-zA-Z])\)\s*`)
	numberRe     = regexp.MustCompile(`(?i)(?:figure|fig\.?|table|tab\.?)\s*(\d+)`)
)

// Extract concatenates the text content of a node subtree. Math nodes are
// replaced by their LaTeX source (the alttext attribute when present, the
// rendered text otherwise) wrapped in $...$ delimiters. Runs of whitespace
// collapse to single spaces. Safe on nil input.
func Extract(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	walk(n, &b)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(b.String(), " "))
}

func walk(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "math" {
			b.WriteString(mathText(n))
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b)
	}
}

func mathText(n *html.Node) string {
	src := ""
	for _, attr := range n.Attr {
		if attr.Key == "alttext" {
			src = strings.TrimSpace(attr.Val)
			break
		}
	}
	if src == "" {
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collectText(c, &b)
		}
		src = strings.TrimSpace(b.String())
	}
	if src == "" {
		return ""
	}
	if strings.HasPrefix(src, "$") && strings.HasSuffix(src, "$") && len(src) > 1 {
		return " " + src + " "
	}
	return " $" + src + "$ "
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

// CleanLabel strips one leading label from a caption: either a figure/table
// number ("Figure 3: ") or a subfigure marker ("(a) "). At most one rule
// applies. A subfigure label that would leave nothing behind is returned as
// the cleaned caption itself, so panels captioned only "(a)" keep a label.
func CleanLabel(s string) string {
	s = strings.TrimSpace(s)
	if m := figLabelRe.FindString(s); m != "" {
		return strings.TrimSpace(s[len(m):])
	}
	if m := subLabelRe.FindString(s); m != "" {
		rest := strings.TrimSpace(s[len(m):])
		if rest == "" {
			return strings.TrimSpace(m)
		}
		return rest
	}
	return s
}

// Number recovers a figure/table number from caption text ("Figure 3: ..."
// -> 3). Used only as a tie-break input; structured element ids always win
// over caption-derived numbers.
func Number(s string) (int, bool) {
	m := numberRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
