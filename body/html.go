package body

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var (
	blankRuns     = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

// Elements whose content is never visible text.
var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"head":     true,
	"title":    true,
	"noscript": true,
	"template": true,
	"meta":     true,
	"link":     true,
	"iframe":   true,
	"object":   true,
	"svg":      true,
}

// Elements rendered as their own paragraph.
var paragraphTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "table": true, "pre": true, "hr": true, "address": true,
}

// Elements that start a new line.
var lineTags = map[string]bool{
	"div": true, "li": true, "tr": true, "dt": true, "dd": true, "section": true,
	"article": true, "header": true, "footer": true, "center": true,
}

// HTMLToText renders an HTML document as plain text. Block elements and
// <br> become line breaks, blockquote content is prefixed with "> ", and
// scripts, styles and hidden elements are dropped.
func HTMLToText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return tidy(html.UnescapeString(src))
	}
	w := &textWriter{}
	w.render(doc)
	return tidy(w.String())
}

type textWriter struct {
	b            strings.Builder
	pendingSpace bool
	pre          int
}

func (w *textWriter) String() string {
	return w.b.String()
}

func (w *textWriter) atLineStart() bool {
	s := w.b.String()
	return s == "" || s[len(s)-1] == '\n'
}

func (w *textWriter) text(s string) {
	if w.pre > 0 {
		w.b.WriteString(s)
		w.pendingSpace = false
		return
	}
	for _, r := range s {
		if unicode.IsSpace(r) {
			w.pendingSpace = true
			continue
		}
		if w.pendingSpace && !w.atLineStart() {
			w.b.WriteByte(' ')
		}
		w.pendingSpace = false
		w.b.WriteRune(r)
	}
}

func (w *textWriter) lineBreak() {
	w.pendingSpace = false
	w.b.WriteByte('\n')
}

func (w *textWriter) newline() {
	w.pendingSpace = false
	if !w.atLineStart() {
		w.b.WriteByte('\n')
	}
}

func (w *textWriter) paragraph() {
	w.newline()
	s := w.b.String()
	if s != "" && !strings.HasSuffix(s, "\n\n") {
		w.b.WriteByte('\n')
	}
}

func (w *textWriter) render(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if skipTags[tag] || hidden(n) {
			return
		}
		switch {
		case tag == "br":
			w.lineBreak()
			return
		case tag == "blockquote":
			w.blockquote(n)
			return
		case tag == "pre":
			w.paragraph()
			w.pre++
			w.children(n)
			w.pre--
			w.paragraph()
			return
		case paragraphTags[tag]:
			w.paragraph()
			w.children(n)
			w.paragraph()
			return
		case lineTags[tag]:
			w.newline()
			w.children(n)
			w.newline()
			return
		case tag == "td" || tag == "th":
			w.children(n)
			w.pendingSpace = true
			return
		}
	}
	w.children(n)
}

func (w *textWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.render(c)
	}
}

func (w *textWriter) blockquote(n *html.Node) {
	inner := &textWriter{}
	inner.children(n)
	quoted := tidy(inner.String())

	w.paragraph()
	if quoted == "" {
		return
	}
	for _, line := range strings.Split(quoted, "\n") {
		if line == "" {
			w.b.WriteString(">\n")
			continue
		}
		w.b.WriteString("> ")
		w.b.WriteString(line)
		w.b.WriteByte('\n')
	}
	w.paragraph()
}

func hidden(n *html.Node) bool {
	for _, attr := range n.Attr {
		switch strings.ToLower(attr.Key) {
		case "hidden":
			return true
		case "aria-hidden":
			if strings.EqualFold(strings.TrimSpace(attr.Val), "true") {
				return true
			}
		case "style":
			style := strings.ToLower(strings.Join(strings.Fields(attr.Val), ""))
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

func tidy(s string) string {
	s = normalizeNewlines(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
