// Package markdown turns character and work descriptions, which may contain
// markdown, into plain text summaries and terminal renderings.
package markdown

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

func parse(body string) (ast.Node, []byte) {
	src := []byte(body)
	return goldmark.DefaultParser().Parse(text.NewReader(src)), src
}

// PlainText returns the text content of body with markup removed. Blocks
// are separated by a single space.
func PlainText(body string) string {
	doc, src := parse(body)

	var b strings.Builder
	space := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), " ") {
			b.WriteByte(' ')
		}
	}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if n.Type() == ast.TypeBlock && entering {
			space()
		}
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n := n.(type) {
		case *ast.Text:
			b.Write(n.Segment.Value(src))
			if n.SoftLineBreak() || n.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(n.Value)
		case *ast.CodeSpan:
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					b.Write(t.Segment.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.WriteString(strings.TrimRight(string(seg.Value(src)), "\n"))
				b.WriteByte(' ')
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(b.String()), " ")
}

// Summary returns PlainText(body) cut to at most max runes, ending with an
// ellipsis when it was cut. A max below one returns the full text.
func Summary(body string, max int) string {
	s := PlainText(body)
	if max < 1 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	cut := strings.TrimRight(string(r[:max-1]), " ")
	return cut + "…"
}

// Title returns the text of the first top-level heading, or "".
func Title(body string) string {
	doc, src := parse(body)

	var title string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 1 {
			return ast.WalkContinue, nil
		}
		title = PlainText(string(heading.Lines().Value(src)))
		return ast.WalkStop, nil
	})
	return title
}

// Render formats body for a terminal of the given width. style is a glamour
// style name ("dark", "light", "notty"); empty picks one from the terminal.
func Render(body string, width int, style string) (string, error) {
	if width < 10 {
		width = 10
	}
	opt := glamour.WithAutoStyle()
	if style != "" {
		opt = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(width-4))
	if err != nil {
		return "", err
	}
	return r.Render(body)
}
