package tts

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var collapseSpaces = regexp.MustCompile(`[ \t]+`)

// PlainText converts markdown to speakable plain text.
// Code blocks and raw HTML are dropped, link targets are dropped but link
// text is kept, and block elements are closed with a period so the chunker
// finds sentence boundaries between them.
func PlainText(markdown string) string {
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var buf strings.Builder
	walkMarkdown(doc, reader.Source(), &buf)

	out := collapseSpaces.ReplaceAllString(buf.String(), " ")
	return strings.TrimSpace(out)
}

func walkMarkdown(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteString(" ")
		}
		return

	case *ast.CodeSpan:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return

	case *ast.Image:
		// alt text only
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walkMarkdown(c, source, buf)
		}
		return

	case *ast.Heading, *ast.Paragraph, *ast.ListItem, *ast.TextBlock:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walkMarkdown(c, source, buf)
		}
		closeSentence(buf)
		return

	case *ast.ThematicBreak:
		closeSentence(buf)
		return
	}

	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walkMarkdown(c, source, buf)
	}
}

// closeSentence ends the current block with a period unless it already
// ends with punctuation, then separates it from the next block.
func closeSentence(buf *strings.Builder) {
	content := strings.TrimRight(buf.String(), " ")
	if content == "" {
		return
	}
	if len(content) != buf.Len() {
		buf.Reset()
		buf.WriteString(content)
	}
	switch content[len(content)-1] {
	case '.', '!', '?', ':', ';':
	default:
		buf.WriteString(".")
	}
	buf.WriteString(" ")
}
