// Package render turns paste content into HTML pages: markdown articles and
// syntax-highlighted listings.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"pastebin/web"
)

const (
	defaultTitle     = "Untitled"
	descriptionLimit = 200
	DefaultStyle     = "github"
)

// Renderer renders markdown and highlighted pages. It is safe for concurrent use.
type Renderer struct {
	md        goldmark.Markdown
	pages     *template.Template
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

// New builds a Renderer using the named chroma style for highlighting.
func New(style string) (*Renderer, error) {
	pages, err := template.ParseFS(web.Templates, "templates/markdown.tmpl", "templates/highlight.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	if style == "" {
		style = DefaultStyle
	}
	st := styles.Get(style)
	if st == nil {
		st = styles.Fallback
	}
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		pages:     pages,
		style:     st,
		formatter: chromahtml.New(chromahtml.WithLineNumbers(true), chromahtml.TabWidth(4)),
	}, nil
}

type page struct {
	Title       string
	Description string
	Body        template.HTML
}

// Markdown writes src rendered as a standalone HTML article. A leading level
// one heading becomes the page title and the following block its description.
func (r *Renderer) Markdown(w io.Writer, src []byte) error {
	doc := r.md.Parser().Parse(text.NewReader(src))
	var body bytes.Buffer
	if err := r.md.Renderer().Render(&body, src, doc); err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	title, desc := summarize(doc, src)
	return r.pages.ExecuteTemplate(w, "markdown", page{
		Title:       title,
		Description: desc,
		Body:        template.HTML(body.String()),
	})
}

// Highlight writes src as a highlighted listing for lang. Unknown languages
// fall back to plain text.
func (r *Renderer) Highlight(w io.Writer, src []byte, lang string) error {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	it, err := lexer.Tokenise(nil, string(src))
	if err != nil {
		return fmt.Errorf("tokenise: %w", err)
	}
	var body bytes.Buffer
	if err := r.formatter.Format(&body, r.style, it); err != nil {
		return fmt.Errorf("highlight: %w", err)
	}
	return r.pages.ExecuteTemplate(w, "highlight", page{
		Title: "Yet another pastebin",
		Body:  template.HTML(body.String()),
	})
}

func summarize(doc ast.Node, src []byte) (title, desc string) {
	title = defaultTitle
	first := doc.FirstChild()
	if first == nil {
		return title, ""
	}
	if h, ok := first.(*ast.Heading); ok && h.Level == 1 {
		title = plain(h, src)
		if next := h.NextSibling(); next != nil {
			desc = plain(next, src)
		}
	} else {
		desc = plain(first, src)
	}
	return title, truncate(desc, descriptionLimit)
}

func plain(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := t.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
