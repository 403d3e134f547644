// Package markdown renders translated documents with gomarkdown.
package markdown

import (
	"bytes"
	"fmt"
	stdhtml "html"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

func newParser() *parser.Parser {
	return parser.NewWithExtensions(parser.CommonExtensions | parser.Attributes)
}

// ToHTML renders an HTML fragment.
func ToHTML(md []byte) string {
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	})
	return string(markdown.Render(newParser().Parse(md), renderer))
}

// ToPage renders a complete HTML document with the given title.
func ToPage(md []byte, title string) []byte {
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.HrefTargetBlank | html.CompletePage,
	})
	return markdown.Render(newParser().Parse(md), renderer)
}

// RenderFile reads markdown from src and writes a complete HTML page to dst.
// The page title is the first heading, or the source file name.
func RenderFile(src, dst string) error {
	md, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	title := FirstHeading(md)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	}
	if err := os.WriteFile(dst, ToPage(md, title), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}

// FirstHeading returns the text of the first ATX heading, if any.
func FirstHeading(md []byte) string {
	for _, line := range strings.Split(string(md), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		text := strings.TrimSpace(strings.TrimLeft(line, "#"))
		if text != "" {
			return text
		}
	}
	return ""
}

// ToPlainText renders md and drops the markup, leaving the prose.
func ToPlainText(md []byte) string {
	return stdhtml.UnescapeString(StripHTMLTags(ToHTML(md)))
}

func StripHTMLTags(htmlContent string) string {
	var result bytes.Buffer
	inTag := false

	for _, ch := range htmlContent {
		switch ch {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag {
				result.WriteRune(ch)
			}
		}
	}

	return result.String()
}
