package util

import (
	"strings"

	"gitlab.com/golang-commonmark/markdown"
	"golang.org/x/net/html"
)

var md = markdown.New(markdown.HTML(false), markdown.Linkify(true))

// RenderMarkdown renders commonmark to HTML. Raw HTML in the input is not
// passed through.
func RenderMarkdown(input string) string {
	return md.RenderToString([]byte(input))
}

// PlainText renders commonmark and strips all tags. The result feeds the
// element search index.
func PlainText(input string) string {

	tokenizer := html.NewTokenizerFragment(strings.NewReader(RenderMarkdown(input)), "body")

	var sb strings.Builder
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break // assuming tokenizer.Err() == io.EOF
		}
		if tt == html.TextToken {
			if text := strings.TrimSpace(tokenizer.Token().Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
	}
	return sb.String()
}
