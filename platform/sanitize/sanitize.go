// Package sanitize provides text sanitization utilities for inbound content.
package sanitize

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// HTMLToText extracts the visible text of an HTML document. Script and style
// contents are dropped and block elements become line breaks.
func HTMLToText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseBlankLines(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
			}
			if isBlock(tag) {
				b.WriteString("\n")
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			if isBlock(tag) {
				b.WriteString("\n")
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			b.Write(tokenizer.Text())
		}
	}
}

// Text strips markup and normalizes whitespace for single-line fields.
func Text(s string) string {
	return strings.Join(strings.Fields(HTMLToText(s)), " ")
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

func isBlock(tag string) bool {
	switch tag {
	case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "table":
		return true
	}
	return false
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.Join(strings.Fields(line), " ")
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
