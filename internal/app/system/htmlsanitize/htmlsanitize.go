// Package htmlsanitize cleans HTML rendered from section markdown before it
// leaves the API. It uses bluemonday to strip dangerous markup while keeping
// the formatting goldmark produces.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()

		// GFM tables and alignment.
		policy.AllowElements("table", "thead", "tbody", "tfoot", "tr", "th", "td")
		policy.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
		policy.AllowAttrs("align").OnElements("th", "td")
		policy.AllowStyles("text-align").OnElements("th", "td")

		// GFM task lists render disabled checkboxes.
		policy.AllowAttrs("type").Matching(bluemonday.SpaceSeparatedTokens).OnElements("input")
		policy.AllowAttrs("checked", "disabled").OnElements("input")

		policy.AllowElements("u", "s", "del", "sub", "sup", "mark")

		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return policy
}

// Sanitize cleans HTML input, removing potentially dangerous elements and attributes.
// It preserves safe formatting like emphasis, lists, links, images and tables.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return getPolicy().Sanitize(s)
}

// IsPlainText checks if content appears to be plain text (no HTML tags).
func IsPlainText(content string) bool {
	if content == "" {
		return true
	}
	return !strings.Contains(content, "<") || !strings.Contains(content, ">")
}

// PlainTextToHTML escapes text and converts newlines to <br>, wrapped in a <p>.
func PlainTextToHTML(text string) string {
	if text == "" {
		return ""
	}
	escaped := html.EscapeString(text)
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return "<p>" + escaped + "</p>"
}
