package webutil

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripTagsPolicy = bluemonday.StripTagsPolicy()

// PlainText strips markup from user-entered text such as group names and
// audit details. Entities are decoded again so "R&D" survives unchanged.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripTagsPolicy.Sanitize(s)))
}

// PlainTextPtr applies PlainText to an optional field.
func PlainTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := PlainText(*s)
	return &clean
}
