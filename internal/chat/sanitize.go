package chat

import (
	"html"
	"strings"
)

// HTMLSanitizer escapes markup so free text is inert when rendered.
type HTMLSanitizer struct{}

// NewHTMLSanitizer creates the default Sanitizer implementation.
func NewHTMLSanitizer() HTMLSanitizer {
	return HTMLSanitizer{}
}

func (HTMLSanitizer) Sanitize(value string) string {
	return html.EscapeString(strings.TrimSpace(value))
}
