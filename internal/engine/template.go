package engine

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z][a-zA-Z0-9_.]*)\s*\}\}`)

// RenderTemplate substitutes {{client.firstName}}-style placeholders with
// values from the flattened template context. Unknown placeholders render
// as an empty string so no {{...}} tokens ever reach a client-facing
// message.
func RenderTemplate(body string, vars map[string]string) string {
	if !strings.Contains(body, "{{") {
		return body
	}

	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		return vars[name]
	})
}
