// Package render substitutes {{ name }} markers in certificate templates.
package render

import (
	"fmt"
	"regexp"
)

// A marker is a name wrapped in double braces with optional inner whitespace. Any run of
// characters other than braces and whitespace is a name.
var reMarker = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Placeholders replaces every marker whose name is a key of values with the value's string
// form (nil becomes ""). Markers for unknown names stay verbatim. The scan is a single pass
// over the template, so substituted text is never re-scanned and key order does not matter.
func Placeholders(html string, values map[string]any) string {
	if html == "" || len(values) == 0 {
		return html
	}
	return reMarker.ReplaceAllStringFunc(html, func(m string) string {
		name := reMarker.FindStringSubmatch(m)[1]
		v, ok := values[name]
		if !ok {
			return m
		}
		if v == nil {
			return ""
		}
		return fmt.Sprint(v)
	})
}

// Names returns the distinct marker names used in html, in order of first appearance.
func Names(html string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range reMarker.FindAllStringSubmatch(html, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}
