package msggen

import "strings"

// interpolateFallback fills the personality's fallback template with
// the real mention tokens when generation is exhausted and retried
// (spec §4.6 step 4's "retry-then-fallback", distinct from the
// personality-driven prompt path).
func interpolateFallback(tmpl string, people []Person) string {
	return strings.ReplaceAll(tmpl, "{mentions}", mentionTokens(people))
}
