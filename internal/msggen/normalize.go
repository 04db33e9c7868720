package msggen

import "regexp"

// Markdown-to-Slack-markup conversions (spec §4.6 step 5). Patterns are
// intentionally non-greedy and single-line to match one emphasis span at
// a time rather than across a whole message.
//
// htmlTagPattern matches real HTML tags (<b>, </b>, <div class="x">)
// while leaving Slack's own angle-bracket syntax alone: mention tokens
// (<@U123>) start with '@', and links (<https://...|text>) start with a
// URL scheme, neither of which matches a bare tag-name start.
var (
	boldPattern    = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicPattern  = regexp.MustCompile(`__([^_\n]+)__`)
	linkPattern    = regexp.MustCompile(`\[([^\]\n]+)\]\(([^)\n]+)\)`)
	htmlTagPattern = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(?:\s[^<>]*)?>`)
)
