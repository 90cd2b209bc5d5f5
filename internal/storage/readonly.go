package storage

import (
	"regexp"
	"strings"
)

var lineComment = regexp.MustCompile(`--.*?(\n|$)`)

// IsReadOnly reports whether query is a single statement that, once line
// comments are removed, starts with SELECT.
func IsReadOnly(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.TrimSpace(lineComment.ReplaceAllString(q, ""))
	return strings.HasPrefix(q, "select") && singleStatement(query)
}

// singleStatement reports whether nothing but whitespace and comments
// follows the first semicolon outside quotes and comments.
func singleStatement(query string) bool {
	terminated := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '-' && strings.HasPrefix(query[i:], "--"):
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				return true
			}
			i += end
		case c == '/' && strings.HasPrefix(query[i:], "/*"):
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				return true
			}
			i += end + 3
		case terminated:
			if !isSpace(c) {
				return false
			}
		case c == '\'' || c == '"':
			end := strings.IndexByte(query[i+1:], c)
			if end < 0 {
				return true
			}
			i += end + 1
		case c == ';':
			terminated = true
		}
	}
	return true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
