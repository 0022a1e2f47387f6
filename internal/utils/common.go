// Package utils holds small string helpers shared by config and tracker.
package utils

import (
	"strconv"
	"strings"
)

// SplitAndTrim splits s on sep, trimming each part and dropping empty
// ones. The result is never nil.
func SplitAndTrim(s, sep string) []string {
	out := []string{}
	for part := range strings.SplitSeq(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NormalizeAgentName trims surrounding whitespace. Case is kept: agent
// names are compared against tracker labels as written.
func NormalizeAgentName(input string) string {
	return strings.TrimSpace(input)
}

var pointerUnescaper = strings.NewReplacer("~1", "/", "~0", "~")

// JSONPointerToPath renders an RFC 6901 pointer such as "#/labels/0/name"
// as "labels[0].name" for validation messages.
func JSONPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	var b strings.Builder
	for token := range strings.SplitSeq(ptr, "/") {
		token = pointerUnescaper.Replace(token)
		switch {
		case token == "":
		case isIndex(token):
			b.WriteString("[" + token + "]")
		default:
			if b.Len() > 0 {
				b.WriteByte('.')
			}
			b.WriteString(token)
		}
	}
	return b.String()
}

func isIndex(token string) bool {
	_, err := strconv.ParseUint(token, 10, 64)
	return err == nil
}
