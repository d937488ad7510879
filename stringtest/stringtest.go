// Package stringtest provides small string helpers for tests that assert
// on multi-line output, such as NDJSON instance streams.
package stringtest

import "strings"

// JoinLF joins lines with LF endings, the shape of NDJSON output.
//
// Example:
//
//	want := stringtest.JoinLF(
//		`{"a":1}`,
//		`{"a":2}`,
//	) // -> "{\"a\":1}\n{\"a\":2}"
func JoinLF(lines ...string) string {
	return strings.Join(lines, "\n")
}

// Lines splits LF- or CRLF-terminated output into its non-empty lines.
func Lines(s string) []string {
	var out []string

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}

	return out
}
