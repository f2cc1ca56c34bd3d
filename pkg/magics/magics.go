// Package magics rewrites interactive-shell directives (IPython-style
// "%" line magics and "!" shell escapes) into benign syntax before a
// cell reaches the parser, preserving line count so every later
// location computed against the rewritten text still lines up with the
// cell's original source.
package magics

import "strings"

// Rewrite replaces every line whose first non-whitespace character is
// "%" or "!" with a no-op string-literal expression statement of the
// same indentation, leaving every other line untouched.
func Rewrite(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		if trimmed[0] != '%' && trimmed[0] != '!' {
			continue
		}
		indent := line[:len(line)-len(trimmed)]
		lines[i] = indent + "\"\"\"magic: " + escapeQuotes(trimmed) + "\"\"\""
	}
	return strings.Join(lines, "\n")
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"""`, `\"\"\"`)
}
