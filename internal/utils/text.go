package utils

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}

// TruncateWords cuts s to at most limit runes including the trailing ellipsis.
// When the last space of the cut falls past 80% of the budget the cut moves
// back to that word boundary.
func TruncateWords(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	budget := limit - len(ellipsis)
	if budget <= 0 {
		return string([]rune(s)[:limit])
	}

	cut := []rune(s)[:budget]
	if idx := lastSpace(cut); idx > budget*8/10 {
		cut = cut[:idx]
	}
	return string(cut) + ellipsis
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == ' ' {
			return i
		}
	}
	return -1
}

// CollapseSpaces squeezes runs of whitespace into single spaces and keeps
// at most one blank line between paragraphs.
func CollapseSpaces(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if blank || len(out) == 0 {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
