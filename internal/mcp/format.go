package mcp

import (
	"strings"

	"github.com/gramps-project/grampsindex/internal/index"
)

// NoResults is returned when a search finds nothing.
const NoResults = "No results found in the genealogy database."

// contextSeparator separates hit contents in the assistant context.
const contextSeparator = "\n\n"

// BuildContext joins the contents of hits in rank order until the next
// one would exceed budget characters. It returns the text and the number
// of hits used. A budget <= 0 means unlimited.
func BuildContext(hits []index.SearchHit, budget int) (string, int) {
	var sb strings.Builder
	used, length := 0, 0
	for _, h := range hits {
		if budget > 0 && length+len(h.Content) > budget {
			break
		}
		if used > 0 {
			sb.WriteString(contextSeparator)
		}
		sb.WriteString(h.Content)
		length += len(h.Content) + len(contextSeparator)
		used++
	}
	return sb.String(), used
}

// clampLimit returns def for a zero value and clamps others to [lo, hi].
func clampLimit(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	return max(lo, min(v, hi))
}
