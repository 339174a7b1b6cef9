package service

import (
	"strings"

	"github.com/cloo-solutions/regassist/internal/domain"
)

// ContextSeparator divides passages in the generator context.
const ContextSeparator = "\n\n---\n\n"

// FormatContext renders retrieved chunks as labelled passages in rank order.
func FormatContext(results []domain.RetrievalResult) string {
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = "[" + r.RuleTitle + " | " + r.SectionTitle + "]\n" + r.Content
	}
	return strings.Join(parts, ContextSeparator)
}
