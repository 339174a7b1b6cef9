// Package segmenter turns the structural elements of a regulation page into
// section-tagged chunks.
package segmenter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/google/uuid"
)

// DefaultSectionPattern matches the start of an article ("ماده 12"), the
// preamble ("مقدمه") or a single-letter enumerator ("الف)").
const DefaultSectionPattern = `^\s*(ماده\s*[0-9۰-۹٠-٩]+|مقدمه|[الف-ی]\s*[:\)]?)`

// Segmenter splits documents into chunks. It holds no per-document state and
// is safe for concurrent use.
type Segmenter struct {
	pattern *regexp.Regexp
	newID   func() string
}

// Option configures a Segmenter.
type Option func(*Segmenter)

// WithIDGenerator overrides chunk ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Segmenter) {
		s.newID = fn
	}
}

// New compiles the sub-section marker pattern. An empty pattern selects DefaultSectionPattern.
func New(pattern string, opts ...Option) (*Segmenter, error) {
	if pattern == "" {
		pattern = DefaultSectionPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid section pattern: %w", err)
	}
	s := &Segmenter{
		pattern: re,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MustNew is like New but panics on an invalid pattern.
func MustNew(pattern string, opts ...Option) *Segmenter {
	s, err := New(pattern, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// NewMachine starts a fresh pass over one document.
func (s *Segmenter) NewMachine(rule domain.Rule) *Machine {
	return newMachine(s, rule)
}

// Segment converts a document's ordered elements into chunks.
func (s *Segmenter) Segment(rule domain.Rule, elements []domain.StructuralElement) []domain.Chunk {
	m := s.NewMachine(rule)
	chunks := make([]domain.Chunk, 0, len(elements)/4+1)
	for _, el := range elements {
		if c, ok := m.Feed(el); ok {
			chunks = append(chunks, c)
		}
	}
	if c, ok := m.Finish(); ok {
		chunks = append(chunks, c)
	}
	return chunks
}

// isSectionMarker reports whether text opens a sub-section.
func (s *Segmenter) isSectionMarker(text string) bool {
	return s.pattern.MatchString(text)
}

// classify maps an element to its class, the text it contributes and the
// title it would set if it triggers.
func (s *Segmenter) classify(el domain.StructuralElement) (class, string, string) {
	if el.InTable && el.Kind != domain.ElementTable {
		return classSkip, "", ""
	}

	if el.Kind == domain.ElementTable {
		md := RenderTable(el.Rows)
		if strings.TrimSpace(md) == "" {
			return classSkip, "", ""
		}
		return classTable, md, ""
	}

	text := NormalizeSpace(el.Text)
	if text == "" {
		return classSkip, "", ""
	}

	if el.Kind == domain.ElementHeading {
		return classHeading, text, text
	}

	emphasis := NormalizeSpace(el.Emphasis)
	if el.Kind == domain.ElementEmphasisMarker && emphasis == "" {
		emphasis = text
	}
	if emphasis != "" && strings.HasPrefix(text, emphasis) && s.isSectionMarker(text) {
		return classEmphasisTrigger, text, emphasis
	}

	if el.Kind == domain.ElementListItem {
		return classListItem, text, ""
	}
	return classText, text, ""
}

// NormalizeSpace collapses every whitespace run to a single space and trims the ends.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// RenderTable flattens table rows into a Markdown grid. Rows whose cells are
// all empty are dropped; the rule row follows the first row.
func RenderTable(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")
	for i, row := range rows {
		cells := make([]string, len(row))
		nonEmpty := false
		for j, cell := range row {
			cells[j] = NormalizeSpace(cell)
			if cells[j] != "" {
				nonEmpty = true
			}
		}
		if !nonEmpty {
			continue
		}

		b.WriteString("| ")
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString(" |\n")

		if i == 0 {
			rule := make([]string, len(row))
			for j := range rule {
				rule[j] = "---"
			}
			b.WriteString("|")
			b.WriteString(strings.Join(rule, "|"))
			b.WriteString("|\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}
