package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestElementKindConstants(t *testing.T) {
	tests := []struct {
		name     string
		kind     ElementKind
		expected string
	}{
		{"Heading", ElementHeading, "heading"},
		{"Paragraph", ElementParagraph, "paragraph"},
		{"ListItem", ElementListItem, "list_item"},
		{"Table", ElementTable, "table"},
		{"Emphasis", ElementEmphasisMarker, "emphasis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.kind))
			assert.True(t, tt.kind.IsValid())
		})
	}
}

func TestElementKind_Invalid(t *testing.T) {
	assert.False(t, ElementKind("image").IsValid())
	assert.False(t, ElementKind("").IsValid())
}

func TestNewMappingEntry(t *testing.T) {
	c := Chunk{
		ID:            "c-1",
		RuleTitle:     "آیین‌نامه آموزشی",
		RuleURL:       "https://ac.sharif.edu/rules/bs",
		RuleDate:      "1402/06/01",
		ParentSection: "فصل اول",
		SectionTitle:  "ماده 5",
		Content:       "متن ماده",
	}

	entry := NewMappingEntry(3, c)

	assert.Equal(t, 3, entry.Position)
	assert.Equal(t, c.ID, entry.ID)
	assert.Equal(t, c.RuleTitle, entry.RuleTitle)
	assert.Equal(t, c.RuleURL, entry.RuleURL)
	assert.Equal(t, c.RuleDate, entry.RuleDate)
	assert.Equal(t, c.ParentSection, entry.ParentSection)
	assert.Equal(t, c.SectionTitle, entry.SectionTitle)
	assert.Equal(t, c.Content, entry.Content)
}
