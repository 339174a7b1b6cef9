package domain

// SentinelSection titles content that precedes the first section trigger.
const SentinelSection = "General"

// ElementKind classifies a structural element extracted from a regulation page.
type ElementKind string

const (
	ElementHeading        ElementKind = "heading"
	ElementParagraph      ElementKind = "paragraph"
	ElementListItem       ElementKind = "list_item"
	ElementTable          ElementKind = "table"
	ElementEmphasisMarker ElementKind = "emphasis"
)

// IsValid checks if the ElementKind is a valid value
func (k ElementKind) IsValid() bool {
	switch k {
	case ElementHeading, ElementParagraph, ElementListItem, ElementTable, ElementEmphasisMarker:
		return true
	}
	return false
}

// StructuralElement is one typed block of a regulation document, in document order.
type StructuralElement struct {
	Kind ElementKind
	// Level is the heading level (1-6) for headings, zero otherwise.
	Level int
	Text  string
	// Emphasis holds the text of the first bold/strong run inside the element.
	Emphasis string
	// Rows holds cell text for tables, header row first.
	Rows [][]string
	// InTable marks elements nested inside a table that was already emitted.
	InTable bool
	Raw     any
}

// Rule identifies the regulation document that owns a set of chunks.
type Rule struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date"`
}

// Chunk is the atomic retrievable unit of the corpus.
type Chunk struct {
	ID            string `json:"id"`
	RuleTitle     string `json:"rule_title"`
	RuleURL       string `json:"rule_url"`
	RuleDate      string `json:"rule_date"`
	ParentSection string `json:"parent_section"`
	SectionTitle  string `json:"section_title"`
	Content       string `json:"content"`
}

// MappingEntry joins an index row back to its chunk. Position equals the row number.
type MappingEntry struct {
	Position      int    `json:"index"`
	ID            string `json:"id"`
	RuleTitle     string `json:"rule_title"`
	RuleURL       string `json:"rule_url"`
	RuleDate      string `json:"rule_date"`
	ParentSection string `json:"parent_section"`
	SectionTitle  string `json:"section_title"`
	Content       string `json:"content"`
}

// NewMappingEntry stamps a chunk with its index position.
func NewMappingEntry(position int, c Chunk) MappingEntry {
	return MappingEntry{
		Position:      position,
		ID:            c.ID,
		RuleTitle:     c.RuleTitle,
		RuleURL:       c.RuleURL,
		RuleDate:      c.RuleDate,
		ParentSection: c.ParentSection,
		SectionTitle:  c.SectionTitle,
		Content:       c.Content,
	}
}

// RetrievalResult is a mapping entry ranked against a query.
type RetrievalResult struct {
	MappingEntry
	Score float32 `json:"score"`
	Rank  int     `json:"rank"`
}
