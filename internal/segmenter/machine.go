package segmenter

import (
	"strings"

	"github.com/cloo-solutions/regassist/internal/domain"
)

// State is the segmentation state of a single document pass.
type State int

const (
	// AwaitingTrigger means no chunk is open; the buffer holds no content.
	AwaitingTrigger State = iota
	// Accumulating means a chunk is open and collecting text.
	Accumulating
)

func (s State) String() string {
	switch s {
	case AwaitingTrigger:
		return "AwaitingTrigger"
	case Accumulating:
		return "Accumulating"
	default:
		return "Unknown"
	}
}

// class is what an element means to the state machine.
type class int

const (
	classSkip class = iota
	classHeading
	classEmphasisTrigger
	classText
	classListItem
	classTable
)

// action is a bit set of side effects requested by a transition.
type action uint8

const (
	actFlush action = 1 << iota
	actSetParent
	actSetSection
	actSeed
	actAppend
)

func (a action) has(b action) bool { return a&b != 0 }

// transition is the pure transition function of the segmenter.
func transition(s State, c class) (State, action) {
	switch c {
	case classSkip:
		return s, 0
	case classHeading:
		a := actSetParent | actSetSection | actSeed
		if s == Accumulating {
			a |= actFlush
		}
		return Accumulating, a
	case classEmphasisTrigger:
		a := actSetSection | actSeed
		if s == Accumulating {
			a |= actFlush
		}
		return Accumulating, a
	case classText, classListItem, classTable:
		return Accumulating, actAppend
	default:
		return s, 0
	}
}

// Machine segments one document. It is not safe for concurrent use.
type Machine struct {
	rule     domain.Rule
	triggers *Segmenter

	state   State
	parent  string
	section string
	buf     strings.Builder
}

func newMachine(s *Segmenter, rule domain.Rule) *Machine {
	return &Machine{
		rule:     rule,
		triggers: s,
		state:    AwaitingTrigger,
		parent:   domain.SentinelSection,
		section:  domain.SentinelSection,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Feed consumes one element and returns the chunk it closed, if any.
func (m *Machine) Feed(el domain.StructuralElement) (domain.Chunk, bool) {
	c, text, title := m.triggers.classify(el)
	nextState, act := transition(m.state, c)

	var (
		chunk   domain.Chunk
		emitted bool
	)
	if act.has(actFlush) {
		chunk, emitted = m.materialize()
	}
	if act.has(actSetParent) {
		m.parent = title
	}
	if act.has(actSetSection) {
		m.section = title
	}
	if act.has(actSeed) {
		m.buf.Reset()
		m.buf.WriteString(text)
		m.buf.WriteString("\n")
	}
	if act.has(actAppend) {
		switch c {
		case classTable:
			m.buf.WriteString(text)
		case classListItem:
			m.buf.WriteString("- ")
			m.buf.WriteString(text)
			m.buf.WriteString("\n")
		default:
			m.buf.WriteString(text)
			m.buf.WriteString("\n")
		}
	}

	m.state = nextState
	return chunk, emitted
}

// Finish closes the document and returns the trailing chunk, if any.
func (m *Machine) Finish() (domain.Chunk, bool) {
	chunk, ok := m.materialize()
	m.buf.Reset()
	m.state = AwaitingTrigger
	return chunk, ok
}

func (m *Machine) materialize() (domain.Chunk, bool) {
	content := strings.TrimSpace(m.buf.String())
	if content == "" {
		return domain.Chunk{}, false
	}
	return domain.Chunk{
		ID:            m.triggers.newID(),
		RuleTitle:     m.rule.Title,
		RuleURL:       m.rule.URL,
		RuleDate:      m.rule.Date,
		ParentSection: m.parent,
		SectionTitle:  m.section,
		Content:       content,
	}, true
}
