// File path: internal/copybook/value.go
package copybook

import (
	"strings"
)

// FieldValue holds the raw text of a VALUE clause. The span is kept verbatim:
// it may be a literal, a figurative constant such as SPACES, or a range.
type FieldValue struct {
	span string
}

// NewFieldValue returns a value for the given clause text.
func NewFieldValue(span string) FieldValue {
	return FieldValue{span: strings.TrimSpace(span)}
}

// Span returns the clause text.
func (v FieldValue) Span() string { return v.span }

func (v FieldValue) String() string { return v.span }

// ConditionEntry is one level-88 declaration before merging.
type ConditionEntry struct {
	Label string
	Span  string
}

// FieldValueMap maps level-88 condition names to their value spans. Labels are
// unique; declaration order is retained for rendering only.
type FieldValueMap struct {
	values map[string]FieldValue
	order  []string
}

// MergeConditionNames folds the level-88 entries declared under parent into a
// single map.
func MergeConditionNames(parent string, entries []ConditionEntry) (*FieldValueMap, error) {
	m := &FieldValueMap{values: make(map[string]FieldValue, len(entries))}
	for _, entry := range entries {
		label := normalizeLabel(entry.Label)
		if _, exists := m.values[label]; exists {
			return nil, definitionErr(CodeDuplicateConditionName, label, 88, "condition declared twice under %s", parent)
		}
		m.values[label] = NewFieldValue(entry.Span)
		m.order = append(m.order, label)
	}
	return m, nil
}

// Len returns the number of conditions.
func (m *FieldValueMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.order)
}

// Get returns the value span for a condition label.
func (m *FieldValueMap) Get(label string) (FieldValue, bool) {
	if m == nil {
		return FieldValue{}, false
	}
	v, ok := m.values[normalizeLabel(label)]
	return v, ok
}

// Labels returns condition labels in declaration order.
func (m *FieldValueMap) Labels() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.order...)
}

// Entries returns the conditions in declaration order.
func (m *FieldValueMap) Entries() []ConditionEntry {
	if m == nil {
		return nil
	}
	out := make([]ConditionEntry, 0, len(m.order))
	for _, label := range m.order {
		out = append(out, ConditionEntry{Label: label, Span: m.values[label].span})
	}
	return out
}

// Equal compares label sets and per-label values, ignoring order.
func (m *FieldValueMap) Equal(other *FieldValueMap) bool {
	if m.Len() != other.Len() {
		return false
	}
	for label, value := range m.valuesOrNil() {
		otherValue, ok := other.values[label]
		if !ok || otherValue != value {
			return false
		}
	}
	return true
}

func (m *FieldValueMap) valuesOrNil() map[string]FieldValue {
	if m == nil {
		return nil
	}
	return m.values
}

func (m *FieldValueMap) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, label := range m.Labels() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(label)
		b.WriteString("=")
		b.WriteString(m.values[label].span)
	}
	b.WriteString("}")
	return b.String()
}

func normalizeLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}
