// File path: internal/copybook/field.go
package copybook

import (
	"fmt"
	"strings"
)

// ConditionLevel is the level number of condition-name entries.
const ConditionLevel = 88

// FillerLabel names anonymous storage.
const FillerLabel = "FILLER"

// Token is one declaration of the flat sequence produced by a copybook lexer.
// CharCount is zero when the declaration has no picture.
type Token struct {
	Level     int
	Label     string
	CharCount int
	DataType  DataType
	Value     string
	Redefines string
	Occurs    int
}

func (t Token) String() string {
	return fmt.Sprintf("Token level=%d, label=%s, char_count=%s, type=%s", t.Level, t.Label, charCountString(t.CharCount), t.DataType)
}

// FieldDefinition is a node of the copybook tree. It is immutable once Build
// returns; accessors hand out copies of internal slices.
type FieldDefinition struct {
	level      int
	label      string
	charCount  int
	dataType   DataType
	value      *FieldValue
	conditions *FieldValueMap
	children   []*FieldDefinition
	redefines  string
	occurs     int

	implicitRedefines bool
}

// NewFieldDefinition validates a non-condition token and returns a childless node.
func NewFieldDefinition(tok Token) (*FieldDefinition, error) {
	label := normalizeLabel(tok.Label)
	if label == "" {
		label = FillerLabel
	}
	if !validLevel(tok.Level) || tok.Level == ConditionLevel {
		return nil, definitionErr(CodeLevelOutOfOrder, label, tok.Level, "level %d cannot declare a field", tok.Level)
	}
	if !tok.DataType.IsGroup() && tok.CharCount <= 0 {
		return nil, definitionErr(CodeInvalidCharCount, label, tok.Level, "%s requires a character count", tok.DataType.Kind)
	}
	if tok.Occurs < 0 {
		return nil, definitionErr(CodeInvalidCharCount, label, tok.Level, "occurs count %d is negative", tok.Occurs)
	}
	field := &FieldDefinition{
		level:     tok.Level,
		label:     label,
		charCount: tok.CharCount,
		dataType:  tok.DataType,
		redefines: normalizeLabel(tok.Redefines),
		occurs:    tok.Occurs,
	}
	if span := strings.TrimSpace(tok.Value); span != "" {
		v := NewFieldValue(span)
		field.value = &v
	}
	return field, nil
}

func validLevel(level int) bool {
	return (level >= 1 && level <= 49) || level == 77 || level == ConditionLevel
}

func (f *FieldDefinition) Level() int         { return f.level }
func (f *FieldDefinition) Label() string      { return f.label }
func (f *FieldDefinition) DataType() DataType { return f.dataType }
func (f *FieldDefinition) Redefines() string  { return f.redefines }

// CharCount returns the declared character count; ok is false for groups.
func (f *FieldDefinition) CharCount() (n int, ok bool) {
	return f.charCount, f.charCount > 0
}

// Occurs returns the repeat count, 1 when no OCCURS clause was declared.
func (f *FieldDefinition) Occurs() int {
	if f.occurs <= 0 {
		return 1
	}
	return f.occurs
}

// HasOccurs reports whether the field declared an OCCURS clause.
func (f *FieldDefinition) HasOccurs() bool { return f.occurs > 0 }

// Value returns the VALUE clause, if any.
func (f *FieldDefinition) Value() (FieldValue, bool) {
	if f.value == nil {
		return FieldValue{}, false
	}
	return *f.value, true
}

// Conditions returns the merged level-88 entries, or nil.
func (f *FieldDefinition) Conditions() *FieldValueMap { return f.conditions }

// Children returns the ordered subordinate fields.
func (f *FieldDefinition) Children() []*FieldDefinition {
	return append([]*FieldDefinition(nil), f.children...)
}

// IsGroup reports whether the field has subordinate fields.
func (f *FieldDefinition) IsGroup() bool { return len(f.children) > 0 }

// IsFiller reports whether the field is anonymous storage.
func (f *FieldDefinition) IsFiller() bool { return f.label == FillerLabel }

// Walk visits the field and its descendants in pre-order. Returning false from
// fn skips the node's children.
func (f *FieldDefinition) Walk(fn func(*FieldDefinition) bool) {
	if !fn(f) {
		return
	}
	for _, child := range f.children {
		child.Walk(fn)
	}
}

// Flatten re-serialises the tree into declaration order, re-emitting merged
// condition names after their owner. Synthetic roots are omitted.
func (f *FieldDefinition) Flatten() []Token {
	var out []Token
	f.Walk(func(field *FieldDefinition) bool {
		if field.level == 0 {
			return true
		}
		tok := Token{
			Level:     field.level,
			Label:     field.label,
			CharCount: field.charCount,
			DataType:  field.dataType,
			Redefines: field.redefines,
			Occurs:    field.occurs,
		}
		if field.implicitRedefines {
			tok.Redefines = ""
		}
		if field.value != nil {
			tok.Value = field.value.span
		}
		out = append(out, tok)
		for _, entry := range field.conditions.Entries() {
			out = append(out, Token{Level: ConditionLevel, Label: entry.Label, Value: entry.Span})
		}
		return true
	})
	return out
}

func (f *FieldDefinition) String() string {
	return fmt.Sprintf("FieldDefinition level=%d, label=%s, char_count=%s, type=%s", f.level, f.label, charCountString(f.charCount), f.dataType)
}

func charCountString(n int) string {
	if n <= 0 {
		return "null"
	}
	return fmt.Sprintf("%d", n)
}
