// File path: internal/copybook/record.go
package copybook

import (
	"strings"
)

// DecodedField is the result for one elementary field occurrence. Conditions
// lists matched level-88 labels; an empty list is a valid outcome.
type DecodedField struct {
	Path       string
	Label      string
	Offset     int
	Value      Value
	Conditions []string
	Err        error
}

// DecodedRecord holds the decoded fields of one record. It is built fresh per
// call and shares nothing mutable with other records.
type DecodedRecord struct {
	fields      []DecodedField
	byPath      map[string]int
	tree        map[string]interface{}
	conditions  map[string][]string
	occurrences map[string][]*DecodedRecord
	errs        []error
}

func newDecodedRecord() *DecodedRecord {
	return &DecodedRecord{
		byPath:      make(map[string]int),
		tree:        make(map[string]interface{}),
		conditions:  make(map[string][]string),
		occurrences: make(map[string][]*DecodedRecord),
	}
}

func (r *DecodedRecord) add(field DecodedField) {
	r.byPath[field.Path] = len(r.fields)
	r.fields = append(r.fields, field)
	if len(field.Conditions) > 0 {
		r.conditions[field.Path] = field.Conditions
	}
}

func (r *DecodedRecord) addConditions(path string, labels []string) {
	if len(labels) > 0 {
		r.conditions[path] = labels
	}
}

// fragment copies the fields decoded since start into a record whose paths
// are relative to one occurrence.
func (r *DecodedRecord) fragment(start int, occPath, label string, value interface{}) *DecodedRecord {
	frag := newDecodedRecord()
	relative := func(p string) (string, bool) {
		if p == occPath {
			return label, true
		}
		if strings.HasPrefix(p, occPath+".") {
			return strings.TrimPrefix(p, occPath+"."), true
		}
		return "", false
	}
	for _, f := range r.fields[start:] {
		if rel, ok := relative(f.Path); ok {
			f.Path = rel
			frag.add(f)
		}
	}
	for p, labels := range r.conditions {
		if rel, ok := relative(p); ok {
			frag.conditions[rel] = labels
		}
	}
	for p, occ := range r.occurrences {
		if rel, ok := relative(p); ok {
			frag.occurrences[rel] = occ
		}
	}
	if m, ok := value.(map[string]interface{}); ok {
		frag.tree = m
	} else {
		frag.tree[label] = value
	}
	return frag
}

// Fields returns the decoded elementary fields in record order.
func (r *DecodedRecord) Fields() []DecodedField {
	return append([]DecodedField(nil), r.fields...)
}

// Len returns the number of decoded elementary fields.
func (r *DecodedRecord) Len() int { return len(r.fields) }

// Get returns a field by path, e.g. "CUSTOMER.NAME" or "ITEMS(2).QTY".
func (r *DecodedRecord) Get(path string) (DecodedField, bool) {
	idx, ok := r.byPath[normalizeLabel(path)]
	if !ok {
		return DecodedField{}, false
	}
	return r.fields[idx], true
}

// Occurrences returns one fragment per repetition of an OCCURS field, in
// index order. Paths inside a fragment are relative to the occurrence.
func (r *DecodedRecord) Occurrences(path string) []*DecodedRecord {
	return r.occurrences[normalizeLabel(path)]
}

// Conditions returns matched level-88 labels keyed by field path.
func (r *DecodedRecord) Conditions() map[string][]string {
	out := make(map[string][]string, len(r.conditions))
	for k, v := range r.conditions {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Errors returns per-field failure messages keyed by field path.
func (r *DecodedRecord) Errors() map[string]string {
	var out map[string]string
	for _, f := range r.fields {
		if f.Err == nil {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[f.Path] = f.Err.Error()
	}
	return out
}

// Map returns the record as nested values: groups become maps, OCCURS fields
// slices. FILLER is omitted and failed fields are nil.
func (r *DecodedRecord) Map() map[string]interface{} {
	return r.tree
}
