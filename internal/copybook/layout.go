// File path: internal/copybook/layout.go
package copybook

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
)

// DefaultMaxRecordLength bounds resolved records unless overridden.
const DefaultMaxRecordLength = 1 << 20

// LayoutOption adjusts layout resolution.
type LayoutOption func(*layoutOptions)

type layoutOptions struct {
	maxRecordLength int64
}

// WithMaxRecordLength overrides DefaultMaxRecordLength.
func WithMaxRecordLength(n int) LayoutOption {
	return func(o *layoutOptions) {
		if n > 0 {
			o.maxRecordLength = int64(n)
		}
	}
}

// ResolvedField places one field of the tree in the record. For fields inside
// an OCCURS group, Offset is relative to the first occurrence of that group.
type ResolvedField struct {
	Definition *FieldDefinition
	Path       string
	Offset     int
	Length     int
	Occurs     int
	Depth      int
	Parent     int
	Children   []int
}

// Span is the total storage of all occurrences.
func (r ResolvedField) Span() int { return r.Length * r.Occurs }

// End is the exclusive end offset of the last occurrence.
func (r ResolvedField) End() int { return r.Offset + r.Span() }

// Layout is a resolved, read-only view of a field tree. It is safe to share
// between goroutines.
type Layout struct {
	root   *FieldDefinition
	fields []ResolvedField
	byPath map[string]int
	length int
}

// Root returns the tree the layout was resolved from.
func (l *Layout) Root() *FieldDefinition { return l.root }

// Length returns the total record length in bytes.
func (l *Layout) Length() int { return l.length }

// Len returns the number of resolved fields.
func (l *Layout) Len() int { return len(l.fields) }

// At returns the resolved field at index i, in pre-order.
func (l *Layout) At(i int) ResolvedField { return l.fields[i] }

// Fields returns all resolved fields in pre-order.
func (l *Layout) Fields() []ResolvedField {
	return append([]ResolvedField(nil), l.fields...)
}

// Field looks up a resolved field by its dotted path.
func (l *Layout) Field(path string) (ResolvedField, bool) {
	idx, ok := l.byPath[normalizeLabel(path)]
	if !ok {
		return ResolvedField{}, false
	}
	return l.fields[idx], true
}

// Describe writes a human-readable table of the layout.
func (l *Layout) Describe(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tLEVEL\tOFFSET\tLENGTH\tOCCURS\tTYPE")
	for _, f := range l.fields {
		fmt.Fprintf(tw, "%s\t%02d\t%d\t%d\t%d\t%s\n", f.Path, f.Definition.Level(), f.Offset, f.Length, f.Occurs, f.Definition.DataType())
	}
	return tw.Flush()
}

// ResolveLayout assigns every field of the tree its byte offset and length in
// one pre-order pass with a running cursor. A REDEFINES field starts at its
// target's offset and does not move the cursor.
func ResolveLayout(root *FieldDefinition, opts ...LayoutOption) (*Layout, error) {
	settings := layoutOptions{maxRecordLength: DefaultMaxRecordLength}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	if root == nil {
		return nil, errors.New("copybook layout: nil tree")
	}
	r := &resolver{max: settings.maxRecordLength, byPath: make(map[string]int)}
	_, span, err := r.resolveField(root, 0, -1, 0, root.label)
	if err != nil {
		return nil, err
	}
	return &Layout{root: root, fields: r.fields, byPath: r.byPath, length: int(span)}, nil
}

type resolver struct {
	fields []ResolvedField
	byPath map[string]int
	max    int64
}

func (r *resolver) resolveField(f *FieldDefinition, offset int64, parent, depth int, path string) (int, int64, error) {
	idx := len(r.fields)
	r.fields = append(r.fields, ResolvedField{
		Definition: f,
		Path:       path,
		Offset:     int(offset),
		Occurs:     f.Occurs(),
		Depth:      depth,
		Parent:     parent,
	})
	if _, exists := r.byPath[path]; !exists {
		r.byPath[path] = idx
	}
	if parent >= 0 {
		r.fields[parent].Children = append(r.fields[parent].Children, idx)
	}

	var length int64
	if f.IsGroup() {
		end, err := r.resolveChildren(f, idx, offset, depth, path)
		if err != nil {
			return 0, 0, err
		}
		length = end - offset
	} else {
		n, _ := f.dataType.ByteLength()
		length = int64(n)
	}
	occurs := int64(f.Occurs())
	if offset+length > r.max || (length > 0 && occurs > (r.max-offset)/length) {
		return 0, 0, layoutErr(CodeRecordTooLarge, f.label, "%d x %d bytes at offset %d exceeds limit %d", occurs, length, offset, r.max)
	}
	span := length * occurs
	r.fields[idx].Length = int(length)
	return idx, span, nil
}

func (r *resolver) resolveChildren(group *FieldDefinition, groupIdx int, start int64, depth int, groupPath string) (int64, error) {
	cursor, high := start, start
	siblings := make(map[string]int, len(group.children))
	for _, child := range group.children {
		offset := cursor
		if child.redefines != "" {
			target, ok := siblings[child.redefines]
			if !ok {
				return 0, layoutErr(CodeUnknownRedefinesTarget, child.label, "no earlier sibling named %s", child.redefines)
			}
			offset = int64(r.fields[target].Offset)
		}
		idx, span, err := r.resolveField(child, offset, groupIdx, depth+1, childPath(groupPath, child.label, depth))
		if err != nil {
			return 0, err
		}
		if child.redefines == "" {
			cursor = offset + span
		}
		if offset+span > high {
			high = offset + span
		}
		if _, exists := siblings[child.label]; !exists {
			siblings[child.label] = idx
		}
	}
	return high, nil
}

// childPath leaves the record label out of top-level paths.
func childPath(parentPath, label string, parentDepth int) string {
	if parentDepth == 0 {
		return label
	}
	return parentPath + "." + label
}
