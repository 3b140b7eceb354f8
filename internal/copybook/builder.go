// File path: internal/copybook/builder.go
package copybook

// BuildOption adjusts tree construction.
type BuildOption func(*buildOptions)

type buildOptions struct {
	syntheticRoot string
}

// WithSyntheticRoot allows several top-level records. They are wrapped in a
// group with the given label and every record after the first shares the
// first record's storage, as alternate records of one file do.
func WithSyntheticRoot(label string) BuildOption {
	return func(o *buildOptions) {
		o.syntheticRoot = normalizeLabel(label)
		if o.syntheticRoot == "" {
			o.syntheticRoot = "RECORD"
		}
	}
}

type buildFrame struct {
	level int
	node  *FieldDefinition
}

// Build turns a flat, ordered token sequence into a field tree. Nesting is
// derived from level numbers alone: every open ancestor whose level is greater
// than or equal to the incoming level is closed before the new node is
// attached. Level-88 tokens never become nodes; they are merged into the value
// map of the field declared immediately before them.
func Build(tokens []Token, opts ...BuildOption) (*FieldDefinition, error) {
	settings := buildOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	if len(tokens) == 0 {
		return nil, definitionErr(CodeEmptyCopybook, "", 0, "no declarations")
	}
	if first := tokens[0]; first.Level == ConditionLevel || !validLevel(first.Level) {
		return nil, definitionErr(CodeLevelOutOfOrder, normalizeLabel(first.Label), first.Level, "level %d cannot open a record", first.Level)
	}

	var (
		stack    []buildFrame
		roots    []*FieldDefinition
		last     *FieldDefinition
		owners   []*FieldDefinition
		pending  = make(map[*FieldDefinition][]ConditionEntry)
		conflict error
	)
	for _, tok := range tokens {
		if tok.Level == ConditionLevel {
			if last == nil {
				return nil, definitionErr(CodeLevelOutOfOrder, normalizeLabel(tok.Label), tok.Level, "condition name without a preceding field")
			}
			if _, seen := pending[last]; !seen {
				owners = append(owners, last)
			}
			pending[last] = append(pending[last], ConditionEntry{Label: tok.Label, Span: tok.Value})
			continue
		}
		node, err := NewFieldDefinition(tok)
		if err != nil {
			return nil, err
		}
		level := effectiveLevel(tok.Level)
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			if len(roots) > 0 && settings.syntheticRoot == "" {
				return nil, definitionErr(CodeMultipleRoots, node.label, tok.Level, "second top-level record after %s", roots[0].label)
			}
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1].node
			if !parent.dataType.IsGroup() {
				return nil, definitionErr(CodeLevelOutOfOrder, node.label, tok.Level, "elementary field %s cannot own subordinate fields", parent.label)
			}
			parent.children = append(parent.children, node)
		}
		stack = append(stack, buildFrame{level: level, node: node})
		last = node
	}

	for _, owner := range owners {
		merged, err := MergeConditionNames(owner.label, pending[owner])
		if err != nil {
			return nil, err
		}
		owner.conditions = merged
	}

	root := roots[0]
	if len(roots) > 1 {
		for _, record := range roots[1:] {
			if record.redefines == "" {
				record.redefines = roots[0].label
				record.implicitRedefines = true
			}
		}
		root = &FieldDefinition{
			label:    settings.syntheticRoot,
			dataType: GroupMarker(),
			children: roots,
		}
	}

	root.Walk(func(f *FieldDefinition) bool {
		if conflict == nil && f.dataType.IsGroup() && len(f.children) == 0 {
			conflict = definitionErr(CodeInvalidCharCount, f.label, f.level, "field has neither a picture nor subordinate fields")
		}
		return conflict == nil
	})
	if conflict != nil {
		return nil, conflict
	}
	return root, nil
}

func effectiveLevel(level int) int {
	if level == 77 {
		return 1
	}
	return level
}
