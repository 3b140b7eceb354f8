// File path: internal/copybook/condition.go
package copybook

import (
	"strings"

	"github.com/shopspring/decimal"
)

type figurative int

const (
	figNone figurative = iota
	figSpaces
	figZeros
	figLowValues
	figHighValues
)

type literal struct {
	text     string
	number   decimal.Decimal
	isNumber bool
	quoted   bool
	all      bool
	figure   figurative
}

type conditionItem struct {
	low     literal
	high    literal
	isRange bool
}

type conditionMatcher struct {
	label string
	items []conditionItem
}

// compileConditions parses each level-88 span once. Spans that cannot be
// parsed compile to a matcher that never matches.
func compileConditions(m *FieldValueMap) []conditionMatcher {
	if m.Len() == 0 {
		return nil
	}
	out := make([]conditionMatcher, 0, m.Len())
	for _, entry := range m.Entries() {
		items, ok := parseConditionSpan(entry.Span)
		if !ok {
			items = nil
		}
		out = append(out, conditionMatcher{label: entry.Label, items: items})
	}
	return out
}

func parseConditionSpan(span string) ([]conditionItem, bool) {
	words, ok := splitSpan(span)
	if !ok {
		return nil, false
	}
	var items []conditionItem
	for i := 0; i < len(words); i++ {
		w := words[i]
		upper := strings.ToUpper(w)
		if upper == "IS" || upper == "ARE" || upper == "VALUE" || upper == "VALUES" {
			continue
		}
		all := false
		if upper == "ALL" && i+1 < len(words) {
			all = true
			i++
			w = words[i]
		}
		low := parseLiteral(w)
		low.all = all
		if i+2 < len(words) {
			next := strings.ToUpper(words[i+1])
			if next == "THRU" || next == "THROUGH" {
				items = append(items, conditionItem{low: low, high: parseLiteral(words[i+2]), isRange: true})
				i += 2
				continue
			}
		}
		items = append(items, conditionItem{low: low})
	}
	return items, len(items) > 0
}

// splitSpan breaks a span on blanks and commas, keeping quoted literals whole.
// Doubled quotes inside a literal stand for one quote.
func splitSpan(span string) ([]string, bool) {
	var (
		words []string
		cur   strings.Builder
		quote byte
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(span); i++ {
		c := span[i]
		if quote != 0 {
			cur.WriteByte(c)
			if c == quote {
				if i+1 < len(span) && span[i+1] == quote {
					i++
					continue
				}
				quote = 0
				flush()
			}
			continue
		}
		switch c {
		case '\'', '"':
			flush()
			quote = c
			cur.WriteByte(c)
		case ' ', '\t', ',', '\n', '\r':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	if quote != 0 {
		return nil, false
	}
	flush()
	return words, true
}

func parseLiteral(word string) literal {
	if len(word) >= 2 && (word[0] == '\'' || word[0] == '"') {
		q := string(word[0])
		body := word[1 : len(word)-1]
		return literal{text: strings.ReplaceAll(body, q+q, q), quoted: true}
	}
	switch strings.ToUpper(word) {
	case "SPACE", "SPACES":
		return literal{figure: figSpaces}
	case "ZERO", "ZEROS", "ZEROES":
		return literal{figure: figZeros, number: decimal.Zero, isNumber: true}
	case "LOW-VALUE", "LOW-VALUES":
		return literal{figure: figLowValues}
	case "HIGH-VALUE", "HIGH-VALUES":
		return literal{figure: figHighValues}
	}
	if d, err := decimal.NewFromString(word); err == nil {
		return literal{text: word, number: d, isNumber: true}
	}
	return literal{text: word}
}

// match reports whether the decoded field satisfies any item of the matcher.
// text is the field's decoded text before trimming and raw its bytes.
func (c conditionMatcher) match(v Value, text string, raw []byte) bool {
	for _, item := range c.items {
		if item.isRange {
			if rangeMatch(item, v, text) {
				return true
			}
			continue
		}
		if literalMatch(item.low, v, text, raw) {
			return true
		}
	}
	return false
}

func literalMatch(lit literal, v Value, text string, raw []byte) bool {
	switch lit.figure {
	case figSpaces:
		return strings.TrimRight(text, " ") == ""
	case figLowValues:
		return allBytes(raw, 0x00)
	case figHighValues:
		return allBytes(raw, 0xFF)
	case figZeros:
		if v.IsNumeric() {
			return v.Decimal.IsZero()
		}
		return text != "" && strings.Trim(text, "0") == ""
	}
	if lit.all && lit.text != "" {
		return text != "" && strings.ReplaceAll(text, lit.text, "") == ""
	}
	if v.IsNumeric() && lit.isNumber && !lit.quoted {
		return v.Decimal.Equal(lit.number)
	}
	return compareText(text, lit.text) == 0
}

func rangeMatch(item conditionItem, v Value, text string) bool {
	if v.IsNumeric() && item.low.isNumber && item.high.isNumber {
		return v.Decimal.GreaterThanOrEqual(item.low.number) && v.Decimal.LessThanOrEqual(item.high.number)
	}
	return compareText(text, item.low.text) >= 0 && compareText(text, item.high.text) <= 0
}

// compareText compares two strings after padding the shorter one with spaces.
func compareText(a, b string) int {
	if len(a) < len(b) {
		a += strings.Repeat(" ", len(b)-len(a))
	} else if len(b) < len(a) {
		b += strings.Repeat(" ", len(a)-len(b))
	}
	return strings.Compare(a, b)
}

func allBytes(raw []byte, want byte) bool {
	if len(raw) == 0 {
		return false
	}
	for _, b := range raw {
		if b != want {
			return false
		}
	}
	return true
}
