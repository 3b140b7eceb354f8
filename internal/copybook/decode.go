// File path: internal/copybook/decode.go
package copybook

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
)

// Encoding selects how character data is stored in records.
type Encoding int

const (
	EncodingASCII Encoding = iota
	EncodingEBCDIC
)

// ParseEncoding accepts "ascii" or "ebcdic" (also "cp037").
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "ascii":
		return EncodingASCII, nil
	case "ebcdic", "cp037":
		return EncodingEBCDIC, nil
	default:
		return 0, fmt.Errorf("copybook: unknown encoding %q", name)
	}
}

func (e Encoding) String() string {
	if e == EncodingEBCDIC {
		return "ebcdic"
	}
	return "ascii"
}

// ValueKind tells which member of a Value is populated.
type ValueKind int

const (
	ValueText ValueKind = iota
	ValueInteger
	ValueDecimal
)

// Value is one decoded field value. Numeric kinds always populate Decimal.
type Value struct {
	Kind    ValueKind
	Text    string
	Int     int64
	Decimal decimal.Decimal
}

// IsNumeric reports whether the value came from a numeric field.
func (v Value) IsNumeric() bool { return v.Kind != ValueText }

// Interface returns the value in a JSON-friendly form.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case ValueInteger:
		return v.Int
	case ValueDecimal:
		return json.Number(v.Decimal.String())
	default:
		return v.Text
	}
}

func (v Value) String() string {
	switch v.Kind {
	case ValueInteger:
		return strconv.FormatInt(v.Int, 10)
	case ValueDecimal:
		return v.Decimal.String()
	default:
		return v.Text
	}
}

// DecodeOption adjusts a Decoder.
type DecodeOption func(*Decoder)

// WithEncoding sets the character encoding of text and display numeric data.
func WithEncoding(enc Encoding) DecodeOption {
	return func(d *Decoder) {
		d.encoding = enc
	}
}

// WithNativeByteOrder sets the byte order of COMP-5 fields. COMP, COMP-4 and
// BINARY fields are always big-endian.
func WithNativeByteOrder(order binary.ByteOrder) DecodeOption {
	return func(d *Decoder) {
		if order != nil {
			d.native = order
		}
	}
}

// Decoder decodes raw records against one layout. It holds no per-record
// state, so a single Decoder may be used from many goroutines.
type Decoder struct {
	layout     *Layout
	encoding   Encoding
	native     binary.ByteOrder
	conditions [][]conditionMatcher
	alternate  []bool
}

// NewDecoder prepares condition matchers and REDEFINES bookkeeping for layout.
func NewDecoder(layout *Layout, opts ...DecodeOption) *Decoder {
	d := &Decoder{layout: layout, native: binary.BigEndian}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	d.conditions = make([][]conditionMatcher, len(layout.fields))
	d.alternate = make([]bool, len(layout.fields))
	for i, f := range layout.fields {
		d.conditions[i] = compileConditions(f.Definition.conditions)
		if f.Definition.redefines == "" {
			continue
		}
		d.alternate[i] = true
		if f.Parent < 0 {
			continue
		}
		for _, sib := range layout.fields[f.Parent].Children {
			if sib == i {
				break
			}
			if layout.fields[sib].Definition.label == f.Definition.redefines {
				d.alternate[sib] = true
				break
			}
		}
	}
	for i, f := range layout.fields {
		if f.Parent >= 0 && d.alternate[f.Parent] {
			d.alternate[i] = true
		}
	}
	return d
}

// Layout returns the layout the decoder was built for.
func (d *Decoder) Layout() *Layout { return d.layout }

// DecodeRecord decodes raw with a one-off Decoder.
func DecodeRecord(layout *Layout, raw []byte, opts ...DecodeOption) (*DecodedRecord, error) {
	return NewDecoder(layout, opts...).Decode(raw)
}

// Decode extracts every elementary field of raw. A length mismatch fails the
// whole record with no result. Field-level failures are recorded on the field;
// failures outside REDEFINES views are also joined into the returned error,
// which then accompanies a non-nil record.
func (d *Decoder) Decode(raw []byte) (*DecodedRecord, error) {
	if len(raw) != d.layout.length {
		return nil, decodeErr(CodeRecordLengthMismatch, "", -1, "record is %d bytes, layout expects %d", len(raw), d.layout.length)
	}
	rec := newDecodedRecord()
	root := d.layout.fields[0]
	value := d.decodeNode(rec, 0, 0, root.Path, raw)
	if root.Definition.IsGroup() {
		if m, ok := value.(map[string]interface{}); ok {
			rec.tree = m
		}
	} else if !root.Definition.IsFiller() {
		rec.tree[root.Definition.label] = value
	}
	if len(rec.errs) > 0 {
		return rec, errors.Join(rec.errs...)
	}
	return rec, nil
}

func (d *Decoder) decodeNode(rec *DecodedRecord, idx, shift int, path string, raw []byte) interface{} {
	rf := d.layout.fields[idx]
	if !rf.Definition.HasOccurs() {
		return d.decodeOnce(rec, idx, shift, path, raw)
	}
	items := make([]interface{}, rf.Occurs)
	frags := make([]*DecodedRecord, rf.Occurs)
	for i := 0; i < rf.Occurs; i++ {
		occPath := path + "(" + strconv.Itoa(i+1) + ")"
		start := len(rec.fields)
		items[i] = d.decodeOnce(rec, idx, shift+i*rf.Length, occPath, raw)
		frags[i] = rec.fragment(start, occPath, rf.Definition.label, items[i])
	}
	rec.occurrences[path] = frags
	return items
}

func (d *Decoder) decodeOnce(rec *DecodedRecord, idx, shift int, path string, raw []byte) interface{} {
	rf := d.layout.fields[idx]
	offset := rf.Offset + shift
	span := raw[offset : offset+rf.Length]
	if rf.Definition.IsGroup() {
		group := make(map[string]interface{}, len(rf.Children))
		for _, c := range rf.Children {
			child := d.layout.fields[c]
			value := d.decodeNode(rec, c, shift, childPath(path, child.Definition.label, rf.Depth), raw)
			if !child.Definition.IsFiller() {
				group[child.Definition.label] = value
			}
		}
		if matchers := d.conditions[idx]; len(matchers) > 0 {
			text := d.text(span)
			rec.addConditions(path, matchConditions(matchers, Value{Kind: ValueText, Text: text}, text, span))
		}
		return group
	}
	if rf.Definition.IsFiller() {
		return nil
	}
	value, text, err := d.decodeElementary(rf.Definition.dataType, span, offset, path)
	field := DecodedField{Path: path, Label: rf.Definition.label, Offset: offset, Value: value, Err: err}
	if err == nil {
		field.Conditions = matchConditions(d.conditions[idx], value, text, span)
	} else if !d.alternate[idx] {
		rec.errs = append(rec.errs, err)
	}
	rec.add(field)
	if err != nil {
		return nil
	}
	return value.Interface()
}

func matchConditions(matchers []conditionMatcher, v Value, text string, raw []byte) []string {
	var matched []string
	for _, m := range matchers {
		if m.match(v, text, raw) {
			matched = append(matched, m.label)
		}
	}
	return matched
}

func (d *Decoder) decodeElementary(dt DataType, span []byte, offset int, path string) (Value, string, error) {
	switch dt.Kind {
	case KindAlphanumeric:
		text := d.text(span)
		return Value{Kind: ValueText, Text: strings.TrimRight(text, " ")}, text, nil
	case KindNumericDisplay, KindZonedDecimal:
		text := d.displayText(span)
		digits, negative, bad := parseDisplay(dt, text)
		if bad >= 0 {
			return Value{}, text, decodeErr(CodeInvalidDigit, path, offset+bad, "byte 0x%02X is not a digit", span[bad])
		}
		v := numericValue(digitsToBig(digits, negative), dt.Scale)
		return v, text, nil
	case KindPackedDecimal:
		digits, negative, bad := parsePacked(span)
		if bad >= 0 {
			return Value{}, "", decodeErr(CodeInvalidNibble, path, offset+bad/2, "nibble %d of byte 0x%02X is invalid", bad%2, span[bad/2])
		}
		v := numericValue(digitsToBig(digits, negative), dt.Scale)
		return v, v.String(), nil
	case KindBinaryInteger:
		order := binary.ByteOrder(binary.BigEndian)
		if dt.Usage == UsageNative {
			order = d.native
		}
		v := numericValue(parseBinary(span, dt.Signed, order), dt.Scale)
		return v, v.String(), nil
	default:
		return Value{}, "", fmt.Errorf("copybook: %s has no elementary decoding", dt.Kind)
	}
}

// displayText translates one byte to one character so indexes line up with
// the raw span; characters outside ASCII become 0xFF and fail digit checks.
func (d *Decoder) displayText(b []byte) string {
	if d.encoding != EncodingEBCDIC {
		return string(b)
	}
	out := make([]byte, len(b))
	for i, c := range b {
		r := charmap.CodePage037.DecodeByte(c)
		if r > 0x7F {
			out[i] = 0xFF
			continue
		}
		out[i] = byte(r)
	}
	return string(out)
}

func (d *Decoder) text(b []byte) string {
	if d.encoding != EncodingEBCDIC {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(charmap.CodePage037.DecodeByte(c))
	}
	return sb.String()
}
