// File path: internal/copybook/datatype.go
package copybook

import (
	"fmt"
	"strings"
)

// Kind is the closed set of storage formats a field can use.
type Kind int

const (
	KindGroup Kind = iota
	KindAlphanumeric
	KindNumericDisplay
	KindZonedDecimal
	KindPackedDecimal
	KindBinaryInteger
)

func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "GroupMarker"
	case KindAlphanumeric:
		return "Alphanumeric"
	case KindNumericDisplay:
		return "NumericDisplay"
	case KindZonedDecimal:
		return "ZonedDecimal"
	case KindPackedDecimal:
		return "PackedDecimal"
	case KindBinaryInteger:
		return "BinaryInteger"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Category is the picture clause class of a field.
type Category int

const (
	CategoryNone Category = iota
	CategoryAlphanumeric
	CategoryNumeric
)

// Picture carries the parts of a PIC clause that influence storage.
type Picture struct {
	Category     Category
	Signed       bool
	Scale        int
	SignSeparate bool
	SignLeading  bool
}

// Usage names a physical storage format after normalization.
type Usage string

const (
	UsageDisplay Usage = "DISPLAY"
	UsageBinary  Usage = "COMP"
	UsageNative  Usage = "COMP-5"
	UsagePacked  Usage = "COMP-3"
)

var usageAliases = map[string]Usage{
	"":                UsageDisplay,
	"DISPLAY":         UsageDisplay,
	"COMP":            UsageBinary,
	"COMPUTATIONAL":   UsageBinary,
	"COMP-4":          UsageBinary,
	"COMPUTATIONAL-4": UsageBinary,
	"BINARY":          UsageBinary,
	"COMP-5":          UsageNative,
	"COMPUTATIONAL-5": UsageNative,
	"COMP-3":          UsagePacked,
	"COMPUTATIONAL-3": UsagePacked,
	"PACKED-DECIMAL":  UsagePacked,
}

// NormalizeUsage maps a usage clause spelling onto a known storage format.
func NormalizeUsage(clause string) (Usage, bool) {
	u, ok := usageAliases[strings.ToUpper(strings.TrimSpace(clause))]
	return u, ok
}

// binarySizes lists the fixed binary widths with the most decimal digits each
// can always hold.
var binarySizes = []struct {
	bytes  int
	digits int
}{
	{1, 2},
	{2, 4},
	{4, 9},
	{8, 18},
}

// DataType is a resolved storage format. Chars is the declared character count
// (the digit count for numeric pictures). It is a value type; copies are
// independent.
type DataType struct {
	Kind         Kind
	Chars        int
	Scale        int
	Signed       bool
	SignSeparate bool
	SignLeading  bool
	Usage        Usage
}

// GroupMarker is the data type of container fields.
func GroupMarker() DataType {
	return DataType{Kind: KindGroup, Usage: UsageDisplay}
}

// ResolveDataType converts a picture category, usage clause and declared
// character count into a DataType.
func ResolveDataType(pic Picture, usage string, charCount int) (DataType, error) {
	u, ok := NormalizeUsage(usage)
	if !ok {
		return DataType{}, definitionErr(CodeUnsupportedUsage, "", 0, "usage %q has no storage format", strings.TrimSpace(usage))
	}
	if pic.Category == CategoryNone {
		return DataType{Kind: KindGroup, Usage: u}, nil
	}
	if charCount <= 0 {
		return DataType{}, definitionErr(CodeInvalidCharCount, "", 0, "character count %d must be positive", charCount)
	}
	dt := DataType{Chars: charCount, Usage: u}
	if pic.Category == CategoryAlphanumeric {
		if u != UsageDisplay {
			return DataType{}, definitionErr(CodeUnsupportedUsage, "", 0, "usage %s is not valid for alphanumeric data", u)
		}
		dt.Kind = KindAlphanumeric
		return dt, nil
	}
	if pic.Scale < 0 || pic.Scale > charCount {
		return DataType{}, definitionErr(CodeInvalidCharCount, "", 0, "scale %d outside %d digits", pic.Scale, charCount)
	}
	dt.Scale = pic.Scale
	dt.Signed = pic.Signed
	switch u {
	case UsageDisplay:
		dt.SignLeading = pic.Signed && pic.SignLeading
		if pic.Signed && !pic.SignSeparate {
			dt.Kind = KindZonedDecimal
		} else {
			dt.Kind = KindNumericDisplay
			dt.SignSeparate = pic.Signed
		}
	case UsagePacked:
		dt.Kind = KindPackedDecimal
	case UsageBinary, UsageNative:
		if binaryWidth(charCount) == 0 {
			return DataType{}, definitionErr(CodeDigitCountTooLarge, "", 0, "%d digits exceed the widest binary field", charCount)
		}
		dt.Kind = KindBinaryInteger
	}
	return dt, nil
}

func binaryWidth(digits int) int {
	for _, size := range binarySizes {
		if digits <= size.digits {
			return size.bytes
		}
	}
	return 0
}

// IsGroup reports whether the type defers its size to child fields.
func (d DataType) IsGroup() bool { return d.Kind == KindGroup }

// ByteLength returns the storage width of one occurrence. ok is false for
// GroupMarker, whose width is the sum of its children.
func (d DataType) ByteLength() (n int, ok bool) {
	switch d.Kind {
	case KindAlphanumeric, KindZonedDecimal:
		return d.Chars, true
	case KindNumericDisplay:
		if d.SignSeparate {
			return d.Chars + 1, true
		}
		return d.Chars, true
	case KindPackedDecimal:
		return d.Chars/2 + 1, true
	case KindBinaryInteger:
		return binaryWidth(d.Chars), true
	default:
		return 0, false
	}
}

func (d DataType) String() string {
	if d.Kind == KindGroup {
		return d.Kind.String()
	}
	var b strings.Builder
	b.WriteString(d.Kind.String())
	b.WriteString("(")
	if d.Signed {
		b.WriteString("S")
	}
	fmt.Fprintf(&b, "%d", d.Chars-d.Scale)
	if d.Scale > 0 {
		fmt.Fprintf(&b, "V%d", d.Scale)
	}
	b.WriteString(")")
	return b.String()
}
