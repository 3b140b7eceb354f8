// File path: internal/copybook/numeric.go
package copybook

import (
	"encoding/binary"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

type signedDigit struct {
	digit    byte
	negative bool
}

// overpunch maps the last (or first, for SIGN LEADING) character of a zoned
// field onto its digit and sign. EBCDIC input is translated to text before it
// reaches this table, so C0-C9/D0-D9 zones land on the same characters.
var overpunch = func() map[byte]signedDigit {
	m := make(map[byte]signedDigit, 40)
	for d := byte(0); d <= 9; d++ {
		m['0'+d] = signedDigit{digit: d}
		m['p'+d] = signedDigit{digit: d, negative: true}
	}
	m['{'] = signedDigit{digit: 0}
	m['}'] = signedDigit{digit: 0, negative: true}
	for d := byte(1); d <= 9; d++ {
		m['A'+d-1] = signedDigit{digit: d}
		m['J'+d-1] = signedDigit{digit: d, negative: true}
	}
	return m
}()

// parseDisplay decodes NumericDisplay and ZonedDecimal text into an unscaled
// digit string plus sign. bad is the index of the first invalid character.
func parseDisplay(dt DataType, text string) (digits string, negative bool, bad int) {
	b := []byte(text)
	switch {
	case dt.Kind == KindNumericDisplay && dt.SignSeparate:
		signIdx := len(b) - 1
		if dt.SignLeading {
			signIdx = 0
		}
		switch b[signIdx] {
		case '+':
		case '-':
			negative = true
		default:
			return "", false, signIdx
		}
		if dt.SignLeading {
			b = b[1:]
		} else {
			b = b[:len(b)-1]
		}
		if i := firstNonDigit(b); i >= 0 {
			if dt.SignLeading {
				i++
			}
			return "", false, i
		}
		return string(b), negative, -1
	case dt.Kind == KindZonedDecimal:
		signIdx := len(b) - 1
		if dt.SignLeading {
			signIdx = 0
		}
		entry, ok := overpunch[b[signIdx]]
		if !ok {
			return "", false, signIdx
		}
		out := make([]byte, len(b))
		copy(out, b)
		out[signIdx] = '0' + entry.digit
		if i := firstNonDigit(out); i >= 0 {
			return "", false, i
		}
		return string(out), entry.negative, -1
	default:
		if i := firstNonDigit(b); i >= 0 {
			return "", false, i
		}
		return string(b), false, -1
	}
}

func firstNonDigit(b []byte) int {
	for i, c := range b {
		if c < '0' || c > '9' {
			return i
		}
	}
	return -1
}

// parsePacked decodes packed decimal bytes. The last nibble is the sign: C, A,
// E and F are positive, D and B negative. bad is the nibble index of the first
// invalid nibble.
func parsePacked(raw []byte) (digits string, negative bool, bad int) {
	if len(raw) == 0 {
		return "", false, 0
	}
	var sb strings.Builder
	sb.Grow(len(raw) * 2)
	last := len(raw)*2 - 1
	for i := 0; i < last; i++ {
		nibble := raw[i/2] >> 4
		if i%2 == 1 {
			nibble = raw[i/2] & 0x0F
		}
		if nibble > 9 {
			return "", false, i
		}
		sb.WriteByte('0' + nibble)
	}
	switch raw[len(raw)-1] & 0x0F {
	case 0x0C, 0x0A, 0x0E, 0x0F:
	case 0x0D, 0x0B:
		negative = true
	default:
		return "", false, last
	}
	return sb.String(), negative, -1
}

// parseBinary interprets raw as a two's complement (signed) or unsigned
// integer in the given byte order.
func parseBinary(raw []byte, signed bool, order binary.ByteOrder) *big.Int {
	buf := make([]byte, 8)
	if order == binary.LittleEndian {
		for i, b := range raw {
			buf[7-i] = b
		}
	} else {
		copy(buf[8-len(raw):], raw)
	}
	if signed && len(raw) > 0 {
		msb := raw[0]
		if order == binary.LittleEndian {
			msb = raw[len(raw)-1]
		}
		if msb&0x80 != 0 {
			for i := 0; i < 8-len(raw); i++ {
				buf[i] = 0xFF
			}
		}
	}
	u := binary.BigEndian.Uint64(buf)
	if signed {
		return big.NewInt(int64(u))
	}
	return new(big.Int).SetUint64(u)
}

// numericValue builds an integer or decimal value from unscaled digits.
func numericValue(unscaled *big.Int, scale int) Value {
	if scale == 0 && unscaled.IsInt64() {
		n := unscaled.Int64()
		return Value{Kind: ValueInteger, Int: n, Decimal: decimal.NewFromInt(n)}
	}
	return Value{Kind: ValueDecimal, Decimal: decimal.NewFromBigInt(unscaled, int32(-scale))}
}

func digitsToBig(digits string, negative bool) *big.Int {
	n, ok := new(big.Int).SetString(strings.TrimLeft(digits, "0"), 10)
	if !ok {
		n = new(big.Int)
	}
	if negative {
		n.Neg(n)
	}
	return n
}
