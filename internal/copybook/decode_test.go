// File path: internal/copybook/decode_test.go
package copybook

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func personLayout(t *testing.T) *Layout {
	return mustLayout(t, []Token{
		groupTok(1, "REC"),
		textTok(t, 5, "NAME", 4),
		numTok(t, 5, "AGE", 3, "", Picture{}),
	})
}

func TestDecodeRecordDisplayFields(t *testing.T) {
	rec, err := DecodeRecord(personLayout(t), []byte("JOHN025"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	name, ok := rec.Get("NAME")
	if !ok || name.Value.Text != "JOHN" || name.Offset != 0 {
		t.Fatalf("unexpected NAME %+v", name)
	}
	age, ok := rec.Get("age")
	if !ok || age.Value.Kind != ValueInteger || age.Value.Int != 25 || age.Offset != 4 {
		t.Fatalf("unexpected AGE %+v", age)
	}
	want := map[string]interface{}{"NAME": "JOHN", "AGE": int64(25)}
	if !reflect.DeepEqual(rec.Map(), want) {
		t.Fatalf("unexpected map %v", rec.Map())
	}
}

func TestDecodeRecordConditions(t *testing.T) {
	l := mustLayout(t, []Token{
		textTok(t, 1, "STATE", 2),
		condTok("IL", "'IL'"),
		condTok("WEST", "'CA' 'OR'"),
	})
	rec, err := DecodeRecord(l, []byte("IL"))
	if err != nil {
		t.Fatalf("decode IL: %v", err)
	}
	state, _ := rec.Get("STATE")
	if !reflect.DeepEqual(state.Conditions, []string{"IL"}) {
		t.Fatalf("expected IL, got %v", state.Conditions)
	}
	rec, err = DecodeRecord(l, []byte("CA"))
	if err != nil {
		t.Fatalf("decode CA: %v", err)
	}
	state, _ = rec.Get("STATE")
	if !reflect.DeepEqual(state.Conditions, []string{"WEST"}) {
		t.Fatalf("expected WEST, got %v", state.Conditions)
	}
	rec, err = DecodeRecord(l, []byte("NY"))
	if err != nil {
		t.Fatalf("decode NY: %v", err)
	}
	state, _ = rec.Get("STATE")
	if len(state.Conditions) != 0 || len(rec.Conditions()) != 0 {
		t.Fatalf("expected no conditions, got %v", state.Conditions)
	}
}

func TestDecodeRecordConditionRangesAndFiguratives(t *testing.T) {
	l := mustLayout(t, []Token{
		groupTok(1, "REC"),
		numTok(t, 5, "CODE", 2, "", Picture{}),
		condTok("LOW", "1 THRU 10"),
		condTok("HIGH", "50 THROUGH 99"),
		textTok(t, 5, "FLAG", 3),
		condTok("EMPTY", "SPACES"),
		condTok("STARS", "ALL '*'"),
	})
	rec, err := DecodeRecord(l, []byte("07   "))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string][]string{"CODE": {"LOW"}, "FLAG": {"EMPTY"}}
	if !reflect.DeepEqual(rec.Conditions(), want) {
		t.Fatalf("unexpected conditions %v", rec.Conditions())
	}
	rec, err = DecodeRecord(l, []byte("75***"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want = map[string][]string{"CODE": {"HIGH"}, "FLAG": {"STARS"}}
	if !reflect.DeepEqual(rec.Conditions(), want) {
		t.Fatalf("unexpected conditions %v", rec.Conditions())
	}
}

func TestDecodeRecordLengthMismatch(t *testing.T) {
	rec, err := DecodeRecord(personLayout(t), []byte("JOHN"))
	if rec != nil {
		t.Fatalf("expected no record on length mismatch")
	}
	if !errors.Is(err, ErrRecordLengthMismatch) {
		t.Fatalf("expected RecordLengthMismatch, got %v", err)
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) || decErr.Offset != -1 {
		t.Fatalf("expected record-level decode error, got %v", err)
	}
}

func TestDecodeRecordInvalidDigit(t *testing.T) {
	rec, err := DecodeRecord(personLayout(t), []byte("JOHN0A5"))
	if !errors.Is(err, ErrInvalidDigit) {
		t.Fatalf("expected InvalidDigit, got %v", err)
	}
	var decErr *DecodeError
	if !errors.As(err, &decErr) || decErr.Path != "AGE" || decErr.Offset != 5 {
		t.Fatalf("expected error at AGE offset 5, got %v", err)
	}
	if rec == nil {
		t.Fatalf("expected partial record alongside field error")
	}
	if name, _ := rec.Get("NAME"); name.Value.Text != "JOHN" {
		t.Fatalf("expected NAME to decode despite AGE failure")
	}
	if msgs := rec.Errors(); len(msgs) != 1 || msgs["AGE"] == "" {
		t.Fatalf("unexpected errors %v", msgs)
	}
	if v, ok := rec.Map()["AGE"]; !ok || v != nil {
		t.Fatalf("expected failed AGE to map to nil, got %v", v)
	}
}

func TestDecodeRecordPackedDecimal(t *testing.T) {
	l := mustLayout(t, []Token{
		groupTok(1, "REC"),
		numTok(t, 5, "COUNT", 5, "COMP-3", Picture{Signed: true}),
		numTok(t, 5, "AMOUNT", 5, "COMP-3", Picture{Signed: true, Scale: 2}),
	})
	rec, err := DecodeRecord(l, []byte{0x12, 0x34, 0x5C, 0x12, 0x34, 0x5D})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	count, _ := rec.Get("COUNT")
	if count.Value.Kind != ValueInteger || count.Value.Int != 12345 {
		t.Fatalf("unexpected COUNT %+v", count.Value)
	}
	amount, _ := rec.Get("AMOUNT")
	if amount.Value.Kind != ValueDecimal || amount.Value.Decimal.String() != "-123.45" {
		t.Fatalf("unexpected AMOUNT %s", amount.Value)
	}

	_, err = DecodeRecord(l, []byte{0x1A, 0x34, 0x5C, 0x12, 0x34, 0x5C})
	var decErr *DecodeError
	if !errors.As(err, &decErr) || decErr.Code != CodeInvalidNibble || decErr.Offset != 0 {
		t.Fatalf("expected InvalidNibble at offset 0, got %v", err)
	}
	_, err = DecodeRecord(l, []byte{0x12, 0x34, 0x5C, 0x12, 0x34, 0x57})
	if !errors.As(err, &decErr) || decErr.Code != CodeInvalidNibble || decErr.Path != "AMOUNT" || decErr.Offset != 5 {
		t.Fatalf("expected InvalidNibble in AMOUNT sign, got %v", err)
	}
}

func TestDecodeRecordBinary(t *testing.T) {
	l := mustLayout(t, []Token{
		groupTok(1, "REC"),
		numTok(t, 5, "SIGNED", 4, "COMP", Picture{Signed: true}),
		numTok(t, 5, "UNSIGNED", 4, "BINARY", Picture{}),
		numTok(t, 5, "NATIVE", 4, "COMP-5", Picture{Signed: true}),
	})
	raw := []byte{0xFF, 0xFE, 0xFF, 0xFE, 0x01, 0x00}
	rec, err := DecodeRecord(l, raw, WithNativeByteOrder(binary.LittleEndian))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f, _ := rec.Get("SIGNED"); f.Value.Int != -2 {
		t.Fatalf("expected -2, got %s", f.Value)
	}
	if f, _ := rec.Get("UNSIGNED"); f.Value.Int != 65534 {
		t.Fatalf("expected 65534, got %s", f.Value)
	}
	if f, _ := rec.Get("NATIVE"); f.Value.Int != 1 {
		t.Fatalf("expected 1 in little-endian order, got %s", f.Value)
	}
	rec, err = DecodeRecord(l, raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f, _ := rec.Get("NATIVE"); f.Value.Int != 256 {
		t.Fatalf("expected 256 in big-endian order, got %s", f.Value)
	}
}

func TestDecodeRecordZonedAndSeparateSign(t *testing.T) {
	lead := numTok(t, 5, "LEAD", 3, "", Picture{Signed: true, SignSeparate: true, SignLeading: true})
	l := mustLayout(t, []Token{
		groupTok(1, "REC"),
		numTok(t, 5, "ZONED", 3, "", Picture{Signed: true}),
		numTok(t, 5, "TRAIL", 3, "", Picture{Signed: true, SignSeparate: true}),
		lead,
	})
	rec, err := DecodeRecord(l, []byte("12}045+-007"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for path, want := range map[string]int64{"ZONED": -120, "TRAIL": 45, "LEAD": -7} {
		if f, _ := rec.Get(path); f.Value.Int != want {
			t.Fatalf("%s: expected %d, got %s", path, want, f.Value)
		}
	}
	rec, err = DecodeRecord(l, []byte("12C045+-007"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f, _ := rec.Get("ZONED"); f.Value.Int != 123 {
		t.Fatalf("expected 123, got %s", f.Value)
	}
}

func TestDecodeRecordEBCDIC(t *testing.T) {
	l := mustLayout(t, []Token{
		groupTok(1, "REC"),
		textTok(t, 5, "NAME", 4),
		numTok(t, 5, "AGE", 3, "", Picture{}),
		numTok(t, 5, "DELTA", 3, "", Picture{Signed: true}),
	})
	raw := []byte{0xD1, 0xD6, 0xC8, 0xD5, 0xF0, 0xF2, 0xF5, 0xF1, 0xF2, 0xD0}
	rec, err := DecodeRecord(l, raw, WithEncoding(EncodingEBCDIC))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]interface{}{"NAME": "JOHN", "AGE": int64(25), "DELTA": int64(-120)}
	if !reflect.DeepEqual(rec.Map(), want) {
		t.Fatalf("unexpected map %v", rec.Map())
	}
	raw[5] = 0x4B
	_, err = DecodeRecord(l, raw, WithEncoding(EncodingEBCDIC))
	var decErr *DecodeError
	if !errors.As(err, &decErr) || decErr.Code != CodeInvalidDigit || decErr.Offset != 5 {
		t.Fatalf("expected InvalidDigit at offset 5, got %v", err)
	}
}

func TestDecodeRecordOccurs(t *testing.T) {
	l := mustLayout(t, []Token{
		groupTok(1, "ORDER"),
		textTok(t, 5, "ID", 2),
		{Level: 5, Label: "ITEMS", DataType: GroupMarker(), Occurs: 3},
		textTok(t, 10, "CODE", 2),
		numTok(t, 10, "QTY", 1, "", Picture{}),
		textTok(t, 5, "FILLER", 1),
	})
	rec, err := DecodeRecord(l, []byte("O1AA1BB2CC3 "))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f, ok := rec.Get("ITEMS(2).CODE"); !ok || f.Value.Text != "BB" || f.Offset != 5 {
		t.Fatalf("unexpected ITEMS(2).CODE %+v", f)
	}
	if f, ok := rec.Get("ITEMS(3).QTY"); !ok || f.Value.Int != 3 || f.Offset != 10 {
		t.Fatalf("unexpected ITEMS(3).QTY %+v", f)
	}
	if rec.Len() != 7 {
		t.Fatalf("expected 7 decoded fields without FILLER, got %d", rec.Len())
	}
	frags := rec.Occurrences("ITEMS")
	if len(frags) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(frags))
	}
	if f, ok := frags[0].Get("CODE"); !ok || f.Value.Text != "AA" {
		t.Fatalf("unexpected first occurrence %+v", frags[0].Fields())
	}
	if !reflect.DeepEqual(frags[2].Map(), map[string]interface{}{"CODE": "CC", "QTY": int64(3)}) {
		t.Fatalf("unexpected fragment map %v", frags[2].Map())
	}
	items, ok := rec.Map()["ITEMS"].([]interface{})
	if !ok || len(items) != 3 {
		t.Fatalf("expected ITEMS slice, got %v", rec.Map()["ITEMS"])
	}
	if _, ok := rec.Map()["FILLER"]; ok {
		t.Fatalf("FILLER must not appear in decoded output")
	}
}

func TestDecodeRecordNestedOccurs(t *testing.T) {
	l := mustLayout(t, []Token{
		groupTok(1, "GRID"),
		{Level: 5, Label: "ROW", DataType: GroupMarker(), Occurs: 2},
		func() Token {
			tok := numTok(t, 10, "CELL", 1, "", Picture{})
			tok.Occurs = 3
			return tok
		}(),
	})
	rec, err := DecodeRecord(l, []byte("123456"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f, ok := rec.Get("ROW(2).CELL(1)"); !ok || f.Value.Int != 4 || f.Offset != 3 {
		t.Fatalf("unexpected ROW(2).CELL(1) %+v", f)
	}
	rows := rec.Occurrences("ROW")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	cells := rows[1].Occurrences("CELL")
	if len(cells) != 3 {
		t.Fatalf("expected nested occurrences on the row fragment, got %d", len(cells))
	}
	if f, ok := cells[2].Get("CELL"); !ok || f.Value.Int != 6 {
		t.Fatalf("unexpected last cell %+v", cells[2].Fields())
	}
}

func TestDecodeRecordRedefinesIsolatesErrors(t *testing.T) {
	view := numTok(t, 5, "B", 4, "", Picture{})
	view.Redefines = "A"
	l := mustLayout(t, []Token{groupTok(1, "R"), textTok(t, 5, "A", 4), view})

	rec, err := DecodeRecord(l, []byte("1234"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a, _ := rec.Get("A"); a.Value.Text != "1234" {
		t.Fatalf("unexpected A %s", a.Value)
	}
	if b, _ := rec.Get("B"); b.Value.Int != 1234 {
		t.Fatalf("unexpected B %s", b.Value)
	}

	rec, err = DecodeRecord(l, []byte("ABCD"))
	if err != nil {
		t.Fatalf("a view that does not fit the data must not fail the record: %v", err)
	}
	b, _ := rec.Get("B")
	if !errors.Is(b.Err, ErrInvalidDigit) {
		t.Fatalf("expected InvalidDigit on B, got %v", b.Err)
	}
	if a, _ := rec.Get("A"); a.Value.Text != "ABCD" || a.Err != nil {
		t.Fatalf("unexpected A %+v", a)
	}
}

func TestDecoderIsDeterministic(t *testing.T) {
	dec := NewDecoder(personLayout(t))
	first, err := dec.Decode([]byte("MARY101"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	second, err := dec.Decode([]byte("MARY101"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(first.Fields(), second.Fields()) || !reflect.DeepEqual(first.Map(), second.Map()) {
		t.Fatalf("decoding the same bytes twice must produce the same record")
	}
}

func TestParseEncoding(t *testing.T) {
	if enc, err := ParseEncoding("CP037"); err != nil || enc != EncodingEBCDIC {
		t.Fatalf("expected ebcdic, got %v (%v)", enc, err)
	}
	if enc, err := ParseEncoding(""); err != nil || enc != EncodingASCII {
		t.Fatalf("expected ascii default, got %v (%v)", enc, err)
	}
	if _, err := ParseEncoding("utf-16"); err == nil {
		t.Fatalf("expected error for unknown encoding")
	}
}
