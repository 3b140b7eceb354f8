// File path: internal/copybook/lexer/lexer_test.go
package lexer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
)

const customerCopybook = `
      * customer master record
       01  CUSTOMER-REC.
           05  CUST-ID          PIC 9(6).
           05  CUST-NAME        PIC X(20).
           05  CUST-STATE       PIC XX.
               88  IN-ILLINOIS  VALUE 'IL'.
               88  WEST-COAST   VALUES 'CA' 'OR' 'WA'.
           05  BALANCE          PIC S9(7)V99 COMP-3.
           05  FILLER           PIC X(3).
`

func TestLexFixedFormat(t *testing.T) {
	tokens, err := Lex(context.Background(), []byte(customerCopybook))
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	if len(tokens) != 8 {
		t.Fatalf("expected 8 tokens, got %d: %v", len(tokens), tokens)
	}
	if tokens[0].Level != 1 || tokens[0].Label != "CUSTOMER-REC" || !tokens[0].DataType.IsGroup() {
		t.Fatalf("unexpected record token %v", tokens[0])
	}
	if tokens[1].DataType.Kind != copybook.KindNumericDisplay || tokens[1].CharCount != 6 {
		t.Fatalf("unexpected CUST-ID token %v", tokens[1])
	}
	if tokens[3].Label != "CUST-STATE" || tokens[3].CharCount != 2 {
		t.Fatalf("unexpected CUST-STATE token %v", tokens[3])
	}
	if tokens[5].Level != 88 || tokens[5].Value != "'CA' 'OR' 'WA'" {
		t.Fatalf("unexpected condition token %v", tokens[5])
	}
	bal := tokens[6].DataType
	if bal.Kind != copybook.KindPackedDecimal || bal.Chars != 9 || bal.Scale != 2 || !bal.Signed {
		t.Fatalf("unexpected BALANCE type %s", bal)
	}
	if tokens[7].Label != "FILLER" {
		t.Fatalf("expected FILLER token, got %v", tokens[7])
	}
}

func TestLexFreeFormatAndComments(t *testing.T) {
	src := "01 REC. *> record\n" +
		"   05 NAME PIC X(4).\n" +
		"* full line comment\n" +
		"   05 AGE PICTURE IS 9(3).\n"
	tokens, err := Lex(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %v", tokens)
	}
	if tokens[2].Label != "AGE" || tokens[2].CharCount != 3 {
		t.Fatalf("unexpected AGE token %v", tokens[2])
	}
}

func TestLexSequenceAreaIsIgnored(t *testing.T) {
	src := fmt.Sprintf("%-72s%s\n", "000100 01  REC.", "CUST0001") +
		fmt.Sprintf("%-72s%s\n", "000200     05  CODE  PIC X(2).", "CUST0002") +
		fmt.Sprintf("%-72s%s\n", "000300*    05  OLD   PIC X(9).", "CUST0003")
	tokens, err := Lex(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	if len(tokens) != 2 || tokens[1].Label != "CODE" {
		t.Fatalf("unexpected tokens %v", tokens)
	}
}

func TestLexClauses(t *testing.T) {
	src := `
01 ORDER-REC.
   05 ORDER-TYPE PIC X VALUE 'N'.
   05 LINE-COUNT PIC 9(2) COMP.
   05 LINES OCCURS 1 TO 5 TIMES DEPENDING ON LINE-COUNT INDEXED BY LX.
      10 SKU PIC X(8).
      10 AMOUNT PIC S9(5)V99 SIGN IS LEADING SEPARATE CHARACTER.
   05 ALT-LINES REDEFINES LINES PIC X(85).
   05 TOTALS USAGE IS COMP-3.
      10 GROSS PIC S9(9)V99.
      10 NET PIC S9(9)V99 JUSTIFIED RIGHT.
   05 PRINT-AMT PIC ZZ,ZZ9.99CR BLANK WHEN ZERO.
   66 ALIAS RENAMES ORDER-TYPE.
`
	tokens, err := Lex(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	byLabel := make(map[string]copybook.Token, len(tokens))
	for _, tok := range tokens {
		byLabel[tok.Label] = tok
	}
	if _, ok := byLabel["ALIAS"]; ok {
		t.Fatalf("RENAMES entries must be skipped")
	}
	if tok := byLabel["ORDER-TYPE"]; tok.Value != "'N'" {
		t.Fatalf("unexpected VALUE %q", tok.Value)
	}
	if tok := byLabel["LINE-COUNT"]; tok.DataType.Kind != copybook.KindBinaryInteger {
		t.Fatalf("expected binary LINE-COUNT, got %s", tok.DataType)
	}
	if tok := byLabel["LINES"]; tok.Occurs != 5 || !tok.DataType.IsGroup() {
		t.Fatalf("expected LINES to occur 5 times, got %v", tok)
	}
	amount := byLabel["AMOUNT"].DataType
	if amount.Kind != copybook.KindNumericDisplay || !amount.SignSeparate || !amount.SignLeading {
		t.Fatalf("unexpected AMOUNT type %+v", amount)
	}
	if tok := byLabel["ALT-LINES"]; tok.Redefines != "LINES" {
		t.Fatalf("unexpected REDEFINES %q", tok.Redefines)
	}
	if gross := byLabel["GROSS"].DataType; gross.Kind != copybook.KindPackedDecimal {
		t.Fatalf("expected GROSS to inherit COMP-3, got %s", gross)
	}
	if edited := byLabel["PRINT-AMT"]; edited.DataType.Kind != copybook.KindAlphanumeric || edited.CharCount != 11 {
		t.Fatalf("expected edited picture as text of width 11, got %v", edited)
	}
}

func TestLexErrors(t *testing.T) {
	var syntaxErr *SyntaxError
	_, err := Lex(context.Background(), []byte("01 REC.\n   05 NAME PIC X(4)\n"))
	if !errors.As(err, &syntaxErr) {
		t.Fatalf("expected syntax error for missing period, got %v", err)
	}
	_, err = Lex(context.Background(), []byte("01 REC.\n   05 NAME PIC X(4) VALUE 'ABC.\n"))
	if !errors.As(err, &syntaxErr) || syntaxErr.Msg != "unterminated literal" {
		t.Fatalf("expected unterminated literal, got %v", err)
	}
	_, err = Lex(context.Background(), []byte("REC PIC X.\n"))
	if !errors.As(err, &syntaxErr) || syntaxErr.Line != 1 {
		t.Fatalf("expected missing level on line 1, got %v", err)
	}
	_, err = Lex(context.Background(), []byte("01 REC.\n 05 AMT PIC 9(3)PP.\n"))
	if !errors.Is(err, copybook.ErrInvalidCharCount) {
		t.Fatalf("expected InvalidCharCount for P picture, got %v", err)
	}
	_, err = Lex(context.Background(), []byte("01 REC.\n 05 RATE COMP-2.\n"))
	var defErr *copybook.DefinitionError
	if !errors.As(err, &defErr) || defErr.Code != copybook.CodeUnsupportedUsage || defErr.Label != "RATE" {
		t.Fatalf("expected UnsupportedUsage on RATE, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Lex(ctx, []byte("01 REC PIC X.")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestParsePicture(t *testing.T) {
	cases := []struct {
		pic      string
		category copybook.Category
		chars    int
		scale    int
		signed   bool
	}{
		{"X(10)", copybook.CategoryAlphanumeric, 10, 0, false},
		{"AAX", copybook.CategoryAlphanumeric, 3, 0, false},
		{"S9(4)V9(2)", copybook.CategoryNumeric, 6, 2, true},
		{"9V99", copybook.CategoryNumeric, 3, 2, false},
		{"$$,$$9.99", copybook.CategoryAlphanumeric, 9, 0, false},
		{"XX99", copybook.CategoryAlphanumeric, 4, 0, false},
	}
	for _, tc := range cases {
		info, err := parsePicture(tc.pic)
		if err != nil {
			t.Fatalf("%s: %v", tc.pic, err)
		}
		if info.picture.Category != tc.category || info.chars != tc.chars || info.picture.Scale != tc.scale || info.picture.Signed != tc.signed {
			t.Fatalf("%s: unexpected picture %+v chars %d", tc.pic, info.picture, info.chars)
		}
	}
	for _, bad := range []string{"", "9(0)", "X(3", "9S9", "9V9V9", "Q"} {
		if _, err := parsePicture(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func compile(t *testing.T, src string) *copybook.Layout {
	t.Helper()
	tokens, err := Lex(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("lex: %v", err)
	}
	root, err := copybook.Build(tokens)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	layout, err := copybook.ResolveLayout(root)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	return layout
}

func TestLexedCopybookDecodes(t *testing.T) {
	layout := compile(t, "01 REC.\n 05 NAME PIC X(4).\n 05 AGE PIC 9(3).\n")
	rec, err := copybook.DecodeRecord(layout, []byte("JOHN025"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f, _ := rec.Get("NAME"); f.Value.Text != "JOHN" {
		t.Fatalf("unexpected NAME %s", f.Value)
	}
	if f, _ := rec.Get("AGE"); f.Value.Int != 25 {
		t.Fatalf("unexpected AGE %s", f.Value)
	}

	layout = compile(t, "01 STATE PIC X(2).\n 88 IL VALUE 'IL'.\n 88 WEST VALUE 'CA' 'OR'.\n")
	rec, err = copybook.DecodeRecord(layout, []byte("CA"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f, _ := rec.Get("STATE"); len(f.Conditions) != 1 || f.Conditions[0] != "WEST" {
		t.Fatalf("unexpected conditions %v", f.Conditions)
	}

	layout = compile(t, "01 R.\n 05 A PIC X(4).\n 05 B REDEFINES A PIC 9(4).\n")
	if layout.Length() != 4 {
		t.Fatalf("expected redefined record of 4 bytes, got %d", layout.Length())
	}
	layout = compile(t, "01 AMT PIC S9(5) COMP-3.\n")
	if layout.Length() != 3 {
		t.Fatalf("expected 3 byte packed field, got %d", layout.Length())
	}
}
