// File path: internal/copybook/lexer/lexer.go
package lexer

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
)

var (
	levelRe     = regexp.MustCompile(`^\d{1,2}$`)
	fixedLineRe = regexp.MustCompile(`^[0-9 ]{6}[ *\-/Dd]`)
	errScaling  = errors.New("scaling position P is not supported")
)

// SyntaxError reports a statement the lexer could not read.
type SyntaxError struct {
	Line int
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("copybook lexer: line %d: %s (%q)", e.Line, e.Msg, e.Text)
}

type sourceLine struct {
	number int
	text   string
}

type statement struct {
	line int
	text string
}

type usageFrame struct {
	level int
	usage string
}

// Lex reads copybook source and returns one token per data description entry
// in declaration order.
func Lex(ctx context.Context, source []byte) ([]copybook.Token, error) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
	stmts, err := splitStatements(normalizeSource(string(source)))
	if err != nil {
		return nil, err
	}
	var (
		tokens []copybook.Token
		groups []usageFrame
	)
	for i, st := range stmts {
		if ctx != nil && i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		entry, err := parseEntry(st)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		if entry.level == copybook.ConditionLevel {
			tokens = append(tokens, copybook.Token{Level: entry.level, Label: entry.label, Value: entry.value})
			continue
		}
		level := entry.level
		if level == 77 {
			level = 1
		}
		for len(groups) > 0 && groups[len(groups)-1].level >= level {
			groups = groups[:len(groups)-1]
		}
		usage := entry.usage
		if usage == "" && len(groups) > 0 {
			usage = groups[len(groups)-1].usage
		}
		tok, err := entry.token(usage)
		if err != nil {
			return nil, wrapDefinition(err, st, entry)
		}
		if tok.DataType.IsGroup() {
			groups = append(groups, usageFrame{level: level, usage: usage})
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// normalizeSource strips sequence areas, indicator comments and inline
// comments. Fixed format is assumed when every non-blank line carries a
// sequence area and an indicator column.
func normalizeSource(src string) []sourceLine {
	raw := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	fixed := true
	seen := false
	for _, line := range raw {
		if strings.TrimSpace(line) == "" {
			continue
		}
		seen = true
		if len(line) < 7 || !fixedLineRe.MatchString(line) {
			fixed = false
			break
		}
	}
	fixed = fixed && seen

	var out []sourceLine
	for i, line := range raw {
		number := i + 1
		if fixed {
			if len(line) <= 7 {
				continue
			}
			indicator := line[6]
			if indicator == '*' || indicator == '/' {
				continue
			}
			text := line[7:]
			if len(text) > 65 {
				text = text[:65]
			}
			if indicator == '-' && len(out) > 0 {
				cont := strings.TrimLeft(text, " ")
				if cont != "" && (cont[0] == '\'' || cont[0] == '"') {
					cont = cont[1:]
					out[len(out)-1].text = strings.TrimRight(out[len(out)-1].text, " ")
				} else {
					cont = " " + cont
				}
				out[len(out)-1].text += stripInlineComment(cont)
				continue
			}
			line = text
		} else if strings.HasPrefix(strings.TrimSpace(line), "*") && !strings.HasPrefix(strings.TrimSpace(line), "*>") {
			continue
		}
		line = stripInlineComment(line)
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, sourceLine{number: number, text: line})
	}
	return out
}

func stripInlineComment(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '*' && i+1 < len(line) && line[i+1] == '>':
			return line[:i]
		}
	}
	return line
}

// splitStatements joins lines and cuts them at periods that are followed by
// whitespace or end of input and sit outside quoted literals.
func splitStatements(lines []sourceLine) ([]statement, error) {
	var (
		out       []statement
		cur       strings.Builder
		startLine int
		quote     byte
		quoteLine int
	)
	flush := func() {
		text := strings.TrimSpace(cur.String())
		if text != "" {
			out = append(out, statement{line: startLine, text: text})
		}
		cur.Reset()
		startLine = 0
	}
	for _, line := range lines {
		text := line.text
		for i := 0; i < len(text); i++ {
			c := text[i]
			if startLine == 0 && c != ' ' && c != '\t' {
				startLine = line.number
			}
			if quote != 0 {
				cur.WriteByte(c)
				if c == quote {
					quote = 0
				}
				continue
			}
			switch {
			case c == '\'' || c == '"':
				quote = c
				quoteLine = line.number
				cur.WriteByte(c)
			case c == '.' && (i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\t'):
				flush()
			default:
				cur.WriteByte(c)
			}
		}
		if quote == 0 {
			cur.WriteByte(' ')
		}
	}
	if quote != 0 {
		return nil, &SyntaxError{Line: quoteLine, Text: strings.TrimSpace(cur.String()), Msg: "unterminated literal"}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		return nil, &SyntaxError{Line: startLine, Text: rest, Msg: "statement is not terminated by a period"}
	}
	return out, nil
}

// words splits a statement on blanks and separator commas, keeping quoted
// literals intact.
func words(text string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote byte
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			cur.WriteByte(c)
			if c == quote {
				if i+1 < len(text) && text[i+1] == quote {
					cur.WriteByte(c)
					i++
					continue
				}
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == ' ' || c == '\t' || c == ';':
			flush()
		case c == ',' && (i+1 == len(text) || text[i+1] == ' '):
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}

type entry struct {
	level        int
	label        string
	redefines    string
	picture      string
	usage        string
	occurs       int
	value        string
	signLeading  bool
	signSeparate bool
}

var usageWords = map[string]bool{
	"DISPLAY": true, "BINARY": true, "PACKED-DECIMAL": true,
	"COMP": true, "COMP-1": true, "COMP-2": true, "COMP-3": true, "COMP-4": true, "COMP-5": true,
	"COMPUTATIONAL": true, "COMPUTATIONAL-1": true, "COMPUTATIONAL-2": true,
	"COMPUTATIONAL-3": true, "COMPUTATIONAL-4": true, "COMPUTATIONAL-5": true,
	"POINTER": true, "INDEX": true, "NATIONAL": true,
}

var clauseWords = map[string]bool{
	"REDEFINES": true, "PIC": true, "PICTURE": true, "USAGE": true, "OCCURS": true,
	"VALUE": true, "VALUES": true, "SIGN": true, "LEADING": true, "TRAILING": true,
	"BLANK": true, "JUST": true, "JUSTIFIED": true, "SYNC": true, "SYNCHRONIZED": true,
	"INDEXED": true, "ASCENDING": true, "DESCENDING": true, "DEPENDING": true,
	"GLOBAL": true, "EXTERNAL": true, "RENAMES": true,
}

func isKeyword(word string) bool {
	upper := strings.ToUpper(word)
	return clauseWords[upper] || usageWords[upper]
}

// parseEntry reads one data description entry. RENAMES entries return nil.
func parseEntry(st statement) (*entry, error) {
	ws := words(st.text)
	fail := func(format string, args ...interface{}) error {
		return &SyntaxError{Line: st.line, Text: st.text, Msg: fmt.Sprintf(format, args...)}
	}
	if len(ws) == 0 || !levelRe.MatchString(ws[0]) {
		return nil, fail("expected a level number")
	}
	level, _ := strconv.Atoi(ws[0])
	if level == 66 {
		return nil, nil
	}
	e := &entry{level: level}
	i := 1
	if i < len(ws) && !isKeyword(ws[i]) {
		e.label = strings.ToUpper(ws[i])
		i++
	}
	if level == copybook.ConditionLevel {
		if e.label == "" {
			return nil, fail("condition name requires a label")
		}
		if i < len(ws) {
			upper := strings.ToUpper(ws[i])
			if upper == "VALUE" || upper == "VALUES" {
				i++
			}
		}
		for i < len(ws) && (strings.EqualFold(ws[i], "IS") || strings.EqualFold(ws[i], "ARE")) {
			i++
		}
		if i >= len(ws) {
			return nil, fail("condition %s has no values", e.label)
		}
		e.value = strings.Join(ws[i:], " ")
		return e, nil
	}
	next := func() (string, bool) {
		if i >= len(ws) {
			return "", false
		}
		w := ws[i]
		i++
		return w, true
	}
	peek := func() string {
		if i >= len(ws) {
			return ""
		}
		return strings.ToUpper(ws[i])
	}
	skip := func(optional ...string) {
		for _, o := range optional {
			if peek() == o {
				i++
			}
		}
	}
	// skipNames consumes identifiers up to the next clause keyword.
	skipNames := func() {
		for i < len(ws) && !isKeyword(ws[i]) {
			i++
		}
	}
	for i < len(ws) {
		word, _ := next()
		upper := strings.ToUpper(word)
		switch {
		case upper == "REDEFINES":
			target, ok := next()
			if !ok {
				return nil, fail("REDEFINES requires a target")
			}
			e.redefines = strings.ToUpper(target)
		case upper == "PIC" || upper == "PICTURE":
			skip("IS")
			pic, ok := next()
			if !ok {
				return nil, fail("%s requires a picture string", upper)
			}
			e.picture = pic
		case upper == "USAGE":
			skip("IS")
			u, ok := next()
			if !ok {
				return nil, fail("USAGE requires a format")
			}
			e.usage = strings.ToUpper(u)
		case usageWords[upper]:
			e.usage = upper
		case upper == "OCCURS":
			n, ok := next()
			count, err := strconv.Atoi(n)
			if !ok || err != nil || count <= 0 {
				return nil, fail("OCCURS requires a positive count")
			}
			if peek() == "TO" {
				i++
				m, _ := next()
				limit, err := strconv.Atoi(m)
				if err != nil || limit < count {
					return nil, fail("OCCURS %d TO requires a larger maximum", count)
				}
				count = limit
			}
			skip("TIMES")
			e.occurs = count
		case upper == "DEPENDING":
			skip("ON")
			if _, ok := next(); !ok {
				return nil, fail("DEPENDING ON requires a field")
			}
		case upper == "ASCENDING" || upper == "DESCENDING":
			skip("KEY", "IS")
			skipNames()
		case upper == "INDEXED":
			skip("BY")
			skipNames()
		case upper == "VALUE" || upper == "VALUES":
			skip("IS", "ARE")
			start := i
			skipNames()
			if start == i {
				return nil, fail("VALUE requires a literal")
			}
			e.value = strings.Join(ws[start:i], " ")
		case upper == "SIGN":
			skip("IS")
			switch peek() {
			case "LEADING":
				e.signLeading = true
			case "TRAILING":
			default:
				return nil, fail("SIGN requires LEADING or TRAILING")
			}
			i++
			e.signSeparate = readSeparate(peek, &i)
		case upper == "LEADING":
			e.signLeading = true
			e.signSeparate = readSeparate(peek, &i)
		case upper == "TRAILING":
			e.signSeparate = readSeparate(peek, &i)
		case upper == "BLANK":
			skip("WHEN")
			if p := peek(); p == "ZERO" || p == "ZEROS" || p == "ZEROES" {
				i++
			}
		case upper == "JUST" || upper == "JUSTIFIED":
			skip("RIGHT")
		case upper == "SYNC" || upper == "SYNCHRONIZED":
			skip("LEFT", "RIGHT")
		case upper == "GLOBAL" || upper == "EXTERNAL":
		case upper == "IS":
		default:
			return nil, fail("unexpected word %q", word)
		}
	}
	return e, nil
}

func readSeparate(peek func() string, i *int) bool {
	if peek() != "SEPARATE" {
		return false
	}
	*i++
	if peek() == "CHARACTER" {
		*i++
	}
	return true
}

// token resolves the entry's data type with the effective usage.
func (e *entry) token(usage string) (copybook.Token, error) {
	tok := copybook.Token{
		Level:     e.level,
		Label:     e.label,
		Value:     e.value,
		Redefines: e.redefines,
		Occurs:    e.occurs,
	}
	if e.picture == "" {
		dt, err := copybook.ResolveDataType(copybook.Picture{}, usage, 0)
		if err != nil {
			return tok, err
		}
		tok.DataType = dt
		return tok, nil
	}
	info, err := parsePicture(e.picture)
	if err != nil {
		return tok, err
	}
	pic := info.picture
	pic.SignLeading = e.signLeading
	pic.SignSeparate = e.signSeparate && pic.Signed
	dt, err := copybook.ResolveDataType(pic, usage, info.chars)
	if err != nil {
		return tok, err
	}
	tok.CharCount = info.chars
	tok.DataType = dt
	return tok, nil
}

// wrapDefinition attaches the entry's label and level to resolver errors and
// turns picture problems into syntax errors.
func wrapDefinition(err error, st statement, e *entry) error {
	label := e.label
	if label == "" {
		label = copybook.FillerLabel
	}
	var defErr *copybook.DefinitionError
	if errors.As(err, &defErr) {
		out := *defErr
		out.Label = label
		out.Level = e.level
		return &out
	}
	if errors.Is(err, errScaling) {
		return &copybook.DefinitionError{Code: copybook.CodeInvalidCharCount, Label: label, Level: e.level, Msg: err.Error()}
	}
	return &SyntaxError{Line: st.line, Text: st.text, Msg: err.Error()}
}
