// File path: internal/copybook/lexer/picture.go
package lexer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
)

var repeatRe = regexp.MustCompile(`(.)\((\d+)\)`)

// pictureInfo is a parsed PIC string: the category handed to the type
// resolver plus the character count it declares.
type pictureInfo struct {
	picture copybook.Picture
	chars   int
}

// expandPicture rewrites c(n) repetitions as n copies of c.
func expandPicture(pic string) (string, error) {
	var expandErr error
	out := repeatRe.ReplaceAllStringFunc(pic, func(m string) string {
		parts := repeatRe.FindStringSubmatch(m)
		n, err := strconv.Atoi(parts[2])
		if err != nil || n <= 0 {
			expandErr = fmt.Errorf("bad repetition %q", m)
			return ""
		}
		return strings.Repeat(parts[1], n)
	})
	if expandErr != nil {
		return "", expandErr
	}
	if strings.ContainsAny(out, "()") {
		return "", fmt.Errorf("unbalanced repetition in %q", pic)
	}
	return out, nil
}

// parsePicture classifies a picture string. Edited numeric pictures are
// treated as text of their printed width.
func parsePicture(raw string) (pictureInfo, error) {
	pic, err := expandPicture(strings.ToUpper(strings.TrimSpace(raw)))
	if err != nil {
		return pictureInfo{}, err
	}
	if pic == "" {
		return pictureInfo{}, fmt.Errorf("empty picture")
	}
	edited := false
	if strings.HasSuffix(pic, "CR") || strings.HasSuffix(pic, "DB") {
		edited = true
	}
	var (
		text, digits, width, scale int
		signed, afterPoint         bool
	)
	for i := 0; i < len(pic); i++ {
		c := pic[i]
		switch c {
		case 'X', 'A':
			text++
			width++
		case '9':
			digits++
			width++
			if afterPoint {
				scale++
			}
		case 'S':
			if i != 0 {
				return pictureInfo{}, fmt.Errorf("S must lead the picture %q", raw)
			}
			signed = true
		case 'V':
			if afterPoint {
				return pictureInfo{}, fmt.Errorf("picture %q has two decimal points", raw)
			}
			afterPoint = true
		case 'P':
			return pictureInfo{}, errScaling
		case 'Z', '*', '+', '-', '.', ',', '$', 'B', '0', '/':
			edited = true
			width++
		case 'C', 'R', 'D':
			if !edited {
				return pictureInfo{}, fmt.Errorf("unexpected %q in picture %q", c, raw)
			}
			width++
		default:
			return pictureInfo{}, fmt.Errorf("unexpected %q in picture %q", c, raw)
		}
	}
	switch {
	case edited, text > 0:
		return pictureInfo{picture: copybook.Picture{Category: copybook.CategoryAlphanumeric}, chars: width}, nil
	case digits == 0:
		return pictureInfo{}, fmt.Errorf("picture %q declares no positions", raw)
	default:
		return pictureInfo{
			picture: copybook.Picture{Category: copybook.CategoryNumeric, Signed: signed, Scale: scale},
			chars:   digits,
		}, nil
	}
}
