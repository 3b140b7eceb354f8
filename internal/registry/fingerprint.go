// File path: internal/registry/fingerprint.go
package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/nicodishanthj/Katral_copybook/internal/copybook"
)

// Fingerprint hashes the lexed token stream, so reformatting or recommenting
// a copybook keeps its fingerprint while any storage change alters it. Build
// settings are folded in because they change the resulting layout.
func Fingerprint(tokens []copybook.Token, syntheticRoot string, maxRecordLength int) string {
	hasher := sha256.New()
	write := func(parts ...string) {
		for _, part := range parts {
			_, _ = hasher.Write([]byte(part))
			_, _ = hasher.Write([]byte{0})
		}
	}
	write("root", syntheticRoot, "max", strconv.Itoa(maxRecordLength))
	for _, tok := range tokens {
		dt := tok.DataType
		write(
			strconv.Itoa(tok.Level),
			tok.Label,
			strconv.Itoa(tok.CharCount),
			dt.Kind.String(),
			strconv.Itoa(dt.Chars),
			strconv.Itoa(dt.Scale),
			strconv.FormatBool(dt.Signed),
			strconv.FormatBool(dt.SignSeparate),
			strconv.FormatBool(dt.SignLeading),
			string(dt.Usage),
			tok.Value,
			tok.Redefines,
			strconv.Itoa(tok.Occurs),
		)
		_, _ = hasher.Write([]byte{'\n'})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
