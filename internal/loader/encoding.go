package loader

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var codePages = map[string]*charmap.Charmap{
	"1250":   charmap.Windows1250,
	"1251":   charmap.Windows1251,
	"1252":   charmap.Windows1252,
	"1253":   charmap.Windows1253,
	"1254":   charmap.Windows1254,
	"1257":   charmap.Windows1257,
	"437":    charmap.CodePage437,
	"850":    charmap.CodePage850,
	"866":    charmap.CodePage866,
	"88591":  charmap.ISO8859_1,
	"88592":  charmap.ISO8859_2,
	"885915": charmap.ISO8859_15,
	"LATIN1": charmap.ISO8859_1,
}

// decoderFor returns the attribute text decoder named by a .cpg file.
// Without one, text that is not valid UTF-8 is read as Latin-1.
func decoderFor(cpgPath string) (func(string) string, string) {
	data, err := os.ReadFile(cpgPath)
	if errors.Is(err, os.ErrNotExist) {
		return fallbackDecode, ""
	}
	if err != nil {
		return fallbackDecode, fmt.Sprintf("unreadable .cpg file: %v", err)
	}

	name := normalizeCodePage(string(data))
	if name == "UTF8" || name == "" {
		return fallbackDecode, ""
	}
	cm, ok := codePages[name]
	if !ok {
		return fallbackDecode, fmt.Sprintf("unknown code page %q; reading attributes as UTF-8", strings.TrimSpace(string(data)))
	}
	return decodeWith(cm.NewDecoder()), ""
}

func normalizeCodePage(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)
	for _, prefix := range []string{"WINDOWS", "ANSI", "CP", "ISO", "IBM"} {
		s = strings.TrimPrefix(s, prefix)
	}
	return s
}

func decodeWith(d *encoding.Decoder) func(string) string {
	return func(s string) string {
		out, err := d.String(s)
		if err != nil {
			return s
		}
		return out
	}
}

func fallbackDecode(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return s
	}
	return out
}
