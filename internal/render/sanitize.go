package render

import (
	"strings"
	"unicode"

	"github.com/anyascii/go"
)

var punctuation = strings.NewReplacer(
	"\u2018", "'", "\u2019", "'", "\u201A", ",", "\u201B", "'",
	"\u201C", "\"", "\u201D", "\"", "\u201E", "\"", "\u201F", "\"",
	"\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-", "\u2015", "-", "\u2212", "-",
	"\u2026", "...",
	"\u00A0", " ", "\u2007", " ", "\u2009", " ", "\u202F", " ", "\u3000", " ",
	"\u200B", "", "\uFEFF", "",
	"\u2022", "-", "\u00B7", "-",
	"\r\n", "\n", "\r", "\n", "\t", " ",
)

// cp1252 characters above Latin-1 that the core fonts can draw.
var cp1252Extras = map[rune]bool{
	'€': true, 'ƒ': true, '†': true, '‡': true, 'ˆ': true, '‰': true, 'Š': true,
	'‹': true, 'Œ': true, 'Ž': true, '˜': true, '™': true, 'š': true, '›': true,
	'œ': true, 'ž': true, 'Ÿ': true,
}

// Encodable reports whether r can be drawn with a core font.
func Encodable(r rune) bool {
	switch {
	case r == '\n':
		return true
	case r < 0x20 || r == 0x7F:
		return false
	case r < 0x80:
		return true
	case r >= 0xA0 && r <= 0xFF:
		return true
	default:
		return cp1252Extras[r]
	}
}

// Sanitize maps typographic punctuation to ASCII and replaces every
// character the core fonts cannot draw with its ASCII transliteration,
// dropping it when there is none.
func Sanitize(s string) string {
	s = punctuation.Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if Encodable(r) {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Mn, r) {
			continue
		}
		if t := anyascii.Transliterate(string(r)); isPrintableASCII(t) {
			b.WriteString(t)
		}
	}
	return b.String()
}

func isPrintableASCII(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return false
		}
	}
	return true
}
