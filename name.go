package observable

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Normalize folds an event description into its canonical event name.
//
// Surrounding whitespace is trimmed, every run of whitespace or hyphens
// followed by a letter is removed and that letter upper-cased, and the first
// character is lower-cased:
//
//	Normalize("Event Happened")  // "eventHappened"
//	Normalize("event-Happened")  // "eventHappened"
//	Normalize("eventHappened")   // "eventHappened"
//
// Separators not followed by a letter are kept. Normalize is idempotent.
func Normalize(description string) string {
	s := strings.TrimSpace(description)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if !isSeparator(r) {
			b.WriteRune(r)
			continue
		}
		j := i
		for j < len(runes) && isSeparator(runes[j]) {
			j++
		}
		if j < len(runes) && unicode.IsLetter(runes[j]) {
			b.WriteRune(unicode.ToUpper(runes[j]))
			i = j
			continue
		}
		b.WriteString(string(runes[i:j]))
		i = j - 1
	}

	out := b.String()
	first, size := utf8.DecodeRuneInString(out)
	return string(unicode.ToLower(first)) + out[size:]
}

func isSeparator(r rune) bool {
	return r == '-' || unicode.IsSpace(r)
}
