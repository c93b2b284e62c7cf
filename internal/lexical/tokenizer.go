package lexical

import "strings"

// stopwords is a compact English stop-word list. Queries reduced to nothing
// after filtering return empty results, not an error.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "had": {}, "has": {}, "have": {},
	"he": {}, "her": {}, "his": {}, "if": {}, "in": {}, "into": {}, "is": {},
	"it": {}, "its": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {},
	"our": {}, "she": {}, "so": {}, "such": {}, "than": {}, "that": {},
	"the": {}, "their": {}, "then": {}, "there": {}, "these": {}, "they": {},
	"this": {}, "to": {}, "was": {}, "we": {}, "were": {}, "will": {},
	"with": {}, "you": {}, "your": {},
}

// Tokenize lowercases text, splits on non-alphanumeric runs, and drops
// stop words and single-character tokens.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

func isAlphanumeric(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z'
}
