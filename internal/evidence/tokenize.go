package evidence

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// minTokenLen drops tokens shorter than two characters.
const minTokenLen = 2

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an and are as at be but by for if in into is it
		no not of on or such that the their then there these they
		this to was will with we you your our from have has had`) {
		stopwords[w] = struct{}{}
	}
}

// IsStopword reports whether the token is ignored for scoring.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

// Tokenize normalises text (NFKC, case fold) and splits it on runs of
// characters that are neither letters nor digits. Short tokens and
// stopwords are dropped.
func Tokenize(text string) []string {
	folded := cases.Fold().String(norm.NFKC.String(text))
	parts := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	out := parts[:0]
	for _, tok := range parts {
		if utf8.RuneCountInString(tok) < minTokenLen || IsStopword(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}
