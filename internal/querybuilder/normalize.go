// Package querybuilder turns book titles and authors into mention-search
// fragments and packs them into length-bounded OR-queries.
package querybuilder

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// StopWords are removed only when they stand alone as a word.
var StopWords = []string{"a", "an", "the", "dr", "mr", "mrs", "prof", "msgr", "rev", "rt", "sr", "jr", "phd", "lcsw", "esq"}

const encodedSpace = "%20"

var (
	bracketed = regexp.MustCompile(`\(.*?\)|<.*?>`)
	nonWord   = regexp.MustCompile(`[^\p{L}\p{N}_]+`)
	stopSet   = toSet(StopWords)
)

// Clean lowercases text and strips stop words, bracketed asides and
// punctuation. Stop words are stripped before and again after punctuation
// removal so "A. A. Milne" and "A A Milne" clean to the same words; the
// order matters and the second pass must stay.
func Clean(text string) string {
	s := norm.NFC.String(strings.ToLower(text))
	s = stripStopWords(s)
	s = bracketed.ReplaceAllString(s, " ")
	s = nonWord.ReplaceAllString(s, " ")
	s = stripStopWords(s)
	return strings.Join(strings.Fields(s), " ")
}

// Encode turns cleaned text into a parenthesised, URL-encoded fragment.
func Encode(clean string) string {
	return "(" + strings.ReplaceAll(clean, " ", encodedSpace) + ")"
}

// Fragment cleans and encodes text in one step.
func Fragment(text string) string {
	return Encode(Clean(text))
}

// Words splits an encoded fragment back into its words.
func Words(fragment string) []string {
	inner := strings.TrimSuffix(strings.TrimPrefix(fragment, "("), ")")
	if inner == "" {
		return nil
	}
	return strings.Split(inner, encodedSpace)
}

func stripStopWords(s string) string {
	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if _, stop := stopSet[f]; stop {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
