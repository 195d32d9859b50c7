package parse

import (
	"sort"
	"strconv"
	"strings"
)

// wordToNum maps spoken quantity phrases to integers. Unrecognized quantity
// words default to 1 at the call sites.
var wordToNum = map[string]int{
	"a": 1, "an": 1, "one": 1,
	"two": 2, "couple": 2, "a couple": 2, "a couple of": 2, "couple of": 2,
	"three": 3, "a few": 3, "few": 3,
	"four": 4,
	"five": 5,
	"six":  6, "half dozen": 6, "half a dozen": 6, "a half dozen": 6,
	"seven":  7,
	"eight":  8,
	"nine":   9,
	"ten":    10,
	"eleven": 11,
	"twelve": 12, "dozen": 12, "a dozen": 12,
}

var quantityPhrases = func() []string {
	phrases := make([]string, 0, len(wordToNum))
	for p := range wordToNum {
		phrases = append(phrases, p)
	}
	sort.Slice(phrases, func(i, j int) bool { return len(phrases[i]) > len(phrases[j]) })
	return phrases
}()

// leadingQuantity extracts a quantity from the start of a segment and returns
// the remainder. "two plain bagels" -> 2, "plain bagels".
func leadingQuantity(segment string) (int, string) {
	n, rest, ok := leadingQuantityExplicit(segment)
	if !ok {
		return 1, rest
	}
	return n, rest
}

// leadingQuantityExplicit is leadingQuantity with an explicitness flag: it
// reports whether the segment actually began with a quantity word.
func leadingQuantityExplicit(segment string) (int, string, bool) {
	s := strings.TrimSpace(segment)
	if digits, rest, ok := leadingDigits(s); ok {
		return digits, rest, true
	}
	for _, phrase := range quantityPhrases {
		if strings.HasPrefix(s, phrase+" ") {
			return wordToNum[phrase], strings.TrimSpace(s[len(phrase):]), true
		}
	}
	return 1, s, false
}

func leadingDigits(s string) (int, string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, s, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil || n < 1 {
		return 0, s, false
	}
	return n, strings.TrimSpace(s[i:]), true
}

// quantityWord converts a standalone quantity token; defaults to 1.
func quantityWord(s string) int {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil && n >= 1 {
		return n
	}
	if n, ok := wordToNum[s]; ok {
		return n
	}
	return 1
}
