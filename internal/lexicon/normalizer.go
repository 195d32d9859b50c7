package lexicon

import (
	"regexp"
	"sort"
	"strings"

	"github.com/orderline/orderline/internal/catalog"
)

// Normalizer rewrites raw utterances into canonical domain vocabulary using
// the catalog's alias table. Normalization is idempotent: canonical text maps
// to itself, and unmatched tokens pass through unchanged.
type Normalizer struct {
	provider catalog.Provider
}

func New(provider catalog.Provider) *Normalizer {
	return &Normalizer{provider: provider}
}

var spaceRe = regexp.MustCompile(`\s+`)

// Normalize returns the canonicalized text and the aliases that matched.
func (n *Normalizer) Normalize(raw string) (string, []string) {
	text := strings.ToLower(strings.TrimSpace(raw))
	text = spaceRe.ReplaceAllString(text, " ")

	aliases := n.provider.Aliases()
	keys := make([]string, 0, len(aliases))
	for k := range aliases {
		keys = append(keys, k)
	}
	// Longest alias first so "a couple of" wins over "a couple".
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	var matched []string
	for _, alias := range keys {
		canonical := aliases[alias]
		if alias == canonical {
			continue
		}
		replaced, hit := replaceWord(text, alias, canonical)
		if hit {
			text = replaced
			matched = append(matched, alias)
		}
	}
	return text, matched
}

// replaceWord substitutes alias with canonical on word boundaries only.
func replaceWord(text, alias, canonical string) (string, bool) {
	var b strings.Builder
	hit := false
	for {
		idx := indexWord(text, alias)
		if idx < 0 {
			b.WriteString(text)
			break
		}
		hit = true
		b.WriteString(text[:idx])
		b.WriteString(canonical)
		text = text[idx+len(alias):]
	}
	return b.String(), hit
}

func indexWord(text, phrase string) int {
	from := 0
	for {
		off := strings.Index(text[from:], phrase)
		if off < 0 {
			return -1
		}
		start := from + off
		end := start + len(phrase)
		beforeOK := start == 0 || !isWordChar(text[start-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return start
		}
		from = start + 1
		if from >= len(text) {
			return -1
		}
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
