// Package resolve maps raw attribute descriptors onto catalog options. When a
// descriptor fits more than one option equally well it defers instead of
// guessing, handing the candidate list back so the caller can ask.
package resolve

import (
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/orderline/orderline/internal/catalog"
	"github.com/orderline/orderline/internal/order"
)

// Result is the outcome of resolving one descriptor.
type Result struct {
	// Value is the resolved option slug; empty when the match deferred or
	// found nothing.
	Value string
	// Candidates holds two or more options when the descriptor was
	// ambiguous, ordered most similar first.
	Candidates []order.Candidate
}

func (r Result) Resolved() bool  { return r.Value != "" }
func (r Result) Ambiguous() bool { return len(r.Candidates) > 1 }

// Resolve matches raw against the slot's options through successively looser
// tiers: exact display name, exact slug or alias, first-word prefix, then
// substring containment. The first tier that matches anything decides; a tier
// with a single hit resolves, a tier with several defers.
func Resolve(raw string, schema catalog.SlotSchema) Result {
	needle := clean(raw)
	if needle == "" {
		return Result{}
	}

	tiers := []func(string, catalog.AttributeOption) bool{
		func(n string, o catalog.AttributeOption) bool {
			return n == strings.ToLower(o.DisplayName) || hasAlias(n, o)
		},
		func(n string, o catalog.AttributeOption) bool {
			return n == o.Slug || n == strings.ReplaceAll(o.Slug, "_", " ")
		},
		func(n string, o catalog.AttributeOption) bool {
			first := firstWord(strings.ToLower(o.DisplayName))
			return first != "" && firstWord(n) == first
		},
		func(n string, o catalog.AttributeOption) bool {
			return strings.Contains(strings.ToLower(o.DisplayName), n) ||
				containsAnyWord(strings.ToLower(o.DisplayName), n)
		},
	}

	for _, match := range tiers {
		var hits []catalog.AttributeOption
		for _, opt := range schema.Options {
			if match(needle, opt) {
				hits = append(hits, opt)
			}
		}
		switch len(hits) {
		case 0:
			continue
		case 1:
			return Result{Value: hits[0].Slug}
		default:
			return Result{Candidates: orderBySimilarity(needle, hits)}
		}
	}
	return Result{}
}

// ResolveAmong matches raw against a previously offered candidate list, used
// when answering a "which one did you mean" question.
func ResolveAmong(raw string, candidates []order.Candidate) Result {
	needle := clean(raw)
	if needle == "" {
		return Result{Candidates: candidates}
	}
	var hits []order.Candidate
	for _, c := range candidates {
		dn := strings.ToLower(c.DisplayName)
		if needle == dn || needle == c.Slug ||
			strings.Contains(dn, needle) || containsAnyWord(dn, needle) {
			hits = append(hits, c)
		}
	}
	switch len(hits) {
	case 1:
		return Result{Value: hits[0].Slug}
	case 0:
		return Result{Candidates: candidates}
	default:
		sort.SliceStable(hits, func(i, j int) bool {
			return similarity(needle, strings.ToLower(hits[i].DisplayName)) >
				similarity(needle, strings.ToLower(hits[j].DisplayName))
		})
		return Result{Candidates: hits}
	}
}

func orderBySimilarity(needle string, hits []catalog.AttributeOption) []order.Candidate {
	out := make([]order.Candidate, 0, len(hits))
	for _, o := range hits {
		out = append(out, order.Candidate{Slug: o.Slug, DisplayName: o.DisplayName})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return similarity(needle, strings.ToLower(out[i].DisplayName)) >
			similarity(needle, strings.ToLower(out[j].DisplayName))
	})
	return out
}

func similarity(a, b string) float64 {
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

func clean(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, ".,!?")
	for _, prefix := range []string{"the ", "a ", "an ", "some "} {
		s = strings.TrimPrefix(s, prefix)
	}
	s = strings.TrimSuffix(s, " one")
	return strings.TrimSpace(s)
}

func hasAlias(needle string, opt catalog.AttributeOption) bool {
	for _, a := range opt.Aliases {
		if needle == strings.ToLower(a) {
			return true
		}
	}
	return false
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// containsAnyWord reports whether any word of needle appears as a whole word
// in haystack ("walnut" inside "honey walnut cream cheese").
func containsAnyWord(haystack, needle string) bool {
	hay := strings.Fields(haystack)
	for _, w := range strings.Fields(needle) {
		if len(w) <= 2 {
			continue
		}
		for _, h := range hay {
			if h == w {
				return true
			}
		}
	}
	return false
}
