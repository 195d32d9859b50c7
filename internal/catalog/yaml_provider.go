package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a catalog document.
type File struct {
	Settings  Settings            `yaml:"settings"`
	Aliases   map[string]string   `yaml:"aliases"`
	Responses map[string][]string `yaml:"responses"`
	Items     []*Item             `yaml:"items"`
}

// YAMLProvider serves a catalog loaded from a YAML file. Reload is safe to
// call concurrently with lookups; a turn in flight keeps reading the snapshot
// it started with.
type YAMLProvider struct {
	path string

	mu    sync.RWMutex
	state *providerState
}

type providerState struct {
	settings  Settings
	aliases   map[string]string
	responses map[string]map[string]struct{}
	items     []*Item
	byName    map[string]*Item
	// phrases is every matchable phrase (canonical names and aliases),
	// longest first, each mapped to its item.
	phrases []phraseEntry
}

type phraseEntry struct {
	phrase string
	item   *Item
}

func NewYAMLProvider(path string) (*YAMLProvider, error) {
	p := &YAMLProvider{path: path}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-reads the catalog file and swaps the lookup state atomically.
func (p *YAMLProvider) Reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read catalog %s: %w", p.path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse catalog %s: %w", p.path, err)
	}
	state, err := buildState(&f)
	if err != nil {
		return fmt.Errorf("invalid catalog %s: %w", p.path, err)
	}

	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
	return nil
}

func buildState(f *File) (*providerState, error) {
	st := &providerState{
		settings:  f.Settings,
		aliases:   map[string]string{},
		responses: map[string]map[string]struct{}{},
		items:     f.Items,
		byName:    map[string]*Item{},
	}
	for alias, canonical := range f.Aliases {
		st.aliases[strings.ToLower(alias)] = strings.ToLower(canonical)
	}
	for kind, patterns := range f.Responses {
		set := make(map[string]struct{}, len(patterns))
		for _, pat := range patterns {
			set[strings.ToLower(strings.TrimSpace(pat))] = struct{}{}
		}
		st.responses[kind] = set
	}
	for _, it := range f.Items {
		if it.Name == "" {
			return nil, fmt.Errorf("item with empty name")
		}
		if it.Slug == "" {
			it.Slug = slugify(it.Name)
		}
		st.byName[strings.ToLower(it.Name)] = it
		st.byName[strings.ToLower(it.Slug)] = it
		st.phrases = append(st.phrases, phraseEntry{phrase: strings.ToLower(it.Name), item: it})
		for _, alias := range it.Aliases {
			a := strings.ToLower(alias)
			st.byName[a] = it
			st.phrases = append(st.phrases, phraseEntry{phrase: a, item: it})
		}
	}
	sort.SliceStable(st.phrases, func(i, j int) bool {
		return len(st.phrases[i].phrase) > len(st.phrases[j].phrase)
	})
	return st, nil
}

func slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

func (p *YAMLProvider) snapshot() *providerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *YAMLProvider) LookupItem(nameOrAlias string) (*Item, bool) {
	st := p.snapshot()
	it, ok := st.byName[strings.ToLower(strings.TrimSpace(nameOrAlias))]
	return it, ok
}

func (p *YAMLProvider) Items() []*Item {
	return p.snapshot().items
}

func (p *YAMLProvider) MatchItems(text string) []Match {
	st := p.snapshot()
	lower := strings.ToLower(text)
	var matches []Match
	claimed := make([]bool, len(lower))
	for _, pe := range st.phrases {
		idx := 0
		for {
			off := indexWord(lower[idx:], pe.phrase)
			if off < 0 {
				break
			}
			start := idx + off
			end := start + len(pe.phrase)
			if !regionClaimed(claimed, start, end) {
				claimRegion(claimed, start, end)
				matches = append(matches, Match{Item: pe.item, Matched: pe.phrase, Offset: start})
			}
			idx = end
			if idx >= len(lower) {
				break
			}
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Offset < matches[j].Offset })
	return matches
}

// indexWord finds phrase in text on word boundaries only, so "tea" does not
// match inside "steamer".
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
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func regionClaimed(claimed []bool, start, end int) bool {
	for i := start; i < end && i < len(claimed); i++ {
		if claimed[i] {
			return true
		}
	}
	return false
}

func claimRegion(claimed []bool, start, end int) {
	for i := start; i < end && i < len(claimed); i++ {
		claimed[i] = true
	}
}

func (p *YAMLProvider) AttributeOptions(kind, slot string) []AttributeOption {
	st := p.snapshot()
	for _, it := range st.items {
		if it.Kind != kind {
			continue
		}
		if s, ok := it.Slot(slot); ok {
			return s.Options
		}
	}
	return nil
}

func (p *YAMLProvider) Aliases() map[string]string {
	return p.snapshot().aliases
}

func (p *YAMLProvider) IsResponse(kind, text string) bool {
	st := p.snapshot()
	set, ok := st.responses[kind]
	if !ok {
		return false
	}
	_, ok = set[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

func (p *YAMLProvider) Settings() Settings {
	return p.snapshot().settings
}
