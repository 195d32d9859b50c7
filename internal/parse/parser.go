package parse

import (
	"strings"

	"github.com/orderline/orderline/internal/catalog"
	"github.com/orderline/orderline/internal/order"
)

// Parser is the deterministic recognizer chain. It runs rules in a fixed
// order against the normalized utterance and returns ErrLowConfidence when
// none of them fire, which hands the turn to the fallback interpreter.
//
// Rule order matters: intents are checked before everything else so "cancel
// the latte" never reads as ordering a latte, and corrections are checked
// before new-item extraction so "make that an everything bagel" modifies the
// existing bagel instead of adding one.
type Parser struct {
	provider catalog.Provider
}

func NewParser(provider catalog.Provider) *Parser {
	return &Parser{provider: provider}
}

// Parse reads one normalized utterance in the context of the current order.
func (p *Parser) Parse(text string, tree *order.OrderTask) (*ParsedInput, error) {
	text = stripFiller(text)
	if text == "" {
		return nil, ErrLowConfidence
	}

	in := &ParsedInput{}

	if p.parseIntents(text, tree, in) {
		return in, nil
	}
	if tree.Asked != nil && p.parsePendingAnswer(text, tree, in) {
		return in, nil
	}
	if p.parseCorrections(text, tree, in) {
		return in, nil
	}
	if items := p.parseNewItems(text); len(items) > 0 {
		in.NewItems = items
		return in, nil
	}
	return nil, ErrLowConfidence
}

func stripFiller(text string) string {
	text = fillerRe.ReplaceAllString(text, " ")
	text = strings.Join(strings.Fields(text), " ")
	return strings.Trim(text, " .,!?")
}

// --- intents ---

func (p *Parser) parseIntents(text string, tree *order.OrderTask, in *ParsedInput) bool {
	if cancelOrderRe.MatchString(text) {
		in.Intents.CancelOrder = true
		return true
	}
	if p.provider.IsResponse(catalog.ResponseCancel, text) {
		// A bare "never mind" cancels the item being asked about when one
		// is mid-flight, and the whole order otherwise.
		if tree.Asked != nil && tree.Asked.Scope == order.ScopeItem {
			in.Intents.CancelItemRef = "last"
		} else {
			in.Intents.CancelOrder = true
		}
		return true
	}
	if m := cancelItemRe.FindStringSubmatch(text); m != nil {
		target := strings.TrimSpace(m[1])
		if isWholeOrderRef(target) {
			in.Intents.CancelOrder = true
		} else {
			in.Intents.CancelItemRef = target
		}
		return true
	}
	if checkoutRe.MatchString(text) {
		in.Intents.Checkout = true
		return true
	}
	return false
}

func isWholeOrderRef(target string) bool {
	switch target {
	case "order", "whole order", "entire order", "everything", "it all", "all of it":
		return true
	}
	return false
}

// --- pending-question answers ---

func (p *Parser) parsePendingAnswer(text string, tree *order.OrderTask, in *ParsedInput) bool {
	asked := tree.Asked
	switch asked.Scope {
	case order.ScopeItem:
		return p.parseItemAnswer(text, tree, asked, in)
	case order.ScopeDelivery:
		return p.parseDelivery(text, in)
	case order.ScopeAddress:
		return p.parseAddress(text, in)
	case order.ScopeName:
		return p.parseName(text, in)
	case order.ScopeContact:
		return p.parseContact(text, in)
	case order.ScopeConfirm:
		return p.parseConfirmation(text, in)
	case order.ScopePayment:
		return p.parsePayment(text, in)
	}
	return false
}

// flagOpposites maps flag slots to words that answer them negatively without
// saying "no" ("hot" for iced, "regular" for decaf).
var flagOpposites = map[string][]string{
	"iced":    {"hot"},
	"decaf":   {"regular", "caffeinated"},
	"toasted": {"untoasted"},
}

func (p *Parser) parseItemAnswer(text string, tree *order.OrderTask, asked *order.PendingSlot, in *ParsedInput) bool {
	item, ok := tree.Items.ByID(asked.ItemID)
	if !ok {
		return false
	}
	schema, ok := item.SlotSchema(asked.SlotName)
	if !ok {
		return false
	}

	answer := SlotAnswer{Scope: order.ScopeItem, ItemID: asked.ItemID, SlotName: asked.SlotName, Raw: text}

	switch schema.Type {
	case catalog.SlotFlag:
		if v, ok := p.flagValue(text, schema.Name); ok {
			answer.Value = v
			in.SlotAnswers = append(in.SlotAnswers, answer)
			return true
		}
		return false

	case catalog.SlotChoice:
		if p.provider.IsResponse(catalog.ResponseNegative, text) {
			// "no thanks" to an optional attribute means none of the options.
			if _, hasNone := schema.Option("none"); hasNone && !schema.Required {
				answer.Value = "none"
				in.SlotAnswers = append(in.SlotAnswers, answer)
				return true
			}
			return false
		}
		// If the reply names a different catalog item it is a new order
		// line, not an answer ("and a coffee" while being asked about size).
		for _, m := range p.provider.MatchItems(text) {
			if m.Item.Name != item.Name() {
				return false
			}
		}
		// The resolver does the option matching; the recognizer only vouches
		// that the text plausibly talks about this slot.
		if p.mentionsAnyOption(text, schema) || isOrdinalAnswer(text) {
			in.SlotAnswers = append(in.SlotAnswers, answer)
			return true
		}
		return false

	case catalog.SlotText:
		in.SlotAnswers = append(in.SlotAnswers, answer)
		return true
	}
	return false
}

func (p *Parser) flagValue(text, slotName string) (string, bool) {
	if p.provider.IsResponse(catalog.ResponseAffirmative, text) {
		return "true", true
	}
	if p.provider.IsResponse(catalog.ResponseNegative, text) {
		return "false", true
	}
	if containsWord(text, slotName) {
		if negatedBefore(text, slotName) {
			return "false", true
		}
		return "true", true
	}
	for _, opp := range flagOpposites[slotName] {
		if containsWord(text, opp) {
			return "false", true
		}
	}
	return "", false
}

func (p *Parser) mentionsAnyOption(text string, schema catalog.SlotSchema) bool {
	for _, opt := range schema.Options {
		if strings.Contains(text, strings.ToLower(opt.DisplayName)) || containsWord(text, opt.Slug) {
			return true
		}
		for _, alias := range opt.Aliases {
			if strings.Contains(text, strings.ToLower(alias)) {
				return true
			}
		}
		// A single describing word is enough ("walnut" for the walnut
		// spreads); the resolver sorts out which option it meant.
		for _, w := range strings.Fields(strings.ToLower(opt.DisplayName)) {
			if len(w) > 2 && containsWord(text, w) {
				return true
			}
		}
	}
	return false
}

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"former": 1, "latter": 2,
}

func isOrdinalAnswer(text string) bool {
	t := strings.Trim(text, " .")
	t = strings.TrimPrefix(t, "the ")
	t = strings.TrimSuffix(t, " one")
	if _, ok := ordinalWords[t]; ok {
		return true
	}
	if len(t) == 1 && t[0] >= '1' && t[0] <= '9' {
		return true
	}
	return false
}

// OrdinalIndex translates "the second one" or "2" to a 1-based index.
func OrdinalIndex(text string) (int, bool) {
	t := strings.Trim(strings.ToLower(text), " .")
	t = strings.TrimPrefix(t, "the ")
	t = strings.TrimSuffix(t, " one")
	if n, ok := ordinalWords[t]; ok {
		return n, true
	}
	if len(t) == 1 && t[0] >= '1' && t[0] <= '9' {
		return int(t[0] - '0'), true
	}
	return 0, false
}

func (p *Parser) parseDelivery(text string, in *ParsedInput) bool {
	switch {
	case strings.Contains(text, "pick") || strings.Contains(text, "come get") || strings.Contains(text, "in store") || strings.Contains(text, "carry out") || strings.Contains(text, "takeout") || strings.Contains(text, "take out"):
		in.OrderType = order.OrderTypePickup
	case strings.Contains(text, "deliver"):
		in.OrderType = order.OrderTypeDelivery
	default:
		return false
	}
	// "delivery to 123 main st 10001" carries the address in the same breath.
	p.parseAddress(text, in)
	return true
}

func (p *Parser) parseAddress(text string, in *ParsedInput) bool {
	addr := &Address{}
	found := false
	if m := streetRe.FindStringSubmatch(text); m != nil {
		addr.Street = strings.TrimSpace(m[1])
		found = true
	}
	if m := zipRe.FindStringSubmatch(text); m != nil {
		addr.ZipCode = m[1]
		found = true
	}
	if m := aptRe.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			addr.AptUnit = m[1]
		} else {
			addr.AptUnit = m[2]
		}
		found = true
	}
	if !found {
		return false
	}
	in.Address = addr
	return true
}

func (p *Parser) parseName(text string, in *ParsedInput) bool {
	if m := nameIsRe.FindStringSubmatch(text); m != nil {
		in.CustomerName = titleCase(strings.TrimSpace(m[1]))
		return true
	}
	// A short bare reply to "can i get a name" is the name itself.
	if wordsRe.MatchString(text) && len(strings.Fields(text)) <= 3 {
		in.CustomerName = titleCase(text)
		return true
	}
	return false
}

func (p *Parser) parseContact(text string, in *ParsedInput) bool {
	found := false
	if m := phoneRe.FindString(text); m != "" {
		in.Phone = m
		found = true
	}
	if m := emailRe.FindString(text); m != "" {
		in.Email = m
		found = true
	}
	if found {
		return true
	}
	// An unparseable reply still consumes the question so the applier can
	// count the attempt and re-ask.
	in.SlotAnswers = append(in.SlotAnswers, SlotAnswer{Scope: order.ScopeContact, Raw: text})
	return true
}

func (p *Parser) parseConfirmation(text string, in *ParsedInput) bool {
	head, rest := splitLeadingResponse(text)
	switch {
	case p.provider.IsResponse(catalog.ResponseAffirmative, head):
		v := true
		in.Confirmation = &v
	case p.provider.IsResponse(catalog.ResponseNegative, head):
		v := false
		in.Confirmation = &v
	}
	if rest != "" {
		// "yes, and add a coffee" confirms and extends in one utterance.
		if items := p.parseNewItems(rest); len(items) > 0 {
			in.NewItems = items
		} else if in.Confirmation != nil && !*in.Confirmation {
			p.parseCorrections(rest, nil, in)
		}
	}
	return in.Confirmation != nil || len(in.NewItems) > 0
}

// splitLeadingResponse peels a yes/no token off the front of the utterance.
func splitLeadingResponse(text string) (head, rest string) {
	for _, sep := range []string{",", " and ", " but "} {
		if i := strings.Index(text, sep); i > 0 {
			return strings.TrimSpace(text[:i]), strings.TrimSpace(strings.TrimPrefix(text[i:], sep))
		}
	}
	fields := strings.Fields(text)
	if len(fields) > 1 {
		return fields[0], strings.Join(fields[1:], " ")
	}
	return text, ""
}

func (p *Parser) parsePayment(text string, in *ParsedInput) bool {
	switch {
	case strings.Contains(text, "in store") || strings.Contains(text, "at the store") ||
		strings.Contains(text, "in person") || strings.Contains(text, "counter") ||
		strings.Contains(text, "when i pick") || strings.Contains(text, "at pickup"):
		in.PaymentMethod = order.PaymentInStore
	case strings.Contains(text, "cash"):
		in.PaymentMethod = order.PaymentCashDelivery
	case strings.Contains(text, "link") || strings.Contains(text, "card") ||
		strings.Contains(text, "text me") || strings.Contains(text, "email me") || strings.Contains(text, "online"):
		in.PaymentMethod = order.PaymentCardLink
	default:
		return false
	}
	// The payment reply may already include where to send the link.
	if m := phoneRe.FindString(text); m != "" {
		in.Phone = m
	}
	if m := emailRe.FindString(text); m != "" {
		in.Email = m
	}
	return true
}

// --- corrections ---

func (p *Parser) parseCorrections(text string, tree *order.OrderTask, in *ParsedInput) bool {
	if m := actuallyRe.FindStringSubmatch(text); m != nil {
		rest := strings.TrimSpace(m[1])
		for _, w := range cancelWords {
			if strings.HasPrefix(rest, w) {
				return p.parseIntents(rest, tree, in)
			}
		}
		// "actually make the latte iced" names its own target; reparse the
		// body so the named item wins over the last-added fallback.
		if makeChangeRe.MatchString(rest) || putOnRe.MatchString(rest) {
			if p.parseCorrections(rest, tree, in) {
				return true
			}
		}
		rest = strings.TrimPrefix(rest, "make it ")
		rest = strings.TrimPrefix(rest, "make that ")
		if im := insteadRe.FindStringSubmatch(rest); im != nil {
			rest = strings.TrimSpace(im[1])
		}
		if rest == "" {
			return false
		}
		in.Modifications = append(in.Modifications, Modification{Raw: rest})
		return true
	}

	if m := makeChangeRe.FindStringSubmatch(text); m != nil {
		mod := Modification{Raw: strings.TrimSpace(m[3])}
		if m[2] != "" {
			mod.TargetText = strings.TrimSpace(m[2])
		}
		if mod.Raw == "" {
			return false
		}
		in.Modifications = append(in.Modifications, mod)
		return true
	}

	if m := putOnRe.FindStringSubmatch(text); m != nil {
		mod := Modification{Raw: strings.TrimSpace(m[1])}
		if m[3] != "" {
			mod.TargetText = strings.TrimSpace(m[3])
		}
		in.Modifications = append(in.Modifications, mod)
		return true
	}

	if m := insteadRe.FindStringSubmatch(text); m != nil {
		in.Modifications = append(in.Modifications, Modification{Raw: strings.TrimSpace(m[1])})
		return true
	}

	// "scallion cream cheese on the plain bagel" with no verb still reads as
	// a correction when the target phrase names an item already in the order.
	if tree != nil {
		if m := onTheRe.FindStringSubmatch(text); m != nil {
			target := strings.TrimSpace(m[2])
			for _, it := range tree.Items.Active() {
				if strings.Contains(strings.ToLower(it.DisplayName()), target) ||
					strings.Contains(target, strings.ToLower(it.Name())) {
					in.Modifications = append(in.Modifications,
						Modification{TargetText: target, Raw: strings.TrimSpace(m[1])})
					return true
				}
			}
		}
	}
	return false
}

// --- new items ---

func (p *Parser) parseNewItems(text string) []NewItem {
	matches := p.provider.MatchItems(text)
	if len(matches) == 0 {
		return nil
	}

	// One segment per match: everything from the end of the previous match's
	// segment up to the start of the next match belongs to this item, so
	// both "large iced latte" and "bagel, toasted" attach their attributes.
	var items []NewItem
	for i, m := range matches {
		start := 0
		if i > 0 {
			start = matches[i-1].Offset + len(matches[i-1].Matched)
		}
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1].Offset
		}
		segment := text[start:end]

		if groups := p.splitQuantityGroups(segment, m.Offset-start, m); len(groups) > 0 {
			items = append(items, groups...)
			continue
		}

		item := NewItem{
			Name:     m.Item.Name,
			Quantity: segmentQuantity(segment, m.Offset-start),
		}
		p.extractAttributes(segment, m, &item)
		items = append(items, item)
	}
	return items
}

// splitQuantityGroups reads the elided-noun form "two plain and one
// everything bagels": each connective-separated group before the noun
// carrying its own quantity and descriptor becomes its own order line.
// Segments that don't fit the shape return nil and take the normal
// single-item path. matchAt is the noun phrase's offset inside the segment.
func (p *Parser) splitQuantityGroups(segment string, matchAt int, m catalog.Match) []NewItem {
	if matchAt <= 0 || matchAt > len(segment) {
		return nil
	}
	scan := strings.ReplaceAll(segment[:matchAt], " and ", ",")
	var groups []NewItem
	for _, part := range strings.Split(scan, ",") {
		part = strings.Trim(part, " .")
		if part == "" {
			continue
		}
		qty, desc, explicit := leadingQuantityExplicit(part)
		if !explicit || desc == "" {
			return nil
		}
		item := NewItem{Name: m.Item.Name, Quantity: qty}
		p.extractAttributes(desc, m, &item)
		if len(item.SlotValues) == 0 && len(item.AmbiguousSlots) == 0 {
			return nil
		}
		groups = append(groups, item)
	}
	if len(groups) < 2 {
		return nil
	}
	// Attributes trailing the noun ("bagels, toasted") apply to every group.
	rest := segment[matchAt:]
	for i := range groups {
		p.extractAttributes(rest, m, &groups[i])
	}
	return groups
}

// segmentQuantity finds the quantity spoken before the item phrase. The
// quantity leads the noun phrase even when attributes intervene ("two plain
// bagels"), so it is read from the front of the pre-match text once the
// connectives are stripped. matchAt is the phrase's offset inside the segment.
func segmentQuantity(segment string, matchAt int) int {
	if matchAt < 0 || matchAt > len(segment) {
		return 1
	}
	before := strings.Trim(segment[:matchAt], " ,.")
	fields := strings.Fields(before)
	for len(fields) > 0 && isConnective(fields[0]) {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return 1
	}
	// "a couple of" and friends span up to three words.
	for take := 3; take >= 1; take-- {
		if take > len(fields) {
			continue
		}
		phrase := strings.Join(fields[:take], " ")
		if n, ok := wordToNum[phrase]; ok {
			return n
		}
		if take == 1 {
			if n, rest, ok := leadingDigits(phrase); ok && rest == "" {
				return n
			}
		}
	}
	return 1
}

func isConnective(w string) bool {
	switch w {
	case "and", "also", "plus", "then", "with", "get", "me":
		return true
	}
	return false
}

// extractAttributes scans the segment for inline slot values ("large iced
// latte", "everything bagel toasted"). Descriptors that match more than one
// option are reported as ambiguous for the resolver to handle.
func (p *Parser) extractAttributes(segment string, m catalog.Match, item *NewItem) {
	scan := strings.Replace(segment, m.Matched, " ", 1)
	for _, schema := range m.Item.Slots {
		switch schema.Type {
		case catalog.SlotFlag:
			if containsWord(scan, schema.Name) {
				v := "true"
				if negatedBefore(scan, schema.Name) {
					v = "false"
				}
				setSlot(item, schema.Name, v)
				continue
			}
			for _, opp := range flagOpposites[schema.Name] {
				if containsWord(scan, opp) {
					setSlot(item, schema.Name, "false")
					break
				}
			}

		case catalog.SlotChoice:
			value, matched, ambiguous := p.matchChoice(scan, schema)
			if value != "" {
				setSlot(item, schema.Name, value)
				// Claim the matched words so "plain" cannot also resolve a
				// later slot ("plain bagel" vs "plain cream cheese").
				scan = strings.Replace(scan, matched, " ", 1)
			} else if ambiguous != "" {
				if item.AmbiguousSlots == nil {
					item.AmbiguousSlots = map[string]string{}
				}
				item.AmbiguousSlots[schema.Name] = ambiguous
			}
		}
	}
}

func setSlot(item *NewItem, name, value string) {
	if item.SlotValues == nil {
		item.SlotValues = map[string]string{}
	}
	item.SlotValues[name] = value
}

// matchChoice returns the option slug and the matched text when the segment
// names exactly one option, or the raw descriptor as ambiguous when it could
// mean several ("walnut" when both walnut spreads exist).
func (p *Parser) matchChoice(scan string, schema catalog.SlotSchema) (value, matched, ambiguous string) {
	type phrase struct {
		text string
		slug string
	}
	var phrases []phrase
	for _, opt := range schema.Options {
		phrases = append(phrases, phrase{strings.ToLower(opt.DisplayName), opt.Slug})
		for _, a := range opt.Aliases {
			phrases = append(phrases, phrase{strings.ToLower(a), opt.Slug})
		}
	}
	// Full display names and aliases win outright, longest first.
	best := phrase{}
	for _, ph := range phrases {
		if len(ph.text) > len(best.text) && containsWord(scan, ph.text) {
			best = ph
		}
	}
	if best.slug != "" {
		return best.slug, best.text, ""
	}

	// Single describing words: "walnut", "everything". Collect the options
	// each word could mean; a unique hit resolves, multiple hits defer.
	for _, w := range strings.Fields(scan) {
		w = strings.Trim(w, ",.!?")
		if len(w) <= 2 || isStopWord(w) {
			continue
		}
		var hits []string
		for _, opt := range schema.Options {
			if containsWord(strings.ToLower(opt.DisplayName), w) || containsWord(opt.Slug, w) {
				hits = append(hits, opt.Slug)
			}
		}
		switch len(hits) {
		case 0:
		case 1:
			return hits[0], w, ""
		default:
			return "", "", w
		}
	}
	return "", "", ""
}

var stopWords = map[string]bool{
	"the": true, "and": true, "with": true, "a": true, "an": true, "of": true,
	"on": true, "it": true, "that": true, "one": true, "some": true, "for": true,
	"get": true, "have": true, "also": true, "too": true, "cheese": true, "cream": true,
}

func isStopWord(w string) bool { return stopWords[w] }

// --- text helpers ---

func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isAlnum(text[i-1])
		after := i+len(word) == len(text) || !isAlnum(text[i+len(word)])
		if before && after {
			return true
		}
		idx = i + len(word)
		if idx >= len(text) {
			return false
		}
	}
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// negatedBefore reports whether the word is preceded by a negation within a
// few characters ("not toasted", "un-toasted").
func negatedBefore(text, word string) bool {
	i := strings.Index(text, word)
	if i <= 0 {
		return false
	}
	start := i - 12
	if start < 0 {
		start = 0
	}
	return negatedRe.MatchString(text[start:i])
}

func titleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		if len(f) > 0 {
			fields[i] = strings.ToUpper(f[:1]) + f[1:]
		}
	}
	return strings.Join(fields, " ")
}
