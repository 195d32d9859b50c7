package order

// Candidate is one possible resolution of an ambiguous answer.
type Candidate struct {
	Slug        string `yaml:"slug"`
	DisplayName string `yaml:"display_name"`
}

// PendingDisambiguation records that the previous turn's answer matched
// several candidates. It is created when two or more plausible matches
// survive, consumed on the very next turn, and never carried further without
// being re-surfaced as a question.
type PendingDisambiguation struct {
	// AttributeSlug is the slot the chosen candidate will fill. Empty when
	// the choice is between whole catalog items rather than slot options.
	AttributeSlug string      `yaml:"attribute_slug,omitempty"`
	TargetItemID  string      `yaml:"target_item_id,omitempty"`
	Options       []Candidate `yaml:"options"`
	// BufferedQuantity is the line quantity spoken in the utterance that
	// triggered the disambiguation; it is re-applied once the choice
	// resolves so nothing the customer said is dropped.
	BufferedQuantity int `yaml:"buffered_quantity,omitempty"`
	// BufferedModifiers holds the other slot values spoken alongside the
	// ambiguous one, keyed by slot name. They are re-applied once the
	// choice resolves.
	BufferedModifiers map[string]string `yaml:"buffered_modifiers,omitempty"`
	// Reprompted is set after the question has been re-surfaced once; a
	// second unresolvable answer falls through to normal parsing.
	Reprompted bool `yaml:"reprompted,omitempty"`
}
