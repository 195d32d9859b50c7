package parse

import "regexp"

// Request filler stripped before any rule matches. Keeping this aggressive is
// safe because recognizers work on domain vocabulary, not sentence shape.
var fillerRe = regexp.MustCompile(
	`(?i)\b(please|thanks|thank you|can i (?:get|have)|could i (?:get|have)|may i (?:get|have)|i'?d like|i would like|i want|i'?ll (?:take|have|do)|let me (?:get|have)|give me|gimme|for me)\b`)

var (
	cancelOrderRe = regexp.MustCompile(
		`(?:cancel|scrap|forget|scratch)\s+(?:the\s+|my\s+|this\s+)?(?:whole\s+|entire\s+)?(?:order|everything|it all)|start\s+(?:over|again|fresh)`)

	cancelItemRe = regexp.MustCompile(
		`^(?:cancel|remove|scratch|take off|forget about|forget|no more)\s+(?:the\s+|my\s+|that\s+)?(.+?)$`)

	checkoutRe = regexp.MustCompile(
		`that'?s\s+(?:it|all|everything)|i'?m\s+(?:done|good|all set)|that\s+(?:will|'ll)\s+be\s+all|nothing\s+else|check\s?out|complete\s+my\s+order`)

	// "make that iced", "change the latte to iced", "make my bagel toasted"
	makeChangeRe = regexp.MustCompile(
		`^(?:can you\s+|could you\s+)?(?:make|change)\s+(?:(that|it)|(?:the|my)\s+(.+?))\s+(?:to\s+|into\s+)?([a-z0-9' ]+?)$`)

	// "put scallion cream cheese on the plain bagel", "add butter to it"
	putOnRe = regexp.MustCompile(
		`^(?:put|add)\s+(.+?)\s+(?:on|to)\s+(?:(it|that)|(?:the|my)\s+(.+?))$`)

	// "scallion cream cheese on the plain bagel"
	onTheRe = regexp.MustCompile(
		`^(.+?)\s+on\s+(?:the|my)\s+(.+?)$`)

	actuallyRe = regexp.MustCompile(`^actually[, ]+(.*)$`)

	insteadRe = regexp.MustCompile(`^(.*?)\s+instead$`)

	phoneRe = regexp.MustCompile(`(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	streetRe = regexp.MustCompile(
		`\b(\d+\s+[a-z0-9 .'-]+?\s(?:st|street|ave|avenue|rd|road|blvd|boulevard|ln|lane|dr|drive|way|pl|place|ct|court))\b`)
	zipRe = regexp.MustCompile(`\b(\d{5})\b`)
	aptRe = regexp.MustCompile(`\b(?:apt|apartment|unit|suite|ste)\.?\s*#?\s*([a-z0-9]+)\b|#\s*([a-z0-9]+)\b`)

	nameIsRe = regexp.MustCompile(`(?:my name is|name'?s|it'?s|this is|i'?m)\s+([a-z][a-z .'-]+)$`)
	wordsRe  = regexp.MustCompile(`^[a-z][a-z .'-]*$`)

	negatedRe = regexp.MustCompile(`\b(?:no|not|without|un)[- ]?`)
)

// cancelWords guard "actually ..." so "actually cancel that" is not read as a
// change request.
var cancelWords = []string{"cancel", "remove", "forget", "nevermind", "never mind", "scratch", "take off"}
