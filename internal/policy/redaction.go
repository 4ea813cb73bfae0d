package policy

import "regexp"

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// A leading + or at least ten digits; shorter runs are usually years,
	// displacements or part numbers.
	phonePattern  = regexp.MustCompile(`\+[0-9][0-9\-() ]{6,}[0-9]|\(?\b[0-9]{3}\)?[-. ]?[0-9]{3}[-. ]?[0-9]{4}\b`)
	cardPattern   = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	apiKeyPattern = regexp.MustCompile(`\b(?:sk|pk|rk)-[A-Za-z0-9_\-]{16,}\b`)
	// Licence plates and VINs are fair game in a car chat; only the 17 char VIN is masked.
	vinPattern    = regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`)
)

type rule struct {
	pattern *regexp.Regexp
	marker  string
}

// Order matters: card numbers must be masked before the phone rule sees them.
var rules = []rule{
	{emailPattern, "[REDACTED_EMAIL]"},
	{apiKeyPattern, "[REDACTED_KEY]"},
	{cardPattern, "[REDACTED_CARD]"},
	{vinPattern, "[REDACTED_VIN]"},
	{phonePattern, "[REDACTED_PHONE]"},
}

// RedactPII masks common high-risk PII patterns in chat text.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range rules {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}
