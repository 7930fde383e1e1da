package guardrail

import "regexp"

// Price markers: R$-style currency, bare currency words, or formatted
// numeric amounts following them. These decide whether the price check
// runs at all, not whether the reply is wrong.
var priceMarkerRe = regexp.MustCompile(`(?i)(R\$\s*\d|\bpreço\b|\bpreco\b|\bvalor de\b|\bcusta\b|\bBRL\b)`)

// Sensitive-content patterns. Any match blocks the reply outright.
var sensitivePatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	// CPF: 000.000.000-00 with or without punctuation.
	{"cpf", regexp.MustCompile(`\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`)},
	// Card numbers: 13-16 digits allowing space/dash separators.
	{"card_number", regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
	{"cvv", regexp.MustCompile(`(?i)\bcvv\b\s*:?\s*\d{3,4}`)},
	{"password", regexp.MustCompile(`(?i)(senha|password)\s*[:=]?\s*\S+`)},
}

// mentionsPrice reports whether the reply textually references a price
// or currency marker.
func mentionsPrice(reply string) bool {
	return priceMarkerRe.MatchString(reply)
}

// findSensitive returns the name of the first sensitive pattern found
// in the reply, or "".
func findSensitive(reply string) string {
	for _, p := range sensitivePatterns {
		if p.re.MatchString(reply) {
			return p.name
		}
	}
	return ""
}
