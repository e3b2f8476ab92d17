package hikvision

import "regexp"

// printableRunRe matches ASCII printable runs of at least 4 characters;
// callers additionally require at least one alphanumeric character in the
// match, since pure-punctuation runs are noise, not embedded strings.
var printableRunRe = regexp.MustCompile(`[ -~]{4,}`)

var hasAlnumRe = regexp.MustCompile(`[a-zA-Z0-9]`)

// extractStrings pulls printable ASCII runs out of raw bytes, the
// heuristic the generic log decoder and the HDD-information decoder use
// to recover embedded identifiers (disk models, firmware, serial numbers).
func extractStrings(raw []byte) []string {
	var out []string
	for _, m := range printableRunRe.FindAll(raw, -1) {
		if hasAlnumRe.Match(m) {
			out = append(out, string(m))
		}
	}
	return out
}
