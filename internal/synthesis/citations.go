package synthesis

import (
	"regexp"
	"sort"
	"strings"
)

var (
	findingIDRe = regexp.MustCompile(`[a-z_]+::[a-f0-9]{8,}`)
	hexTokenRe  = regexp.MustCompile(`[0-9a-f]{8,}`)
)

// ExtractFindingCitations pulls finding ids cited in free text: either a
// full id (e.g. "review::abcdef12") or a bare 8+ char hex suffix matching a
// known id's trailing "::<hash>" segment.
func ExtractFindingCitations(text string, validIDs map[string]bool) []string {
	cited := map[string]bool{}
	for _, m := range findingIDRe.FindAllString(text, -1) {
		if validIDs[m] {
			cited[m] = true
		}
	}
	for _, tok := range hexTokenRe.FindAllString(text, -1) {
		suffix := "::" + tok
		for id := range validIDs {
			if strings.HasSuffix(id, suffix) {
				cited[id] = true
			}
		}
	}
	out := make([]string, 0, len(cited))
	for id := range cited {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ShortID extracts the 8-char hash suffix from a finding id for compact
// display, e.g. "review::.::holistic::dim::identifier::abcdef12" -> "abcdef12".
func ShortID(id string) string {
	if i := strings.LastIndex(id, "::"); i >= 0 {
		suffix := id[i+2:]
		if len(suffix) >= 8 {
			return suffix[:8]
		}
	}
	return id
}
