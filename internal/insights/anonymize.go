package insights

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
)

// HashUsername returns a stable pseudonym for username.
func HashUsername(username string) string {
	sum := sha256.Sum256([]byte(username))
	return "anon-" + hex.EncodeToString(sum[:])[:12]
}

// AnonymizeDeep returns a copy of p with opponent usernames replaced by
// their pseudonyms. The subject player is kept.
func AnonymizeDeep(p *DeepInsights) *DeepInsights {
	out := *p
	out.GameAnalyses = slices.Clone(p.GameAnalyses)
	for i := range out.GameAnalyses {
		if name := out.GameAnalyses[i].OpponentUsername; name != nil {
			masked := HashUsername(*name)
			out.GameAnalyses[i].OpponentUsername = &masked
		}
	}
	return &out
}
