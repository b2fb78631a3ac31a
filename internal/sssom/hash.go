package sssom

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// HashMapping derives the stable record identifier for a mapping from its
// subject, predicate, object and justification CURIEs. The digest ignores
// labels, confidence and provenance so re-running a matcher yields the
// same handle for the same logical assertion.
func HashMapping(m *Mapping) string {
	h := sha256.New()
	_, _ = h.Write([]byte(strings.Join([]string{
		m.Subject.CURIE(),
		m.Predicate.CURIE(),
		m.Object.CURIE(),
		m.Justification.CURIE(),
	}, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}
