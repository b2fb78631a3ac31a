package sssom

import "github.com/ontomap/sssom-curator/internal/curies"

// Mapping predicates from the SKOS vocabulary.
var (
	ExactMatch  = curies.Reference{Prefix: "skos", Identifier: "exactMatch", Name: "exact match"}
	BroadMatch  = curies.Reference{Prefix: "skos", Identifier: "broadMatch", Name: "broad match"}
	NarrowMatch = curies.Reference{Prefix: "skos", Identifier: "narrowMatch", Name: "narrow match"}
)

// Mapping justifications from the semapv vocabulary.
var (
	ManualMappingCuration = curies.Reference{Prefix: "semapv", Identifier: "ManualMappingCuration", Name: "manual mapping curation"}
	LexicalMatching       = curies.Reference{Prefix: "semapv", Identifier: "LexicalMatching", Name: "lexical matching process"}
	SemanticSimilarity    = curies.Reference{Prefix: "semapv", Identifier: "SemanticSimilarityThresholdMatching", Name: "semantic similarity threshold-based matching process"}
)

// PredicateModifierNot negates a predicate. This is the literal SSSOM
// value, not a boolean flag.
const PredicateModifierNot = "Not"

// CurationRuleUnsure tags a prediction a curator reviewed but could not
// resolve. Such mappings keep their predicted provenance but leave the
// working set permanently.
const CurationRuleUnsure = "UNSURE"

// DefaultPrefixMap covers the vocabulary prefixes every curation
// repository needs regardless of its domain prefixes.
func DefaultPrefixMap() map[string]string {
	return map[string]string{
		"skos":   "http://www.w3.org/2004/02/skos/core#",
		"semapv": "https://w3id.org/semapv/vocab/",
		"orcid":  "https://orcid.org/",
	}
}

// IsCurated reports whether the mapping has been through manual review.
func IsCurated(m *Mapping) bool {
	return m.Justification.Equal(ManualMappingCuration)
}
