// Package sssom implements the SSSOM semantic-mapping data model and its
// tab-separated serialization.
package sssom

import (
	"strings"

	"github.com/ontomap/sssom-curator/internal/curies"
)

// Mapping is one subject-predicate-object assertion between two ontology
// terms, plus provenance metadata. Predicted mappings carry a confidence
// and the name of the producing tool and have no authors; curated mappings
// carry authors and a manual-curation justification instead.
type Mapping struct {
	Subject           curies.Reference   `json:"subject"`
	Predicate         curies.Reference   `json:"predicate"`
	PredicateModifier string             `json:"predicate_modifier,omitempty"`
	Object            curies.Reference   `json:"object"`
	Justification     curies.Reference   `json:"justification"`
	Authors           []curies.Reference `json:"authors,omitempty"`
	Confidence        *float64           `json:"confidence,omitempty"`
	MappingTool       string             `json:"mapping_tool,omitempty"`
	CurationRuleText  []string           `json:"curation_rule_text,omitempty"`

	// Record is the content-derived handle assigned exactly once at
	// ingest. It is never recomputed for a logical mapping.
	Record string `json:"record,omitempty"`
}

// ConfidenceOrZero returns the confidence, treating absence as 0.0.
func (m *Mapping) ConfidenceOrZero() float64 {
	if m.Confidence == nil {
		return 0
	}
	return *m.Confidence
}

// HasCurationRule reports whether the given tag is present.
func (m *Mapping) HasCurationRule(tag string) bool {
	for _, t := range m.CurationRuleText {
		if t == tag {
			return true
		}
	}
	return false
}

// Key identifies the mapping by content for deduplication: subject,
// predicate (with modifier), object and justification.
func (m *Mapping) Key() string {
	return strings.Join([]string{
		m.Subject.CURIE(),
		m.Predicate.CURIE(),
		m.PredicateModifier,
		m.Object.CURIE(),
		m.Justification.CURIE(),
	}, "|")
}

// Prefixes returns every namespace prefix the mapping touches.
func (m *Mapping) Prefixes() []string {
	seen := map[string]struct{}{}
	out := []string{}
	add := func(p string) {
		if p == "" {
			return
		}
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	add(m.Subject.Prefix)
	add(m.Predicate.Prefix)
	add(m.Object.Prefix)
	add(m.Justification.Prefix)
	for _, a := range m.Authors {
		add(a.Prefix)
	}
	return out
}

// Clone returns a deep copy so callers can rewrite fields without
// aliasing the original's slices.
func (m *Mapping) Clone() Mapping {
	out := *m
	if m.Confidence != nil {
		c := *m.Confidence
		out.Confidence = &c
	}
	if m.Authors != nil {
		out.Authors = append([]curies.Reference(nil), m.Authors...)
	}
	if m.CurationRuleText != nil {
		out.CurationRuleText = append([]string(nil), m.CurationRuleText...)
	}
	return out
}

// Less orders mappings by subject, then object, then predicate CURIE.
// Used for deterministic file output.
func (m *Mapping) Less(other *Mapping) bool {
	if a, b := m.Subject.CURIE(), other.Subject.CURIE(); a != b {
		return a < b
	}
	if a, b := m.Object.CURIE(), other.Object.CURIE(); a != b {
		return a < b
	}
	return m.Predicate.CURIE() < other.Predicate.CURIE()
}

// MappingSet is the metadata envelope attached to a batch of mappings on
// serialization. The curation core threads it through writes unchanged.
type MappingSet struct {
	ID       string   `json:"mapping_set_id,omitempty" yaml:"mapping_set_id,omitempty"`
	Title    string   `json:"mapping_set_title,omitempty" yaml:"mapping_set_title,omitempty"`
	Version  string   `json:"mapping_set_version,omitempty" yaml:"mapping_set_version,omitempty"`
	License  string   `json:"license,omitempty" yaml:"license,omitempty"`
	Creators []string `json:"creator_id,omitempty" yaml:"creator_id,omitempty"`
}
