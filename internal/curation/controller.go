// Package curation holds the prediction-review core: the query engine,
// the curation state machine, and the two working-set controller
// backends.
package curation

import (
	"github.com/ontomap/sssom-curator/internal/curies"
	"github.com/ontomap/sssom-curator/internal/sssom"
)

// Outcome is the closed set of dispositions a curator can assign.
type Outcome int

const (
	// OutcomeCorrect confirms the predicted relation as-is.
	OutcomeCorrect Outcome = iota
	// OutcomeIncorrect negates the predicted relation.
	OutcomeIncorrect
	// OutcomeUnsure defers judgement; the mapping keeps its predicted
	// provenance but leaves the working set.
	OutcomeUnsure
	// OutcomeBroad records that the subject is broader than the object.
	OutcomeBroad
	// OutcomeNarrow records that the subject is narrower than the object.
	OutcomeNarrow
)

var outcomeNames = map[Outcome]string{
	OutcomeCorrect:   "correct",
	OutcomeIncorrect: "incorrect",
	OutcomeUnsure:    "unsure",
	OutcomeBroad:     "broad",
	OutcomeNarrow:    "narrow",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// ParseOutcome maps a boundary string onto the enum. Unrecognized values
// are a ValidationError.
func ParseOutcome(raw string) (Outcome, error) {
	for outcome, name := range outcomeNames {
		if name == raw {
			return outcome, nil
		}
	}
	return 0, validationErrorf("unknown curation outcome %q", raw)
}

// Category is the destination file class for a curated mapping.
type Category int

const (
	CategoryPositive Category = iota
	CategoryNegative
	CategoryUnsure
)

// Category returns the file class the outcome lands in. Correct, broad
// and narrow are all positive assertions.
func (o Outcome) Category() Category {
	switch o {
	case OutcomeIncorrect:
		return CategoryNegative
	case OutcomeUnsure:
		return CategoryUnsure
	default:
		return CategoryPositive
	}
}

// Curate applies the state machine to a predicted mapping and returns the
// curated copy. The broad/narrow predicates are written inverted on
// purpose: the curator's "mark as broad" states the subject is broader
// than the object, which is recorded as the object being narrower.
func Curate(m sssom.Mapping, outcome Outcome, authors []curies.Reference) (sssom.Mapping, error) {
	out := m.Clone()

	if outcome == OutcomeUnsure {
		if !out.HasCurationRule(sssom.CurationRuleUnsure) {
			out.CurationRuleText = append(out.CurationRuleText, sssom.CurationRuleUnsure)
		}
		return out, nil
	}

	out.Authors = append([]curies.Reference(nil), authors...)
	out.Justification = sssom.ManualMappingCuration
	out.Confidence = nil
	out.MappingTool = ""

	switch outcome {
	case OutcomeCorrect:
		// predicate unchanged
	case OutcomeIncorrect:
		out.PredicateModifier = sssom.PredicateModifierNot
	case OutcomeBroad:
		out.Predicate = sssom.NarrowMatch
	case OutcomeNarrow:
		out.Predicate = sssom.BroadMatch
	default:
		return sssom.Mapping{}, validationErrorf("unknown curation outcome %d", outcome)
	}
	return out, nil
}

// PrefixPair keys the subject/object prefix histogram.
type PrefixPair struct {
	Subject string `json:"subject_prefix"`
	Object  string `json:"object_prefix"`
}

// Controller owns the working set of not-yet-curated predictions. Both
// backends implement this contract; they differ only in storage medium.
// The controller assumes a single curation session: callers serialize
// access, and no operation blocks beyond file or database I/O.
type Controller interface {
	// Count reports how many working-set entries match the query's
	// filters, ignoring pagination.
	Count(q Query) (int, error)
	// List returns the filtered, sorted, paginated working-set entries.
	List(q Query) ([]sssom.Mapping, error)
	// PrefixHistogram tallies matches by (subject prefix, object prefix),
	// honoring filters but ignoring sort and pagination.
	PrefixHistogram(q Query) (map[PrefixPair]int, error)
	// Mark transitions one mapping out of the working set. A record not
	// currently in the working set is a NotFoundError and mutates
	// nothing.
	Mark(record string, outcome Outcome, authors []curies.Reference) error
	// Persist flushes buffered curation outcomes to durable storage. A
	// no-op when nothing is buffered; on failure the buffer is retained
	// so a retry is safe.
	Persist() error
	// Unpersisted counts curations not yet flushed by Persist.
	Unpersisted() int
	// TotalCurated counts successful marks over the controller lifetime.
	TotalCurated() int
}

// referenceSet is the optional target-reference prefilter: when present,
// only working-set entries whose subject or object is a member are ever
// considered, before any query filter.
type referenceSet map[string]struct{}

func newReferenceSet(refs []curies.Reference) referenceSet {
	if refs == nil {
		return nil
	}
	set := make(referenceSet, len(refs))
	for _, r := range refs {
		set[r.Key()] = struct{}{}
	}
	return set
}

func (s referenceSet) admits(m *sssom.Mapping) bool {
	if s == nil {
		return true
	}
	_, subject := s[m.Subject.Key()]
	_, object := s[m.Object.Key()]
	return subject || object
}
