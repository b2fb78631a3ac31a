package curation

import (
	"sort"
	"strings"

	"github.com/ontomap/sssom-curator/internal/sssom"
)

// DefaultLimit is applied when a query does not set one.
const DefaultLimit = 10

// Sort selects the ordering of query results.
type Sort string

const (
	// SortNone preserves insertion order.
	SortNone Sort = ""
	// SortConfidenceDesc orders by confidence, highest first; missing
	// confidence counts as 0.
	SortConfidenceDesc Sort = "desc"
	// SortConfidenceAsc orders by confidence, lowest first.
	SortConfidenceAsc Sort = "asc"
	// SortSubject orders lexicographically by subject CURIE.
	SortSubject Sort = "subject"
	// SortObject orders lexicographically by object CURIE.
	SortObject Sort = "object"
)

// ParseSort validates a sort string from the boundary.
func ParseSort(raw string) (Sort, error) {
	switch s := Sort(raw); s {
	case SortNone, SortConfidenceDesc, SortConfidenceAsc, SortSubject, SortObject:
		return s, nil
	default:
		return SortNone, validationErrorf("unknown sort %q", raw)
	}
}

// Query is a declarative filter+sort+pagination spec over mappings. All
// filter fields are optional; absent means no filter. Text filters are
// case-insensitive substring matches and compose with logical AND. A
// missing field (e.g. no label) never matches.
type Query struct {
	// Text matches against subject CURIE and label, object CURIE and
	// label, and the mapping tool name.
	Text string
	// SubjectText and ObjectText restrict Text's field set to one side.
	SubjectText string
	ObjectText  string
	// SubjectPrefix and ObjectPrefix match anywhere in the respective
	// CURIE, not just its start.
	SubjectPrefix string
	ObjectPrefix  string
	// EitherPrefix matches against subject or object CURIE.
	EitherPrefix string
	// Provenance matches against the mapping tool name.
	Provenance string
	// SameText keeps only exact-match mappings whose subject and object
	// labels are present and equal case-insensitively.
	SameText bool

	Sort   Sort
	Offset int
	// Limit of nil means unbounded.
	Limit *int
}

// WithDefaultLimit returns a copy with the default page size applied if
// none was set. The zero Query therefore pages by DefaultLimit.
func (q Query) WithDefaultLimit() Query {
	if q.Limit == nil {
		limit := DefaultLimit
		q.Limit = &limit
	}
	return q
}

// Unbounded returns a copy with pagination removed.
func (q Query) Unbounded() Query {
	q.Limit = nil
	q.Offset = 0
	return q
}

// Matches evaluates every active filter against one mapping.
func (q *Query) Matches(m *sssom.Mapping) bool {
	if q.Text != "" && !anyContains(q.Text,
		m.Subject.CURIE(), m.Subject.Name, m.Object.CURIE(), m.Object.Name, m.MappingTool) {
		return false
	}
	if q.SubjectText != "" && !anyContains(q.SubjectText, m.Subject.CURIE(), m.Subject.Name) {
		return false
	}
	if q.ObjectText != "" && !anyContains(q.ObjectText, m.Object.CURIE(), m.Object.Name) {
		return false
	}
	if q.SubjectPrefix != "" && !anyContains(q.SubjectPrefix, m.Subject.CURIE()) {
		return false
	}
	if q.ObjectPrefix != "" && !anyContains(q.ObjectPrefix, m.Object.CURIE()) {
		return false
	}
	if q.EitherPrefix != "" && !anyContains(q.EitherPrefix, m.Subject.CURIE(), m.Object.CURIE()) {
		return false
	}
	if q.Provenance != "" && !anyContains(q.Provenance, m.MappingTool) {
		return false
	}
	if q.SameText {
		if m.Subject.Name == "" || m.Object.Name == "" {
			return false
		}
		if !strings.EqualFold(m.Subject.Name, m.Object.Name) {
			return false
		}
		if !m.Predicate.Equal(sssom.ExactMatch) {
			return false
		}
	}
	return true
}

func anyContains(needle string, haystacks ...string) bool {
	needle = strings.ToLower(needle)
	for _, s := range haystacks {
		if s == "" {
			continue
		}
		if strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// Filter returns the mappings matching every active filter, preserving
// input order.
func Filter(mappings []sssom.Mapping, q Query) []sssom.Mapping {
	out := make([]sssom.Mapping, 0, len(mappings))
	for i := range mappings {
		if q.Matches(&mappings[i]) {
			out = append(out, mappings[i])
		}
	}
	return out
}

// Order sorts mappings in place per the sort spec. The sort is stable so
// ties keep insertion order.
func Order(mappings []sssom.Mapping, s Sort) {
	switch s {
	case SortConfidenceDesc:
		sort.SliceStable(mappings, func(i, j int) bool {
			return mappings[i].ConfidenceOrZero() > mappings[j].ConfidenceOrZero()
		})
	case SortConfidenceAsc:
		sort.SliceStable(mappings, func(i, j int) bool {
			return mappings[i].ConfidenceOrZero() < mappings[j].ConfidenceOrZero()
		})
	case SortSubject:
		sort.SliceStable(mappings, func(i, j int) bool {
			return mappings[i].Subject.CURIE() < mappings[j].Subject.CURIE()
		})
	case SortObject:
		sort.SliceStable(mappings, func(i, j int) bool {
			return mappings[i].Object.CURIE() < mappings[j].Object.CURIE()
		})
	}
}

// Paginate slices a result set. Offset applies strictly before limit; an
// offset past the end yields an empty slice, not an error.
func Paginate(mappings []sssom.Mapping, offset int, limit *int) []sssom.Mapping {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(mappings) {
		return nil
	}
	mappings = mappings[offset:]
	if limit != nil && *limit < len(mappings) {
		if *limit <= 0 {
			return nil
		}
		mappings = mappings[:*limit]
	}
	return mappings
}

// Apply runs the full pipeline: filter, sort, then paginate.
func Apply(mappings []sssom.Mapping, q Query) []sssom.Mapping {
	matched := Filter(mappings, q)
	Order(matched, q.Sort)
	return Paginate(matched, q.Offset, q.Limit)
}
