package curation

import (
	"github.com/ontomap/sssom-curator/internal/curies"
	"github.com/ontomap/sssom-curator/internal/platform/logger"
	"github.com/ontomap/sssom-curator/internal/repository"
	"github.com/ontomap/sssom-curator/internal/sssom"
)

// MemoryController keeps the working set in a record-keyed map for the
// process lifetime and defers file writes until Persist. Marked mappings
// accumulate in a pending buffer per category; Persist appends them to
// the positive/negative/unsure files and rewrites the predictions file to
// exactly the remaining working set.
type MemoryController struct {
	log       *logger.Logger
	repo      *repository.Repository
	converter *curies.Converter
	targets   referenceSet
	metadata  *sssom.MappingSet

	// order preserves ingest order for unsorted queries; byRecord is the
	// working set proper.
	order    []string
	byRecord map[string]sssom.Mapping

	pending      map[Category][]sssom.Mapping
	totalCurated int
}

var _ Controller = (*MemoryController)(nil)

// NewMemoryController ingests the repository's predictions file.
func NewMemoryController(
	repo *repository.Repository,
	converter *curies.Converter,
	log *logger.Logger,
	targets []curies.Reference,
) (*MemoryController, error) {
	if repo == nil {
		return nil, &ConfigurationError{Reason: "memory controller requires a repository"}
	}
	predictions, metadata, err := repo.ReadPredictions()
	if err != nil {
		return nil, err
	}
	return NewMemoryControllerFromPredictions(predictions, metadata, repo, converter, log, targets)
}

// NewMemoryControllerFromPredictions ingests an in-memory prediction
// batch. Every row must arrive without a record identifier; the content
// hash is assigned here, exactly once. Two rows hashing identically mean
// un-deduplicated input and are rejected.
func NewMemoryControllerFromPredictions(
	predictions []sssom.Mapping,
	metadata *sssom.MappingSet,
	repo *repository.Repository,
	converter *curies.Converter,
	log *logger.Logger,
	targets []curies.Reference,
) (*MemoryController, error) {
	if repo == nil {
		return nil, &ConfigurationError{Reason: "memory controller requires a repository"}
	}
	if converter == nil {
		return nil, &ConfigurationError{Reason: "memory controller requires a converter"}
	}

	c := &MemoryController{
		log:       log.With("controller", "MemoryController"),
		repo:      repo,
		converter: converter,
		targets:   newReferenceSet(targets),
		metadata:  metadata,
		byRecord:  make(map[string]sssom.Mapping, len(predictions)),
		pending:   make(map[Category][]sssom.Mapping),
	}

	for i := range predictions {
		m := predictions[i]
		if m.Record != "" {
			return nil, validationErrorf("prediction %s already carries record %q; externally hashed rows are not supported", m.Subject.CURIE(), m.Record)
		}
		record := sssom.HashMapping(&m)
		if _, exists := c.byRecord[record]; exists {
			return nil, validationErrorf("duplicate prediction %s -> %s; deduplicate the input", m.Subject.CURIE(), m.Object.CURIE())
		}
		m.Record = record
		c.byRecord[record] = m
		c.order = append(c.order, record)
	}

	c.log.Info("Ingested predictions", "count", len(c.byRecord))
	return c, nil
}

// snapshot returns the working set in ingest order, after the
// target-reference prefilter.
func (c *MemoryController) snapshot() []sssom.Mapping {
	out := make([]sssom.Mapping, 0, len(c.byRecord))
	for _, record := range c.order {
		m, ok := c.byRecord[record]
		if !ok {
			continue
		}
		if !c.targets.admits(&m) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (c *MemoryController) Count(q Query) (int, error) {
	n := 0
	for _, record := range c.order {
		m, ok := c.byRecord[record]
		if !ok || !c.targets.admits(&m) {
			continue
		}
		if q.Matches(&m) {
			n++
		}
	}
	return n, nil
}

func (c *MemoryController) List(q Query) ([]sssom.Mapping, error) {
	return Apply(c.snapshot(), q), nil
}

func (c *MemoryController) PrefixHistogram(q Query) (map[PrefixPair]int, error) {
	histogram := make(map[PrefixPair]int)
	for _, m := range Filter(c.snapshot(), q) {
		histogram[PrefixPair{Subject: m.Subject.Prefix, Object: m.Object.Prefix}]++
	}
	return histogram, nil
}

func (c *MemoryController) Mark(record string, outcome Outcome, authors []curies.Reference) error {
	m, ok := c.byRecord[record]
	if !ok {
		return &NotFoundError{Record: record}
	}
	curated, err := Curate(m, outcome, authors)
	if err != nil {
		return err
	}

	delete(c.byRecord, record)
	for i, r := range c.order {
		if r == record {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	category := outcome.Category()
	c.pending[category] = append(c.pending[category], curated)
	c.totalCurated++
	c.log.Debug("Marked mapping", "record", record, "outcome", outcome.String(), "remaining", len(c.byRecord))
	return nil
}

// Persist appends buffered curations to their category files, then
// rewrites the predictions file to the remaining working set. The buffer
// is cleared only after every write succeeds; category appends that
// landed before a failure are harmless on retry because appends
// deduplicate. An empty buffer touches no file.
func (c *MemoryController) Persist() error {
	total := c.Unpersisted()
	if total == 0 {
		return nil
	}

	for category, path := range map[Category]string{
		CategoryPositive: c.repo.PositivesPath,
		CategoryNegative: c.repo.NegativesPath,
		CategoryUnsure:   c.repo.UnsurePath,
	} {
		buffered := c.pending[category]
		if len(buffered) == 0 {
			continue
		}
		if err := sssom.Append(buffered, path, c.converter); err != nil {
			return &PersistenceError{Op: path, Err: err}
		}
	}

	remaining := make([]sssom.Mapping, 0, len(c.byRecord))
	for _, record := range c.order {
		if m, ok := c.byRecord[record]; ok {
			remaining = append(remaining, m)
		}
	}
	err := sssom.Write(remaining, c.repo.PredictionsPath, sssom.WriteOptions{
		Metadata:       c.metadata,
		Converter:      c.converter,
		DropDuplicates: true,
		Sort:           true,
	})
	if err != nil {
		return &PersistenceError{Op: c.repo.PredictionsPath, Err: err}
	}

	c.pending = make(map[Category][]sssom.Mapping)
	c.log.Info("Persisted curations", "count", total)
	return nil
}

func (c *MemoryController) Unpersisted() int {
	n := 0
	for _, buffered := range c.pending {
		n += len(buffered)
	}
	return n
}

func (c *MemoryController) TotalCurated() int { return c.totalCurated }

// WorkingSetSize reports the live prediction count before any prefilter.
func (c *MemoryController) WorkingSetSize() int { return len(c.byRecord) }
