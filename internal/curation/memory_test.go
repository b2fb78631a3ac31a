package curation

import (
	"errors"
	"os"
	"testing"

	"github.com/ontomap/sssom-curator/internal/curies"
	"github.com/ontomap/sssom-curator/internal/platform/logger"
	"github.com/ontomap/sssom-curator/internal/repository"
	"github.com/ontomap/sssom-curator/internal/sssom"
)

func fixtureConverter() *curies.Converter {
	return curies.NewConverter(map[string]string{
		"chebi": "http://purl.obolibrary.org/obo/CHEBI_",
		"mesh":  "http://id.nlm.nih.gov/mesh/",
		"efo":   "http://www.ebi.ac.uk/efo/EFO_",
	}).Merge(curies.NewConverter(sssom.DefaultPrefixMap()))
}

// testRepository scaffolds a repository with the given predictions on
// disk.
func testRepository(t *testing.T, predictions []sssom.Mapping) (*repository.Repository, *curies.Converter) {
	t.Helper()
	dir := t.TempDir()
	repo, err := repository.Init(dir, "https://example.org/mappings", "orcid:0000-0001-2345-6789")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	err = sssom.Write(predictions, repo.PredictionsPath, sssom.WriteOptions{
		Metadata:  &sssom.MappingSet{ID: "https://example.org/mappings/" + repository.DefaultPredictionsName},
		Converter: fixtureConverter(),
	})
	if err != nil {
		t.Fatalf("write predictions: %v", err)
	}
	converter, err := repo.Converter()
	if err != nil {
		t.Fatalf("Converter: %v", err)
	}
	return repo, converter
}

func newTestMemoryController(t *testing.T, predictions []sssom.Mapping) (*MemoryController, *repository.Repository) {
	t.Helper()
	repo, converter := testRepository(t, predictions)
	c, err := NewMemoryController(repo, converter, logger.NewNop(), nil)
	if err != nil {
		t.Fatalf("NewMemoryController: %v", err)
	}
	return c, repo
}

// findRecord locates the working-set record for a subject CURIE.
func findRecord(t *testing.T, c Controller, subject string) string {
	t.Helper()
	mappings, err := c.List(Query{SubjectText: subject}.Unbounded())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for i := range mappings {
		if mappings[i].Subject.CURIE() == subject {
			return mappings[i].Record
		}
	}
	t.Fatalf("no working-set mapping with subject %s", subject)
	return ""
}

func TestMemoryController_IngestAssignsRecords(t *testing.T) {
	c, _ := newTestMemoryController(t, fixturePredictions())

	if c.WorkingSetSize() != 5 {
		t.Fatalf("expected 5 ingested predictions, got %d", c.WorkingSetSize())
	}
	mappings, err := c.List(Query{}.Unbounded())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	seen := map[string]struct{}{}
	for i := range mappings {
		if len(mappings[i].Record) != 64 {
			t.Fatalf("record %q is not a content hash", mappings[i].Record)
		}
		seen[mappings[i].Record] = struct{}{}
	}
	if len(seen) != 5 {
		t.Fatalf("records are not unique: %d distinct", len(seen))
	}
}

func TestMemoryController_RejectsPreHashedRows(t *testing.T) {
	repo, converter := testRepository(t, nil)
	bad := fixturePredictions()
	bad[0].Record = "deadbeef"

	_, err := NewMemoryControllerFromPredictions(bad, nil, repo, converter, logger.NewNop(), nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestMemoryController_RejectsDuplicateHashes(t *testing.T) {
	repo, converter := testRepository(t, nil)
	dup := fixturePredictions()
	// Same CURIEs with different labels hash identically.
	clone := dup[0].Clone()
	clone.Subject.Name = "other label"
	dup = append(dup, clone)

	_, err := NewMemoryControllerFromPredictions(dup, nil, repo, converter, logger.NewNop(), nil)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestMemoryController_CountIgnoresPagination(t *testing.T) {
	c, _ := newTestMemoryController(t, fixturePredictions())
	one := 1
	n, err := c.Count(Query{SubjectPrefix: "chebi", Limit: &one, Offset: 3})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 chebi subjects regardless of pagination, got %d", n)
	}
}

func TestMemoryController_MarkCorrectRemovesAndRewrites(t *testing.T) {
	c, _ := newTestMemoryController(t, fixturePredictions())
	record := findRecord(t, c, "chebi:133530")

	if err := c.Mark(record, OutcomeCorrect, []curies.Reference{testAuthor}); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	if c.WorkingSetSize() != 4 {
		t.Fatalf("expected 4 remaining, got %d", c.WorkingSetSize())
	}
	if c.TotalCurated() != 1 || c.Unpersisted() != 1 {
		t.Fatalf("counters: curated=%d unpersisted=%d", c.TotalCurated(), c.Unpersisted())
	}

	// At most once: a second mark on the same record must fail and
	// change nothing.
	err := c.Mark(record, OutcomeIncorrect, []curies.Reference{testAuthor})
	var nfe *NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected NotFoundError on re-mark, got %v", err)
	}
	if c.TotalCurated() != 1 || c.Unpersisted() != 1 {
		t.Fatalf("re-mark mutated counters")
	}
}

func TestMemoryController_MarkUnknownRecordIsNotFound(t *testing.T) {
	c, _ := newTestMemoryController(t, fixturePredictions())
	err := c.Mark("0000000000000000000000000000000000000000000000000000000000000000", OutcomeCorrect, nil)
	var nfe *NotFoundError
	if !errors.As(err, &nfe) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if c.WorkingSetSize() != 5 {
		t.Fatalf("failed mark mutated the working set")
	}
}

func TestMemoryController_PersistPartitionsIntoFiles(t *testing.T) {
	c, repo := newTestMemoryController(t, fixturePredictions())
	authors := []curies.Reference{testAuthor}

	marks := []struct {
		subject string
		outcome Outcome
	}{
		{"chebi:133530", OutcomeCorrect},
		{"chebi:100", OutcomeIncorrect},
		{"chebi:200", OutcomeUnsure},
		{"efo:400", OutcomeBroad},
	}
	for _, mark := range marks {
		if err := c.Mark(findRecord(t, c, mark.subject), mark.outcome, authors); err != nil {
			t.Fatalf("Mark %s: %v", mark.subject, err)
		}
	}
	if err := c.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if c.Unpersisted() != 0 {
		t.Fatalf("buffer not cleared: %d", c.Unpersisted())
	}

	positives, err := repo.ReadPositives()
	if err != nil {
		t.Fatalf("ReadPositives: %v", err)
	}
	negatives, err := repo.ReadNegatives()
	if err != nil {
		t.Fatalf("ReadNegatives: %v", err)
	}
	unsure, err := repo.ReadUnsure()
	if err != nil {
		t.Fatalf("ReadUnsure: %v", err)
	}
	predictions, _, err := repo.ReadPredictions()
	if err != nil {
		t.Fatalf("ReadPredictions: %v", err)
	}

	if len(positives) != 2 || len(negatives) != 1 || len(unsure) != 1 || len(predictions) != 1 {
		t.Fatalf("partition mismatch: +%d -%d ?%d p%d", len(positives), len(negatives), len(unsure), len(predictions))
	}
	if total := len(positives) + len(negatives) + len(unsure) + len(predictions); total != 5 {
		t.Fatalf("mappings lost or duplicated: %d", total)
	}

	for _, m := range positives {
		if !m.Justification.Equal(sssom.ManualMappingCuration) {
			t.Fatalf("positive without manual justification: %s", m.Justification.CURIE())
		}
		if m.Confidence != nil || m.MappingTool != "" {
			t.Fatalf("positive kept predicted provenance: %+v", m)
		}
		if m.Subject.CURIE() == "efo:400" && !m.Predicate.Equal(sssom.NarrowMatch) {
			t.Fatalf("broad outcome not recorded as narrowMatch: %s", m.Predicate.CURIE())
		}
	}
	if negatives[0].PredicateModifier != sssom.PredicateModifierNot {
		t.Fatalf("negative without Not modifier: %q", negatives[0].PredicateModifier)
	}
	if unsure[0].MappingTool != "embedder" {
		t.Fatalf("unsure lost its provenance: %q", unsure[0].MappingTool)
	}
	if predictions[0].Subject.CURIE() != "chebi:500" {
		t.Fatalf("wrong remaining prediction: %s", predictions[0].Subject.CURIE())
	}
}

func TestMemoryController_SingleCorrectMarkEndToEnd(t *testing.T) {
	only := []sssom.Mapping{
		prediction("chebi:133530", "ammeline", "mesh:C027957", "ammeline", sssom.ExactMatch, ptr(0.95), "lexmatch"),
	}
	c, repo := newTestMemoryController(t, only)
	record := findRecord(t, c, "chebi:133530")

	if err := c.Mark(record, OutcomeCorrect, []curies.Reference{testAuthor}); err != nil {
		t.Fatalf("Mark: %v", err)
	}
	if err := c.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	if c.WorkingSetSize() != 0 {
		t.Fatalf("working set not empty: %d", c.WorkingSetSize())
	}
	positives, err := repo.ReadPositives()
	if err != nil {
		t.Fatalf("ReadPositives: %v", err)
	}
	if len(positives) != 1 {
		t.Fatalf("expected exactly one positive, got %d", len(positives))
	}
	got := positives[0]
	if len(got.Authors) != 1 || !got.Authors[0].Equal(testAuthor) {
		t.Fatalf("authors: %+v", got.Authors)
	}
	if got.Confidence != nil || got.MappingTool != "" {
		t.Fatalf("predicted provenance survived curation: %+v", got)
	}
	if !got.Justification.Equal(sssom.ManualMappingCuration) {
		t.Fatalf("justification: %s", got.Justification.CURIE())
	}
	predictions, _, err := repo.ReadPredictions()
	if err != nil {
		t.Fatalf("ReadPredictions: %v", err)
	}
	if len(predictions) != 0 {
		t.Fatalf("curated mapping still in predictions file: %d", len(predictions))
	}
}

func TestMemoryController_PersistWithoutMarksTouchesNothing(t *testing.T) {
	c, repo := newTestMemoryController(t, fixturePredictions())

	before, err := os.ReadFile(repo.PredictionsPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := c.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	after, err := os.ReadFile(repo.PredictionsPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("empty persist rewrote the predictions file")
	}
}

func TestMemoryController_TargetsRestrictWorkingSet(t *testing.T) {
	repo, converter := testRepository(t, fixturePredictions())
	target := curies.MustParseCURIE("chebi:133530")
	c, err := NewMemoryController(repo, converter, logger.NewNop(), []curies.Reference{target})
	if err != nil {
		t.Fatalf("NewMemoryController: %v", err)
	}
	n, err := c.Count(Query{}.Unbounded())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected target prefilter to admit 1 mapping, got %d", n)
	}
}

func TestMemoryController_MarkIgnoresTargetFilter(t *testing.T) {
	repo, converter := testRepository(t, fixturePredictions())
	target := curies.MustParseCURIE("chebi:133530")
	c, err := NewMemoryController(repo, converter, logger.NewNop(), []curies.Reference{target})
	if err != nil {
		t.Fatalf("NewMemoryController: %v", err)
	}

	// chebi:100 -> mesh:C100 is outside the target set; its record is
	// still markable.
	outside := fixturePredictions()[1]
	record := sssom.HashMapping(&outside)
	if err := c.Mark(record, OutcomeCorrect, []curies.Reference{testAuthor}); err != nil {
		t.Fatalf("Mark outside targets: %v", err)
	}
	if c.TotalCurated() != 1 {
		t.Fatalf("mark not recorded: %d", c.TotalCurated())
	}
}

func TestMemoryController_PrefixHistogram(t *testing.T) {
	c, _ := newTestMemoryController(t, fixturePredictions())
	histogram, err := c.PrefixHistogram(Query{}.Unbounded())
	if err != nil {
		t.Fatalf("PrefixHistogram: %v", err)
	}
	if histogram[PrefixPair{Subject: "chebi", Object: "mesh"}] != 3 {
		t.Fatalf("chebi->mesh: %d", histogram[PrefixPair{Subject: "chebi", Object: "mesh"}])
	}
	if histogram[PrefixPair{Subject: "chebi", Object: "efo"}] != 1 {
		t.Fatalf("chebi->efo: %d", histogram[PrefixPair{Subject: "chebi", Object: "efo"}])
	}
	if histogram[PrefixPair{Subject: "efo", Object: "mesh"}] != 1 {
		t.Fatalf("efo->mesh: %d", histogram[PrefixPair{Subject: "efo", Object: "mesh"}])
	}
}

func TestMemoryController_RequiresCollaborators(t *testing.T) {
	repo, converter := testRepository(t, nil)

	var cerr *ConfigurationError
	_, err := NewMemoryController(nil, converter, logger.NewNop(), nil)
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError for nil repo, got %v", err)
	}
	_, err = NewMemoryControllerFromPredictions(nil, nil, repo, nil, logger.NewNop(), nil)
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigurationError for nil converter, got %v", err)
	}
}
