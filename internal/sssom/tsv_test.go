package sssom

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ontomap/sssom-curator/internal/curies"
)

func testConverter() *curies.Converter {
	return curies.NewConverter(map[string]string{
		"chebi":  "http://purl.obolibrary.org/obo/CHEBI_",
		"mesh":   "http://id.nlm.nih.gov/mesh/",
		"skos":   "http://www.w3.org/2004/02/skos/core#",
		"semapv": "https://w3id.org/semapv/vocab/",
		"orcid":  "https://orcid.org/",
	})
}

func testMapping(subject, subjectLabel, object, objectLabel string, confidence float64) Mapping {
	s := curies.MustParseCURIE(subject)
	s.Name = subjectLabel
	o := curies.MustParseCURIE(object)
	o.Name = objectLabel
	return Mapping{
		Subject:       s,
		Predicate:     ExactMatch,
		Object:        o,
		Justification: LexicalMatching,
		Confidence:    &confidence,
		MappingTool:   "test-tool",
	}
}

func TestWriteRead_RoundTripsContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "predictions.sssom.tsv")

	author := curies.MustParseCURIE("orcid:0000-0001-2345-6789")
	in := []Mapping{
		testMapping("chebi:133530", "ammeline", "mesh:C027957", "ammeline", 0.95),
		{
			Subject:           curies.MustParseCURIE("chebi:1"),
			Predicate:         BroadMatch,
			PredicateModifier: PredicateModifierNot,
			Object:            curies.MustParseCURIE("mesh:C2"),
			Justification:     ManualMappingCuration,
			Authors:           []curies.Reference{author},
		},
	}
	metadata := &MappingSet{ID: "https://example.org/test.sssom.tsv", License: "CC0"}

	err := Write(in, path, WriteOptions{Metadata: metadata, Converter: testConverter()})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, converter, gotMetadata, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d mappings, got %d", len(in), len(out))
	}
	if !out[0].Subject.Equal(in[0].Subject) || out[0].Subject.Name != "ammeline" {
		t.Fatalf("subject mismatch: %+v", out[0].Subject)
	}
	if out[0].Confidence == nil || *out[0].Confidence != 0.95 {
		t.Fatalf("confidence mismatch: %v", out[0].Confidence)
	}
	if out[0].MappingTool != "test-tool" {
		t.Fatalf("tool mismatch: %q", out[0].MappingTool)
	}
	if out[1].PredicateModifier != PredicateModifierNot {
		t.Fatalf("modifier mismatch: %q", out[1].PredicateModifier)
	}
	if len(out[1].Authors) != 1 || !out[1].Authors[0].Equal(author) {
		t.Fatalf("authors mismatch: %+v", out[1].Authors)
	}
	if gotMetadata.ID != metadata.ID || gotMetadata.License != metadata.License {
		t.Fatalf("metadata mismatch: %+v", gotMetadata)
	}
	if !converter.Has("chebi") || !converter.Has("mesh") {
		t.Fatalf("curie_map missing prefixes: %v", converter.Prefixes())
	}
}

func TestWrite_EmitsOnlyUsedPrefixes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.sssom.tsv")

	in := []Mapping{testMapping("chebi:1", "a", "mesh:2", "b", 0.5)}
	if err := Write(in, path, WriteOptions{Converter: testConverter()}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, converter, _, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if converter.Has("orcid") {
		t.Fatalf("expected unused prefix to be dropped from curie_map")
	}
	for _, prefix := range []string{"chebi", "mesh", "skos", "semapv"} {
		if !converter.Has(prefix) {
			t.Fatalf("expected prefix %q in curie_map", prefix)
		}
	}
}

func TestWrite_LeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.sssom.tsv")
	in := []Mapping{testMapping("chebi:1", "a", "mesh:2", "b", 0.5)}
	if err := Write(in, path, WriteOptions{Converter: testConverter()}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.sssom.tsv" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("unexpected directory contents: %v", names)
	}
}

func TestAppend_DedupesAndSorts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "positive.sssom.tsv")

	first := testMapping("chebi:2", "b", "mesh:2", "b", 0.5)
	if err := Write([]Mapping{first}, path, WriteOptions{Converter: testConverter()}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	duplicate := testMapping("chebi:2", "b", "mesh:2", "b", 0.5)
	earlier := testMapping("chebi:1", "a", "mesh:1", "a", 0.5)
	if err := Append([]Mapping{duplicate, earlier}, path, testConverter()); err != nil {
		t.Fatalf("Append: %v", err)
	}

	out, _, _, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 mappings after dedupe, got %d", len(out))
	}
	if out[0].Subject.CURIE() != "chebi:1" || out[1].Subject.CURIE() != "chebi:2" {
		t.Fatalf("expected sorted output, got %s then %s", out[0].Subject.CURIE(), out[1].Subject.CURIE())
	}
}

func TestRead_RejectsMissingRequiredColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.sssom.tsv")
	content := "subject_id\tobject_id\nchebi:1\tmesh:1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, _, err := Read(path); err == nil {
		t.Fatalf("expected error for missing predicate_id column")
	}
}

func TestRead_FillsVocabularyLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.sssom.tsv")
	content := strings.Join(Columns, "\t") + "\n" +
		"chebi:1\ta\tskos:exactMatch\t\tmesh:1\tb\tsemapv:LexicalMatching\t\ttool\t0.9\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	out, _, _, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out[0].Predicate.Name != ExactMatch.Name {
		t.Fatalf("expected predicate label %q, got %q", ExactMatch.Name, out[0].Predicate.Name)
	}
	if out[0].Justification.Name != LexicalMatching.Name {
		t.Fatalf("expected justification label %q, got %q", LexicalMatching.Name, out[0].Justification.Name)
	}
}

func TestHashMapping_StableAndLabelInsensitive(t *testing.T) {
	a := testMapping("chebi:133530", "ammeline", "mesh:C027957", "ammeline", 0.95)
	b := testMapping("chebi:133530", "different label", "mesh:C027957", "", 0.10)
	if HashMapping(&a) != HashMapping(&b) {
		t.Fatalf("hash must ignore labels and confidence")
	}

	c := testMapping("chebi:133530", "ammeline", "mesh:other", "ammeline", 0.95)
	if HashMapping(&a) == HashMapping(&c) {
		t.Fatalf("hash must distinguish objects")
	}
	if len(HashMapping(&a)) != 64 {
		t.Fatalf("expected hex sha256, got %q", HashMapping(&a))
	}
}

func TestMapping_CloneDoesNotAlias(t *testing.T) {
	m := testMapping("chebi:1", "a", "mesh:1", "b", 0.5)
	m.Authors = []curies.Reference{curies.MustParseCURIE("orcid:0000-0001-2345-6789")}
	clone := m.Clone()
	*clone.Confidence = 0.1
	clone.Authors[0] = curies.MustParseCURIE("orcid:x")
	if *m.Confidence != 0.5 {
		t.Fatalf("clone aliased confidence")
	}
	if m.Authors[0].Identifier != "0000-0001-2345-6789" {
		t.Fatalf("clone aliased authors")
	}
}
