package predict

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ontomap/sssom-curator/internal/curies"
	"github.com/ontomap/sssom-curator/internal/platform/logger"
	"github.com/ontomap/sssom-curator/internal/sssom"
)

func term(curie, label string) curies.Reference {
	r := curies.MustParseCURIE(curie)
	r.Name = label
	return r
}

func TestPredict_MatchesNormalizedLabels(t *testing.T) {
	matcher := NewLexicalMatcher(logger.NewNop())

	subjects := []curies.Reference{
		term("chebi:133530", "ammeline"),
		term("chebi:100", "Citric  Acid"),
		term("chebi:200", "unmatched"),
		term("chebi:300", ""),
	}
	objects := []curies.Reference{
		term("mesh:C027957", "ammeline"),
		term("mesh:C100", "citric acid"),
		term("mesh:C300", ""),
	}

	predictions, err := matcher.Predict(context.Background(), subjects, objects, nil)
	require.NoError(t, err)
	require.Len(t, predictions, 2)

	// Deterministic order: sorted by subject CURIE.
	require.Equal(t, "chebi:100", predictions[0].Subject.CURIE())
	require.Equal(t, "chebi:133530", predictions[1].Subject.CURIE())

	for _, p := range predictions {
		require.True(t, p.Predicate.Equal(sssom.ExactMatch))
		require.True(t, p.Justification.Equal(sssom.LexicalMatching))
		require.Equal(t, ToolName, p.MappingTool)
		require.NotNil(t, p.Confidence)
		require.Empty(t, p.Authors)
		require.Empty(t, p.Record)
	}

	// Whitespace/case-normalized matches score lower than verbatim ones.
	require.Equal(t, 0.95, *predictions[0].Confidence)
	require.Equal(t, 0.99, *predictions[1].Confidence)
}

func TestPredict_SkipsKnownPairsEitherDirection(t *testing.T) {
	matcher := NewLexicalMatcher(logger.NewNop())
	subject := term("chebi:1", "water")
	object := term("mesh:1", "water")

	known := map[string]struct{}{
		pairKey(object, subject): {},
	}
	predictions, err := matcher.Predict(context.Background(), []curies.Reference{subject}, []curies.Reference{object}, known)
	require.NoError(t, err)
	require.Empty(t, predictions)
}

func TestPredict_HonorsContextCancellation(t *testing.T) {
	matcher := NewLexicalMatcher(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	subjects := make([]curies.Reference, 1000)
	for i := range subjects {
		subjects[i] = term("chebi:1", "water")
	}
	_, err := matcher.Predict(ctx, subjects, []curies.Reference{term("mesh:1", "water")}, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadTerms_ParsesAndSkipsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.tsv")
	content := "# curie\tlabel\nchebi:1\twater\n\nchebi:2\tcitric acid\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	terms, err := ReadTerms(path)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	require.Equal(t, "water", terms[0].Name)
	require.Equal(t, "chebi:2", terms[1].CURIE())
}

func TestReadTerms_RejectsMalformedCURIEs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.tsv")
	require.NoError(t, os.WriteFile(path, []byte("notacurie\twater\n"), 0o644))
	_, err := ReadTerms(path)
	require.Error(t, err)
}
