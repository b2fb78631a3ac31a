// Package predict generates candidate mappings for curation.
package predict

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ontomap/sssom-curator/internal/curies"
	"github.com/ontomap/sssom-curator/internal/platform/logger"
	"github.com/ontomap/sssom-curator/internal/repository"
	"github.com/ontomap/sssom-curator/internal/sssom"
)

// ToolName identifies this matcher in the mapping_tool column.
const ToolName = "sssom-curator-lexical"

// LexicalMatcher predicts exact matches between two vocabularies by
// normalized-label equality. It is a deliberately simple black-box
// producer: candidates come out with confidence and tool name set and no
// authors, ready for curation.
type LexicalMatcher struct {
	log *logger.Logger
}

func NewLexicalMatcher(log *logger.Logger) *LexicalMatcher {
	return &LexicalMatcher{log: log.With("matcher", "LexicalMatcher")}
}

func normalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// Predict pairs subject terms with object terms sharing a normalized
// label. Pairs already present in the repository (in either direction)
// are skipped. Subject shards are scored concurrently.
func (m *LexicalMatcher) Predict(
	ctx context.Context,
	subjects, objects []curies.Reference,
	known map[string]struct{},
) ([]sssom.Mapping, error) {
	byLabel := make(map[string][]curies.Reference, len(objects))
	for _, object := range objects {
		label := normalizeLabel(object.Name)
		if label == "" {
			continue
		}
		byLabel[label] = append(byLabel[label], object)
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(subjects) {
		workers = len(subjects)
	}
	if workers < 1 {
		workers = 1
	}
	shards := make([][]sssom.Mapping, workers)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < len(subjects); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				subject := subjects[i]
				label := normalizeLabel(subject.Name)
				if label == "" {
					continue
				}
				for _, object := range byLabel[label] {
					if subject.Equal(object) {
						continue
					}
					if _, seen := known[pairKey(subject, object)]; seen {
						continue
					}
					if _, seen := known[pairKey(object, subject)]; seen {
						continue
					}
					confidence := 0.95
					if subject.Name == object.Name {
						confidence = 0.99
					}
					shards[w] = append(shards[w], sssom.Mapping{
						Subject:       subject,
						Predicate:     sssom.ExactMatch,
						Object:        object,
						Justification: sssom.LexicalMatching,
						Confidence:    &confidence,
						MappingTool:   ToolName,
					})
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var predictions []sssom.Mapping
	for _, shard := range shards {
		predictions = append(predictions, shard...)
	}
	sort.Slice(predictions, func(i, j int) bool { return predictions[i].Less(&predictions[j]) })
	m.log.Info("Predicted mappings", "subjects", len(subjects), "objects", len(objects), "predictions", len(predictions))
	return predictions, nil
}

func pairKey(a, b curies.Reference) string {
	return a.Key() + "|" + b.Key()
}

// KnownPairs collects every subject/object pair already present in the
// repository, curated or not, so the matcher never re-proposes them.
func KnownPairs(repo *repository.Repository) (map[string]struct{}, error) {
	known := map[string]struct{}{}
	for _, path := range repo.Paths() {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		mappings, _, _, err := sssom.Read(path)
		if err != nil {
			return nil, err
		}
		for i := range mappings {
			known[pairKey(mappings[i].Subject, mappings[i].Object)] = struct{}{}
		}
	}
	return known, nil
}

// ReadTerms loads a two-column TSV of CURIE and label, one term per
// line. Lines starting with '#' are skipped.
func ReadTerms(path string) ([]curies.Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var terms []curies.Reference
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		curie, label, _ := strings.Cut(line, "\t")
		term, err := curies.NamedReference(strings.TrimSpace(curie), strings.TrimSpace(label))
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, lineNo, err)
		}
		terms = append(terms, term)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return terms, nil
}
