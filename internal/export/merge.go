// Package export assembles distribution artifacts from a curation
// repository: the merged TSV plus optional YAML and JSON renderings.
package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ontomap/sssom-curator/internal/curation"
	"github.com/ontomap/sssom-curator/internal/curies"
	"github.com/ontomap/sssom-curator/internal/platform/logger"
	"github.com/ontomap/sssom-curator/internal/repository"
	"github.com/ontomap/sssom-curator/internal/sssom"
)

// Options controls which artifacts Merge produces beyond the TSV.
type Options struct {
	// JSON additionally writes a <basename>.sssom.json artifact. Requires
	// the repository to configure a purl_base.
	JSON bool
}

// Result reports the artifacts written by Merge.
type Result struct {
	TSVPath  string
	YAMLPath string
	JSONPath string
	Mappings int
}

// Merge pools the positive, negative, and prediction files into a single
// distribution set under directory. Unsure mappings are withheld: they
// carry neither a curated verdict nor a usable confidence.
func Merge(log *logger.Logger, repo *repository.Repository, directory string, opts Options) (*Result, error) {
	basename, err := artifactBasename(repo)
	if err != nil {
		return nil, err
	}
	if opts.JSON && repo.PurlBase == "" {
		return nil, &curation.ConfigurationError{Reason: "json export requires purl_base in the repository config"}
	}

	converter, err := repo.Converter()
	if err != nil {
		return nil, err
	}

	var merged []sssom.Mapping
	for _, read := range []func() ([]sssom.Mapping, error){repo.ReadPositives, repo.ReadNegatives} {
		mappings, err := read()
		if err != nil {
			return nil, err
		}
		merged = append(merged, mappings...)
	}
	predictions, _, err := repo.ReadPredictions()
	if err != nil {
		return nil, err
	}
	merged = append(merged, predictions...)

	metadata := &sssom.MappingSet{}
	if repo.MappingSet != nil {
		set := *repo.MappingSet
		metadata = &set
	}
	if metadata.ID == "" && repo.PurlBase != "" {
		metadata.ID = strings.TrimRight(repo.PurlBase, "/") + "/" + basename + ".sssom.tsv"
	}

	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, err
	}
	result := &Result{Mappings: len(merged)}

	result.TSVPath = filepath.Join(directory, basename+".sssom.tsv")
	err = sssom.Write(merged, result.TSVPath, sssom.WriteOptions{
		Metadata:       metadata,
		Converter:      converter,
		DropDuplicates: true,
		Sort:           true,
	})
	if err != nil {
		return nil, err
	}

	result.YAMLPath = filepath.Join(directory, basename+".sssom.yml")
	if err := writeYAMLMetadata(result.YAMLPath, metadata, converter, merged); err != nil {
		return nil, err
	}

	if opts.JSON {
		result.JSONPath = filepath.Join(directory, basename+".sssom.json")
		if err := writeJSON(result.JSONPath, metadata, converter, merged); err != nil {
			return nil, err
		}
	}

	log.Info("Merged repository", "directory", directory, "basename", basename, "mappings", result.Mappings)
	return result, nil
}

func artifactBasename(repo *repository.Repository) (string, error) {
	if repo.Basename != "" {
		return repo.Basename, nil
	}
	if repo.MappingSet != nil && repo.MappingSet.Title != "" {
		return strings.ReplaceAll(strings.ToLower(repo.MappingSet.Title), " ", "-"), nil
	}
	return "", &curation.ConfigurationError{Reason: "merge requires basename or mapping_set title in the repository config"}
}

// yamlMetadata is the standalone metadata artifact: the mapping-set
// fields plus the curie map restricted to prefixes the set uses.
type yamlMetadata struct {
	CurieMap   map[string]string `yaml:"curie_map"`
	MappingSet *sssom.MappingSet `yaml:",inline"`
}

func usedSubconverter(converter *curies.Converter, mappings []sssom.Mapping) *curies.Converter {
	seen := map[string]struct{}{}
	for i := range mappings {
		for _, prefix := range mappings[i].Prefixes() {
			seen[prefix] = struct{}{}
		}
	}
	prefixes := make([]string, 0, len(seen))
	for prefix := range seen {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return converter.Subconverter(prefixes)
}

func writeYAMLMetadata(path string, metadata *sssom.MappingSet, converter *curies.Converter, mappings []sssom.Mapping) error {
	raw, err := yaml.Marshal(yamlMetadata{
		CurieMap:   usedSubconverter(converter, mappings).Bimap(),
		MappingSet: metadata,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// jsonMapping mirrors the TSV columns under their standard names.
type jsonMapping struct {
	SubjectID            string   `json:"subject_id"`
	SubjectLabel         string   `json:"subject_label,omitempty"`
	PredicateID          string   `json:"predicate_id"`
	PredicateModifier    string   `json:"predicate_modifier,omitempty"`
	ObjectID             string   `json:"object_id"`
	ObjectLabel          string   `json:"object_label,omitempty"`
	MappingJustification string   `json:"mapping_justification"`
	AuthorIDs            []string `json:"author_id,omitempty"`
	MappingTool          string   `json:"mapping_tool,omitempty"`
	Confidence           *float64 `json:"confidence,omitempty"`
}

type jsonDocument struct {
	*sssom.MappingSet
	CurieMap map[string]string `json:"curie_map"`
	Mappings []jsonMapping     `json:"mappings"`
}

func writeJSON(path string, metadata *sssom.MappingSet, converter *curies.Converter, mappings []sssom.Mapping) error {
	doc := jsonDocument{
		MappingSet: metadata,
		CurieMap:   usedSubconverter(converter, mappings).Bimap(),
		Mappings:   make([]jsonMapping, 0, len(mappings)),
	}
	for i := range mappings {
		m := &mappings[i]
		authors := make([]string, 0, len(m.Authors))
		for _, author := range m.Authors {
			authors = append(authors, author.CURIE())
		}
		doc.Mappings = append(doc.Mappings, jsonMapping{
			SubjectID:            m.Subject.CURIE(),
			SubjectLabel:         m.Subject.Name,
			PredicateID:          m.Predicate.CURIE(),
			PredicateModifier:    m.PredicateModifier,
			ObjectID:             m.Object.CURIE(),
			ObjectLabel:          m.Object.Name,
			MappingJustification: m.Justification.CURIE(),
			AuthorIDs:            authors,
			MappingTool:          m.MappingTool,
			Confidence:           m.Confidence,
		})
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(raw, '\n'), 0o644)
}
