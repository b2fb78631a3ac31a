// Package repository describes a curation repository on disk: the four
// mapping files, their metadata, and the prefix map they share.
package repository

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ontomap/sssom-curator/internal/curies"
	"github.com/ontomap/sssom-curator/internal/sssom"
)

// Default file names used by Init and by configs that omit them.
const (
	DefaultPositivesName   = "positive.sssom.tsv"
	DefaultNegativesName   = "negative.sssom.tsv"
	DefaultUnsureName      = "unsure.sssom.tsv"
	DefaultPredictionsName = "predictions.sssom.tsv"
	DefaultConfigName      = "curator.yaml"
)

// Repository is the durable layout contract: four tabular mapping files
// plus export metadata. Paths are resolved relative to the config file.
type Repository struct {
	PositivesPath   string `yaml:"positives" validate:"required"`
	NegativesPath   string `yaml:"negatives" validate:"required"`
	UnsurePath      string `yaml:"unsure" validate:"required"`
	PredictionsPath string `yaml:"predictions" validate:"required"`

	// PurlBase anchors mapping-set identifiers in exports. Required only
	// when an export is requested.
	PurlBase string `yaml:"purl_base,omitempty"`
	// Basename names merged export artifacts; falls back to the mapping
	// set title.
	Basename string `yaml:"basename,omitempty"`
	// User is the CURIE of the curator on whose behalf marks are made.
	User string `yaml:"user,omitempty"`

	MappingSet *sssom.MappingSet `yaml:"mapping_set,omitempty"`

	// ExtraPrefixes supplements the prefix maps found in the mapping
	// files themselves.
	ExtraPrefixes map[string]string `yaml:"prefixes,omitempty"`
}

var validate = validator.New()

// Load reads a repository config. A directory path is resolved to the
// default config name inside it.
func Load(path string) (*Repository, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		path = filepath.Join(path, DefaultConfigName)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var repo Repository
	if err := yaml.Unmarshal(raw, &repo); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := validate.Struct(&repo); err != nil {
		return nil, fmt.Errorf("invalid repository config %s: %w", path, err)
	}
	repo.resolveRelative(filepath.Dir(path))
	return &repo, nil
}

func (r *Repository) resolveRelative(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	r.PositivesPath = resolve(r.PositivesPath)
	r.NegativesPath = resolve(r.NegativesPath)
	r.UnsurePath = resolve(r.UnsurePath)
	r.PredictionsPath = resolve(r.PredictionsPath)
}

// Paths returns all four mapping file paths.
func (r *Repository) Paths() []string {
	return []string{r.PositivesPath, r.NegativesPath, r.UnsurePath, r.PredictionsPath}
}

// UserReference parses the configured curator CURIE.
func (r *Repository) UserReference() (curies.Reference, error) {
	if r.User == "" {
		return curies.Reference{}, fmt.Errorf("repository config has no user")
	}
	return curies.ParseCURIE(r.User)
}

// Converter assembles a prefix converter from the headers of every
// mapping file, the config's extra prefixes, and the built-in vocabulary
// prefixes. Constructed once by the caller and passed down; nothing
// caches it globally.
func (r *Repository) Converter() (*curies.Converter, error) {
	merged := curies.NewConverter(sssom.DefaultPrefixMap())
	if len(r.ExtraPrefixes) > 0 {
		merged = curies.NewConverter(r.ExtraPrefixes).Merge(merged)
	}
	for _, path := range r.Paths() {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		_, fileConverter, _, err := sssom.Read(path)
		if err != nil {
			return nil, fmt.Errorf("load prefixes from %s: %w", path, err)
		}
		merged = fileConverter.Merge(merged)
	}
	return merged, nil
}

// ReadPositives loads the positive curated mappings.
func (r *Repository) ReadPositives() ([]sssom.Mapping, error) {
	mappings, _, _, err := sssom.Read(r.PositivesPath)
	return mappings, err
}

// ReadNegatives loads the negative curated mappings.
func (r *Repository) ReadNegatives() ([]sssom.Mapping, error) {
	mappings, _, _, err := sssom.Read(r.NegativesPath)
	return mappings, err
}

// ReadUnsure loads unsure mappings, tagged so they are recognizable when
// pooled with uncurated rows.
func (r *Repository) ReadUnsure() ([]sssom.Mapping, error) {
	mappings, _, _, err := sssom.Read(r.UnsurePath)
	if err != nil {
		return nil, err
	}
	for i := range mappings {
		if !mappings[i].HasCurationRule(sssom.CurationRuleUnsure) {
			mappings[i].CurationRuleText = append(mappings[i].CurationRuleText, sssom.CurationRuleUnsure)
		}
	}
	return mappings, nil
}

// ReadPredictions loads the uncurated predictions plus their file
// metadata, which the controller threads through on rewrite.
func (r *Repository) ReadPredictions() ([]sssom.Mapping, *sssom.MappingSet, error) {
	mappings, _, metadata, err := sssom.Read(r.PredictionsPath)
	return mappings, metadata, err
}
