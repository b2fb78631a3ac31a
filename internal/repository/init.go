package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ontomap/sssom-curator/internal/sssom"
)

const initReadme = `# SSSOM Curation Repository

Run the curation web app with:

    curator --config curator.yaml web

Merge the curated files into a distributable mapping set with:

    curator --config curator.yaml merge out/

## Colophon

This repository was generated by sssom-curator.
`

// Init scaffolds a curation repository in the given directory: the four
// stub mapping files, a config file, and a README. Existing files are
// never overwritten.
func Init(directory, purlBase, user string) (*Repository, error) {
	purlBase = strings.TrimRight(purlBase, "/")
	if purlBase == "" {
		return nil, fmt.Errorf("a purl base is required to initialize a repository")
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, err
	}

	repo := &Repository{
		PositivesPath:   DefaultPositivesName,
		NegativesPath:   DefaultNegativesName,
		UnsurePath:      DefaultUnsureName,
		PredictionsPath: DefaultPredictionsName,
		PurlBase:        purlBase,
		User:            user,
	}

	for _, name := range repo.Paths() {
		path := filepath.Join(directory, name)
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("refusing to overwrite existing %s", path)
		}
		metadata := &sssom.MappingSet{ID: purlBase + "/" + name}
		if err := sssom.Write(nil, path, sssom.WriteOptions{Metadata: metadata}); err != nil {
			return nil, err
		}
	}

	configPath := filepath.Join(directory, DefaultConfigName)
	if _, err := os.Stat(configPath); err == nil {
		return nil, fmt.Errorf("refusing to overwrite existing %s", configPath)
	}
	raw, err := yaml.Marshal(repo)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(configPath, raw, 0o644); err != nil {
		return nil, err
	}

	readmePath := filepath.Join(directory, "README.md")
	if _, err := os.Stat(readmePath); os.IsNotExist(err) {
		if err := os.WriteFile(readmePath, []byte(initReadme), 0o644); err != nil {
			return nil, err
		}
	}

	repo.resolveRelative(directory)
	return repo, nil
}
