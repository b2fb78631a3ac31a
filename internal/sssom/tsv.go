package sssom

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ontomap/sssom-curator/internal/curies"
)

// Columns is the fixed column order for curation TSV files.
var Columns = []string{
	"subject_id",
	"subject_label",
	"predicate_id",
	"predicate_modifier",
	"object_id",
	"object_label",
	"mapping_justification",
	"author_id",
	"mapping_tool",
	"confidence",
}

// fileHeader is the YAML block embedded in leading comment lines.
type fileHeader struct {
	CurieMap   map[string]string `yaml:"curie_map,omitempty"`
	MappingSet `yaml:",inline"`
}

// WriteOptions controls serialization of a mapping file.
type WriteOptions struct {
	// Metadata is threaded through to the header block unchanged.
	Metadata *MappingSet
	// Converter supplies the curie_map header; only prefixes actually
	// used by the mappings are emitted.
	Converter *curies.Converter
	// DropDuplicates removes content-identical rows before writing.
	DropDuplicates bool
	// Sort orders rows by subject, object, then predicate CURIE.
	Sort bool
}

// Read loads a curation TSV file: leading #-commented YAML header with a
// curie_map and mapping-set metadata, a column header row, then one row
// per mapping. Record identifiers are never serialized, so every mapping
// comes back with an empty Record.
func Read(path string) ([]Mapping, *curies.Converter, *MappingSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer f.Close()

	var headerLines []string
	var columnLine string
	var rows []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "#"):
			headerLines = append(headerLines, strings.TrimPrefix(line, "#"))
		case columnLine == "":
			columnLine = line
		case strings.TrimSpace(line) != "":
			rows = append(rows, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	var header fileHeader
	if len(headerLines) > 0 {
		if err := yaml.Unmarshal([]byte(strings.Join(headerLines, "\n")), &header); err != nil {
			return nil, nil, nil, fmt.Errorf("parse header of %s: %w", path, err)
		}
	}

	index, err := columnIndex(columnLine)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parse columns of %s: %w", path, err)
	}

	mappings := make([]Mapping, 0, len(rows))
	for i, row := range rows {
		m, err := parseRow(row, index)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("%s row %d: %w", path, i+1, err)
		}
		mappings = append(mappings, m)
	}

	converter := curies.NewConverter(header.CurieMap)
	metadata := header.MappingSet
	return mappings, converter, &metadata, nil
}

// Write serializes mappings with a whole-file replace: the content is
// written to a temporary file in the target directory and renamed over
// the destination, so readers never observe a partial file.
func Write(mappings []Mapping, path string, opts WriteOptions) error {
	if opts.DropDuplicates {
		mappings = dedupe(mappings)
	}
	if opts.Sort {
		sorted := append([]Mapping(nil), mappings...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(&sorted[j]) })
		mappings = sorted
	}

	var buf strings.Builder
	header := fileHeader{}
	if opts.Metadata != nil {
		header.MappingSet = *opts.Metadata
	}
	if opts.Converter != nil {
		prefixes := map[string]struct{}{}
		for i := range mappings {
			for _, p := range mappings[i].Prefixes() {
				prefixes[p] = struct{}{}
			}
		}
		used := make([]string, 0, len(prefixes))
		for p := range prefixes {
			used = append(used, p)
		}
		header.CurieMap = opts.Converter.Subconverter(used).Bimap()
	}
	if len(header.CurieMap) > 0 || opts.Metadata != nil {
		raw, err := yaml.Marshal(header)
		if err != nil {
			return fmt.Errorf("marshal header: %w", err)
		}
		for _, line := range strings.Split(strings.TrimRight(string(raw), "\n"), "\n") {
			buf.WriteString("#")
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}

	buf.WriteString(strings.Join(Columns, "\t"))
	buf.WriteString("\n")
	for i := range mappings {
		buf.WriteString(formatRow(&mappings[i]))
		buf.WriteString("\n")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(buf.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Append reads the target file, adds the given mappings, and rewrites it
// deduplicated and sorted. Used for the positive/negative/unsure files,
// which only ever grow.
func Append(mappings []Mapping, path string, converter *curies.Converter) error {
	existing, fileConverter, metadata, err := Read(path)
	if err != nil {
		return err
	}
	merged := converter
	if merged == nil {
		merged = fileConverter
	} else {
		merged = merged.Merge(fileConverter)
	}
	return Write(append(existing, mappings...), path, WriteOptions{
		Metadata:       metadata,
		Converter:      merged,
		DropDuplicates: true,
		Sort:           true,
	})
}

func dedupe(mappings []Mapping) []Mapping {
	seen := make(map[string]struct{}, len(mappings))
	out := make([]Mapping, 0, len(mappings))
	for i := range mappings {
		key := mappings[i].Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, mappings[i])
	}
	return out
}

func columnIndex(line string) (map[string]int, error) {
	if strings.TrimSpace(line) == "" {
		return nil, fmt.Errorf("missing column header")
	}
	index := map[string]int{}
	for i, name := range strings.Split(line, "\t") {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"subject_id", "predicate_id", "object_id", "mapping_justification"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}
	return index, nil
}

func parseRow(line string, index map[string]int) (Mapping, error) {
	fields := strings.Split(line, "\t")
	get := func(column string) string {
		i, ok := index[column]
		if !ok || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	var m Mapping
	var err error
	if m.Subject, err = curies.NamedReference(get("subject_id"), get("subject_label")); err != nil {
		return m, err
	}
	if m.Object, err = curies.NamedReference(get("object_id"), get("object_label")); err != nil {
		return m, err
	}
	if m.Predicate, err = curies.ParseCURIE(get("predicate_id")); err != nil {
		return m, err
	}
	if m.Justification, err = curies.ParseCURIE(get("mapping_justification")); err != nil {
		return m, err
	}
	m.Predicate.Name = vocabName(m.Predicate)
	m.Justification.Name = vocabName(m.Justification)
	m.PredicateModifier = get("predicate_modifier")
	m.MappingTool = get("mapping_tool")

	if raw := get("author_id"); raw != "" {
		for _, curie := range strings.Split(raw, "|") {
			author, err := curies.ParseCURIE(strings.TrimSpace(curie))
			if err != nil {
				return m, err
			}
			m.Authors = append(m.Authors, author)
		}
	}
	if raw := get("confidence"); raw != "" {
		confidence, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return m, fmt.Errorf("parse confidence %q: %w", raw, err)
		}
		m.Confidence = &confidence
	}
	return m, nil
}

func formatRow(m *Mapping) string {
	authors := make([]string, 0, len(m.Authors))
	for _, a := range m.Authors {
		authors = append(authors, a.CURIE())
	}
	confidence := ""
	if m.Confidence != nil {
		confidence = strconv.FormatFloat(*m.Confidence, 'g', -1, 64)
	}
	return strings.Join([]string{
		m.Subject.CURIE(),
		m.Subject.Name,
		m.Predicate.CURIE(),
		m.PredicateModifier,
		m.Object.CURIE(),
		m.Object.Name,
		m.Justification.CURIE(),
		strings.Join(authors, "|"),
		m.MappingTool,
		confidence,
	}, "\t")
}

func vocabName(r curies.Reference) string {
	for _, known := range []curies.Reference{
		ExactMatch, BroadMatch, NarrowMatch,
		ManualMappingCuration, LexicalMatching, SemanticSimilarity,
	} {
		if r.Equal(known) {
			return known.Name
		}
	}
	return r.Name
}
