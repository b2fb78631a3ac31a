package curation

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"gorm.io/gorm"

	"github.com/ontomap/sssom-curator/internal/curies"
	"github.com/ontomap/sssom-curator/internal/platform/logger"
	"github.com/ontomap/sssom-curator/internal/repository"
	"github.com/ontomap/sssom-curator/internal/sssom"
	"github.com/ontomap/sssom-curator/internal/types"
)

// DatabaseController keeps every mapping, curated or not, as one row in a
// single table. The working set is the set of rows matching the
// uncurated clause; Mark is one transactional update; Persist projects
// the whole table back out to the four flat files.
type DatabaseController struct {
	db        *gorm.DB
	log       *logger.Logger
	repo      *repository.Repository
	converter *curies.Converter
	targets   []string

	// metadata captured per file at populate time, threaded back through
	// on projection.
	metadata map[string]*sssom.MappingSet

	totalCurated int
	unpersisted  int
}

var _ Controller = (*DatabaseController)(nil)

// NewDatabaseController wires the relational backend. With populate set,
// the four repository files are loaded into the table; predictions are
// subject to the same ingest validation as the in-memory backend.
func NewDatabaseController(
	dbConn *gorm.DB,
	repo *repository.Repository,
	converter *curies.Converter,
	log *logger.Logger,
	targets []curies.Reference,
	populate bool,
) (*DatabaseController, error) {
	if dbConn == nil {
		return nil, &ConfigurationError{Reason: "database controller requires a database connection"}
	}
	if repo == nil {
		return nil, &ConfigurationError{Reason: "database controller requires a repository"}
	}
	if converter == nil {
		return nil, &ConfigurationError{Reason: "database controller requires a converter"}
	}

	c := &DatabaseController{
		db:        dbConn,
		log:       log.With("controller", "DatabaseController"),
		repo:      repo,
		converter: converter,
		metadata:  make(map[string]*sssom.MappingSet),
	}
	for _, r := range targets {
		c.targets = append(c.targets, r.Key())
	}

	if populate {
		if err := c.populate(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// populate loads the full union of positive/negative/unsure/predicted
// rows into the table. A non-empty table is an earlier session's state
// and is kept as is.
func (c *DatabaseController) populate() error {
	var existing int64
	if err := c.db.Model(&types.MappingRow{}).Count(&existing).Error; err != nil {
		return &PersistenceError{Op: "populate", Err: err}
	}
	if existing > 0 {
		c.log.Info("Mapping table already populated, skipping ingest", "rows", existing)
		return nil
	}

	var rows []*types.MappingRow
	seen := map[string]struct{}{}

	for _, path := range []string{c.repo.PositivesPath, c.repo.NegativesPath, c.repo.UnsurePath} {
		mappings, _, metadata, err := sssom.Read(path)
		if err != nil {
			return err
		}
		c.metadata[path] = metadata
		if path == c.repo.UnsurePath {
			for i := range mappings {
				if !mappings[i].HasCurationRule(sssom.CurationRuleUnsure) {
					mappings[i].CurationRuleText = append(mappings[i].CurationRuleText, sssom.CurationRuleUnsure)
				}
			}
		}
		for i := range mappings {
			m := mappings[i]
			m.Record = sssom.HashMapping(&m)
			if _, dup := seen[m.Record]; dup {
				continue
			}
			seen[m.Record] = struct{}{}
			row, err := types.FromMapping(&m)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
	}

	predictions, metadata, err := c.repo.ReadPredictions()
	if err != nil {
		return err
	}
	c.metadata[c.repo.PredictionsPath] = metadata
	predicted := map[string]struct{}{}
	for i := range predictions {
		m := predictions[i]
		if m.Record != "" {
			return validationErrorf("prediction %s already carries record %q; externally hashed rows are not supported", m.Subject.CURIE(), m.Record)
		}
		m.Record = sssom.HashMapping(&m)
		if _, dup := predicted[m.Record]; dup {
			return validationErrorf("duplicate prediction %s -> %s; deduplicate the input", m.Subject.CURIE(), m.Object.CURIE())
		}
		predicted[m.Record] = struct{}{}
		if _, dup := seen[m.Record]; dup {
			continue
		}
		seen[m.Record] = struct{}{}
		row, err := types.FromMapping(&m)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil
	}
	if err := c.db.CreateInBatches(rows, 500).Error; err != nil {
		return &PersistenceError{Op: "populate", Err: err}
	}
	c.log.Info("Populated mapping table", "rows", len(rows))
	return nil
}

// uncurated scopes a query to the working set: not manually curated and
// not tagged unsure. Marked rows therefore never reappear.
func (c *DatabaseController) uncurated(tx *gorm.DB) *gorm.DB {
	return tx.Where("mapping_justification <> ?", sssom.ManualMappingCuration.CURIE()).
		Where("unsure = ?", false)
}

// targeted narrows read queries to the configured target terms. Mark
// stays unscoped: a record handed out before the targets changed must
// remain markable.
func (c *DatabaseController) targeted(tx *gorm.DB) *gorm.DB {
	if c.targets != nil {
		tx = tx.Where("subject_id IN ? OR object_id IN ?", c.targets, c.targets)
	}
	return tx
}

// likePattern builds a case-insensitive substring pattern. SQLite's
// LOWER() folds ASCII only, so non-ASCII labels match case-sensitively
// here while the in-memory engine folds full Unicode.
func likePattern(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return "%" + s + "%"
}

const likeEscape = ` ESCAPE '\'`

// applyFilters translates the query spec into SQL clauses. Text matching
// is case-insensitive substring, same as the in-memory engine.
func (c *DatabaseController) applyFilters(tx *gorm.DB, q Query) *gorm.DB {
	like := func(column string) string {
		return "LOWER(" + column + ") LIKE ?" + likeEscape
	}
	if q.Text != "" {
		pattern := likePattern(q.Text)
		tx = tx.Where(
			"("+strings.Join([]string{
				like("subject_id"), like("subject_label"),
				like("object_id"), like("object_label"),
				like("mapping_tool"),
			}, " OR ")+")",
			pattern, pattern, pattern, pattern, pattern,
		)
	}
	if q.SubjectText != "" {
		pattern := likePattern(q.SubjectText)
		tx = tx.Where("("+like("subject_id")+" OR "+like("subject_label")+")", pattern, pattern)
	}
	if q.ObjectText != "" {
		pattern := likePattern(q.ObjectText)
		tx = tx.Where("("+like("object_id")+" OR "+like("object_label")+")", pattern, pattern)
	}
	if q.SubjectPrefix != "" {
		tx = tx.Where(like("subject_id"), likePattern(q.SubjectPrefix))
	}
	if q.ObjectPrefix != "" {
		tx = tx.Where(like("object_id"), likePattern(q.ObjectPrefix))
	}
	if q.EitherPrefix != "" {
		pattern := likePattern(q.EitherPrefix)
		tx = tx.Where("("+like("subject_id")+" OR "+like("object_id")+")", pattern, pattern)
	}
	if q.Provenance != "" {
		tx = tx.Where(like("mapping_tool"), likePattern(q.Provenance))
	}
	if q.SameText {
		tx = tx.Where("subject_label <> '' AND object_label <> ''").
			Where("LOWER(subject_label) = LOWER(object_label)").
			Where("predicate_id = ?", sssom.ExactMatch.CURIE())
	}
	return tx
}

func (c *DatabaseController) applyOrder(tx *gorm.DB, s Sort) *gorm.DB {
	switch s {
	case SortConfidenceDesc:
		return tx.Order("COALESCE(confidence, 0) DESC").Order("id ASC")
	case SortConfidenceAsc:
		return tx.Order("COALESCE(confidence, 0) ASC").Order("id ASC")
	case SortSubject:
		return tx.Order("subject_id ASC").Order("id ASC")
	case SortObject:
		return tx.Order("object_id ASC").Order("id ASC")
	default:
		return tx.Order("id ASC")
	}
}

func (c *DatabaseController) Count(q Query) (int, error) {
	var count int64
	tx := c.applyFilters(c.targeted(c.uncurated(c.db.Model(&types.MappingRow{}))), q)
	if err := tx.Count(&count).Error; err != nil {
		return 0, &PersistenceError{Op: "count", Err: err}
	}
	return int(count), nil
}

func (c *DatabaseController) List(q Query) ([]sssom.Mapping, error) {
	tx := c.applyOrder(c.applyFilters(c.targeted(c.uncurated(c.db.Model(&types.MappingRow{}))), q), q.Sort)
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
		if q.Limit == nil {
			// sqlite rejects OFFSET without LIMIT
			tx = tx.Limit(math.MaxInt32)
		}
	}
	if q.Limit != nil {
		tx = tx.Limit(*q.Limit)
	}
	var rows []types.MappingRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	mappings := make([]sssom.Mapping, 0, len(rows))
	for i := range rows {
		m, err := rows[i].ToMapping()
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", rows[i].ID, err)
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func (c *DatabaseController) PrefixHistogram(q Query) (map[PrefixPair]int, error) {
	tx := c.applyFilters(c.targeted(c.uncurated(c.db.Model(&types.MappingRow{}))), q)
	var pairs []struct {
		SubjectID string
		ObjectID  string
	}
	if err := tx.Select("subject_id", "object_id").Find(&pairs).Error; err != nil {
		return nil, &PersistenceError{Op: "prefix histogram", Err: err}
	}
	histogram := make(map[PrefixPair]int)
	for _, pair := range pairs {
		subjectPrefix, _, _ := strings.Cut(pair.SubjectID, ":")
		objectPrefix, _, _ := strings.Cut(pair.ObjectID, ":")
		histogram[PrefixPair{Subject: subjectPrefix, Object: objectPrefix}]++
	}
	return histogram, nil
}

// Mark applies the state change in a single transaction; on any failure
// the row and counters are untouched.
func (c *DatabaseController) Mark(record string, outcome Outcome, authors []curies.Reference) error {
	err := c.db.Transaction(func(tx *gorm.DB) error {
		var row types.MappingRow
		if err := c.uncurated(tx).Where("record = ?", record).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Record: record}
			}
			return &PersistenceError{Op: "mark lookup", Err: err}
		}
		m, err := row.ToMapping()
		if err != nil {
			return err
		}
		curated, err := Curate(m, outcome, authors)
		if err != nil {
			return err
		}
		updated, err := types.FromMapping(&curated)
		if err != nil {
			return err
		}
		updated.ID = row.ID
		if err := tx.Save(updated).Error; err != nil {
			return &PersistenceError{Op: "mark update", Err: err}
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.totalCurated++
	c.unpersisted++
	c.log.Debug("Marked mapping", "record", record, "outcome", outcome.String())
	return nil
}

// Persist reconstructs the four flat files from the table's current
// state. This is a projection, not an append. Nothing is written when no
// mark has happened since the last flush.
func (c *DatabaseController) Persist() error {
	if c.unpersisted == 0 {
		return nil
	}

	var rows []types.MappingRow
	if err := c.db.Order("id ASC").Find(&rows).Error; err != nil {
		return &PersistenceError{Op: "load table", Err: err}
	}

	buckets := map[string][]sssom.Mapping{}
	manual := sssom.ManualMappingCuration.CURIE()
	for i := range rows {
		m, err := rows[i].ToMapping()
		if err != nil {
			return fmt.Errorf("row %d: %w", rows[i].ID, err)
		}
		var path string
		switch {
		case rows[i].Justification == manual && rows[i].PredicateModifier == sssom.PredicateModifierNot:
			path = c.repo.NegativesPath
		case rows[i].Justification == manual:
			path = c.repo.PositivesPath
		case rows[i].Unsure:
			path = c.repo.UnsurePath
		default:
			path = c.repo.PredictionsPath
		}
		m.Record = "" // record identifiers are not a durable contract
		buckets[path] = append(buckets[path], m)
	}

	for _, path := range c.repo.Paths() {
		err := sssom.Write(buckets[path], path, sssom.WriteOptions{
			Metadata:       c.pathMetadata(path),
			Converter:      c.converter,
			DropDuplicates: true,
			Sort:           true,
		})
		if err != nil {
			return &PersistenceError{Op: path, Err: err}
		}
	}

	c.log.Info("Projected mapping table to files", "rows", len(rows))
	c.unpersisted = 0
	return nil
}

func (c *DatabaseController) pathMetadata(path string) *sssom.MappingSet {
	if metadata, ok := c.metadata[path]; ok && metadata != nil && metadata.ID != "" {
		return metadata
	}
	if c.repo.PurlBase != "" {
		return &sssom.MappingSet{ID: strings.TrimRight(c.repo.PurlBase, "/") + "/" + filepath.Base(path)}
	}
	return nil
}

func (c *DatabaseController) Unpersisted() int  { return c.unpersisted }
func (c *DatabaseController) TotalCurated() int { return c.totalCurated }
