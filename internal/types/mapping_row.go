// Package types holds the relational row models.
package types

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"github.com/ontomap/sssom-curator/internal/curies"
	"github.com/ontomap/sssom-curator/internal/sssom"
)

// MappingRow is one semantic mapping, curated or not, in the single
// mapping table of the relational backend. The working set is the subset
// of rows that are neither manually curated nor tagged unsure.
type MappingRow struct {
	ID                uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Record            string         `gorm:"uniqueIndex;size:64;not null;column:record" json:"record"`
	SubjectID         string         `gorm:"index;not null;column:subject_id" json:"subject_id"`
	SubjectLabel      string         `gorm:"column:subject_label" json:"subject_label"`
	PredicateID       string         `gorm:"not null;column:predicate_id" json:"predicate_id"`
	PredicateModifier string         `gorm:"column:predicate_modifier" json:"predicate_modifier"`
	ObjectID          string         `gorm:"index;not null;column:object_id" json:"object_id"`
	ObjectLabel       string         `gorm:"column:object_label" json:"object_label"`
	Justification     string         `gorm:"index;not null;column:mapping_justification" json:"mapping_justification"`
	Authors           datatypes.JSON `gorm:"column:author_ids" json:"author_ids"`
	MappingTool       string         `gorm:"column:mapping_tool" json:"mapping_tool"`
	Confidence        *float64       `gorm:"column:confidence" json:"confidence"`
	CurationRules     datatypes.JSON `gorm:"column:curation_rule_text" json:"curation_rule_text"`
	// Unsure denormalizes the UNSURE curation-rule tag so the uncurated
	// clause stays a plain column comparison.
	Unsure bool `gorm:"index;column:unsure" json:"unsure"`
}

func (MappingRow) TableName() string { return "mapping" }

// FromMapping converts the domain model into a row. The mapping must
// already carry its record identifier.
func FromMapping(m *sssom.Mapping) (*MappingRow, error) {
	if m.Record == "" {
		return nil, fmt.Errorf("mapping %s -> %s has no record identifier", m.Subject.CURIE(), m.Object.CURIE())
	}
	row := &MappingRow{
		Record:            m.Record,
		SubjectID:         m.Subject.CURIE(),
		SubjectLabel:      m.Subject.Name,
		PredicateID:       m.Predicate.CURIE(),
		PredicateModifier: m.PredicateModifier,
		ObjectID:          m.Object.CURIE(),
		ObjectLabel:       m.Object.Name,
		Justification:     m.Justification.CURIE(),
		MappingTool:       m.MappingTool,
		Confidence:        m.Confidence,
		Unsure:            m.HasCurationRule(sssom.CurationRuleUnsure),
	}
	if len(m.Authors) > 0 {
		authorCuries := make([]string, 0, len(m.Authors))
		for _, a := range m.Authors {
			authorCuries = append(authorCuries, a.CURIE())
		}
		raw, err := json.Marshal(authorCuries)
		if err != nil {
			return nil, err
		}
		row.Authors = datatypes.JSON(raw)
	}
	if len(m.CurationRuleText) > 0 {
		raw, err := json.Marshal(m.CurationRuleText)
		if err != nil {
			return nil, err
		}
		row.CurationRules = datatypes.JSON(raw)
	}
	return row, nil
}

// ToMapping converts a row back into the domain model.
func (r *MappingRow) ToMapping() (sssom.Mapping, error) {
	var m sssom.Mapping
	var err error
	if m.Subject, err = curies.NamedReference(r.SubjectID, r.SubjectLabel); err != nil {
		return m, err
	}
	if m.Object, err = curies.NamedReference(r.ObjectID, r.ObjectLabel); err != nil {
		return m, err
	}
	if m.Predicate, err = curies.ParseCURIE(r.PredicateID); err != nil {
		return m, err
	}
	if m.Justification, err = curies.ParseCURIE(r.Justification); err != nil {
		return m, err
	}
	m.PredicateModifier = r.PredicateModifier
	m.MappingTool = r.MappingTool
	m.Confidence = r.Confidence
	m.Record = r.Record

	if len(r.Authors) > 0 {
		var authorCuries []string
		if err := json.Unmarshal(r.Authors, &authorCuries); err != nil {
			return m, err
		}
		for _, curie := range authorCuries {
			author, err := curies.ParseCURIE(curie)
			if err != nil {
				return m, err
			}
			m.Authors = append(m.Authors, author)
		}
	}
	if len(r.CurationRules) > 0 {
		if err := json.Unmarshal(r.CurationRules, &m.CurationRuleText); err != nil {
			return m, err
		}
	}
	return m, nil
}
