// Package planner computes credit distributions and graduation plans.
package planner

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TermType distinguishes regular terms from short (summer/intersession) terms.
type TermType string

const (
	TermTypePrimary   TermType = "primary"
	TermTypeSecondary TermType = "secondary"
)

// TermDef is a single term offered by a university.
type TermDef struct {
	ID    string `yaml:"id" json:"id"`
	Label string `yaml:"label" json:"label"`
}

// TermSet groups a university's terms by type.
type TermSet struct {
	Primary   []TermDef `yaml:"primary" json:"primary"`
	Secondary []TermDef `yaml:"secondary" json:"secondary"`
}

// AcademicTerms describes how a university's calendar is organized.
// Ordering lists term IDs in calendar order; the year advances when it wraps.
type AcademicTerms struct {
	Terms             TermSet  `yaml:"terms" json:"terms"`
	System            string   `yaml:"system" json:"system"`
	Ordering          []string `yaml:"ordering" json:"ordering"`
	AcademicYearStart string   `yaml:"academic_year_start" json:"academic_year_start"`
}

// DefaultAcademicTerms returns a fall/spring semester calendar with an optional summer term.
func DefaultAcademicTerms() AcademicTerms {
	return AcademicTerms{
		Terms: TermSet{
			Primary: []TermDef{
				{ID: "fall", Label: "Fall"},
				{ID: "spring", Label: "Spring"},
			},
			Secondary: []TermDef{
				{ID: "summer", Label: "Summer"},
			},
		},
		System:            "semester_with_terms",
		Ordering:          []string{"spring", "summer", "fall"},
		AcademicYearStart: "fall",
	}
}

// LoadAcademicTerms reads an academic terms file. Missing fields fall back to
// the default calendar.
func LoadAcademicTerms(path string) (AcademicTerms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AcademicTerms{}, fmt.Errorf("read academic terms: %w", err)
	}

	var terms AcademicTerms
	if err := yaml.Unmarshal(data, &terms); err != nil {
		return AcademicTerms{}, fmt.Errorf("parse academic terms: %w", err)
	}

	def := DefaultAcademicTerms()
	if len(terms.Terms.Primary) == 0 && len(terms.Terms.Secondary) == 0 {
		terms.Terms = def.Terms
	}
	if len(terms.Ordering) == 0 {
		for _, t := range terms.Terms.Primary {
			terms.Ordering = append(terms.Ordering, t.ID)
		}
		for _, t := range terms.Terms.Secondary {
			terms.Ordering = append(terms.Ordering, t.ID)
		}
	}
	if len(terms.Ordering) == 0 {
		return AcademicTerms{}, fmt.Errorf("parse academic terms: no terms defined")
	}
	if terms.AcademicYearStart == "" {
		terms.AcademicYearStart = terms.Ordering[0]
	}
	if terms.System == "" {
		terms.System = def.System
	}

	return terms, nil
}

// PrimaryIDs returns the IDs of all primary terms.
func (a AcademicTerms) PrimaryIDs() []string {
	ids := make([]string, 0, len(a.Terms.Primary))
	for _, t := range a.Terms.Primary {
		ids = append(ids, t.ID)
	}
	return ids
}

// AllIDs returns the IDs of all primary and secondary terms.
func (a AcademicTerms) AllIDs() []string {
	ids := a.PrimaryIDs()
	for _, t := range a.Terms.Secondary {
		ids = append(ids, t.ID)
	}
	return ids
}

// Label returns the display label for a term ID, capitalizing unknown IDs.
func (a AcademicTerms) Label(termID string) string {
	for _, t := range a.Terms.Primary {
		if strings.EqualFold(t.ID, termID) {
			return t.Label
		}
	}
	for _, t := range a.Terms.Secondary {
		if strings.EqualFold(t.ID, termID) {
			return t.Label
		}
	}
	if termID == "" {
		return ""
	}
	return strings.ToUpper(termID[:1]) + termID[1:]
}

// typeOf reports whether a term is primary. Terms that are not listed as
// primary are treated as secondary.
func (a AcademicTerms) typeOf(termID string) TermType {
	for _, t := range a.Terms.Primary {
		if strings.EqualFold(t.ID, termID) {
			return TermTypePrimary
		}
	}
	return TermTypeSecondary
}

func (a AcademicTerms) indexOf(termID string) int {
	for i, id := range a.Ordering {
		if strings.EqualFold(id, termID) {
			return i
		}
	}
	return -1
}

// termMonth approximates the month (0-based) a term starts in.
func termMonth(termID string) int {
	switch strings.ToLower(termID) {
	case "fall", "autumn":
		return 8
	case "spring":
		return 4
	case "summer":
		return 5
	default:
		return 0
	}
}

func containsFold(ids []string, id string) bool {
	for _, s := range ids {
		if strings.EqualFold(s, id) {
			return true
		}
	}
	return false
}
