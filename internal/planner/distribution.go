package planner

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Strategy controls how aggressively credits are packed into each term.
type Strategy string

const (
	StrategyFastTrack Strategy = "fast_track"
	StrategyBalanced  Strategy = "balanced"
	StrategyExplore   Strategy = "explore"
)

// IsValid returns true if the strategy is a recognized value.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyFastTrack, StrategyBalanced, StrategyExplore:
		return true
	default:
		return false
	}
}

// DisplayName returns a human-readable name for the strategy.
func (s Strategy) DisplayName() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// ParseStrategy parses a string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("invalid strategy: %q", s)
	}
	return st, nil
}

// LoadRange bounds the credit load of a single term.
type LoadRange struct {
	Min    int
	Max    int
	Target int
}

// StrategyLoadRanges holds the load ranges for each term type.
type StrategyLoadRanges struct {
	Primary   LoadRange
	Secondary LoadRange
}

// For returns the range for the given term type.
func (r StrategyLoadRanges) For(t TermType) LoadRange {
	if t == TermTypePrimary {
		return r.Primary
	}
	return r.Secondary
}

// LoadRanges returns the credit load ranges for a strategy. Unknown
// strategies get the balanced ranges.
func LoadRanges(s Strategy) StrategyLoadRanges {
	switch s {
	case StrategyFastTrack:
		return StrategyLoadRanges{
			Primary:   LoadRange{Min: 15, Max: 18, Target: 16},
			Secondary: LoadRange{Min: 6, Max: 9, Target: 7},
		}
	case StrategyExplore:
		return StrategyLoadRanges{
			Primary:   LoadRange{Min: 12, Max: 15, Target: 13},
			Secondary: LoadRange{Min: 3, Max: 6, Target: 4},
		}
	default:
		return StrategyLoadRanges{
			Primary:   LoadRange{Min: 12, Max: 18, Target: 15},
			Secondary: LoadRange{Min: 3, Max: 9, Target: 6},
		}
	}
}

// SemesterAllocation is the suggested credit load for one term.
type SemesterAllocation struct {
	Term             string   `json:"term"`
	TermType         TermType `json:"termType"`
	Year             int      `json:"year"`
	SuggestedCredits int      `json:"suggestedCredits"`
	MinCredits       int      `json:"minCredits"`
	MaxCredits       int      `json:"maxCredits"`
}

// TermSlot is one entry in a generated term sequence.
type TermSlot struct {
	ID   string
	Term string
	Year int
	Type TermType
}

// Label returns the slot's display name, e.g. "Fall 2026".
func (s TermSlot) Label() string {
	return fmt.Sprintf("%s %d", s.Term, s.Year)
}

// CreditDistributionError reports a distribution that cannot be computed.
type CreditDistributionError struct {
	Msg string
}

func (e *CreditDistributionError) Error() string {
	return "credit distribution: " + e.Msg
}

// InvalidTermSequenceError reports a start term missing from the calendar.
type InvalidTermSequenceError struct {
	Term string
}

func (e *InvalidTermSequenceError) Error() string {
	return fmt.Sprintf("invalid start term: %s", e.Term)
}

// IsInvalidTermSequence reports whether err is an InvalidTermSequenceError.
func IsInvalidTermSequence(err error) bool {
	var target *InvalidTermSequenceError
	return errors.As(err, &target)
}

// selectedTerms resolves which term IDs participate in a plan.
func selectedTerms(selected []string, includeSecondary bool, terms AcademicTerms) []string {
	if len(selected) > 0 {
		return selected
	}
	if includeSecondary {
		return terms.AllIDs()
	}
	return terms.PrimaryIDs()
}

// termCursor walks an academic calendar in order.
type termCursor struct {
	terms AcademicTerms
	index int
	year  int
}

func newTermCursor(terms AcademicTerms, startTerm string, startYear int) (*termCursor, error) {
	if len(terms.Ordering) == 0 {
		return nil, &CreditDistributionError{Msg: "academic term ordering is not configured"}
	}
	idx := terms.indexOf(startTerm)
	if idx == -1 {
		return nil, &InvalidTermSequenceError{Term: startTerm}
	}
	return &termCursor{terms: terms, index: idx, year: startYear}, nil
}

func (c *termCursor) current() string {
	return c.terms.Ordering[c.index]
}

func (c *termCursor) advance() {
	c.index = (c.index + 1) % len(c.terms.Ordering)
	if c.index == 0 {
		c.year++
	}
}

// GenerateTermSequence lists the selected terms from the start term up to the
// graduation date, in chronological order.
func GenerateTermSequence(startYear int, startTerm string, gradDate time.Time, terms AcademicTerms, selectedTermIDs []string) ([]TermSlot, error) {
	cursor, err := newTermCursor(terms, startTerm, startYear)
	if err != nil {
		return nil, err
	}

	endYear := gradDate.Year()
	gradMonth := int(gradDate.Month()) - 1

	var seq []TermSlot
	for cursor.year <= endYear {
		termID := cursor.current()
		if !containsFold(selectedTermIDs, termID) {
			cursor.advance()
			continue
		}

		seq = append(seq, TermSlot{
			ID:   termID,
			Term: terms.Label(termID),
			Year: cursor.year,
			Type: terms.typeOf(termID),
		})

		if cursor.year == endYear && termMonth(termID) > gradMonth {
			break
		}
		cursor.advance()
	}

	return seq, nil
}

// DistributionInput parameterizes CalculateSemesterDistribution.
type DistributionInput struct {
	TotalCredits     int
	Strategy         Strategy
	IncludeSecondary bool
	SelectedTermIDs  []string
	AcademicTerms    AcademicTerms
	AdmissionYear    int
	AdmissionTerm    string
	GraduationDate   time.Time
}

// CalculateSemesterDistribution spreads credits across the terms between
// admission and graduation.
func CalculateSemesterDistribution(in DistributionInput) ([]SemesterAllocation, error) {
	selected := selectedTerms(in.SelectedTermIDs, in.IncludeSecondary, in.AcademicTerms)
	seq, err := GenerateTermSequence(in.AdmissionYear, in.AdmissionTerm, in.GraduationDate, in.AcademicTerms, selected)
	if err != nil {
		return nil, err
	}
	if len(seq) == 0 {
		return nil, &CreditDistributionError{Msg: "no terms available between admission and graduation"}
	}
	return distribute(in.TotalCredits, seq, LoadRanges(in.Strategy)), nil
}

// distribute allocates credits across a term sequence. Each term aims for the
// strategy target, drifting toward the average still needed; the last term
// takes the remainder and leftovers are pushed into earlier terms.
func distribute(totalCredits int, seq []TermSlot, ranges StrategyLoadRanges) []SemesterAllocation {
	allocations := make([]SemesterAllocation, 0, len(seq))
	remaining := totalCredits

	for i, slot := range seq {
		r := ranges.For(slot.Type)

		var suggested int
		if i == len(seq)-1 {
			suggested = clamp(remaining, r.Min, r.Max)
		} else {
			avgNeeded := float64(remaining) / float64(len(seq)-i)
			switch {
			case avgNeeded > float64(r.Target+2):
				suggested = min(r.Max, int(math.Ceil(avgNeeded)))
			case avgNeeded < float64(r.Target-2):
				suggested = max(r.Min, int(math.Floor(avgNeeded)))
			default:
				suggested = r.Target
			}
			suggested = clamp(suggested, r.Min, r.Max)
		}

		allocations = append(allocations, SemesterAllocation{
			Term:             slot.Term,
			TermType:         slot.Type,
			Year:             slot.Year,
			SuggestedCredits: suggested,
			MinCredits:       r.Min,
			MaxCredits:       r.Max,
		})
		remaining -= suggested
	}

	if remaining > 0 {
		redistribute(allocations, remaining)
	}
	return allocations
}

func redistribute(allocations []SemesterAllocation, remaining int) {
	for _, pass := range []TermType{TermTypePrimary, TermTypeSecondary} {
		for i := range allocations {
			if remaining <= 0 {
				return
			}
			a := &allocations[i]
			room := a.MaxCredits - a.SuggestedCredits
			if room > 0 && a.TermType == pass {
				add := min(room, remaining)
				a.SuggestedCredits += add
				remaining -= add
			}
		}
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// CompletionInput parameterizes EstimateCompletionTerm.
type CompletionInput struct {
	TotalCredits     int
	Strategy         Strategy
	IncludeSecondary bool
	SelectedTermIDs  []string
	AcademicTerms    AcademicTerms
	AdmissionYear    int
	AdmissionTerm    string
}

// CompletionEstimate is the term in which a student is expected to finish.
type CompletionEstimate struct {
	Term       string
	Year       int
	TermType   TermType
	TotalTerms int
}

// EstimateCompletionTerm walks the calendar taking the strategy's target load
// each selected term until the credits are covered.
func EstimateCompletionTerm(in CompletionInput) (CompletionEstimate, error) {
	if in.TotalCredits <= 0 {
		return CompletionEstimate{}, &CreditDistributionError{Msg: "total credits must be greater than 0"}
	}
	cursor, err := newTermCursor(in.AcademicTerms, in.AdmissionTerm, in.AdmissionYear)
	if err != nil {
		return CompletionEstimate{}, err
	}

	selected := selectedTerms(in.SelectedTermIDs, in.IncludeSecondary, in.AcademicTerms)
	ranges := LoadRanges(in.Strategy)
	remaining := in.TotalCredits
	totalTerms := 0
	maxIterations := len(in.AcademicTerms.Ordering) * 50

	for i := 0; i <= maxIterations; i++ {
		termID := cursor.current()
		if !containsFold(selected, termID) {
			cursor.advance()
			continue
		}

		termType := in.AcademicTerms.typeOf(termID)
		remaining -= ranges.For(termType).Target
		totalTerms++

		if remaining <= 0 {
			return CompletionEstimate{
				Term:       in.AcademicTerms.Label(termID),
				Year:       cursor.year,
				TermType:   termType,
				TotalTerms: totalTerms,
			}, nil
		}
		cursor.advance()
	}

	return CompletionEstimate{}, &CreditDistributionError{Msg: "estimated completion exceeded a reasonable term count"}
}

// CalculateTargetTotalCredits returns the credits still to schedule: the sum
// of selected course credits, or of program targets when courses are placeholders.
func CalculateTargetTotalCredits(courses []Course, programTargets []int, usedPlaceholders bool) int {
	total := 0
	if !usedPlaceholders {
		for _, c := range courses {
			total += c.Credits
		}
		return total
	}
	for _, t := range programTargets {
		total += t
	}
	return total
}

// ValidateCreditDistribution checks a distribution against the courses it must hold.
func ValidateCreditDistribution(distribution []SemesterAllocation, courses []Course) (bool, []string) {
	var errs []string

	allocated := 0
	for _, a := range distribution {
		allocated += a.SuggestedCredits
	}
	required := 0
	for _, c := range courses {
		required += c.Credits
	}

	if diff := allocated - required; diff > 3 || diff < -3 {
		errs = append(errs, fmt.Sprintf("Total allocated credits (%d) does not match required credits (%d)", allocated, required))
	}

	for i, a := range distribution {
		if a.SuggestedCredits < a.MinCredits {
			errs = append(errs, fmt.Sprintf("Term %d (%s) has %d credits, below minimum of %d", i+1, a.Term, a.SuggestedCredits, a.MinCredits))
		}
		if a.SuggestedCredits > a.MaxCredits {
			errs = append(errs, fmt.Sprintf("Term %d (%s) has %d credits, above maximum of %d", i+1, a.Term, a.SuggestedCredits, a.MaxCredits))
		}
	}

	return len(errs) == 0, errs
}
