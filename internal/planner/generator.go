package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrNothingToSchedule is returned when a request carries no credits.
var ErrNothingToSchedule = errors.New("no credits to schedule")

// maxOverflowTerms bounds how many terms are appended past the distribution
// when capped loads cannot hold every course.
const maxOverflowTerms = 8

// Request is the input to plan generation.
type Request struct {
	UserID           string
	Programs         []Program
	Courses          []Course // nil means courses are chosen later; placeholders are planned
	Strategy         Strategy
	IncludeSecondary bool
	SelectedTermIDs  []string
	Distribution     []SemesterAllocation
	Milestones       []Milestone
	WorkConstraints  *WorkConstraints
	StartTerm        string
	StartYear        int
	GraduationDate   time.Time
	Terms            AcademicTerms
}

// PlanTerm is one term of a generated plan.
type PlanTerm struct {
	Term       string      `json:"term"`
	Year       int         `json:"year"`
	TermType   TermType    `json:"termType"`
	Courses    []Course    `json:"courses"`
	Credits    int         `json:"credits"`
	Milestones []Milestone `json:"milestones,omitempty"`
}

// Plan is a generated graduation plan.
type Plan struct {
	Strategy             Strategy    `json:"strategy"`
	Terms                []PlanTerm  `json:"terms"`
	TotalCredits         int         `json:"totalCredits"`
	UsedPlaceholders     bool        `json:"usedPlaceholders"`
	UnanchoredMilestones []Milestone `json:"unanchoredMilestones,omitempty"`
	GeneratedAt          time.Time   `json:"generatedAt"`
}

// UnschedulableError reports courses that could not be placed.
type UnschedulableError struct {
	Codes []string
}

func (e *UnschedulableError) Error() string {
	return fmt.Sprintf("could not schedule courses: %s", strings.Join(e.Codes, ", "))
}

// DefaultGenerator places courses into terms using the credit distribution engine.
type DefaultGenerator struct {
	Now func() time.Time
}

// NewGenerator creates a generator using the wall clock.
func NewGenerator() *DefaultGenerator {
	return &DefaultGenerator{Now: time.Now}
}

func (g *DefaultGenerator) now() time.Time {
	if g.Now == nil {
		return time.Now().UTC()
	}
	return g.Now().UTC()
}

// GeneratePlan builds a plan for the request.
func (g *DefaultGenerator) GeneratePlan(ctx context.Context, req Request) (*Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := req.Terms
	if len(terms.Ordering) == 0 {
		terms = DefaultAcademicTerms()
	}
	startTerm := req.StartTerm
	if startTerm == "" {
		startTerm = terms.AcademicYearStart
	}
	startYear := req.StartYear
	if startYear == 0 {
		startYear = g.now().Year()
	}
	selected := selectedTerms(req.SelectedTermIDs, req.IncludeSecondary, terms)
	usePlaceholders := req.Courses == nil

	targets := make([]int, 0, len(req.Programs))
	for _, p := range req.Programs {
		targets = append(targets, p.TargetCredits)
	}
	total := CalculateTargetTotalCredits(req.Courses, targets, usePlaceholders)
	if total <= 0 {
		return nil, ErrNothingToSchedule
	}

	allocations := req.Distribution
	if len(allocations) == 0 {
		var err error
		allocations, err = g.allocate(req, terms, selected, startTerm, startYear, total)
		if err != nil {
			return nil, err
		}
	}

	slots, err := walkTerms(terms, startTerm, startYear, selected, len(allocations)+maxOverflowTerms)
	if err != nil {
		return nil, err
	}

	ranges := LoadRanges(req.Strategy)
	capacities := make([]int, len(slots))
	for i, slot := range slots {
		r := ranges.For(slot.Type)
		if i < len(allocations) {
			capacities[i] = allocations[i].SuggestedCredits
		} else {
			capacities[i] = r.Target
		}
		capacities[i] = capWorkLoad(capacities[i], r, req.WorkConstraints)
	}

	var planTerms []PlanTerm
	if usePlaceholders {
		planTerms, err = placePlaceholders(slots, capacities, len(allocations), total)
		if err != nil {
			return nil, err
		}
	} else {
		planTerms, err = placeCourses(slots, capacities, len(allocations), req.Courses)
		if err != nil {
			return nil, err
		}
	}

	plan := &Plan{
		Strategy:         req.Strategy,
		Terms:            planTerms,
		UsedPlaceholders: usePlaceholders,
		GeneratedAt:      g.now(),
	}
	for _, t := range planTerms {
		plan.TotalCredits += t.Credits
	}
	plan.UnanchoredMilestones = anchorMilestones(plan.Terms, req.Milestones, len(selected))

	return plan, nil
}

func (g *DefaultGenerator) allocate(req Request, terms AcademicTerms, selected []string, startTerm string, startYear, total int) ([]SemesterAllocation, error) {
	if !req.GraduationDate.IsZero() {
		return CalculateSemesterDistribution(DistributionInput{
			TotalCredits:    total,
			Strategy:        req.Strategy,
			SelectedTermIDs: selected,
			AcademicTerms:   terms,
			AdmissionYear:   startYear,
			AdmissionTerm:   startTerm,
			GraduationDate:  req.GraduationDate,
		})
	}

	est, err := EstimateCompletionTerm(CompletionInput{
		TotalCredits:    total,
		Strategy:        req.Strategy,
		SelectedTermIDs: selected,
		AcademicTerms:   terms,
		AdmissionYear:   startYear,
		AdmissionTerm:   startTerm,
	})
	if err != nil {
		return nil, err
	}
	slots, err := walkTerms(terms, startTerm, startYear, selected, est.TotalTerms)
	if err != nil {
		return nil, err
	}
	return distribute(total, slots, LoadRanges(req.Strategy)), nil
}

// walkTerms returns the next n selected terms starting at startTerm. Selected
// IDs missing from the calendar never match, so the walk is bounded.
func walkTerms(terms AcademicTerms, startTerm string, startYear int, selected []string, n int) ([]TermSlot, error) {
	cursor, err := newTermCursor(terms, startTerm, startYear)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, &CreditDistributionError{Msg: "no terms selected"}
	}

	slots := make([]TermSlot, 0, n)
	maxIterations := len(terms.Ordering) * max(n, 1)
	for i := 0; len(slots) < n; i++ {
		if i > maxIterations {
			return nil, &CreditDistributionError{Msg: fmt.Sprintf("selected terms %s are not in the academic calendar", strings.Join(selected, ", "))}
		}
		termID := cursor.current()
		if containsFold(selected, termID) {
			slots = append(slots, TermSlot{
				ID:   termID,
				Term: terms.Label(termID),
				Year: cursor.year,
				Type: terms.typeOf(termID),
			})
		}
		cursor.advance()
	}
	return slots, nil
}

// capWorkLoad limits a term's load for students who work.
func capWorkLoad(credits int, r LoadRange, wc *WorkConstraints) int {
	if wc == nil {
		return credits
	}
	switch wc.WorkStatus {
	case WorkFullTime:
		return min(credits, r.Min)
	case WorkPartTime:
		return min(credits, r.Target)
	default:
		return credits
	}
}

// placePlaceholders fills terms with placeholder credits up to each term's
// capacity. Terms past base are used only while credits remain.
func placePlaceholders(slots []TermSlot, capacities []int, base, total int) ([]PlanTerm, error) {
	planTerms := make([]PlanTerm, 0, len(slots))
	remaining := total
	for i, slot := range slots {
		if i >= base && remaining == 0 {
			break
		}
		pt := PlanTerm{Term: slot.Term, Year: slot.Year, TermType: slot.Type}
		if credits := min(capacities[i], remaining); credits > 0 {
			pt.Courses = []Course{{
				Code:        "TBD",
				Title:       "Program requirement",
				Credits:     credits,
				Placeholder: true,
			}}
			pt.Credits = credits
			remaining -= credits
		}
		planTerms = append(planTerms, pt)
	}

	if remaining > 0 {
		return nil, &CreditDistributionError{Msg: fmt.Sprintf("%d credits do not fit within the term load limits", remaining)}
	}
	return planTerms, nil
}

// placeCourses fills terms in order. A course is only placed in a term after
// the term holding its prerequisite. Terms past base are used only if needed.
func placeCourses(slots []TermSlot, capacities []int, base int, courses []Course) ([]PlanTerm, error) {
	inPlan := make(map[string]bool, len(courses))
	for _, c := range courses {
		inPlan[strings.ToUpper(c.Code)] = true
	}

	placedIn := make(map[string]int, len(courses))
	pending := append([]Course(nil), courses...)
	planTerms := make([]PlanTerm, 0, len(slots))

	for i, slot := range slots {
		if i >= base && len(pending) == 0 {
			break
		}
		pt := PlanTerm{Term: slot.Term, Year: slot.Year, TermType: slot.Type}
		room := capacities[i]

		var next []Course
		for _, c := range pending {
			if c.Credits <= room && prerequisiteMet(c, inPlan, placedIn, i) {
				pt.Courses = append(pt.Courses, c)
				pt.Credits += c.Credits
				room -= c.Credits
				continue
			}
			next = append(next, c)
		}
		for _, c := range pt.Courses {
			placedIn[strings.ToUpper(c.Code)] = i
		}
		pending = next
		planTerms = append(planTerms, pt)
	}

	if len(pending) > 0 {
		codes := make([]string, 0, len(pending))
		for _, c := range pending {
			codes = append(codes, c.Code)
		}
		sort.Strings(codes)
		return nil, &UnschedulableError{Codes: codes}
	}
	return planTerms, nil
}

func prerequisiteMet(c Course, inPlan map[string]bool, placedIn map[string]int, term int) bool {
	prereq := strings.ToUpper(strings.TrimSpace(c.Prerequisite))
	if prereq == "" || !inPlan[prereq] {
		return true
	}
	idx, ok := placedIn[prereq]
	return ok && idx < term
}

// anchorMilestones attaches milestones to terms and returns those that match
// no term.
func anchorMilestones(terms []PlanTerm, milestones []Milestone, termsPerYear int) []Milestone {
	if len(terms) == 0 {
		return milestones
	}

	var unanchored []Milestone
	for _, m := range milestones {
		idx := -1
		switch m.Timing {
		case TimingBeginning:
			idx = 0
		case TimingMiddle:
			idx = len(terms) / 2
		case TimingBeforeLastYear:
			idx = max(0, len(terms)-termsPerYear-1)
		case TimingEnd:
			idx = len(terms) - 1
		default:
			for i, t := range terms {
				if strings.EqualFold(t.Term, m.Term) && t.Year == m.Year {
					idx = i
					break
				}
			}
		}
		if idx == -1 {
			unanchored = append(unanchored, m)
			continue
		}
		terms[idx].Milestones = append(terms[idx].Milestones, m)
	}
	return unanchored
}
