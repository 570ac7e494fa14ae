package connector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mpm/stuplan/internal/conversation"
	"github.com/mpm/stuplan/internal/planner"
)

// ErrUnknownTool is returned for tool names outside the catalogue.
var ErrUnknownTool = errors.New("unknown tool")

// ToolResultError is returned when a tool result fails validation.
type ToolResultError struct {
	Tool     Tool
	Problems []string
}

func (e *ToolResultError) Error() string {
	return fmt.Sprintf("invalid %s result: %s", e.Tool, strings.Join(e.Problems, "; "))
}

// Result is the typed output of a completed tool.
type Result interface {
	// Tool returns the tool that produced the result.
	Tool() Tool

	// Validate returns the problems that make the result unusable.
	Validate() []string
}

// ProfileCheckResult confirms the student's profile.
type ProfileCheckResult struct {
	Completed bool `json:"completed"`
}

// ProfileUpdateResult carries edits to the profile fields.
type ProfileUpdateResult struct {
	EstGradDate   *string `json:"est_grad_date"`
	EstGradSem    *string `json:"est_grad_sem"`
	CareerGoals   *string `json:"career_goals"`
	AdmissionYear *int    `json:"admission_year"`
	IsTransfer    *string `json:"is_transfer"`
}

// TranscriptCheckResult records the student's transcript choice.
type TranscriptCheckResult struct {
	HasTranscript bool `json:"hasTranscript"`
	WantsToUpload bool `json:"wantsToUpload"`
	WantsToUpdate bool `json:"wantsToUpdate"`
}

// CareerPathfinderResult marks an ongoing career exploration.
type CareerPathfinderResult struct {
	InProgress bool `json:"inProgress"`
}

// ProgramPathfinderResult marks an ongoing program exploration.
type ProgramPathfinderResult struct {
	InProgress bool `json:"inProgress"`
}

// ProgramIDs holds program identifiers by kind. Identifiers arrive as strings.
type ProgramIDs struct {
	MajorIDs           []string `json:"majorIds,omitempty"`
	MinorIDs           []string `json:"minorIds,omitempty"`
	GenEdIDs           []string `json:"genEdIds,omitempty"`
	HonorsProgramIDs   []string `json:"honorsProgramIds,omitempty"`
	GraduateProgramIDs []string `json:"graduateProgramIds,omitempty"`
}

// ProgramSelectionResult lists the programs the student picked.
type ProgramSelectionResult struct {
	StudentType conversation.StudentType `json:"studentType"`
	Programs    ProgramIDs               `json:"programs"`
}

// CourseMethodResult records how courses will be chosen.
type CourseMethodResult struct {
	Method conversation.CourseMethod `json:"method"`
}

// Credits is a credit value that may arrive as a number or a string such
// as "3" or "3-4". Ranges use their lower bound.
type Credits int

// UnmarshalJSON implements json.Unmarshaler.
func (c *Credits) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if i := strings.IndexAny(raw, "-–"); i > 0 {
			raw = raw[:i]
		}
	} else {
		raw = string(data)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid credits %q", raw)
	}
	*c = Credits(math.Round(f))
	return nil
}

// CourseEntry is a course picked in the course selection form.
type CourseEntry struct {
	Code         string  `json:"code"`
	Title        string  `json:"title"`
	Credits      Credits `json:"credits"`
	Prerequisite string  `json:"prerequisite,omitempty"`
}

func (c CourseEntry) course() planner.Course {
	return planner.Course{
		Code:         c.Code,
		Title:        c.Title,
		Credits:      int(c.Credits),
		Prerequisite: c.Prerequisite,
	}
}

// RequirementCourses holds the courses chosen for one requirement.
type RequirementCourses struct {
	RequirementID          string        `json:"requirementId"`
	RequirementDescription string        `json:"requirementDescription"`
	SelectedCourses        []CourseEntry `json:"selectedCourses"`
}

// ProgramCourses holds the requirement selections for one program.
type ProgramCourses struct {
	ProgramID    string               `json:"programId"`
	ProgramName  string               `json:"programName"`
	ProgramType  string               `json:"programType"`
	Requirements []RequirementCourses `json:"requirements"`
}

// CourseSelectionResult is the outcome of manual course selection.
type CourseSelectionResult struct {
	SelectionMode               string               `json:"selectionMode"`
	GeneralEducation            []RequirementCourses `json:"generalEducation,omitempty"`
	Programs                    []ProgramCourses     `json:"programs"`
	UserAddedElectives          []CourseEntry        `json:"userAddedElectives,omitempty"`
	TotalSelectedCredits        int                  `json:"totalSelectedCredits,omitempty"`
	TotalCreditsToComplete      int                  `json:"totalCreditsToComplete,omitempty"`
	RemainingRequirementCredits int                  `json:"remainingRequirementCredits,omitempty"`
}

// TotalCourses counts every selected course, electives included.
func (r CourseSelectionResult) TotalCourses() int {
	total := len(r.UserAddedElectives)
	for _, req := range r.GeneralEducation {
		total += len(req.SelectedCourses)
	}
	for _, p := range r.Programs {
		for _, req := range p.Requirements {
			total += len(req.SelectedCourses)
		}
	}
	return total
}

// TotalCredits sums the credits of every selected course, electives included.
func (r CourseSelectionResult) TotalCredits() int {
	total := 0
	add := func(entries []CourseEntry) {
		for _, c := range entries {
			total += int(c.Credits)
		}
	}
	add(r.UserAddedElectives)
	for _, req := range r.GeneralEducation {
		add(req.SelectedCourses)
	}
	for _, p := range r.Programs {
		for _, req := range p.Requirements {
			add(req.SelectedCourses)
		}
	}
	return total
}

// ProgramCount counts the programs that are not general education.
func (r CourseSelectionResult) ProgramCount() int {
	n := 0
	for _, p := range r.Programs {
		if p.ProgramType != string(conversation.ProgramGeneralEducation) {
			n++
		}
	}
	return n
}

// ElectivesResult lists the elective courses the student added.
type ElectivesResult struct {
	ElectiveCourses []conversation.ElectiveCourse `json:"electiveCourses"`
}

// StudentInterestsResult records free-form interests.
type StudentInterestsResult struct {
	Interests string `json:"interests"`
}

// CreditDistributionResult is the chosen credit pacing.
type CreditDistributionResult conversation.CreditDistributionStrategy

// MilestonesAndConstraintsResult records milestones and work commitments.
type MilestonesAndConstraintsResult struct {
	Milestones      []planner.Milestone     `json:"milestones"`
	WorkConstraints planner.WorkConstraints `json:"workConstraints"`
}

// Generation modes offered by the confirmation form.
const (
	ModeAutomatic      = "automatic"
	ModeActiveFeedback = "active_feedback"
)

// GeneratePlanConfirmationResult asks to generate the plan or to review first.
type GeneratePlanConfirmationResult struct {
	Action    string `json:"action"`
	Mode      string `json:"mode,omitempty"`
	StartTerm string `json:"startTerm,omitempty"`
	StartYear int    `json:"startYear,omitempty"`
}

// ActiveFeedbackPlanResult closes the draft plan or asks for generation.
type ActiveFeedbackPlanResult struct {
	Action    string          `json:"action"`
	DraftPlan json.RawMessage `json:"draftPlan,omitempty"`
}

// CareerSuggestionsResult is the career picked from suggestions.
type CareerSuggestionsResult struct {
	SelectedCareer string `json:"selectedCareer"`
}

// ProgramSuggestionsResult lists the programs picked from suggestions.
type ProgramSuggestionsResult []conversation.SuggestedProgram

func (ProfileCheckResult) Tool() Tool             { return ToolProfileCheck }
func (ProfileUpdateResult) Tool() Tool            { return ToolProfileUpdate }
func (TranscriptCheckResult) Tool() Tool          { return ToolTranscriptCheck }
func (CareerPathfinderResult) Tool() Tool         { return ToolCareerPathfinder }
func (ProgramPathfinderResult) Tool() Tool        { return ToolProgramPathfinder }
func (ProgramSelectionResult) Tool() Tool         { return ToolProgramSelection }
func (CourseMethodResult) Tool() Tool             { return ToolCourseMethod }
func (CourseSelectionResult) Tool() Tool          { return ToolCourseSelection }
func (ElectivesResult) Tool() Tool                { return ToolElectives }
func (StudentInterestsResult) Tool() Tool         { return ToolStudentInterests }
func (CreditDistributionResult) Tool() Tool       { return ToolCreditDistribution }
func (MilestonesAndConstraintsResult) Tool() Tool { return ToolMilestonesAndConstraints }
func (GeneratePlanConfirmationResult) Tool() Tool { return ToolGeneratePlanConfirmation }
func (ActiveFeedbackPlanResult) Tool() Tool       { return ToolActiveFeedbackPlan }
func (CareerSuggestionsResult) Tool() Tool        { return ToolCareerSuggestions }
func (ProgramSuggestionsResult) Tool() Tool       { return ToolProgramSuggestions }
