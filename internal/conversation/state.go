package conversation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mpm/stuplan/internal/planner"
)

// StudentType classifies the student the plan is built for.
type StudentType string

const (
	StudentUndergraduate StudentType = "undergraduate"
	StudentHonor         StudentType = "honor"
	StudentGraduate      StudentType = "graduate"
)

// DisplayName returns a human-readable name for the student type.
func (t StudentType) DisplayName() string {
	switch t {
	case StudentUndergraduate:
		return "Undergraduate"
	case StudentHonor:
		return "Honors"
	case StudentGraduate:
		return "Graduate"
	default:
		return string(t)
	}
}

// ProgramType is the kind of an academic program.
type ProgramType string

const (
	ProgramMajor            ProgramType = "major"
	ProgramMinor            ProgramType = "minor"
	ProgramHonors           ProgramType = "honors"
	ProgramGraduate         ProgramType = "graduate"
	ProgramGeneralEducation ProgramType = "general_education"
)

// DefaultTargetCredits is the credit target assumed for a program of type t
// when the catalog has none. Honors and general education requirements are
// covered by the credits of the other programs.
func (t ProgramType) DefaultTargetCredits() int {
	switch t {
	case ProgramMajor:
		return 120
	case ProgramMinor:
		return 18
	case ProgramGraduate:
		return 30
	default:
		return 0
	}
}

// CourseMethod is how courses are chosen for the plan.
type CourseMethod string

const (
	// CourseMethodManual means the student picks courses per requirement.
	CourseMethodManual CourseMethod = "manual"

	// CourseMethodAI means courses are chosen during plan generation.
	CourseMethodAI CourseMethod = "ai"
)

// ProgramSelection is a program the student has chosen.
type ProgramSelection struct {
	ProgramID   int         `json:"programId"`
	ProgramName string      `json:"programName"`
	ProgramType ProgramType `json:"programType"`
}

// CourseSelection holds the courses picked to satisfy one program requirement.
type CourseSelection struct {
	ProgramID              string           `json:"programId"`
	ProgramName            string           `json:"programName"`
	ProgramType            string           `json:"programType"`
	RequirementID          string           `json:"requirementId"`
	RequirementDescription string           `json:"requirementDescription"`
	Courses                []planner.Course `json:"courses"`
}

// ElectiveCourse is a course the student added outside program requirements.
type ElectiveCourse struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Credits int    `json:"credits"`
}

// SuggestedProgram is a program surfaced by program exploration.
type SuggestedProgram struct {
	ProgramName string `json:"programName"`
	ProgramType string `json:"programType"`
}

// CreditDistributionStrategy is the student's chosen credit pacing.
type CreditDistributionStrategy struct {
	Type                    planner.Strategy             `json:"type"`
	IncludeSecondaryCourses bool                         `json:"includeSecondaryCourses"`
	SelectedTermIDs         []string                     `json:"selectedTermIds,omitempty"`
	SuggestedDistribution   []planner.SemesterAllocation `json:"suggestedDistribution,omitempty"`
}

// CollectedData is everything the student has told us so far. Each field
// stays at its zero value until the step that owns it completes.
type CollectedData struct {
	EstGradDate                string                      `json:"estGradDate"`
	EstGradSem                 string                      `json:"estGradSem"`
	CareerGoals                string                      `json:"careerGoals"`
	AdmissionYear              int                         `json:"admissionYear"`
	IsTransfer                 string                      `json:"isTransfer"`
	HasTranscript              bool                        `json:"hasTranscript"`
	NeedsTranscriptUpdate      bool                        `json:"needsTranscriptUpdate"`
	TranscriptUploaded         bool                        `json:"transcriptUploaded"`
	StudentType                StudentType                 `json:"studentType"`
	SelectedPrograms           []ProgramSelection          `json:"selectedPrograms"`
	SelectedGenEdProgramID     int                         `json:"selectedGenEdProgramId"`
	CourseSelectionMethod      CourseMethod                `json:"courseSelectionMethod"`
	SelectedCourses            []CourseSelection           `json:"selectedCourses"`
	TotalSelectedCredits       int                         `json:"totalSelectedCredits"`
	RemainingCreditsToComplete int                         `json:"remainingCreditsToComplete"`
	ElectiveCourses            []ElectiveCourse            `json:"electiveCourses"`
	NeedsElectives             bool                        `json:"needsElectives"`
	StudentInterests           string                      `json:"studentInterests"`
	CreditDistributionStrategy *CreditDistributionStrategy `json:"creditDistributionStrategy"`
	Milestones                 []planner.Milestone         `json:"milestones"`
	WorkConstraints            *planner.WorkConstraints    `json:"workConstraints"`
	AdditionalConcerns         string                      `json:"additionalConcerns"`
	PlanStartTerm              string                      `json:"planStartTerm"`
	PlanStartYear              int                         `json:"planStartYear"`
	SuggestedPrograms          []SuggestedProgram          `json:"suggestedPrograms"`
}

// NonGenEdPrograms returns the selected programs that are not general education.
func (d CollectedData) NonGenEdPrograms() []ProgramSelection {
	var out []ProgramSelection
	for _, p := range d.SelectedPrograms {
		if p.ProgramType != ProgramGeneralEducation {
			out = append(out, p)
		}
	}
	return out
}

// TotalCourses counts the courses across all course selections.
func (d CollectedData) TotalCourses() int {
	n := 0
	for _, sel := range d.SelectedCourses {
		n += len(sel.Courses)
	}
	return n
}

// ToolCall tracks a tool that has been presented but not yet completed.
type ToolCall struct {
	ID        string    `json:"id"`
	Tool      string    `json:"tool"`
	StartedAt time.Time `json:"startedAt"`
}

// ToolRecord is the most recent tool result received.
type ToolRecord struct {
	Tool        string          `json:"tool"`
	Result      json.RawMessage `json:"result"`
	CompletedAt time.Time       `json:"completedAt"`
}

// State is a plan-creation conversation. Values are treated as immutable:
// every change produces a new State through UpdateState.
type State struct {
	// ConversationID is the unique identifier, formatted as "conv_<uuid>"
	ConversationID string `json:"conversationId"`

	// UserID is the student who owns the conversation
	UserID string `json:"userId"`

	// UniversityID is the student's university
	UniversityID int `json:"universityId"`

	// CreatedAt is when the conversation was started
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is bumped on every transition
	UpdatedAt time.Time `json:"updatedAt"`

	// CurrentStep is the step the student is on
	CurrentStep Step `json:"currentStep"`

	// CompletedSteps holds each finished step at most once
	CompletedSteps []Step `json:"completedSteps"`

	// CollectedData holds the answers gathered so far
	CollectedData CollectedData `json:"collectedData"`

	// PendingToolCall is the tool currently awaiting a result
	PendingToolCall *ToolCall `json:"pendingToolCall"`

	// LastToolResult is the most recent tool result
	LastToolResult *ToolRecord `json:"lastToolResult"`
}

// HasCompleted reports whether step is in the completed set.
func (s State) HasCompleted(step Step) bool {
	for _, c := range s.CompletedSteps {
		if c == step {
			return true
		}
	}
	return false
}

// IsComplete reports whether the conversation reached its terminal step.
func (s State) IsComplete() bool {
	return s.CurrentStep.IsTerminal()
}

// Validate checks if the state has all required fields.
func (s State) Validate() error {
	if s.ConversationID == "" {
		return fmt.Errorf("conversation ID is required")
	}
	if s.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if !s.CurrentStep.IsValid() {
		return fmt.Errorf("invalid step: %s", s.CurrentStep)
	}
	seen := make(map[Step]bool, len(s.CompletedSteps))
	for _, c := range s.CompletedSteps {
		if !c.IsValid() {
			return fmt.Errorf("invalid completed step: %s", c)
		}
		if seen[c] {
			return fmt.Errorf("step %s completed more than once", c)
		}
		seen[c] = true
	}
	return nil
}

// DataPatch is a partial update to CollectedData. Nil fields are left untouched.
type DataPatch struct {
	EstGradDate                *string
	EstGradSem                 *string
	CareerGoals                *string
	AdmissionYear              *int
	IsTransfer                 *string
	HasTranscript              *bool
	NeedsTranscriptUpdate      *bool
	TranscriptUploaded         *bool
	StudentType                *StudentType
	SelectedPrograms           *[]ProgramSelection
	SelectedGenEdProgramID     *int
	CourseSelectionMethod      *CourseMethod
	SelectedCourses            *[]CourseSelection
	TotalSelectedCredits       *int
	RemainingCreditsToComplete *int
	ElectiveCourses            *[]ElectiveCourse
	NeedsElectives             *bool
	StudentInterests           *string
	CreditDistributionStrategy **CreditDistributionStrategy
	Milestones                 *[]planner.Milestone
	WorkConstraints            **planner.WorkConstraints
	AdditionalConcerns         *string
	PlanStartTerm              *string
	PlanStartYear              *int
	SuggestedPrograms          *[]SuggestedProgram
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}

func (p *DataPatch) apply(d *CollectedData) {
	if p == nil {
		return
	}
	setIf(&d.EstGradDate, p.EstGradDate)
	setIf(&d.EstGradSem, p.EstGradSem)
	setIf(&d.CareerGoals, p.CareerGoals)
	setIf(&d.AdmissionYear, p.AdmissionYear)
	setIf(&d.IsTransfer, p.IsTransfer)
	setIf(&d.HasTranscript, p.HasTranscript)
	setIf(&d.NeedsTranscriptUpdate, p.NeedsTranscriptUpdate)
	setIf(&d.TranscriptUploaded, p.TranscriptUploaded)
	setIf(&d.StudentType, p.StudentType)
	setIf(&d.SelectedPrograms, p.SelectedPrograms)
	setIf(&d.SelectedGenEdProgramID, p.SelectedGenEdProgramID)
	setIf(&d.CourseSelectionMethod, p.CourseSelectionMethod)
	setIf(&d.SelectedCourses, p.SelectedCourses)
	setIf(&d.TotalSelectedCredits, p.TotalSelectedCredits)
	setIf(&d.RemainingCreditsToComplete, p.RemainingCreditsToComplete)
	setIf(&d.ElectiveCourses, p.ElectiveCourses)
	setIf(&d.NeedsElectives, p.NeedsElectives)
	setIf(&d.StudentInterests, p.StudentInterests)
	setIf(&d.CreditDistributionStrategy, p.CreditDistributionStrategy)
	setIf(&d.Milestones, p.Milestones)
	setIf(&d.WorkConstraints, p.WorkConstraints)
	setIf(&d.AdditionalConcerns, p.AdditionalConcerns)
	setIf(&d.PlanStartTerm, p.PlanStartTerm)
	setIf(&d.PlanStartYear, p.PlanStartYear)
	setIf(&d.SuggestedPrograms, p.SuggestedPrograms)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// StateUpdate is an additive change to a State.
type StateUpdate struct {
	// Step, if set, becomes the current step
	Step Step

	// Data is merged into the collected data
	Data *DataPatch

	// CompletedStep, if set, is added to the completed set
	CompletedStep Step

	// PendingToolCall replaces the pending tool call when set
	PendingToolCall *ToolCall

	// ClearPendingToolCall removes the pending tool call
	ClearPendingToolCall bool

	// LastToolResult replaces the last tool result when set
	LastToolResult *ToolRecord

	// ClearLastToolResult removes the last tool result
	ClearLastToolResult bool
}

// ValidationResult is the outcome of a business-rule check. Errors block
// progress; warnings never do.
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func newValidationResult(errs, warnings []string) ValidationResult {
	if errs == nil {
		errs = []string{}
	}
	if warnings == nil {
		warnings = []string{}
	}
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs, Warnings: warnings}
}
