// Package conversation models the guided graduation-plan conversation:
// its state, step sequencing, back-navigation and storage.
package conversation

import (
	"fmt"
	"strings"
)

// Step represents a stage of the plan-creation conversation.
type Step string

const (
	// StepInitialize is the starting point of every conversation.
	StepInitialize Step = "initialize"

	// StepProfileCheck confirms graduation date, admission year and student type.
	StepProfileCheck Step = "profile_check"

	// StepCareerPathfinder is an optional detour to explore career goals.
	StepCareerPathfinder Step = "career_pathfinder"

	// StepProgramPathfinder is an optional detour to discover programs.
	StepProgramPathfinder Step = "program_pathfinder"

	// StepTranscriptCheck records whether the student has a transcript on file.
	StepTranscriptCheck Step = "transcript_check"

	// StepProgramSelection is where majors, minors and other programs are chosen.
	StepProgramSelection Step = "program_selection"

	// StepCourseMethod chooses between manual and automatic course selection.
	StepCourseMethod Step = "course_method"

	// StepCourseSelection is manual course picking per requirement.
	StepCourseSelection Step = "course_selection"

	// StepElectives adds elective courses.
	StepElectives Step = "electives"

	// StepStudentInterests records interests used to suggest electives.
	StepStudentInterests Step = "student_interests"

	// StepCreditDistribution chooses how credits are spread across terms.
	StepCreditDistribution Step = "credit_distribution"

	// StepMilestonesAndConstraints records milestones and work commitments.
	StepMilestonesAndConstraints Step = "milestones_and_constraints"

	// StepGeneratingPlan is active while the plan is being generated.
	StepGeneratingPlan Step = "generating_plan"

	// StepComplete is the terminal step.
	StepComplete Step = "complete"
)

// AllSteps returns every step in progress order.
func AllSteps() []Step {
	return []Step{
		StepInitialize,
		StepProfileCheck,
		StepCareerPathfinder,
		StepTranscriptCheck,
		StepProgramPathfinder,
		StepProgramSelection,
		StepCourseMethod,
		StepCourseSelection,
		StepElectives,
		StepStudentInterests,
		StepCreditDistribution,
		StepMilestonesAndConstraints,
		StepGeneratingPlan,
		StepComplete,
	}
}

// IsValid returns true if the step is a recognized value.
func (s Step) IsValid() bool {
	return s.Index() >= 0
}

// Index returns the step's position in progress order, or -1 if unknown.
func (s Step) Index() int {
	for i, step := range AllSteps() {
		if step == s {
			return i
		}
	}
	return -1
}

// IsTerminal returns true if no further transitions leave the step.
func (s Step) IsTerminal() bool {
	return s == StepComplete
}

// String returns the string representation of the step.
func (s Step) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the step.
func (s Step) DisplayName() string {
	switch s {
	case StepInitialize:
		return "Initializing"
	case StepProfileCheck:
		return "Profile Setup"
	case StepCareerPathfinder:
		return "Career Exploration"
	case StepProgramPathfinder:
		return "Program Exploration"
	case StepTranscriptCheck:
		return "Transcript Review"
	case StepProgramSelection:
		return "Program Selection"
	case StepCourseMethod:
		return "Course Selection Method"
	case StepCourseSelection:
		return "Course Selection"
	case StepElectives:
		return "Elective Courses"
	case StepStudentInterests:
		return "Your Interests"
	case StepCreditDistribution:
		return "Credit Distribution"
	case StepMilestonesAndConstraints:
		return "Milestones & Constraints"
	case StepGeneratingPlan:
		return "Generate Plan"
	case StepComplete:
		return "Complete"
	default:
		return "Unknown Step"
	}
}

// StepLabel returns the display label for a step.
func StepLabel(s Step) string {
	return s.DisplayName()
}

// ParseStep parses a string into a Step.
func ParseStep(s string) (Step, error) {
	step := Step(strings.ToLower(strings.TrimSpace(s)))
	if !step.IsValid() {
		return "", fmt.Errorf("invalid step: %q", s)
	}
	return step, nil
}

// UnknownStepError is returned when sequencing is asked about a step it does not know.
type UnknownStepError struct {
	Step Step
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step: %s", e.Step)
}
