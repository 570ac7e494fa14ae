// Package connector turns completed chatbot tools into conversation
// transitions. It never performs I/O: callers apply the returned state
// updates and carry out the requested side effects.
package connector

import (
	"fmt"
	"strings"

	"github.com/mpm/stuplan/internal/conversation"
)

// Tool identifies an interactive form presented to the student.
type Tool string

const (
	ToolProfileCheck             Tool = "profile_check"
	ToolProfileUpdate            Tool = "profile_update"
	ToolTranscriptCheck          Tool = "transcript_check"
	ToolCareerPathfinder         Tool = "career_pathfinder"
	ToolProgramPathfinder        Tool = "program_pathfinder"
	ToolProgramSelection         Tool = "program_selection"
	ToolCourseMethod             Tool = "course_method"
	ToolCourseSelection          Tool = "course_selection"
	ToolElectives                Tool = "electives"
	ToolStudentInterests         Tool = "student_interests"
	ToolCreditDistribution       Tool = "credit_distribution"
	ToolMilestonesAndConstraints Tool = "milestones_and_constraints"
	ToolGeneratePlanConfirmation Tool = "generate_plan_confirmation"
	ToolActiveFeedbackPlan       Tool = "active_feedback_plan"
	ToolCareerSuggestions        Tool = "career_suggestions"
	ToolProgramSuggestions       Tool = "program_suggestions"
)

// AllTools returns every known tool.
func AllTools() []Tool {
	return []Tool{
		ToolProfileCheck,
		ToolProfileUpdate,
		ToolTranscriptCheck,
		ToolCareerPathfinder,
		ToolProgramPathfinder,
		ToolProgramSelection,
		ToolCourseMethod,
		ToolCourseSelection,
		ToolElectives,
		ToolStudentInterests,
		ToolCreditDistribution,
		ToolMilestonesAndConstraints,
		ToolGeneratePlanConfirmation,
		ToolActiveFeedbackPlan,
		ToolCareerSuggestions,
		ToolProgramSuggestions,
	}
}

// IsValid returns true if the tool is a recognized value.
func (t Tool) IsValid() bool {
	for _, tool := range AllTools() {
		if tool == t {
			return true
		}
	}
	return false
}

// DisplayName returns the tool name with underscores replaced by spaces.
func (t Tool) DisplayName() string {
	return strings.ReplaceAll(string(t), "_", " ")
}

// ParseTool parses a string into a Tool.
func ParseTool(s string) (Tool, error) {
	tool := Tool(strings.ToLower(strings.TrimSpace(s)))
	if !tool.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, s)
	}
	return tool, nil
}

// ToolForStep returns the tool that collects input for step. It returns ""
// for steps with no form.
func ToolForStep(step conversation.Step) Tool {
	switch step {
	case conversation.StepInitialize, conversation.StepProfileCheck:
		return ToolProfileCheck
	case conversation.StepCareerPathfinder:
		return ToolCareerPathfinder
	case conversation.StepProgramPathfinder:
		return ToolProgramPathfinder
	case conversation.StepTranscriptCheck:
		return ToolTranscriptCheck
	case conversation.StepProgramSelection:
		return ToolProgramSelection
	case conversation.StepCourseMethod:
		return ToolCourseMethod
	case conversation.StepCourseSelection:
		return ToolCourseSelection
	case conversation.StepElectives:
		return ToolElectives
	case conversation.StepStudentInterests:
		return ToolStudentInterests
	case conversation.StepCreditDistribution:
		return ToolCreditDistribution
	case conversation.StepMilestonesAndConstraints:
		return ToolMilestonesAndConstraints
	case conversation.StepGeneratingPlan:
		return ToolGeneratePlanConfirmation
	default:
		return ""
	}
}

// StepForTool returns the step a tool belongs to, and false for tools that
// are not tied to a single step.
func StepForTool(t Tool) (conversation.Step, bool) {
	switch t {
	case ToolProfileCheck, ToolProfileUpdate:
		return conversation.StepProfileCheck, true
	case ToolCareerPathfinder, ToolCareerSuggestions:
		return conversation.StepCareerPathfinder, true
	case ToolProgramPathfinder, ToolProgramSuggestions:
		return conversation.StepProgramPathfinder, true
	case ToolTranscriptCheck:
		return conversation.StepTranscriptCheck, true
	case ToolProgramSelection:
		return conversation.StepProgramSelection, true
	case ToolCourseMethod:
		return conversation.StepCourseMethod, true
	case ToolCourseSelection:
		return conversation.StepCourseSelection, true
	case ToolElectives:
		return conversation.StepElectives, true
	case ToolStudentInterests:
		return conversation.StepStudentInterests, true
	case ToolCreditDistribution:
		return conversation.StepCreditDistribution, true
	case ToolMilestonesAndConstraints:
		return conversation.StepMilestonesAndConstraints, true
	case ToolGeneratePlanConfirmation, ToolActiveFeedbackPlan:
		return conversation.StepGeneratingPlan, true
	default:
		return "", false
	}
}

// AcceptedAt reports whether a result for t may be completed while the
// conversation is at step. Profile updates are accepted anywhere short of a
// finished conversation. The pathfinder detours may be entered from the
// steps that lead into program selection.
func AcceptedAt(t Tool, step conversation.Step) bool {
	if step == conversation.StepComplete {
		return false
	}

	switch t {
	case ToolProfileUpdate:
		return true
	case ToolProfileCheck:
		return step == conversation.StepInitialize || step == conversation.StepProfileCheck
	case ToolCareerPathfinder:
		switch step {
		case conversation.StepInitialize, conversation.StepProfileCheck,
			conversation.StepCareerPathfinder, conversation.StepTranscriptCheck:
			return true
		}
		return false
	case ToolProgramPathfinder:
		return step == conversation.StepProgramSelection || step == conversation.StepProgramPathfinder
	case ToolCourseSelection:
		// A manual selection also settles the course method.
		return step == conversation.StepCourseMethod || step == conversation.StepCourseSelection
	}

	owner, ok := StepForTool(t)
	return ok && owner == step
}
