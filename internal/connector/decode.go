package connector

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mpm/stuplan/internal/conversation"
	"github.com/mpm/stuplan/internal/planner"
)

// DecodeToolResult parses and validates the raw JSON result of tool.
func DecodeToolResult(tool Tool, raw json.RawMessage) (Result, error) {
	var result Result
	var err error

	switch tool {
	case ToolProfileCheck:
		result, err = decodeInto[ProfileCheckResult](raw)
	case ToolProfileUpdate:
		result, err = decodeInto[ProfileUpdateResult](raw)
	case ToolTranscriptCheck:
		result, err = decodeInto[TranscriptCheckResult](raw)
	case ToolCareerPathfinder:
		result, err = decodeInto[CareerPathfinderResult](raw)
	case ToolProgramPathfinder:
		result, err = decodeInto[ProgramPathfinderResult](raw)
	case ToolProgramSelection:
		result, err = decodeInto[ProgramSelectionResult](raw)
	case ToolCourseMethod:
		result, err = decodeInto[CourseMethodResult](raw)
	case ToolCourseSelection:
		result, err = decodeInto[CourseSelectionResult](raw)
	case ToolElectives:
		result, err = decodeInto[ElectivesResult](raw)
	case ToolStudentInterests:
		result, err = decodeInto[StudentInterestsResult](raw)
	case ToolCreditDistribution:
		result, err = decodeInto[CreditDistributionResult](raw)
	case ToolMilestonesAndConstraints:
		result, err = decodeInto[MilestonesAndConstraintsResult](raw)
	case ToolGeneratePlanConfirmation:
		result, err = decodeInto[GeneratePlanConfirmationResult](raw)
	case ToolActiveFeedbackPlan:
		result, err = decodeInto[ActiveFeedbackPlanResult](raw)
	case ToolCareerSuggestions:
		result, err = decodeInto[CareerSuggestionsResult](raw)
	case ToolProgramSuggestions:
		result, err = decodeInto[ProgramSuggestionsResult](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s result: %w", tool, err)
	}

	if problems := result.Validate(); len(problems) > 0 {
		return nil, &ToolResultError{Tool: tool, Problems: problems}
	}
	return result, nil
}

func decodeInto[T Result](raw json.RawMessage) (Result, error) {
	var v T
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (ProfileCheckResult) Validate() []string { return nil }

func (r ProfileUpdateResult) Validate() []string {
	var problems []string
	if r.AdmissionYear != nil && (*r.AdmissionYear < 1900 || *r.AdmissionYear > 2200) {
		problems = append(problems, fmt.Sprintf("admission year %d is out of range", *r.AdmissionYear))
	}
	if r.IsTransfer != nil {
		switch *r.IsTransfer {
		case "", "freshman", "transfer", "dual_enrollment":
		default:
			problems = append(problems, fmt.Sprintf("invalid transfer status %q", *r.IsTransfer))
		}
	}
	return problems
}

func (TranscriptCheckResult) Validate() []string   { return nil }
func (CareerPathfinderResult) Validate() []string  { return nil }
func (ProgramPathfinderResult) Validate() []string { return nil }

// IsGraduate reports whether the selection uses the graduate program list.
func (r ProgramSelectionResult) IsGraduate() bool {
	return r.StudentType == conversation.StudentGraduate
}

func (r ProgramSelectionResult) Validate() []string {
	var problems []string

	switch r.StudentType {
	case conversation.StudentUndergraduate, conversation.StudentHonor:
		if len(r.Programs.MajorIDs) == 0 {
			problems = append(problems, "At least one major is required")
		}
	case conversation.StudentGraduate:
		if len(r.Programs.GraduateProgramIDs) == 0 {
			problems = append(problems, "At least one graduate program is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("invalid student type %q", r.StudentType))
	}

	_, badIDs := r.Selections()
	for _, id := range badIDs {
		problems = append(problems, fmt.Sprintf("invalid program id %q", id))
	}
	return problems
}

// Selections converts the identifier lists into program selections. It
// also returns the identifiers that are not integers.
func (r ProgramSelectionResult) Selections() ([]conversation.ProgramSelection, []string) {
	out := []conversation.ProgramSelection{}
	var bad []string

	add := func(ids []string, pt conversation.ProgramType) {
		for _, raw := range ids {
			id, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				bad = append(bad, raw)
				continue
			}
			out = append(out, conversation.ProgramSelection{ProgramID: id, ProgramType: pt})
		}
	}

	if r.IsGraduate() {
		add(r.Programs.GraduateProgramIDs, conversation.ProgramGraduate)
		return out, bad
	}
	add(r.Programs.MajorIDs, conversation.ProgramMajor)
	add(r.Programs.MinorIDs, conversation.ProgramMinor)
	add(r.Programs.GenEdIDs, conversation.ProgramGeneralEducation)
	add(r.Programs.HonorsProgramIDs, conversation.ProgramHonors)
	return out, bad
}

func (r CourseMethodResult) Validate() []string {
	switch r.Method {
	case conversation.CourseMethodManual, conversation.CourseMethodAI:
		return nil
	default:
		return []string{fmt.Sprintf("invalid course selection method %q", r.Method)}
	}
}

func (r CourseSelectionResult) Validate() []string {
	var problems []string
	if r.SelectionMode != string(conversation.CourseMethodManual) {
		problems = append(problems, fmt.Sprintf("selection mode must be manual, got %q", r.SelectionMode))
	}
	if len(r.Programs) == 0 {
		problems = append(problems, "At least one program is required")
	}

	check := func(req RequirementCourses) {
		if len(req.SelectedCourses) == 0 {
			problems = append(problems, fmt.Sprintf("At least one course is required for requirement %s", req.RequirementID))
		}
	}
	for _, req := range r.GeneralEducation {
		check(req)
	}
	for _, p := range r.Programs {
		for _, req := range p.Requirements {
			check(req)
		}
	}
	if len(r.Programs) > 0 && r.TotalCourses()-len(r.UserAddedElectives) == 0 {
		problems = append(problems, "At least one requirement course must be selected")
	}
	return problems
}

func (r ElectivesResult) Validate() []string {
	var problems []string
	for _, c := range r.ElectiveCourses {
		if c.Code == "" {
			problems = append(problems, "elective course code is required")
		}
		if c.Credits < 0 {
			problems = append(problems, fmt.Sprintf("elective %s has negative credits", c.Code))
		}
	}
	return problems
}

func (StudentInterestsResult) Validate() []string { return nil }

func (r CreditDistributionResult) Validate() []string {
	if !r.Type.IsValid() {
		return []string{fmt.Sprintf("invalid credit distribution strategy %q", r.Type)}
	}
	return nil
}

func (r MilestonesAndConstraintsResult) Validate() []string {
	var problems []string
	if r.WorkConstraints.WorkStatus == "" {
		problems = append(problems, "Work status must be specified")
	} else if !r.WorkConstraints.WorkStatus.IsValid() {
		problems = append(problems, fmt.Sprintf("invalid work status %q", r.WorkConstraints.WorkStatus))
	}
	for _, m := range r.Milestones {
		if m.Timing == planner.TimingSpecific && (m.Term == "" || m.Year == 0) {
			problems = append(problems, fmt.Sprintf("milestone %q needs a term and year", m.Title))
		}
	}
	return problems
}

func (r GeneratePlanConfirmationResult) Validate() []string {
	var problems []string
	switch r.Action {
	case "generate", "review":
	default:
		problems = append(problems, fmt.Sprintf("invalid action %q", r.Action))
	}
	switch r.Mode {
	case "", ModeAutomatic, ModeActiveFeedback:
	default:
		problems = append(problems, fmt.Sprintf("invalid generation mode %q", r.Mode))
	}
	return problems
}

func (r ActiveFeedbackPlanResult) Validate() []string {
	switch r.Action {
	case "generate", "close":
		return nil
	default:
		return []string{fmt.Sprintf("invalid action %q", r.Action)}
	}
}

func (r CareerSuggestionsResult) Validate() []string {
	if strings.TrimSpace(r.SelectedCareer) == "" {
		return []string{"a career must be selected"}
	}
	return nil
}

func (r ProgramSuggestionsResult) Validate() []string {
	if len(r) == 0 {
		return []string{"at least one program must be selected"}
	}
	return nil
}
