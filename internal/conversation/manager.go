package conversation

import (
	"fmt"
	"math"
	"time"
)

// CreateInitialState starts a conversation at StepInitialize with empty data.
func CreateInitialState(conversationID, userID string, universityID int) State {
	now := time.Now().UTC()
	return State{
		ConversationID: conversationID,
		UserID:         userID,
		UniversityID:   universityID,
		CreatedAt:      now,
		UpdatedAt:      now,
		CurrentStep:    StepInitialize,
		CompletedSteps: []Step{},
		CollectedData: CollectedData{
			SelectedPrograms: []ProgramSelection{},
			SelectedCourses:  []CourseSelection{},
			ElectiveCourses:  []ElectiveCourse{},
		},
	}
}

// UpdateState applies u to s and returns the result. s is not modified.
func UpdateState(s State, u StateUpdate) State {
	next := s
	next.UpdatedAt = time.Now().UTC()

	if u.Step != "" {
		next.CurrentStep = u.Step
	}

	u.Data.apply(&next.CollectedData)

	completed := make([]Step, len(s.CompletedSteps), len(s.CompletedSteps)+1)
	copy(completed, s.CompletedSteps)
	if u.CompletedStep != "" && !s.HasCompleted(u.CompletedStep) {
		completed = append(completed, u.CompletedStep)
	}
	next.CompletedSteps = completed

	switch {
	case u.PendingToolCall != nil:
		call := *u.PendingToolCall
		next.PendingToolCall = &call
	case u.ClearPendingToolCall:
		next.PendingToolCall = nil
	}

	switch {
	case u.LastToolResult != nil:
		rec := *u.LastToolResult
		next.LastToolResult = &rec
	case u.ClearLastToolResult:
		next.LastToolResult = nil
	}

	return next
}

// ValidateStepCompletion checks whether the collected data satisfies step.
func ValidateStepCompletion(s State, step Step) ValidationResult {
	var errs, warnings []string
	data := s.CollectedData

	switch step {
	case StepProgramSelection:
		errs = append(errs, programErrors(data)...)

	case StepCourseMethod:
		if data.CourseSelectionMethod == "" {
			errs = append(errs, "Course selection method must be chosen")
		}

	case StepCourseSelection:
		if data.CourseSelectionMethod == CourseMethodManual && len(data.SelectedCourses) == 0 {
			errs = append(errs, "At least one course must be selected")
		}

	case StepElectives:
		if data.NeedsElectives && len(data.ElectiveCourses) == 0 {
			warnings = append(warnings, "No elective courses were added")
		}

	case StepCreditDistribution:
		if data.CreditDistributionStrategy == nil {
			errs = append(errs, "Credit distribution strategy must be selected")
		}

	case StepMilestonesAndConstraints:
		if data.WorkConstraints == nil || data.WorkConstraints.WorkStatus == "" {
			errs = append(errs, "Work status must be specified")
		}
	}

	return newValidationResult(errs, warnings)
}

func programErrors(data CollectedData) []string {
	if len(data.SelectedPrograms) == 0 {
		return []string{"At least one program must be selected"}
	}
	if data.StudentType == StudentUndergraduate && len(data.NonGenEdPrograms()) == 0 {
		return []string{"At least one major or minor must be selected"}
	}
	return nil
}

// IsReadyForGeneration checks everything plan generation needs.
func IsReadyForGeneration(s State) ValidationResult {
	var errs []string
	data := s.CollectedData

	errs = append(errs, programErrors(data)...)

	if data.CourseSelectionMethod == "" {
		errs = append(errs, "Course selection method must be chosen")
	}
	if data.CourseSelectionMethod == CourseMethodManual && len(data.SelectedCourses) == 0 {
		errs = append(errs, "Courses must be selected for manual mode")
	}
	if data.CreditDistributionStrategy == nil {
		errs = append(errs, "Credit distribution strategy must be selected")
	}
	if data.WorkConstraints == nil || data.WorkConstraints.WorkStatus == "" {
		errs = append(errs, "Work status must be specified")
	}

	return newValidationResult(errs, nil)
}

// ProgressField is a collected answer shown alongside progress.
type ProgressField struct {
	Field  string   `json:"field"`
	Label  string   `json:"label"`
	Value  string   `json:"value,omitempty"`
	Values []string `json:"values,omitempty"`
}

// Progress summarizes how far a conversation has come.
type Progress struct {
	CurrentStepNumber    int             `json:"currentStepNumber"`
	TotalSteps           int             `json:"totalSteps"`
	CurrentStepLabel     string          `json:"currentStepLabel"`
	CompletionPercentage int             `json:"completionPercentage"`
	CollectedFields      []ProgressField `json:"collectedFields"`
}

// GetConversationProgress derives progress information for display.
func GetConversationProgress(s State) Progress {
	total := len(AllSteps())
	data := s.CollectedData
	fields := []ProgressField{}

	add := func(field, label, value string) {
		fields = append(fields, ProgressField{Field: field, Label: label, Value: value})
	}

	if data.EstGradDate != "" {
		add("estGradDate", "Graduation Date", data.EstGradDate)
	}
	if data.EstGradSem != "" {
		add("estGradSem", "Graduation Semester", data.EstGradSem)
	}
	if data.AdmissionYear != 0 {
		add("admissionYear", "Admission Year", fmt.Sprint(data.AdmissionYear))
	}
	if data.CareerGoals != "" {
		add("careerGoals", "Career Goals", data.CareerGoals)
	}
	if data.HasTranscript {
		value := "On file"
		if data.TranscriptUploaded {
			value = "Uploaded"
		}
		add("transcript", "Transcript", value)
	}
	if data.StudentType != "" {
		add("studentType", "Student Type", data.StudentType.DisplayName())
	}
	if programs := data.NonGenEdPrograms(); len(programs) > 0 {
		names := make([]string, 0, len(programs))
		for _, p := range programs {
			names = append(names, p.ProgramName)
		}
		fields = append(fields, ProgressField{Field: "programs", Label: "Programs", Values: names})
	}
	switch data.CourseSelectionMethod {
	case CourseMethodAI:
		add("courseMethod", "Course Selection", "AI-Selected")
	case CourseMethodManual:
		add("courseMethod", "Course Selection", "Manually Selected")
	}
	if n := data.TotalCourses(); n > 0 {
		add("courses", "Courses Selected", fmt.Sprintf("%d courses", n))
	}
	if n := len(data.ElectiveCourses); n > 0 {
		add("electives", "Electives", fmt.Sprintf("%d elective courses", n))
	}
	if data.CreditDistributionStrategy != nil {
		add("creditDistribution", "Credit Strategy", data.CreditDistributionStrategy.Type.DisplayName())
	}
	if data.Milestones != nil {
		switch n := len(data.Milestones); n {
		case 0:
			add("milestones", "Milestones", "None")
		case 1:
			add("milestones", "Milestones", "1 milestone set")
		default:
			add("milestones", "Milestones", fmt.Sprintf("%d milestones set", n))
		}
	}
	if data.WorkConstraints != nil && data.WorkConstraints.WorkStatus != "" {
		add("workStatus", "Work Status", data.WorkConstraints.WorkStatus.DisplayName())
	}

	return Progress{
		CurrentStepNumber:    s.CurrentStep.Index() + 1,
		TotalSteps:           total,
		CurrentStepLabel:     StepLabel(s.CurrentStep),
		CompletionPercentage: int(math.Round(float64(len(s.CompletedSteps)) / float64(total) * 100)),
		CollectedFields:      fields,
	}
}
