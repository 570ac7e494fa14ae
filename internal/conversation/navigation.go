package conversation

import (
	"fmt"
	"strings"

	"github.com/mpm/stuplan/internal/planner"
)

// Field names a CollectedData field by its JSON key.
type Field string

const (
	FieldEstGradDate                Field = "estGradDate"
	FieldEstGradSem                 Field = "estGradSem"
	FieldCareerGoals                Field = "careerGoals"
	FieldAdmissionYear              Field = "admissionYear"
	FieldIsTransfer                 Field = "isTransfer"
	FieldHasTranscript              Field = "hasTranscript"
	FieldNeedsTranscriptUpdate      Field = "needsTranscriptUpdate"
	FieldTranscriptUploaded         Field = "transcriptUploaded"
	FieldStudentType                Field = "studentType"
	FieldSelectedPrograms           Field = "selectedPrograms"
	FieldCourseSelectionMethod      Field = "courseSelectionMethod"
	FieldSelectedCourses            Field = "selectedCourses"
	FieldTotalSelectedCredits       Field = "totalSelectedCredits"
	FieldRemainingCreditsToComplete Field = "remainingCreditsToComplete"
	FieldElectiveCourses            Field = "electiveCourses"
	FieldNeedsElectives             Field = "needsElectives"
	FieldStudentInterests           Field = "studentInterests"
	FieldCreditDistributionStrategy Field = "creditDistributionStrategy"
	FieldMilestones                 Field = "milestones"
	FieldWorkConstraints            Field = "workConstraints"
)

// stepDependencies lists the steps invalidated when a step is revisited.
var stepDependencies = map[Step][]Step{
	StepProfileCheck:     {StepCareerPathfinder},
	StepProgramSelection: {StepCourseMethod, StepCourseSelection},
	StepCourseMethod:     {StepCourseSelection},
}

// stepDataFields lists the collected data owned by each step.
var stepDataFields = map[Step][]Field{
	StepProfileCheck:             {FieldEstGradDate, FieldEstGradSem, FieldAdmissionYear, FieldIsTransfer, FieldStudentType},
	StepCareerPathfinder:         {FieldCareerGoals},
	StepTranscriptCheck:          {FieldHasTranscript, FieldNeedsTranscriptUpdate, FieldTranscriptUploaded},
	StepProgramSelection:         {FieldSelectedPrograms},
	StepCourseMethod:             {FieldCourseSelectionMethod},
	StepCourseSelection:          {FieldSelectedCourses, FieldTotalSelectedCredits, FieldRemainingCreditsToComplete},
	StepElectives:                {FieldElectiveCourses, FieldNeedsElectives},
	StepStudentInterests:         {FieldStudentInterests},
	StepCreditDistribution:       {FieldCreditDistributionStrategy},
	StepMilestonesAndConstraints: {FieldMilestones, FieldWorkConstraints},
}

// StepDependencies returns the steps that directly depend on step.
func StepDependencies(step Step) []Step {
	return append([]Step(nil), stepDependencies[step]...)
}

// StepDataFields returns the collected data fields owned by step.
func StepDataFields(step Step) []Field {
	return append([]Field(nil), stepDataFields[step]...)
}

// CanNavigateToStep reports whether target may be revisited. Only completed
// steps are navigable.
func CanNavigateToStep(target Step, completed []Step) bool {
	for _, c := range completed {
		if c == target {
			return true
		}
	}
	return false
}

// StepsToReset returns every step transitively depending on target, in
// breadth-first order and without duplicates.
func StepsToReset(target Step) []Step {
	visited := map[Step]bool{target: true}
	var out []Step

	queue := []Step{target}
	for len(queue) > 0 {
		step := queue[0]
		queue = queue[1:]
		for _, dep := range stepDependencies[step] {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	return out
}

// ClearStepData resets the fields owned by step to their empty values.
func ClearStepData(s State, step Step) State {
	return UpdateState(s, StateUpdate{Data: clearPatch(StepDataFields(step))})
}

func clearPatch(fields []Field) *DataPatch {
	p := &DataPatch{}
	for _, f := range fields {
		switch f {
		case FieldEstGradDate:
			p.EstGradDate = Ptr("")
		case FieldEstGradSem:
			p.EstGradSem = Ptr("")
		case FieldCareerGoals:
			p.CareerGoals = Ptr("")
		case FieldAdmissionYear:
			p.AdmissionYear = Ptr(0)
		case FieldIsTransfer:
			p.IsTransfer = Ptr("")
		case FieldHasTranscript:
			p.HasTranscript = Ptr(false)
		case FieldNeedsTranscriptUpdate:
			p.NeedsTranscriptUpdate = Ptr(false)
		case FieldTranscriptUploaded:
			p.TranscriptUploaded = Ptr(false)
		case FieldStudentType:
			p.StudentType = Ptr(StudentType(""))
		case FieldSelectedPrograms:
			p.SelectedPrograms = Ptr([]ProgramSelection{})
		case FieldCourseSelectionMethod:
			p.CourseSelectionMethod = Ptr(CourseMethod(""))
		case FieldSelectedCourses:
			p.SelectedCourses = Ptr([]CourseSelection{})
		case FieldTotalSelectedCredits:
			p.TotalSelectedCredits = Ptr(0)
		case FieldRemainingCreditsToComplete:
			p.RemainingCreditsToComplete = Ptr(0)
		case FieldElectiveCourses:
			p.ElectiveCourses = Ptr([]ElectiveCourse{})
		case FieldNeedsElectives:
			p.NeedsElectives = Ptr(false)
		case FieldStudentInterests:
			p.StudentInterests = Ptr("")
		case FieldCreditDistributionStrategy:
			p.CreditDistributionStrategy = Ptr[*CreditDistributionStrategy](nil)
		case FieldMilestones:
			p.Milestones = Ptr[[]planner.Milestone](nil)
		case FieldWorkConstraints:
			p.WorkConstraints = Ptr[*planner.WorkConstraints](nil)
		}
	}
	return p
}

// IsFieldEmpty reports whether f holds its empty value.
func (d CollectedData) IsFieldEmpty(f Field) bool {
	switch f {
	case FieldEstGradDate:
		return d.EstGradDate == ""
	case FieldEstGradSem:
		return d.EstGradSem == ""
	case FieldCareerGoals:
		return d.CareerGoals == ""
	case FieldAdmissionYear:
		return d.AdmissionYear == 0
	case FieldIsTransfer:
		return d.IsTransfer == ""
	case FieldHasTranscript:
		return !d.HasTranscript
	case FieldNeedsTranscriptUpdate:
		return !d.NeedsTranscriptUpdate
	case FieldTranscriptUploaded:
		return !d.TranscriptUploaded
	case FieldStudentType:
		return d.StudentType == ""
	case FieldSelectedPrograms:
		return len(d.SelectedPrograms) == 0
	case FieldCourseSelectionMethod:
		return d.CourseSelectionMethod == ""
	case FieldSelectedCourses:
		return len(d.SelectedCourses) == 0
	case FieldTotalSelectedCredits:
		return d.TotalSelectedCredits == 0
	case FieldRemainingCreditsToComplete:
		return d.RemainingCreditsToComplete == 0
	case FieldElectiveCourses:
		return len(d.ElectiveCourses) == 0
	case FieldNeedsElectives:
		return !d.NeedsElectives
	case FieldStudentInterests:
		return d.StudentInterests == ""
	case FieldCreditDistributionStrategy:
		return d.CreditDistributionStrategy == nil
	case FieldMilestones:
		return len(d.Milestones) == 0
	case FieldWorkConstraints:
		return d.WorkConstraints == nil
	default:
		return true
	}
}

// NavigationError is returned when a step cannot be revisited.
type NavigationError struct {
	Target Step
	Reason string
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("cannot navigate to step %s: %s", e.Target, e.Reason)
}

// NavigateToStep moves s back to target. The target and every step that
// depends on it lose their collected data and leave the completed set.
// A target that was never completed is rejected and s is returned unchanged.
func NavigateToStep(s State, target Step) (State, error) {
	if !target.IsValid() {
		return s, &NavigationError{Target: target, Reason: "unknown step"}
	}
	if !CanNavigateToStep(target, s.CompletedSteps) {
		return s, &NavigationError{Target: target, Reason: "step not completed"}
	}

	reset := StepsToReset(target)
	fields := StepDataFields(target)
	for _, step := range reset {
		fields = append(fields, StepDataFields(step)...)
	}

	drop := map[Step]bool{target: true}
	for _, step := range reset {
		drop[step] = true
	}
	completed := make([]Step, 0, len(s.CompletedSteps))
	for _, c := range s.CompletedSteps {
		if !drop[c] {
			completed = append(completed, c)
		}
	}

	next := UpdateState(s, StateUpdate{Step: target, Data: clearPatch(fields)})
	next.CompletedSteps = completed
	return next, nil
}

// ResetWarningMessage describes what revisiting target will discard. It
// reports false when nothing depends on target.
func ResetWarningMessage(target Step) (string, bool) {
	reset := StepsToReset(target)
	if len(reset) == 0 {
		return "", false
	}
	labels := make([]string, 0, len(reset))
	for _, step := range reset {
		labels = append(labels, StepLabel(step))
	}
	return "Going back to this step will reset: " + strings.Join(labels, ", "), true
}
