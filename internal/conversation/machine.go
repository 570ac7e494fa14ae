package conversation

// ElectivesPolicy decides whether the selected programs call for electives.
type ElectivesPolicy interface {
	RequiresElectives(s State) bool
}

// ElectivesPolicyFunc adapts a function to ElectivesPolicy.
type ElectivesPolicyFunc func(s State) bool

// RequiresElectives calls f(s).
func (f ElectivesPolicyFunc) RequiresElectives(s State) bool {
	return f(s)
}

// AnyProgramRequiresElectives asks for electives whenever a program is
// selected. Program requirement trees are not inspected.
var AnyProgramRequiresElectives = ElectivesPolicyFunc(func(s State) bool {
	return len(s.CollectedData.SelectedPrograms) > 0
})

// Machine sequences conversation steps.
type Machine struct {
	electives ElectivesPolicy
}

// NewMachine creates a sequencer. A nil policy uses AnyProgramRequiresElectives.
func NewMachine(policy ElectivesPolicy) *Machine {
	if policy == nil {
		policy = AnyProgramRequiresElectives
	}
	return &Machine{electives: policy}
}

var defaultMachine = NewMachine(nil)

// RequiresElectives reports whether the electives step applies to s.
func (m *Machine) RequiresElectives(s State) bool {
	return m.electives.RequiresElectives(s)
}

func (m *Machine) electivesStep(s State) Step {
	if m.RequiresElectives(s) {
		return StepElectives
	}
	return StepCreditDistribution
}

// NextStep returns the step that follows the current one.
func (m *Machine) NextStep(s State) (Step, error) {
	switch s.CurrentStep {
	case StepInitialize:
		return StepProfileCheck, nil
	case StepProfileCheck, StepCareerPathfinder:
		return StepTranscriptCheck, nil
	case StepProgramPathfinder, StepTranscriptCheck:
		return StepProgramSelection, nil
	case StepStudentInterests:
		return StepCreditDistribution, nil
	case StepProgramSelection:
		return StepCourseMethod, nil
	case StepCourseMethod:
		if s.CollectedData.CourseSelectionMethod == CourseMethodManual {
			return StepCourseSelection, nil
		}
		return m.electivesStep(s), nil
	case StepCourseSelection:
		return m.electivesStep(s), nil
	case StepElectives:
		return StepCreditDistribution, nil
	case StepCreditDistribution:
		return StepMilestonesAndConstraints, nil
	case StepMilestonesAndConstraints:
		return StepGeneratingPlan, nil
	case StepGeneratingPlan, StepComplete:
		return StepComplete, nil
	default:
		return s.CurrentStep, &UnknownStepError{Step: s.CurrentStep}
	}
}

// PreviousStep returns the step before the current one. It reports false
// at StepInitialize and for unknown steps.
func (m *Machine) PreviousStep(s State) (Step, bool) {
	data := s.CollectedData

	switch s.CurrentStep {
	case StepProfileCheck:
		return StepInitialize, true
	case StepCareerPathfinder, StepTranscriptCheck:
		return StepProfileCheck, true
	case StepProgramPathfinder:
		// The program pathfinder is opened from program selection.
		return StepProgramSelection, true
	case StepStudentInterests:
		if s.HasCompleted(StepCareerPathfinder) {
			return StepCareerPathfinder, true
		}
		return StepProfileCheck, true
	case StepProgramSelection:
		return StepTranscriptCheck, true
	case StepCourseMethod:
		return StepProgramSelection, true
	case StepCourseSelection:
		return StepCourseMethod, true
	case StepElectives:
		if data.CourseSelectionMethod == CourseMethodManual {
			return StepCourseSelection, true
		}
		return StepCourseMethod, true
	case StepCreditDistribution:
		if s.HasCompleted(StepElectives) {
			return StepElectives, true
		}
		if data.CourseSelectionMethod == CourseMethodManual {
			return StepCourseSelection, true
		}
		return StepCourseMethod, true
	case StepMilestonesAndConstraints:
		return StepCreditDistribution, true
	case StepGeneratingPlan:
		return StepMilestonesAndConstraints, true
	case StepComplete:
		return StepGeneratingPlan, true
	default:
		return "", false
	}
}

// CanSkipStep reports whether step may be skipped given s.
func (m *Machine) CanSkipStep(s State, step Step) bool {
	switch step {
	case StepCareerPathfinder, StepMilestonesAndConstraints:
		return true
	case StepTranscriptCheck:
		return false
	case StepCourseSelection:
		return s.CollectedData.CourseSelectionMethod == CourseMethodAI
	case StepElectives:
		return !m.RequiresElectives(s)
	default:
		return false
	}
}

// RequiredSteps lists, in order, the steps s must pass through.
func (m *Machine) RequiredSteps(s State) []Step {
	required := []Step{
		StepInitialize,
		StepProfileCheck,
		StepTranscriptCheck,
		StepProgramSelection,
		StepCourseMethod,
	}
	if s.CollectedData.CourseSelectionMethod == CourseMethodManual {
		required = append(required, StepCourseSelection)
	}
	if m.RequiresElectives(s) {
		required = append(required, StepElectives)
	}
	return append(required, StepCreditDistribution, StepGeneratingPlan, StepComplete)
}

// CanProceedToNextStep reports whether the current step has what it needs
// to move on. Generation is never advanced manually.
func (m *Machine) CanProceedToNextStep(s State) bool {
	data := s.CollectedData

	switch s.CurrentStep {
	case StepProgramSelection:
		return len(data.SelectedPrograms) > 0
	case StepCourseMethod:
		return data.CourseSelectionMethod != ""
	case StepCourseSelection:
		return data.CourseSelectionMethod == CourseMethodAI || len(data.SelectedCourses) > 0
	case StepGeneratingPlan, StepComplete:
		return false
	default:
		return s.CurrentStep.IsValid()
	}
}

// NextStep returns the step after the current one using the default policy.
func NextStep(s State) (Step, error) {
	return defaultMachine.NextStep(s)
}

// PreviousStep returns the step before the current one using the default policy.
func PreviousStep(s State) (Step, bool) {
	return defaultMachine.PreviousStep(s)
}

// CanSkipStep reports whether step may be skipped using the default policy.
func CanSkipStep(s State, step Step) bool {
	return defaultMachine.CanSkipStep(s, step)
}

// RequiredSteps lists the required steps using the default policy.
func RequiredSteps(s State) []Step {
	return defaultMachine.RequiredSteps(s)
}

// CanProceedToNextStep reports whether the current step may advance.
func CanProceedToNextStep(s State) bool {
	return defaultMachine.CanProceedToNextStep(s)
}
