package conversation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateAt(step Step, patch *DataPatch, completed ...Step) State {
	s := CreateInitialState("conv_test", "user-1", 1)
	s = UpdateState(s, StateUpdate{Step: step, Data: patch})
	for _, c := range completed {
		s = UpdateState(s, StateUpdate{CompletedStep: c})
	}
	return s
}

var oneProgram = Ptr([]ProgramSelection{{ProgramID: 1, ProgramName: "Biology", ProgramType: ProgramMajor}})

func TestNextStep(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  Step
	}{
		{"fresh state", stateAt(StepInitialize, nil), StepProfileCheck},
		{"profile check", stateAt(StepProfileCheck, nil), StepTranscriptCheck},
		{"career pathfinder", stateAt(StepCareerPathfinder, nil), StepTranscriptCheck},
		{"transcript check", stateAt(StepTranscriptCheck, nil), StepProgramSelection},
		{"program pathfinder", stateAt(StepProgramPathfinder, nil), StepProgramSelection},
		{"program selection", stateAt(StepProgramSelection, nil), StepCourseMethod},
		{
			"manual course method",
			stateAt(StepCourseMethod, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodManual)}),
			StepCourseSelection,
		},
		{
			"ai course method with programs",
			stateAt(StepCourseMethod, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodAI), SelectedPrograms: oneProgram}),
			StepElectives,
		},
		{
			"ai course method without programs",
			stateAt(StepCourseMethod, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodAI)}),
			StepCreditDistribution,
		},
		{
			"course selection with programs",
			stateAt(StepCourseSelection, &DataPatch{SelectedPrograms: oneProgram}),
			StepElectives,
		},
		{"electives", stateAt(StepElectives, nil), StepCreditDistribution},
		{"student interests", stateAt(StepStudentInterests, nil), StepCreditDistribution},
		{"credit distribution", stateAt(StepCreditDistribution, nil), StepMilestonesAndConstraints},
		{"milestones", stateAt(StepMilestonesAndConstraints, nil), StepGeneratingPlan},
		{"generating", stateAt(StepGeneratingPlan, nil), StepComplete},
		{"complete is terminal", stateAt(StepComplete, &DataPatch{SelectedPrograms: oneProgram}), StepComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextStep(tt.state)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, _ := NextStep(tt.state)
			assert.Equal(t, got, again, "NextStep must be deterministic")
		})
	}
}

func TestNextStepUnknown(t *testing.T) {
	s := CreateInitialState("conv_test", "user-1", 1)
	s.CurrentStep = Step("warp")

	_, err := NextStep(s)
	var unknown *UnknownStepError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, Step("warp"), unknown.Step)
}

func TestElectivesPolicyIsPluggable(t *testing.T) {
	never := NewMachine(ElectivesPolicyFunc(func(State) bool { return false }))
	s := stateAt(StepCourseMethod, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodAI), SelectedPrograms: oneProgram})

	got, err := never.NextStep(s)
	require.NoError(t, err)
	assert.Equal(t, StepCreditDistribution, got)
	assert.True(t, never.CanSkipStep(s, StepElectives))
	assert.NotContains(t, never.RequiredSteps(s), StepElectives)

	got, err = NewMachine(nil).NextStep(s)
	require.NoError(t, err)
	assert.Equal(t, StepElectives, got)
}

func TestPreviousStep(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		want   Step
		wantOK bool
	}{
		{"initialize has none", stateAt(StepInitialize, nil), "", false},
		{"profile check", stateAt(StepProfileCheck, nil), StepInitialize, true},
		{"transcript check", stateAt(StepTranscriptCheck, nil), StepProfileCheck, true},
		{"interests after career", stateAt(StepStudentInterests, nil, StepCareerPathfinder), StepCareerPathfinder, true},
		{"interests after profile", stateAt(StepStudentInterests, nil), StepProfileCheck, true},
		{"program pathfinder returns to programs", stateAt(StepProgramPathfinder, nil), StepProgramSelection, true},
		{"programs after pathfinder", stateAt(StepProgramSelection, nil, StepProgramPathfinder), StepTranscriptCheck, true},
		{"programs after transcript", stateAt(StepProgramSelection, nil), StepTranscriptCheck, true},
		{
			"electives after manual selection",
			stateAt(StepElectives, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodManual)}),
			StepCourseSelection, true,
		},
		{
			"electives after ai method",
			stateAt(StepElectives, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodAI)}),
			StepCourseMethod, true,
		},
		{"distribution after electives", stateAt(StepCreditDistribution, nil, StepElectives), StepElectives, true},
		{
			"distribution after manual selection",
			stateAt(StepCreditDistribution, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodManual)}),
			StepCourseSelection, true,
		},
		{
			"distribution after ai method",
			stateAt(StepCreditDistribution, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodAI)}),
			StepCourseMethod, true,
		},
		{"complete", stateAt(StepComplete, nil), StepGeneratingPlan, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PreviousStep(tt.state)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanSkipStep(t *testing.T) {
	ai := stateAt(StepCourseMethod, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodAI)})
	manual := stateAt(StepCourseMethod, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodManual), SelectedPrograms: oneProgram})

	tests := []struct {
		name  string
		state State
		step  Step
		want  bool
	}{
		{"career pathfinder", ai, StepCareerPathfinder, true},
		{"milestones", ai, StepMilestonesAndConstraints, true},
		{"transcript", ai, StepTranscriptCheck, false},
		{"course selection in ai mode", ai, StepCourseSelection, true},
		{"course selection in manual mode", manual, StepCourseSelection, false},
		{"electives without programs", ai, StepElectives, true},
		{"electives with programs", manual, StepElectives, false},
		{"program selection", ai, StepProgramSelection, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanSkipStep(tt.state, tt.step))
		})
	}
}

func TestRequiredSteps(t *testing.T) {
	ai := stateAt(StepCourseMethod, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodAI)})
	assert.Equal(t, []Step{
		StepInitialize, StepProfileCheck, StepTranscriptCheck, StepProgramSelection, StepCourseMethod,
		StepCreditDistribution, StepGeneratingPlan, StepComplete,
	}, RequiredSteps(ai))

	manual := stateAt(StepCourseMethod, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodManual), SelectedPrograms: oneProgram})
	assert.Equal(t, []Step{
		StepInitialize, StepProfileCheck, StepTranscriptCheck, StepProgramSelection, StepCourseMethod,
		StepCourseSelection, StepElectives,
		StepCreditDistribution, StepGeneratingPlan, StepComplete,
	}, RequiredSteps(manual))
}

func TestCanProceedToNextStep(t *testing.T) {
	courses := Ptr([]CourseSelection{{ProgramID: "1", RequirementID: "core"}})

	tests := []struct {
		name  string
		state State
		want  bool
	}{
		{"programs missing", stateAt(StepProgramSelection, nil), false},
		{"programs present", stateAt(StepProgramSelection, &DataPatch{SelectedPrograms: oneProgram}), true},
		{"method missing", stateAt(StepCourseMethod, nil), false},
		{"manual without courses", stateAt(StepCourseSelection, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodManual)}), false},
		{"manual with courses", stateAt(StepCourseSelection, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodManual), SelectedCourses: courses}), true},
		{"ai without courses", stateAt(StepCourseSelection, &DataPatch{CourseSelectionMethod: Ptr(CourseMethodAI)}), true},
		{"generating", stateAt(StepGeneratingPlan, nil), false},
		{"complete", stateAt(StepComplete, nil), false},
		{"profile", stateAt(StepProfileCheck, nil), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanProceedToNextStep(tt.state))
		})
	}
}
