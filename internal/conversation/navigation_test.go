package conversation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpm/stuplan/internal/planner"
)

func TestStepsToReset(t *testing.T) {
	tests := []struct {
		target Step
		want   []Step
	}{
		{StepProgramSelection, []Step{StepCourseMethod, StepCourseSelection}},
		{StepCourseMethod, []Step{StepCourseSelection}},
		{StepCourseSelection, nil},
		{StepElectives, nil},
		{StepProfileCheck, []Step{StepCareerPathfinder}},
		{StepCreditDistribution, nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.target), func(t *testing.T) {
			assert.Equal(t, tt.want, StepsToReset(tt.target))
		})
	}
}

func TestStepsToResetClosure(t *testing.T) {
	for _, step := range AllSteps() {
		got := StepsToReset(step)

		seen := make(map[Step]bool)
		for _, s := range got {
			assert.False(t, seen[s], "duplicate %s in reset set of %s", s, step)
			assert.NotEqual(t, step, s)
			seen[s] = true
		}

		// Every direct dependent of a reset step is also reset
		for _, s := range append([]Step{step}, got...) {
			for _, dep := range StepDependencies(s) {
				if dep != step {
					assert.True(t, seen[dep], "%s missing from reset set of %s", dep, step)
				}
			}
		}
	}
}

func TestStepsToResetCycleSafe(t *testing.T) {
	saved, had := stepDependencies[StepCourseSelection]
	stepDependencies[StepCourseSelection] = []Step{StepProgramSelection}
	defer func() {
		if !had {
			delete(stepDependencies, StepCourseSelection)
			return
		}
		stepDependencies[StepCourseSelection] = saved
	}()

	got := StepsToReset(StepProgramSelection)
	assert.ElementsMatch(t, []Step{StepCourseMethod, StepCourseSelection}, got)
}

func TestCanNavigateToStep(t *testing.T) {
	completed := []Step{StepProfileCheck, StepTranscriptCheck}

	assert.True(t, CanNavigateToStep(StepProfileCheck, completed))
	assert.False(t, CanNavigateToStep(StepProgramSelection, completed))
	assert.False(t, CanNavigateToStep(StepProfileCheck, nil))
}

func TestClearStepData(t *testing.T) {
	s := stateAt(StepMilestonesAndConstraints, &DataPatch{
		Milestones:      Ptr([]planner.Milestone{{Type: "internship", Timing: planner.TimingEnd}}),
		WorkConstraints: Ptr(&planner.WorkConstraints{WorkStatus: planner.WorkFullTime}),
		CareerGoals:     Ptr("Teaching"),
	})

	cleared := ClearStepData(s, StepMilestonesAndConstraints)

	assert.True(t, cleared.CollectedData.IsFieldEmpty(FieldMilestones))
	assert.True(t, cleared.CollectedData.IsFieldEmpty(FieldWorkConstraints))
	assert.Equal(t, "Teaching", cleared.CollectedData.CareerGoals)
	assert.NotNil(t, s.CollectedData.WorkConstraints, "input is not modified")
}

func TestNavigateToStep(t *testing.T) {
	s := stateAt(StepCreditDistribution, &DataPatch{
		SelectedPrograms:      oneProgram,
		CourseSelectionMethod: Ptr(CourseMethodManual),
		SelectedCourses: Ptr([]CourseSelection{{
			ProgramID: "1", RequirementID: "core",
			Courses: []planner.Course{{Code: "BIO101", Credits: 4}},
		}}),
		TotalSelectedCredits: Ptr(4),
		ElectiveCourses:      Ptr([]ElectiveCourse{{Code: "ART100", Credits: 3}}),
		NeedsElectives:       Ptr(true),
		WorkConstraints:      Ptr(&planner.WorkConstraints{WorkStatus: planner.WorkNotWorking}),
		EstGradDate:          Ptr("2027-05-01"),
	},
		StepProfileCheck, StepProgramSelection, StepCourseMethod, StepCourseSelection, StepMilestonesAndConstraints,
	)

	got, err := NavigateToStep(s, StepProgramSelection)
	require.NoError(t, err)

	assert.Equal(t, StepProgramSelection, got.CurrentStep)
	assert.ElementsMatch(t, []Step{StepProfileCheck, StepMilestonesAndConstraints}, got.CompletedSteps)

	data := got.CollectedData
	assert.Empty(t, data.SelectedPrograms)
	assert.NotNil(t, data.SelectedPrograms)
	assert.Empty(t, data.CourseSelectionMethod)
	assert.Empty(t, data.SelectedCourses)
	assert.Zero(t, data.TotalSelectedCredits)

	// Fields owned by steps outside the reset set survive
	assert.Len(t, data.ElectiveCourses, 1)
	assert.True(t, data.NeedsElectives)
	assert.Equal(t, "2027-05-01", data.EstGradDate)
	assert.NotNil(t, data.WorkConstraints)

	for _, step := range append([]Step{StepProgramSelection}, StepsToReset(StepProgramSelection)...) {
		for _, f := range StepDataFields(step) {
			assert.True(t, data.IsFieldEmpty(f), "%s should be cleared", f)
		}
		assert.False(t, got.HasCompleted(step), "%s should not be completed", step)
	}

	// Input untouched
	assert.Len(t, s.CollectedData.SelectedPrograms, 1)
	assert.Len(t, s.CompletedSteps, 5)
}

func TestNavigateToElectives(t *testing.T) {
	milestones := []planner.Milestone{{Type: "internship", Title: "Lab", Timing: planner.TimingMiddle}}
	s := stateAt(StepMilestonesAndConstraints, &DataPatch{
		SelectedPrograms:           oneProgram,
		CourseSelectionMethod:      Ptr(CourseMethodAI),
		ElectiveCourses:            Ptr([]ElectiveCourse{{Code: "ART100", Credits: 3}}),
		NeedsElectives:             Ptr(true),
		CreditDistributionStrategy: Ptr(&CreditDistributionStrategy{Type: planner.StrategyBalanced}),
		Milestones:                 Ptr(milestones),
	},
		StepProgramSelection, StepCourseMethod, StepElectives, StepCreditDistribution,
	)

	got, err := NavigateToStep(s, StepElectives)
	require.NoError(t, err)

	assert.Equal(t, StepElectives, got.CurrentStep)
	assert.ElementsMatch(t, []Step{StepProgramSelection, StepCourseMethod, StepCreditDistribution}, got.CompletedSteps)
	assert.Empty(t, got.CollectedData.ElectiveCourses)
	assert.False(t, got.CollectedData.NeedsElectives)

	// Nothing downstream of electives is reset
	assert.Equal(t, CourseMethodAI, got.CollectedData.CourseSelectionMethod)
	assert.NotNil(t, got.CollectedData.CreditDistributionStrategy)
	assert.Equal(t, milestones, got.CollectedData.Milestones)

	_, ok := ResetWarningMessage(StepElectives)
	assert.False(t, ok)
}

func TestNavigateToStepRejected(t *testing.T) {
	s := stateAt(StepCourseMethod, &DataPatch{SelectedPrograms: oneProgram}, StepProfileCheck)

	got, err := NavigateToStep(s, StepProgramSelection)
	var navErr *NavigationError
	require.True(t, errors.As(err, &navErr))
	assert.Equal(t, StepProgramSelection, navErr.Target)
	assert.Equal(t, s, got)

	_, err = NavigateToStep(s, Step("elsewhere"))
	assert.Error(t, err)
}

func TestResetWarningMessage(t *testing.T) {
	msg, ok := ResetWarningMessage(StepProgramSelection)
	require.True(t, ok)
	assert.Equal(t, "Going back to this step will reset: Course Selection Method, Course Selection", msg)

	_, ok = ResetWarningMessage(StepMilestonesAndConstraints)
	assert.False(t, ok)
}
