package planner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedGenerator() *DefaultGenerator {
	return &DefaultGenerator{Now: func() time.Time {
		return time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	}}
}

func courseCodes(pt PlanTerm) []string {
	var codes []string
	for _, c := range pt.Courses {
		codes = append(codes, c.Code)
	}
	return codes
}

func TestGeneratePlan_PrerequisiteOrdering(t *testing.T) {
	g := fixedGenerator()

	plan, err := g.GeneratePlan(context.Background(), Request{
		Courses: []Course{
			{Code: "CS101", Title: "Intro", Credits: 3},
			{Code: "CS201", Title: "Data Structures", Credits: 3, Prerequisite: "CS101"},
			{Code: "MATH101", Title: "Calculus", Credits: 4},
		},
		Strategy:  StrategyBalanced,
		StartTerm: "fall",
		StartYear: 2024,
		Terms:     DefaultAcademicTerms(),
	})
	require.NoError(t, err)

	require.Len(t, plan.Terms, 2)
	assert.Equal(t, []string{"CS101", "MATH101"}, courseCodes(plan.Terms[0]))
	assert.Equal(t, "Fall", plan.Terms[0].Term)
	assert.Equal(t, 2024, plan.Terms[0].Year)
	assert.Equal(t, []string{"CS201"}, courseCodes(plan.Terms[1]))
	assert.Equal(t, "Spring", plan.Terms[1].Term)
	assert.Equal(t, 2025, plan.Terms[1].Year)
	assert.Equal(t, 10, plan.TotalCredits)
	assert.False(t, plan.UsedPlaceholders)
	assert.Equal(t, time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC), plan.GeneratedAt)
}

func TestGeneratePlan_Placeholders(t *testing.T) {
	g := fixedGenerator()

	plan, err := g.GeneratePlan(context.Background(), Request{
		Programs:  []Program{{ID: 1, Name: "Computer Science", Type: "major", TargetCredits: 30}},
		Strategy:  StrategyBalanced,
		StartTerm: "fall",
		StartYear: 2024,
		Milestones: []Milestone{
			{Type: "internship", Title: "Summer internship", Timing: TimingBeginning},
			{Type: "graduation", Title: "Walk", Timing: TimingEnd},
			{Type: "study_abroad", Title: "Abroad", Timing: TimingSpecific, Term: "Spring", Year: 2025},
			{Type: "research", Title: "Later", Timing: TimingSpecific, Term: "Fall", Year: 2030},
		},
	})
	require.NoError(t, err)

	assert.True(t, plan.UsedPlaceholders)
	require.Len(t, plan.Terms, 2)
	assert.Equal(t, 15, plan.Terms[0].Credits)
	assert.Equal(t, 15, plan.Terms[1].Credits)
	assert.True(t, plan.Terms[0].Courses[0].Placeholder)
	assert.Equal(t, 30, plan.TotalCredits)

	require.Len(t, plan.Terms[0].Milestones, 1)
	assert.Equal(t, "Summer internship", plan.Terms[0].Milestones[0].Title)
	require.Len(t, plan.Terms[1].Milestones, 2)
	require.Len(t, plan.UnanchoredMilestones, 1)
	assert.Equal(t, "Later", plan.UnanchoredMilestones[0].Title)
}

func TestGeneratePlan_UsesProvidedDistribution(t *testing.T) {
	g := fixedGenerator()

	plan, err := g.GeneratePlan(context.Background(), Request{
		Courses: []Course{
			{Code: "A", Credits: 6},
			{Code: "B", Credits: 6},
		},
		Strategy:  StrategyExplore,
		StartTerm: "fall",
		StartYear: 2024,
		Distribution: []SemesterAllocation{
			{Term: "Fall", Year: 2024, SuggestedCredits: 6, MinCredits: 3, MaxCredits: 15},
			{Term: "Spring", Year: 2025, SuggestedCredits: 6, MinCredits: 3, MaxCredits: 15},
		},
	})
	require.NoError(t, err)
	require.Len(t, plan.Terms, 2)
	assert.Equal(t, []string{"A"}, courseCodes(plan.Terms[0]))
	assert.Equal(t, []string{"B"}, courseCodes(plan.Terms[1]))
}

func TestGeneratePlan_Errors(t *testing.T) {
	g := fixedGenerator()
	ctx := context.Background()

	t.Run("nothing to schedule", func(t *testing.T) {
		_, err := g.GeneratePlan(ctx, Request{Courses: []Course{}, StartTerm: "fall", StartYear: 2024})
		assert.ErrorIs(t, err, ErrNothingToSchedule)
	})

	t.Run("course too large", func(t *testing.T) {
		_, err := g.GeneratePlan(ctx, Request{
			Courses:   []Course{{Code: "BIG", Credits: 25}},
			Strategy:  StrategyBalanced,
			StartTerm: "fall",
			StartYear: 2024,
		})
		var unsched *UnschedulableError
		require.ErrorAs(t, err, &unsched)
		assert.Equal(t, []string{"BIG"}, unsched.Codes)
	})

	t.Run("prerequisite cycle", func(t *testing.T) {
		_, err := g.GeneratePlan(ctx, Request{
			Courses: []Course{
				{Code: "X", Credits: 3, Prerequisite: "Y"},
				{Code: "Y", Credits: 3, Prerequisite: "X"},
			},
			Strategy:  StrategyBalanced,
			StartTerm: "fall",
			StartYear: 2024,
		})
		var unsched *UnschedulableError
		require.ErrorAs(t, err, &unsched)
		assert.Equal(t, []string{"X", "Y"}, unsched.Codes)
	})

	t.Run("invalid start term", func(t *testing.T) {
		_, err := g.GeneratePlan(ctx, Request{
			Courses:   []Course{{Code: "A", Credits: 3}},
			StartTerm: "winter",
			StartYear: 2024,
		})
		assert.True(t, IsInvalidTermSequence(err))
	})

	t.Run("selected terms outside the calendar", func(t *testing.T) {
		done := make(chan error, 1)
		go func() {
			_, err := g.GeneratePlan(ctx, Request{
				Programs:        []Program{{ID: 1, Type: "major", TargetCredits: 30}},
				Strategy:        StrategyBalanced,
				SelectedTermIDs: []string{"winter"},
				Distribution:    []SemesterAllocation{{Term: "Winter", Year: 2024, SuggestedCredits: 15}},
				StartTerm:       "fall",
				StartYear:       2024,
			})
			done <- err
		}()

		select {
		case err := <-done:
			var distErr *CreditDistributionError
			require.ErrorAs(t, err, &distErr)
			assert.Contains(t, distErr.Msg, "winter")
		case <-time.After(2 * time.Second):
			t.Fatal("GeneratePlan did not return")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := g.GeneratePlan(cctx, Request{Courses: []Course{{Code: "A", Credits: 3}}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGeneratePlan_PlaceholdersRespectTermCapacity(t *testing.T) {
	tests := []struct {
		name      string
		work      *WorkConstraints
		maxCredit int
	}{
		{"full time work", &WorkConstraints{WorkStatus: WorkFullTime}, 12},
		{"part time work", &WorkConstraints{WorkStatus: WorkPartTime}, 15},
		{"not working", nil, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := fixedGenerator().GeneratePlan(context.Background(), Request{
				Programs:        []Program{{ID: 1, Type: "major", TargetCredits: 120}},
				Strategy:        StrategyBalanced,
				WorkConstraints: tt.work,
				StartTerm:       "fall",
				StartYear:       2026,
			})
			require.NoError(t, err)

			assert.Equal(t, 120, plan.TotalCredits)
			for _, term := range plan.Terms {
				assert.LessOrEqual(t, term.Credits, tt.maxCredit, "%s %d", term.Term, term.Year)
			}
		})
	}
}

func TestPlacePlaceholdersOverflow(t *testing.T) {
	slots := []TermSlot{
		{Term: "Fall", Year: 2026}, {Term: "Spring", Year: 2027},
		{Term: "Fall", Year: 2027}, {Term: "Spring", Year: 2028},
	}

	terms, err := placePlaceholders(slots, []int{12, 12, 12, 12}, 2, 30)
	require.NoError(t, err)
	require.Len(t, terms, 3, "one overflow term is added")
	assert.Equal(t, 6, terms[2].Credits)

	_, err = placePlaceholders(slots, []int{12, 12, 12, 12}, 2, 60)
	var distErr *CreditDistributionError
	assert.ErrorAs(t, err, &distErr)
}

func TestCapWorkLoad(t *testing.T) {
	r := LoadRanges(StrategyBalanced).Primary

	assert.Equal(t, 18, capWorkLoad(18, r, nil))
	assert.Equal(t, 12, capWorkLoad(18, r, &WorkConstraints{WorkStatus: WorkFullTime}))
	assert.Equal(t, 15, capWorkLoad(18, r, &WorkConstraints{WorkStatus: WorkPartTime}))
	assert.Equal(t, 18, capWorkLoad(18, r, &WorkConstraints{WorkStatus: WorkNotWorking}))
}
