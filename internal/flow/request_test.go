package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpm/stuplan/internal/connector"
	"github.com/mpm/stuplan/internal/conversation"
	"github.com/mpm/stuplan/internal/metrics"
	"github.com/mpm/stuplan/internal/persistence"
	"github.com/mpm/stuplan/internal/planner"
)

func TestBuildRequestTargetCredits(t *testing.T) {
	env := setupProcessor(t, nil)

	s := conversation.CreateInitialState("conv_targets", "user-1", 1)
	s = conversation.UpdateState(s, conversation.StateUpdate{Data: &conversation.DataPatch{
		SelectedPrograms: conversation.Ptr([]conversation.ProgramSelection{
			{ProgramID: 12, ProgramName: "Biology", ProgramType: conversation.ProgramMajor},
			{ProgramID: 99, ProgramName: "Chemistry", ProgramType: conversation.ProgramMajor},
			{ProgramID: 7, ProgramName: "Art", ProgramType: conversation.ProgramMinor},
			{ProgramID: 3, ProgramName: "General Education", ProgramType: conversation.ProgramGeneralEducation},
		}),
	}})

	req := env.processor.buildRequest(context.Background(), s)

	tests := []struct {
		name string
		want int
	}{
		{"Biology", 60},
		{"Chemistry", 120},
		{"Art", 18},
		{"General Education", 0},
	}

	require.Len(t, req.Programs, len(tests))
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, req.Programs[i].Name)
			assert.Equal(t, tt.want, req.Programs[i].TargetCredits)
		})
	}
	assert.Equal(t, planner.StrategyBalanced, req.Strategy)
}

func TestGenerationWithoutCatalogTargets(t *testing.T) {
	p := NewProcessor(Options{
		Local:     persistence.NewLocalStore(persistence.NewMemoryKV(), persistence.WithClock(testClock)),
		Generator: &planner.DefaultGenerator{Now: testClock},
		Metrics:   metrics.New(),
		Now:       testClock,
	})
	ctx := context.Background()

	start, err := p.Start(ctx, "user-1", 1)
	require.NoError(t, err)
	id := start.State.ConversationID

	advanceToGeneration(t, p, id)
	resp := complete(t, p, id, connector.ToolGeneratePlanConfirmation, `{"action":"generate","startTerm":"fall","startYear":2026}`)

	assert.Empty(t, resp.Error)
	require.NotNil(t, resp.Plan)
	assert.Equal(t, 120, resp.Plan.TotalCredits)
	assert.Equal(t, conversation.StepComplete, resp.State.CurrentStep)
}
