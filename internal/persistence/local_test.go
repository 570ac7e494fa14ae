package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpm/stuplan/internal/conversation"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func setupLocalStore(t *testing.T, opts ...Option) (*LocalStore, *MemoryKV) {
	t.Helper()
	kv := NewMemoryKV()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewLocalStore(kv, opts...), kv
}

func stateCreated(id string, created time.Time) conversation.State {
	s := conversation.CreateInitialState(id, "user-1", 1)
	s.CreatedAt = created
	s.UpdatedAt = created
	return s
}

func TestSaveAndLoadState(t *testing.T) {
	ctx := context.Background()
	store, kv := setupLocalStore(t)

	s := conversation.CreateInitialState("conv_a", "user-1", 7)
	s = conversation.UpdateState(s, conversation.StateUpdate{
		Step: conversation.StepProfileCheck,
		Data: &conversation.DataPatch{CareerGoals: conversation.Ptr("Teacher")},
	})
	require.NoError(t, store.SaveState(ctx, s))

	_, ok, err := kv.Get(ctx, "grad_plan_chatbot_conv_a")
	require.NoError(t, err)
	assert.True(t, ok)

	loaded, err := store.LoadState(ctx, "conv_a")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, conversation.StepProfileCheck, loaded.CurrentStep)
	assert.Equal(t, "Teacher", loaded.CollectedData.CareerGoals)
	assert.True(t, s.CreatedAt.Equal(loaded.CreatedAt))
}

func TestLoadStateMissing(t *testing.T) {
	store, _ := setupLocalStore(t)

	loaded, err := store.LoadState(context.Background(), "conv_missing")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadStateCorrupt(t *testing.T) {
	ctx := context.Background()
	store, kv := setupLocalStore(t)
	require.NoError(t, kv.Set(ctx, StateKeyPrefix+"conv_bad", "{not json"))

	_, err := store.LoadState(ctx, "conv_bad")
	assert.Error(t, err)
}

func TestSaveStateRequiresID(t *testing.T) {
	store, _ := setupLocalStore(t)

	err := store.SaveState(context.Background(), conversation.State{})
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestClearStateRemovesMetadata(t *testing.T) {
	ctx := context.Background()
	store, _ := setupLocalStore(t)

	s := conversation.CreateInitialState("conv_a", "user-1", 1)
	require.NoError(t, store.SaveState(ctx, s))
	require.NoError(t, store.UpsertMetadata(ctx, MetadataFor(s, StatusActive, testNow)))

	require.NoError(t, store.ClearState(ctx, "conv_a"))

	loaded, err := store.LoadState(ctx, "conv_a")
	require.NoError(t, err)
	assert.Nil(t, loaded)

	items, err := store.ListMetadata(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestConversationIDs(t *testing.T) {
	ctx := context.Background()
	store, kv := setupLocalStore(t)

	for _, id := range []string{"conv_b", "conv_a"} {
		require.NoError(t, store.SaveState(ctx, conversation.CreateInitialState(id, "u", 1)))
	}
	require.NoError(t, store.UpsertMetadata(ctx, Metadata{ConversationID: "conv_a"}))
	require.NoError(t, kv.Set(ctx, "unrelated", "x"))

	ids, err := store.ConversationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"conv_a", "conv_b"}, ids)
}

func TestUpsertMetadataOrdering(t *testing.T) {
	ctx := context.Background()
	store, _ := setupLocalStore(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.UpsertMetadata(ctx, Metadata{ConversationID: id, Summary: "first"}))
	}
	require.NoError(t, store.UpsertMetadata(ctx, Metadata{ConversationID: "a", Summary: "again"}))

	items, err := store.ListMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].ConversationID)
	assert.Equal(t, "again", items[0].Summary)
	assert.Equal(t, "c", items[1].ConversationID)
	assert.Equal(t, "b", items[2].ConversationID)
}

func TestUpsertMetadataBounded(t *testing.T) {
	ctx := context.Background()
	store, _ := setupLocalStore(t)

	for i := 0; i < 25; i++ {
		require.NoError(t, store.UpsertMetadata(ctx, Metadata{ConversationID: fmt.Sprintf("conv_%02d", i)}))
	}

	items, err := store.ListMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, items, DefaultMaxEntries)
	assert.Equal(t, "conv_24", items[0].ConversationID)
	assert.Equal(t, "conv_05", items[DefaultMaxEntries-1].ConversationID)
}

func TestWithMaxEntries(t *testing.T) {
	ctx := context.Background()
	store, _ := setupLocalStore(t, WithMaxEntries(2))

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.UpsertMetadata(ctx, Metadata{ConversationID: id}))
	}

	items, err := store.ListMetadata(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestListMetadataCorruptIndex(t *testing.T) {
	ctx := context.Background()
	store, kv := setupLocalStore(t)
	require.NoError(t, kv.Set(ctx, IndexKey, `{"oops": true}`))

	items, err := store.ListMetadata(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, store.UpsertMetadata(ctx, Metadata{ConversationID: "a"}))
	items, err = store.ListMetadata(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestRemoveMetadata(t *testing.T) {
	ctx := context.Background()
	store, _ := setupLocalStore(t)

	require.NoError(t, store.UpsertMetadata(ctx, Metadata{ConversationID: "a"}))
	require.NoError(t, store.UpsertMetadata(ctx, Metadata{ConversationID: "b"}))
	require.NoError(t, store.RemoveMetadata(ctx, "a"))
	require.NoError(t, store.RemoveMetadata(ctx, "missing"))

	items, err := store.ListMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ConversationID)
}

func TestIsExpired(t *testing.T) {
	store, _ := setupLocalStore(t)

	tests := []struct {
		name    string
		created time.Time
		want    bool
	}{
		{"seven days and a millisecond", testNow.Add(-7*24*time.Hour - time.Millisecond), true},
		{"exactly seven days", testNow.Add(-7 * 24 * time.Hour), false},
		{"six days", testNow.Add(-6 * 24 * time.Hour), false},
		{"just created", testNow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, store.IsExpired(stateCreated("c", tt.created)))
		})
	}
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	store, kv := setupLocalStore(t)

	old := stateCreated("conv_old", testNow.Add(-8*24*time.Hour))
	fresh := stateCreated("conv_fresh", testNow.Add(-time.Hour))
	for _, s := range []conversation.State{old, fresh} {
		require.NoError(t, store.SaveState(ctx, s))
		require.NoError(t, store.UpsertMetadata(ctx, MetadataFor(s, StatusActive, testNow)))
	}
	require.NoError(t, kv.Set(ctx, StateKeyPrefix+"conv_corrupt", "nope"))

	removed, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	ids, err := store.ConversationIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"conv_corrupt", "conv_fresh"}, ids)

	items, err := store.ListMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "conv_fresh", items[0].ConversationID)
}

func TestWithTTL(t *testing.T) {
	store, _ := setupLocalStore(t, WithTTL(time.Hour))
	assert.Equal(t, time.Hour, store.TTL())
	assert.True(t, store.IsExpired(stateCreated("c", testNow.Add(-2*time.Hour))))

	store, _ = setupLocalStore(t, WithTTL(-time.Hour))
	assert.Equal(t, DefaultTTL, store.TTL())
}

func TestSummary(t *testing.T) {
	s := conversation.CreateInitialState("c", "u", 1)
	assert.Equal(t, "In progress", Summary(s))

	s = conversation.UpdateState(s, conversation.StateUpdate{Data: &conversation.DataPatch{
		SelectedPrograms: conversation.Ptr([]conversation.ProgramSelection{
			{ProgramID: 1, ProgramType: conversation.ProgramMajor},
			{ProgramID: 2, ProgramType: conversation.ProgramMinor},
		}),
		TotalSelectedCredits: conversation.Ptr(45),
		HasTranscript:        conversation.Ptr(true),
	}})
	assert.Equal(t, "2 programs · 45 credits · Transcript attached", Summary(s))

	one := conversation.UpdateState(conversation.CreateInitialState("c", "u", 1), conversation.StateUpdate{Data: &conversation.DataPatch{
		SelectedPrograms: conversation.Ptr([]conversation.ProgramSelection{{ProgramID: 1}}),
	}})
	assert.Equal(t, "1 program", Summary(one))
}

func TestMetadataFor(t *testing.T) {
	s := conversation.CreateInitialState("conv_a", "u", 1)
	local := time.Date(2026, 3, 14, 8, 0, 0, 0, time.FixedZone("EST", -5*3600))

	m := MetadataFor(s, StatusPaused, local)
	assert.Equal(t, "conv_a", m.ConversationID)
	assert.Equal(t, conversation.StepInitialize, m.CurrentStep)
	assert.Equal(t, StatusPaused, m.Status)
	assert.Equal(t, time.UTC, m.LastUpdated.Location())
}
