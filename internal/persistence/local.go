package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mpm/stuplan/internal/conversation"
)

const (
	// StateKeyPrefix is prepended to the conversation ID for state blobs.
	StateKeyPrefix = "grad_plan_chatbot_"

	// IndexKey holds the metadata index.
	IndexKey = "grad_plan_conversations"

	// DefaultTTL is how long a conversation lives after it is created.
	DefaultTTL = 7 * 24 * time.Hour

	// DefaultMaxEntries bounds the metadata index.
	DefaultMaxEntries = 20
)

// Status is the agent status recorded in the metadata index.
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusError    Status = "error"
	StatusComplete Status = "complete"
)

// Metadata summarizes a conversation for listing.
type Metadata struct {
	ConversationID string            `json:"conversationId"`
	LastUpdated    time.Time         `json:"lastUpdated"`
	CurrentStep    conversation.Step `json:"currentStep"`
	Summary        string            `json:"summary"`
	Status         Status            `json:"status"`
}

// Summary describes what a conversation has collected so far, for example
// "2 programs · 45 credits · Transcript attached".
func Summary(s conversation.State) string {
	var parts []string
	data := s.CollectedData

	if n := len(data.SelectedPrograms); n > 0 {
		word := "programs"
		if n == 1 {
			word = "program"
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, word))
	}
	if data.TotalSelectedCredits > 0 {
		parts = append(parts, fmt.Sprintf("%d credits", data.TotalSelectedCredits))
	}
	if data.HasTranscript {
		parts = append(parts, "Transcript attached")
	}

	if len(parts) == 0 {
		return "In progress"
	}
	return strings.Join(parts, " · ")
}

// MetadataFor builds the index entry for s.
func MetadataFor(s conversation.State, status Status, now time.Time) Metadata {
	return Metadata{
		ConversationID: s.ConversationID,
		LastUpdated:    now.UTC(),
		CurrentStep:    s.CurrentStep,
		Summary:        Summary(s),
		Status:         status,
	}
}

// LocalStore keeps conversation state blobs and the metadata index in a
// KeyValueStore.
type LocalStore struct {
	kv         KeyValueStore
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a LocalStore.
type Option func(*LocalStore)

// WithTTL sets how long conversations live. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(s *LocalStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithMaxEntries bounds the metadata index. Non-positive values are ignored.
func WithMaxEntries(n int) Option {
	return func(s *LocalStore) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *LocalStore) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *LocalStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewLocalStore creates a LocalStore on kv.
func NewLocalStore(kv KeyValueStore, opts ...Option) *LocalStore {
	s := &LocalStore{
		kv:         kv,
		ttl:        DefaultTTL,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured conversation lifetime.
func (s *LocalStore) TTL() time.Duration {
	return s.ttl
}

func stateKey(conversationID string) string {
	return StateKeyPrefix + conversationID
}

// SaveState writes the state blob for s.
func (s *LocalStore) SaveState(ctx context.Context, state conversation.State) error {
	if state.ConversationID == "" {
		return fmt.Errorf("save conversation state: %w: empty conversation id", ErrInvalidKey)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("save conversation state: %w", err)
	}
	if err := s.kv.Set(ctx, stateKey(state.ConversationID), string(data)); err != nil {
		return fmt.Errorf("save conversation state: %w", err)
	}
	return nil
}

// LoadState reads the state blob for conversationID. It returns nil, nil
// when nothing is stored.
func (s *LocalStore) LoadState(ctx context.Context, conversationID string) (*conversation.State, error) {
	raw, ok, err := s.kv.Get(ctx, stateKey(conversationID))
	if err != nil {
		return nil, fmt.Errorf("load conversation state: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var state conversation.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("load conversation state %s: %w", conversationID, err)
	}
	return &state, nil
}

// ClearState removes the state blob and the index entry for conversationID.
func (s *LocalStore) ClearState(ctx context.Context, conversationID string) error {
	if err := s.kv.Remove(ctx, stateKey(conversationID)); err != nil {
		return fmt.Errorf("clear conversation state: %w", err)
	}
	return s.RemoveMetadata(ctx, conversationID)
}

// ConversationIDs lists every conversation with a stored state blob.
func (s *LocalStore) ConversationIDs(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, StateKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, StateKeyPrefix))
	}
	return ids, nil
}

// ListMetadata returns the index, most recently updated first. A corrupt
// index reads as empty.
func (s *LocalStore) ListMetadata(ctx context.Context) ([]Metadata, error) {
	raw, ok, err := s.kv.Get(ctx, IndexKey)
	if err != nil {
		return nil, fmt.Errorf("read conversation index: %w", err)
	}
	if !ok || raw == "" {
		return []Metadata{}, nil
	}

	var items []Metadata
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Warn("discarding unreadable conversation index", "error", err)
		return []Metadata{}, nil
	}
	if items == nil {
		items = []Metadata{}
	}
	return items, nil
}

// UpsertMetadata moves m to the front of the index, replacing any entry
// for the same conversation, and drops entries past the limit.
func (s *LocalStore) UpsertMetadata(ctx context.Context, m Metadata) error {
	existing, err := s.ListMetadata(ctx)
	if err != nil {
		return err
	}

	next := make([]Metadata, 0, len(existing)+1)
	next = append(next, m)
	for _, item := range existing {
		if item.ConversationID != m.ConversationID {
			next = append(next, item)
		}
	}
	if len(next) > s.maxEntries {
		next = next[:s.maxEntries]
	}
	return s.writeIndex(ctx, next)
}

// RemoveMetadata drops the index entry for conversationID.
func (s *LocalStore) RemoveMetadata(ctx context.Context, conversationID string) error {
	existing, err := s.ListMetadata(ctx)
	if err != nil {
		return err
	}

	next := make([]Metadata, 0, len(existing))
	for _, item := range existing {
		if item.ConversationID != conversationID {
			next = append(next, item)
		}
	}
	return s.writeIndex(ctx, next)
}

func (s *LocalStore) writeIndex(ctx context.Context, items []Metadata) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("write conversation index: %w", err)
	}
	if err := s.kv.Set(ctx, IndexKey, string(data)); err != nil {
		return fmt.Errorf("write conversation index: %w", err)
	}
	return nil
}

// IsExpired reports whether state was created more than the TTL ago.
func (s *LocalStore) IsExpired(state conversation.State) bool {
	return s.now().Sub(state.CreatedAt) > s.ttl
}

// CleanupExpired removes every expired conversation and returns how many
// were removed. Unreadable blobs are logged and left alone.
func (s *LocalStore) CleanupExpired(ctx context.Context) (int, error) {
	ids, err := s.ConversationIDs(ctx)
	if err != nil {
		return 0, err
	}

	cleaned := 0
	for _, id := range ids {
		state, err := s.LoadState(ctx, id)
		if err != nil {
			s.logger.Warn("skipping unreadable conversation", "conversation_id", id, "error", err)
			continue
		}
		if state == nil || !s.IsExpired(*state) {
			continue
		}

		if err := s.ClearState(ctx, id); err != nil {
			return cleaned, err
		}
		cleaned++
	}

	if cleaned > 0 {
		s.logger.Info("removed expired conversations", "count", cleaned)
	}
	return cleaned, nil
}
