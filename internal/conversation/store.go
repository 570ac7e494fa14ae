package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mpm/stuplan/internal/store"
)

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// EventType represents the type of conversation event.
type EventType string

const (
	EventTypeCreated          EventType = "created"
	EventTypeStepChange       EventType = "step_change"
	EventTypeToolResult       EventType = "tool_result"
	EventTypeSkip             EventType = "skip"
	EventTypeNavigation       EventType = "navigation"
	EventTypePlanGenerated    EventType = "plan_generated"
	EventTypeGenerationFailed EventType = "generation_failed"
)

// Event is an entry in a conversation's history.
type Event struct {
	ID             int64
	ConversationID string
	EventType      EventType
	Payload        string // JSON-encoded event data
	CreatedAt      time.Time
}

// Filter defines criteria for listing conversations.
type Filter struct {
	// UserID filters by owning student
	UserID string

	// Step filters by current step
	Step *Step

	// ActiveOnly excludes completed conversations
	ActiveOnly bool

	// CreatedBefore keeps conversations created before this time
	CreatedBefore time.Time

	// Limit limits the number of results
	Limit int

	// Offset skips the first N results
	Offset int
}

// Store defines the interface for server-side conversation persistence.
type Store interface {
	// Save inserts or replaces a conversation.
	Save(ctx context.Context, s State) error

	// Get retrieves a conversation by ID. It returns nil, nil if none exists.
	Get(ctx context.Context, id string) (*State, error)

	// Delete deletes a conversation and its events.
	Delete(ctx context.Context, id string) error

	// List returns conversations matching the filter, most recently updated first.
	List(ctx context.Context, filter Filter) ([]State, error)

	// Count returns the number of conversations matching the filter.
	Count(ctx context.Context, filter Filter) (int, error)

	// DeleteCreatedBefore removes conversations created before cutoff.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// RecordEvent records an event in the conversation's history.
	RecordEvent(ctx context.Context, conversationID string, eventType EventType, payload any) error

	// SaveWithEvent saves a conversation and records an event atomically.
	SaveWithEvent(ctx context.Context, s State, eventType EventType, payload any) error

	// GetEvents retrieves events for a conversation, oldest first.
	GetEvents(ctx context.Context, conversationID string) ([]Event, error)
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func marshalPayload(payload any) (string, error) {
	if payload == nil {
		return "", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal event payload: %w", err)
	}
	return string(data), nil
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *store.DB
}

// NewSQLiteStore creates a new SQLite-backed conversation store.
func NewSQLiteStore(db *store.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const (
	sqliteUpsertConversation = `
		INSERT INTO conversations (
			id, user_id, university_id, current_step, state_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_step = excluded.current_step,
			state_json = excluded.state_json,
			updated_at = excluded.updated_at
	`

	sqliteInsertEvent = `
		INSERT INTO conversation_events (conversation_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?)
	`
)

func conversationArgs(st State) ([]any, error) {
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation: %w", err)
	}

	payload, err := SerializeStateForDB(st)
	if err != nil {
		return nil, err
	}

	return []any{
		st.ConversationID,
		st.UserID,
		st.UniversityID,
		string(st.CurrentStep),
		payload,
		formatTime(st.CreatedAt),
		formatTime(st.UpdatedAt),
	}, nil
}

// Save inserts or replaces a conversation.
func (s *SQLiteStore) Save(ctx context.Context, st State) error {
	args, err := conversationArgs(st)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, sqliteUpsertConversation, args...); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}

	return nil
}

// SaveWithEvent saves a conversation and records an event in one
// transaction. Neither is written if either fails.
func (s *SQLiteStore) SaveWithEvent(ctx context.Context, st State, eventType EventType, payload any) error {
	args, err := conversationArgs(st)
	if err != nil {
		return err
	}
	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqliteUpsertConversation, args...); err != nil {
			return fmt.Errorf("save conversation: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqliteInsertEvent, st.ConversationID, string(eventType), payloadJSON, formatTime(time.Now())); err != nil {
			return fmt.Errorf("record event: %w", err)
		}
		return nil
	})
}

// Get retrieves a conversation by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*State, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT state_json FROM conversations WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	st, err := DeserializeStateFromDB(payload)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Delete deletes a conversation by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// sqliteWhere builds the WHERE clause for a filter.
func sqliteWhere(filter Filter) (string, []any) {
	var conditions []string
	var args []any

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Step != nil {
		conditions = append(conditions, "current_step = ?")
		args = append(args, string(*filter.Step))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "current_step != ?")
		args = append(args, string(StepComplete))
	}
	if !filter.CreatedBefore.IsZero() {
		conditions = append(conditions, "created_at < ?")
		args = append(args, formatTime(filter.CreatedBefore))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns conversations matching the filter criteria.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]State, error) {
	where, args := sqliteWhere(filter)
	query := `SELECT state_json FROM conversations` + where + " ORDER BY updated_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var states []State
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		st, err := DeserializeStateFromDB(payload)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return states, nil
}

// Count returns the number of conversations matching the filter.
func (s *SQLiteStore) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := sqliteWhere(filter)

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return count, nil
}

// DeleteCreatedBefore removes conversations created before cutoff.
func (s *SQLiteStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete expired conversations: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return int(rows), nil
}

// RecordEvent records an event in the conversation's history.
func (s *SQLiteStore) RecordEvent(ctx context.Context, conversationID string, eventType EventType, payload any) error {
	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, sqliteInsertEvent, conversationID, string(eventType), payloadJSON, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	return nil
}

// GetEvents retrieves events for a conversation.
func (s *SQLiteStore) GetEvents(ctx context.Context, conversationID string) ([]Event, error) {
	query := `
		SELECT id, conversation_id, event_type, payload, created_at
		FROM conversation_events
		WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var eventType, createdAt string
		if err := rows.Scan(&event.ID, &event.ConversationID, &eventType, &event.Payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.EventType = EventType(eventType)
		event.CreatedAt, err = time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse event time: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return events, nil
}
