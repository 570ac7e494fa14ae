package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed conversation store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const (
	pgUpsertConversation = `
		INSERT INTO conversations (
			id, user_id, university_id, current_step, state_json, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			current_step = EXCLUDED.current_step,
			state_json = EXCLUDED.state_json,
			updated_at = EXCLUDED.updated_at
	`

	pgInsertEvent = `
		INSERT INTO conversation_events (conversation_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
)

func pgConversationArgs(st State) ([]any, error) {
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation: %w", err)
	}

	payload, err := SerializeStateForDB(st)
	if err != nil {
		return nil, err
	}
	return []any{st.ConversationID, st.UserID, st.UniversityID, string(st.CurrentStep), payload, st.CreatedAt, st.UpdatedAt}, nil
}

// Save inserts or replaces a conversation.
func (s *PostgresStore) Save(ctx context.Context, st State) error {
	args, err := pgConversationArgs(st)
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, pgUpsertConversation, args...); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

// SaveWithEvent saves a conversation and records an event in one transaction.
func (s *PostgresStore) SaveWithEvent(ctx context.Context, st State, eventType EventType, payload any) error {
	args, err := pgConversationArgs(st)
	if err != nil {
		return err
	}
	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, pgUpsertConversation, args...); err != nil {
			return fmt.Errorf("save conversation: %w", err)
		}
		if _, err := tx.Exec(ctx, pgInsertEvent, st.ConversationID, string(eventType), payloadJSON, time.Now().UTC()); err != nil {
			return fmt.Errorf("record event: %w", err)
		}
		return nil
	})
}

// Get retrieves a conversation by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*State, error) {
	var payload string
	err := s.pool.QueryRow(ctx, `SELECT state_json::text FROM conversations WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func postgresWhere(filter Filter) (string, []any) {
	var conditions []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Step != nil {
		add("current_step = $%d", string(*filter.Step))
	}
	if filter.ActiveOnly {
		add("current_step != $%d", string(StepComplete))
	}
	if !filter.CreatedBefore.IsZero() {
		add("created_at < $%d", filter.CreatedBefore)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns conversations matching the filter criteria.
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]State, error) {
	where, args := postgresWhere(filter)
	query := `SELECT state_json::text FROM conversations` + where + " ORDER BY updated_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
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
func (s *PostgresStore) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := postgresWhere(filter)

	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM conversations`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}
	return count, nil
}

// DeleteCreatedBefore removes conversations created before cutoff.
func (s *PostgresStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired conversations: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// RecordEvent records an event in the conversation's history.
func (s *PostgresStore) RecordEvent(ctx context.Context, conversationID string, eventType EventType, payload any) error {
	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, pgInsertEvent, conversationID, string(eventType), payloadJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// GetEvents retrieves events for a conversation.
func (s *PostgresStore) GetEvents(ctx context.Context, conversationID string) ([]Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, event_type, payload, created_at
		FROM conversation_events
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var eventType string
		if err := rows.Scan(&event.ID, &event.ConversationID, &eventType, &event.Payload, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.EventType = EventType(eventType)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
