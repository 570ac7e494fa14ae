package conversation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// idPrefix is prepended to every conversation ID.
const idPrefix = "conv_"

// GenerateConversationID creates a unique conversation ID.
func GenerateConversationID() string {
	return idPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// SerializeStateForDB encodes s as JSON with RFC 3339 timestamps.
func SerializeStateForDB(s State) (string, error) {
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()

	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("serialize conversation state: %w", err)
	}
	return string(data), nil
}

// DeserializeStateFromDB decodes a state produced by SerializeStateForDB.
func DeserializeStateFromDB(serialized string) (State, error) {
	var s State
	if err := json.Unmarshal([]byte(serialized), &s); err != nil {
		return State{}, fmt.Errorf("deserialize conversation state: %w", err)
	}
	if !s.CurrentStep.IsValid() {
		return State{}, fmt.Errorf("deserialize conversation state: %w", &UnknownStepError{Step: s.CurrentStep})
	}
	return s, nil
}
