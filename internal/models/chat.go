package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ChatActionType classifies a chat message.
type ChatActionType string

const (
	ChatActionMessage    ChatActionType = "message"
	ChatActionApproval   ChatActionType = "approval"
	ChatActionRevert     ChatActionType = "revert"
	ChatActionResolution ChatActionType = "resolution"
)

var integralID = regexp.MustCompile(`^\+?(\d+)(?:\.0+)?$`)

// NormalizeQueryID returns the canonical ownership key for a query
// identifier so that 123, "123", " 123 " and "123.0" collide.
func NormalizeQueryID(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if m := integralID.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return trimmed
}

// QueryRef is a query identifier accepted as either a JSON string or number.
type QueryRef string

// UnmarshalJSON normalizes numeric and string identifiers.
func (r *QueryRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = QueryRef(NormalizeQueryID(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("queryId must be a string or number: %w", err)
	}
	*r = QueryRef(NormalizeQueryID(n.String()))
	return nil
}

// String returns the normalized identifier.
func (r QueryRef) String() string { return string(r) }

// ChatMessage is one entry of a query-scoped chat thread.
type ChatMessage struct {
	ID              string         `db:"id" json:"id"`
	QueryID         string         `db:"query_id" json:"queryId"`
	Message         string         `db:"message" json:"message"`
	Sender          string         `db:"sender" json:"sender"`
	SenderRole      string         `db:"sender_role" json:"senderRole"`
	Team            string         `db:"team" json:"team,omitempty"`
	Timestamp       time.Time      `db:"timestamp" json:"timestamp"`
	IsSystemMessage bool           `db:"is_system_message" json:"isSystemMessage"`
	ActionType      ChatActionType `db:"action_type" json:"actionType"`
}

// ChatMessages is stored as a JSONB snapshot inside archives.
type ChatMessages []ChatMessage

// Value implements driver.Valuer.
func (m ChatMessages) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	return jsonValue([]ChatMessage(m))
}

// Scan implements sql.Scanner.
func (m *ChatMessages) Scan(src interface{}) error {
	var out []ChatMessage
	if err := jsonScan(src, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// DuplicateOf reports whether m repeats other within window: same normalized
// query, text and sender.
func (m ChatMessage) DuplicateOf(other ChatMessage, window time.Duration) bool {
	if NormalizeQueryID(m.QueryID) != NormalizeQueryID(other.QueryID) {
		return false
	}
	if m.Message != other.Message || m.Sender != other.Sender {
		return false
	}
	delta := m.Timestamp.Sub(other.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	return delta <= window
}
