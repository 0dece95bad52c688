package models

import "time"

// Event types pushed to dashboards.
const (
	EventQueryCreated       = "query.created"
	EventQueryStatusChanged = "query.status_changed"
	EventQueryReassigned    = "query.reassigned"
	EventApprovalCreated    = "approval.created"
	EventApprovalActed      = "approval.acted"
	EventApprovalsCleared   = "approvals.cleared"
	EventChatMessage        = "chat.message"
	EventChatArchived       = "chat.archived"
)

// Event is a change notification broadcast to every connected dashboard.
type Event struct {
	Type    string      `json:"type"`
	QueryID string      `json:"queryId,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	At      time.Time   `json:"at"`
}

// Actor identifies who performs a lifecycle action.
type Actor struct {
	Name string
	Role UserRole
	Team Team
}

// ActorFromClaims derives the actor of an authenticated request.
func ActorFromClaims(c *JWTClaims) Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{Name: c.Actor(), Role: c.Role, Team: c.Team}
}

// MetricsSnapshot summarises workflow instrumentation for the ops endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	LegacyCacheHits          uint64    `json:"legacyCacheHits"`
	LegacyCacheMisses        uint64    `json:"legacyCacheMisses"`
	FallbackWrites           uint64    `json:"fallbackWrites"`
	RealtimeChannels         int64     `json:"realtimeChannels"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
