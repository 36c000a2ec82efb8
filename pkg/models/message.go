// Package models defines the shared data model passed between the
// orchestrator, agents, the communication hub, and the reporting layer.
//
// Boundary types carry explicit JSON tags; enums serialize as stable
// lowercase strings so downstream consumers never depend on Go identifiers.
package models

import "time"

// BroadcastTarget is the sentinel target ID that delivers a message to every
// subscribed agent regardless of its own ID.
const BroadcastTarget = "*"

// Priority is the message priority carried on the hub envelope.
// Priority is metadata only: delivery order is FIFO per publish order.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Message is a single hub envelope exchanged between agents within a phase.
type Message struct {
	ID               string         `json:"id"`
	Sender           string         `json:"sender"`
	Target           string         `json:"target"` // agent ID or BroadcastTarget
	Type             string         `json:"type"`
	Payload          map[string]any `json:"payload,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	Priority         Priority       `json:"priority"`
	RequiresResponse bool           `json:"requires_response,omitempty"`
	CorrelationID    string         `json:"correlation_id,omitempty"`
}
