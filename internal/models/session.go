package models

import (
	"encoding/json"
	"time"
)

// Session tracks one multi-turn conversation with the remote agent.
type Session struct {
	ID           string    `json:"session_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsed     time.Time `json:"last_used"`
	MessageCount int       `json:"message_count"`
}

// TraceInfo is one orchestration trace event reported by the remote agent.
type TraceInfo struct {
	Type   string          `json:"type"`
	Detail json.RawMessage `json:"detail"`
}
