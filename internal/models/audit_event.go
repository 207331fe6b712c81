package models

import "time"

// AuditEvent is one operational record of a rejected or failed request.
type AuditEvent struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"timestamp"`
	ClientIP  string    `json:"ip"`
	Method    string    `json:"method"`
	Route     string    `json:"route"`
	Status    int       `json:"status"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
}
