package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"veron/internal/models"
)

const MaxAuditPage = 1000

// AuditLog appends and pages through audit events.
type AuditLog struct {
	db *sql.DB
}

func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Record stores ev. A zero CreatedAt is replaced with the current time.
func (a *AuditLog) Record(ctx context.Context, ev models.AuditEvent) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO audit_events (created_at, client_ip, method, route, status, category, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.CreatedAt, ev.ClientIP, ev.Method, ev.Route, ev.Status, ev.Category, ev.Message)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns newest events first along with the total number stored.
func (a *AuditLog) List(ctx context.Context, limit, offset int) ([]models.AuditEvent, int, error) {
	if limit <= 0 || limit > MaxAuditPage {
		limit = MaxAuditPage
	}
	if offset < 0 {
		offset = 0
	}
	var total int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, created_at, client_ip, method, route, status, category, message
		FROM audit_events
		ORDER BY id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]models.AuditEvent, 0, limit)
	for rows.Next() {
		var ev models.AuditEvent
		if err := rows.Scan(&ev.ID, &ev.CreatedAt, &ev.ClientIP, &ev.Method, &ev.Route, &ev.Status, &ev.Category, &ev.Message); err != nil {
			return nil, 0, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, ev)
	}
	return events, total, rows.Err()
}
