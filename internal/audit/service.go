// Package audit keeps an append-only Postgres trail of notification side
// effects (posts, cancellations, badge updates). The trail is optional:
// a gateway without a DSN runs with it disabled and nothing else changes.
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Delivery is one recorded notification side effect.
type Delivery struct {
	ID        uuid.UUID `json:"id"`
	CeID      string    `json:"ce_id"`
	Phase     string    `json:"phase"`
	Slot      int32     `json:"slot"`
	Action    string    `json:"action"` // posted | cancelled | badge
	HasImage  bool      `json:"has_image"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	DB *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{DB: db}
}

// RecordDelivery appends one delivery row. Idempotent on id; append-only,
// no update or delete is exposed.
func (s *Service) RecordDelivery(ctx context.Context, ceID, phase string, slot int32, action string, hasImage bool) error {
	query := `
		INSERT INTO notification_log (id, ce_id, phase, slot, action, has_image, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.DB.ExecContext(ctx, query,
		uuid.New(), ceID, phase, slot, action, hasImage, time.Now().UTC(),
	)
	return err
}

// Recent returns the latest deliveries, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]Delivery, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, ce_id, phase, slot, action, has_image, created_at
		FROM notification_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.CeID, &d.Phase, &d.Slot, &d.Action, &d.HasImage, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
