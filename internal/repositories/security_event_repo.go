package repositories

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/tbarroso/cerbero/internal/database"
	"github.com/tbarroso/cerbero/internal/models"
)

// SecurityEventRepository persists audit events emitted by the async
// dispatcher.
type SecurityEventRepository struct {
	db *database.DB
}

func NewSecurityEventRepository(db *database.DB) *SecurityEventRepository {
	return &SecurityEventRepository{db: db}
}

func (r *SecurityEventRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	var detail []byte
	if event.Detail != nil {
		var err error
		detail, err = json.Marshal(event.Detail)
		if err != nil {
			return err
		}
	}

	query := `
		INSERT INTO security_events (id, identifier, event_type, level, ip_address, user_agent, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		event.ID,
		event.Identifier,
		event.EventType,
		event.Level,
		event.IPAddress,
		event.UserAgent,
		detail,
		event.OccurredAt,
	)

	return err
}
