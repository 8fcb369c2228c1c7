package repositories

import (
	"context"

	"github.com/google/uuid"

	"github.com/tbarroso/cerbero/internal/database"
	"github.com/tbarroso/cerbero/internal/models"
)

// LoginAttemptRepository handles database operations for login attempts
type LoginAttemptRepository struct {
	db *database.DB
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// RecordAttempt appends one immutable login attempt row.
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}

	query := `
		INSERT INTO login_attempts (id, identifier, ip_address, user_agent, attempt_time, success, failure_reason, two_factor_required, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.ID,
		attempt.Identifier,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.AttemptTime,
		attempt.Success,
		attempt.FailureReason,
		attempt.TwoFactorRequired,
		attempt.ExpiresAt,
	)

	return err
}

// ListByIdentifier returns the most recent attempts for one identifier,
// newest first.
func (r *LoginAttemptRepository) ListByIdentifier(ctx context.Context, identifier string, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, identifier, ip_address, user_agent, attempt_time, success, failure_reason, two_factor_required, expires_at
		FROM login_attempts
		WHERE identifier = $1
		ORDER BY attempt_time DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, identifier, limit)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	attempts := make([]*models.LoginAttempt, 0)
	for rows.Next() {
		var a models.LoginAttempt
		err := rows.Scan(
			&a.ID, &a.Identifier, &a.IPAddress, &a.UserAgent,
			&a.AttemptTime, &a.Success, &a.FailureReason,
			&a.TwoFactorRequired, &a.ExpiresAt,
		)
		if err != nil {
			return nil, database.MapPostgresError(err)
		}
		attempts = append(attempts, &a)
	}

	return attempts, rows.Err()
}

// DeleteExpiredAttempts removes attempts past their retention boundary.
func (r *LoginAttemptRepository) DeleteExpiredAttempts(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_attempts WHERE expires_at <= CURRENT_TIMESTAMP`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
