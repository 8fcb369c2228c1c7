package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tbarroso/cerbero/internal/database"
	"github.com/tbarroso/cerbero/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, password_hash, failed_attempts, account_locked, lock_expires_at, two_factor_code, two_factor_expires_at, created_at, updated_at`

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.FailedAttempts, &user.AccountLocked, &user.LockExpiresAt,
		&user.TwoFactorCode, &user.TwoFactorExpiresAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE email = $1`, userColumns)
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE username = $1`, userColumns)
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = uuid.New().String()

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO users (id, username, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s
	`, userColumns)

	return scanUserRow(r.db.Pool.QueryRow(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash,
		user.CreatedAt, user.UpdatedAt,
	))
}

// IncrementFailedAttempts bumps the failure counter atomically at the account
// row and returns the new count. Concurrent callers on the same account
// serialize on the row, so no increments are lost.
func (r *UserRepository) IncrementFailedAttempts(ctx context.Context, username string) (int, error) {
	query := `
		UPDATE users SET failed_attempts = failed_attempts + 1, updated_at = NOW()
		WHERE username = $1
		RETURNING failed_attempts
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, username).Scan(&count)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, models.ErrNotFound
		}
		return 0, database.MapPostgresError(err)
	}

	return count, nil
}

// Lock marks the account locked until the given expiry. The row lock keeps a
// concurrent lazy-expiry reopen from interleaving with the lock write.
func (r *UserRepository) Lock(ctx context.Context, username string, until time.Time) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM users WHERE username = $1 FOR UPDATE`, username).Scan(&id)
		if err != nil {
			return database.MapPostgresError(err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE users SET account_locked = TRUE, lock_expires_at = $2, updated_at = NOW()
			WHERE id = $1
		`, id, until)
		return database.MapPostgresError(err)
	})
}

// Unlock clears the lock and resets the failure counter in one statement.
// Used by both unlock paths: lazy lock expiry and challenge success.
func (r *UserRepository) Unlock(ctx context.Context, username string) error {
	query := `
		UPDATE users SET account_locked = FALSE, lock_expires_at = NULL, failed_attempts = 0, updated_at = NOW()
		WHERE username = $1
	`
	return r.execOnUser(ctx, query, username)
}

// ResetFailedAttempts zeroes the failure counter after a successful password check.
func (r *UserRepository) ResetFailedAttempts(ctx context.Context, username string) error {
	query := `
		UPDATE users SET failed_attempts = 0, updated_at = NOW()
		WHERE username = $1
	`
	return r.execOnUser(ctx, query, username)
}

// UpdateTwoFactorCode stores a pending second-factor code and its expiry.
func (r *UserRepository) UpdateTwoFactorCode(ctx context.Context, username, code string, expiresAt time.Time) error {
	query := `
		UPDATE users SET two_factor_code = $2, two_factor_expires_at = $3, updated_at = NOW()
		WHERE username = $1
	`
	return r.execOnUser(ctx, query, username, code, expiresAt)
}

// ClearTwoFactorCode removes any pending second-factor code.
func (r *UserRepository) ClearTwoFactorCode(ctx context.Context, username string) error {
	query := `
		UPDATE users SET two_factor_code = NULL, two_factor_expires_at = NULL, updated_at = NOW()
		WHERE username = $1
	`
	return r.execOnUser(ctx, query, username)
}

func (r *UserRepository) execOnUser(ctx context.Context, query, username string, args ...interface{}) error {
	allArgs := append([]interface{}{username}, args...)

	result, err := r.db.Pool.Exec(ctx, query, allArgs...)
	if err != nil {
		return database.MapPostgresError(err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}
