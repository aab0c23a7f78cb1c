package verifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/dbx"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, v *models.Verification) error {
	query := `
		INSERT INTO verifications (user_id, kind, token, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, kind)
		DO UPDATE SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, used_at = NULL, created_at = NOW()
	`
	var expires sql.NullTime
	if v.ExpiresAt != nil {
		expires = sql.NullTime{Time: *v.ExpiresAt, Valid: true}
	}
	if _, err := r.db.ExecContext(ctx, query, v.UserID, string(v.Kind), v.Token, expires); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByToken(ctx context.Context, kind models.Kind, token string) (*models.Verification, error) {
	query := `
		SELECT user_id, expires_at, used_at, created_at
		FROM verifications
		WHERE kind = $1 AND token = $2
	`
	v := &models.Verification{Kind: kind, Token: token}
	var expires, used sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, string(kind), token).Scan(&v.UserID, &expires, &used, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if expires.Valid {
		t := expires.Time
		v.ExpiresAt = &t
	}
	if used.Valid {
		t := used.Time
		v.UsedAt = &t
	}
	return v, nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, kind models.Kind, token string) (bool, error) {
	query := `
		UPDATE verifications SET used_at = NOW()
		WHERE kind = $1 AND token = $2 AND used_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, string(kind), token)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Consume(ctx context.Context, kind models.Kind, token string, userID int64) (bool, error) {
	query := `
		DELETE FROM verifications
		WHERE kind = $1 AND token = $2 AND user_id = $3
	`
	res, err := r.db.ExecContext(ctx, query, string(kind), token, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
