package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/dbx"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
)

const userColumns = `id, first_name, last_name, email, password, address, phone, title, bio,
		 image_url, enabled, not_locked, using_mfa, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (first_name, last_name, email, password, enabled, not_locked)
         VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.FirstName, user.LastName, user.Email, user.Password, user.Enabled, user.NotLocked).
		Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if dbx.IsDuplicateKey(err) {
			return nil, common.ErrEmailExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE email = $1
		 `
	return r.getOne(ctx, query, email)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE id = $1
		 `
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Password, &u.Address, &u.Phone, &u.Title, &u.Bio,
		&u.ImageURL, &u.Enabled, &u.NotLocked, &u.UsingMFA, &u.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

func (r *PostgresRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `SELECT COUNT(*) FROM users WHERE email = $1`

	var n int
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&n); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	query :=
		`UPDATE users SET first_name = $1, last_name = $2, email = $3, phone = $4, title = $5, bio = $6, address = $7
		 WHERE id = $8
		 `
	err := r.execOne(ctx, query,
		user.FirstName, user.LastName, user.Email, user.Phone, user.Title, user.Bio, user.Address, user.ID)
	if dbx.IsDuplicateKey(err) {
		return common.ErrEmailExists
	}
	return err
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, hash string) error {
	return r.execOne(ctx, `UPDATE users SET password = $1 WHERE id = $2`, hash, id)
}

func (r *PostgresRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return r.execOne(ctx, `UPDATE users SET enabled = $1 WHERE id = $2`, enabled, id)
}

func (r *PostgresRepository) UpdateSettings(ctx context.Context, id int64, enabled, notLocked bool) error {
	return r.execOne(ctx, `UPDATE users SET enabled = $1, not_locked = $2 WHERE id = $3`, enabled, notLocked, id)
}

func (r *PostgresRepository) SetUsingMFA(ctx context.Context, id int64, usingMFA bool) error {
	return r.execOne(ctx, `UPDATE users SET using_mfa = $1 WHERE id = $2`, usingMFA, id)
}

func (r *PostgresRepository) SetImageURL(ctx context.Context, id int64, url string) error {
	return r.execOne(ctx, `UPDATE users SET image_url = $1 WHERE id = $2`, url, id)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

// execOne runs a single-row statement; no affected row means common.ErrorNotFound.
func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
