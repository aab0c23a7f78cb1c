package roles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/dbx"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context) ([]models.Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, permission FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Role
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Permission); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	query := `SELECT id, name, permission FROM roles WHERE name = $1`
	return r.getOne(ctx, query, name)
}

func (r *PostgresRepository) GetByUserID(ctx context.Context, userID int64) (*models.Role, error) {
	query :=
		`SELECT r.id, r.name, r.permission FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1
		 `
	return r.getOne(ctx, query, userID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Role, error) {
	role := &models.Role{}
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&role.ID, &role.Name, &role.Permission); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return role, nil
}

// AssignToUser returns common.ErrorNotFound when roleName does not exist.
func (r *PostgresRepository) AssignToUser(ctx context.Context, userID int64, roleName string) error {
	query :=
		`INSERT INTO user_roles (user_id, role_id)
		 SELECT $1, id FROM roles WHERE name = $2
		 ON CONFLICT (user_id) DO UPDATE SET role_id = EXCLUDED.role_id
		 `
	res, err := r.db.ExecContext(ctx, query, userID, roleName)
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
