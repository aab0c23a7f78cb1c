// Package roles reads the seeded roles and the one-role-per-user assignment.
package roles

import (
	"context"

	"github.com/dmitrijs2005/berboapp/internal/server/models"
)

type Repository interface {
	List(ctx context.Context) ([]models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)
	GetByUserID(ctx context.Context, userID int64) (*models.Role, error)
	// AssignToUser sets the user's single role, replacing any current one.
	AssignToUser(ctx context.Context, userID int64, roleName string) error
}
