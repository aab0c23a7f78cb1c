// Package users declares the account storage contract and its PostgreSQL
// implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/berboapp/internal/server/models"
)

type Repository interface {
	// Create inserts the user and fills ID and CreatedAt. A taken email
	// yields common.ErrEmailExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)

	// Update writes the editable profile fields: names, email, phone, title,
	// bio and address.
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id int64, hash string) error
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	UpdateSettings(ctx context.Context, id int64, enabled, notLocked bool) error
	SetUsingMFA(ctx context.Context, id int64, usingMFA bool) error
	SetImageURL(ctx context.Context, id int64, url string) error
	Delete(ctx context.Context, id int64) error
}
