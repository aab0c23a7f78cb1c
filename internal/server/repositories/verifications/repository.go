// Package verifications stores the short-lived artifacts bound to a user:
// account verification links, MFA codes and password reset links.
package verifications

import (
	"context"

	"github.com/dmitrijs2005/berboapp/internal/server/models"
)

// Repository keeps at most one artifact per (user, kind).
type Repository interface {
	// Upsert stores v, replacing the user's previous artifact of the same
	// kind in one statement.
	Upsert(ctx context.Context, v *models.Verification) error

	// FindByToken returns common.ErrorNotFound when no artifact matches.
	FindByToken(ctx context.Context, kind models.Kind, token string) (*models.Verification, error)

	// MarkUsed stamps used_at on an unused artifact and reports whether this
	// call did so.
	MarkUsed(ctx context.Context, kind models.Kind, token string) (bool, error)

	// Consume deletes the artifact only if it still belongs to userID and
	// reports whether this call removed it.
	Consume(ctx context.Context, kind models.Kind, token string, userID int64) (bool, error)
}
