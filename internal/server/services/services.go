// Package services implements the account, authentication and profile
// workflows on top of the repositories, the token codec and the mail queue.
package services

import (
	"context"
	"net/mail"
	"strings"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/server/auth"
	mailer "github.com/dmitrijs2005/berboapp/internal/server/mail"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
)

// MailQueue accepts outbound mail. Enqueue fails with
// common.ErrEmailDeliveryFailed when the message cannot be accepted.
type MailQueue interface {
	Enqueue(ctx context.Context, msg mailer.Message) error
}

// AuthenticatedUser is a user together with the role its authorities come from.
type AuthenticatedUser struct {
	User *models.User
	Role *models.Role
}

func (a *AuthenticatedUser) Authorities() []string {
	if a.Role == nil {
		return []string{}
	}
	return a.Role.Permissions()
}

func (a *AuthenticatedUser) Principal() auth.Principal {
	return auth.Principal{ID: a.User.ID, Authorities: a.Authorities()}
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult carries tokens, or MFARequired with no tokens when a code was
// sent instead.
type LoginResult struct {
	AuthenticatedUser
	Tokens      *TokenPair
	MFARequired bool
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// RegisterInput is the caller-supplied part of a new account.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

func (in *RegisterInput) normalize() error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = normalizeEmail(in.Email)
	switch {
	case in.FirstName == "", in.LastName == "", in.Email == "", in.Password == "":
		return common.ErrValidation
	case !validEmail(in.Email):
		return common.ErrValidation
	}
	return nil
}
