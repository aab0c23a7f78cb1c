package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/dmitrijs2005/berboapp/internal/server/auth"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/repomanager"
)

type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	hasher      *auth.Hasher
	mfa         *MFAService
	events      *EventService
	log         logging.Logger
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, codec *auth.Codec, hasher *auth.Hasher,
	mfa *MFAService, events *EventService, log logging.Logger) *AuthService {
	return &AuthService{
		db:          db,
		repomanager: m,
		codec:       codec,
		hasher:      hasher,
		mfa:         mfa,
		events:      events,
		log:         log.With("module", "auth"),
	}
}

// Authenticate checks email and password. Account state is only inspected
// once the password matched.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*AuthenticatedUser, error) {
	_, au, err := s.authenticate(ctx, email, password)
	return au, err
}

// authenticate also returns the looked-up user, if any, so failures can be
// attributed in the audit trail.
func (s *AuthService) authenticate(ctx context.Context, email, password string) (*models.User, *AuthenticatedUser, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.CompareDummy(password)
			return nil, nil, common.ErrBadCredentials
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	if !s.hasher.Compare(user.Password, password) {
		return user, nil, common.ErrBadCredentials
	}
	if !user.Enabled {
		return user, nil, common.ErrAccountDisabled
	}
	if !user.NotLocked {
		return user, nil, common.ErrAccountLocked
	}

	role, err := s.repomanager.Roles(s.db).GetByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return user, nil, common.ErrRoleNotFound
		}
		return user, nil, fmt.Errorf("get role: %w", err)
	}
	return user, &AuthenticatedUser{User: user, Role: role}, nil
}

// Login authenticates and either issues tokens or, for MFA users, sends a
// code and reports MFARequired.
func (s *AuthService) Login(ctx context.Context, email, password string, meta models.RequestMeta) (*LoginResult, error) {
	user, au, err := s.authenticate(ctx, email, password)
	if user != nil {
		s.events.Record(ctx, user.ID, models.EventLoginAttempt, meta)
	}
	if err != nil {
		if user != nil {
			s.events.Record(ctx, user.ID, models.EventLoginAttemptFailure, meta)
		}
		s.log.Info(ctx, "login failed", "email", normalizeEmail(email), "error", err)
		return nil, err
	}

	if au.User.UsingMFA {
		if err := s.mfa.SendCode(ctx, au.User); err != nil {
			return nil, err
		}
		return &LoginResult{AuthenticatedUser: *au, MFARequired: true}, nil
	}

	tokens, err := s.IssueTokens(au)
	if err != nil {
		return nil, err
	}
	s.events.Record(ctx, au.User.ID, models.EventLoginAttemptSuccess, meta)
	return &LoginResult{AuthenticatedUser: *au, Tokens: tokens}, nil
}

// VerifyCode completes an MFA login and issues tokens.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string, meta models.RequestMeta) (*LoginResult, error) {
	au, err := s.mfa.VerifyCode(ctx, email, code, meta)
	if err != nil {
		return nil, err
	}
	tokens, err := s.IssueTokens(au)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AuthenticatedUser: *au, Tokens: tokens}, nil
}

// Refresh exchanges a valid refresh token for a fresh access token. The
// refresh token itself is returned unchanged.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	id, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		s.log.Debug(ctx, "refresh token rejected", "error", err)
		return nil, common.ErrRefreshTokenInvalid
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRefreshTokenInvalid
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !user.Enabled || !user.NotLocked {
		return nil, common.ErrRefreshTokenInvalid
	}

	role, err := s.repomanager.Roles(s.db).GetByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRefreshTokenInvalid
		}
		return nil, fmt.Errorf("get role: %w", err)
	}

	au := &AuthenticatedUser{User: user, Role: role}
	access, err := s.codec.CreateAccessToken(user.ID, au.Authorities())
	if err != nil {
		return nil, err
	}
	return &LoginResult{AuthenticatedUser: *au, Tokens: &TokenPair{AccessToken: access, RefreshToken: refreshToken}}, nil
}

// IssueTokens signs an access token carrying the role's permissions and a
// refresh token.
func (s *AuthService) IssueTokens(au *AuthenticatedUser) (*TokenPair, error) {
	access, err := s.codec.CreateAccessToken(au.User.ID, au.Authorities())
	if err != nil {
		return nil, err
	}
	refresh, err := s.codec.CreateRefreshToken(au.User.ID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
