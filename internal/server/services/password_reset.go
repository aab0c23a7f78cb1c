package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/dbx"
	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/dmitrijs2005/berboapp/internal/server/auth"
	"github.com/dmitrijs2005/berboapp/internal/server/config"
	mailer "github.com/dmitrijs2005/berboapp/internal/server/mail"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const passwordResetPath = "/user/verify/password/"

type PasswordResetService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mail        MailQueue
	hasher      *auth.Hasher
	ttl         time.Duration
	baseURL     string
	now         func() time.Time
	log         logging.Logger
}

func NewPasswordResetService(db *sql.DB, m repomanager.RepositoryManager, mail MailQueue, hasher *auth.Hasher,
	cfg *config.Config, log logging.Logger) *PasswordResetService {
	return &PasswordResetService{
		db:          db,
		repomanager: m,
		mail:        mail,
		hasher:      hasher,
		ttl:         cfg.PasswordResetValidityDuration,
		baseURL:     strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:         time.Now,
		log:         log.With("module", "password_reset"),
	}
}

// RequestReset mails a reset link. Unknown emails change nothing.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrEmailNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}

	token := uuid.NewString()
	msg, err := mailer.PasswordReset(user.Email, user.FirstName, s.baseURL+passwordResetPath+token)
	if err != nil {
		return err
	}

	v := &models.Verification{
		UserID:    user.ID,
		Kind:      models.KindPasswordReset,
		Token:     token,
		ExpiresAt: models.ExpiryFrom(s.now(), s.ttl),
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Verifications(tx).Upsert(ctx, v); err != nil {
			return fmt.Errorf("store reset link: %w", err)
		}
		return s.mail.Enqueue(ctx, msg)
	})
	if err != nil {
		s.log.Error(ctx, "password reset request failed", "email", user.Email, "error", err)
		return err
	}
	return nil
}

// VerifyResetURL returns the owner of a live reset token without consuming it.
func (s *PasswordResetService) VerifyResetURL(ctx context.Context, token string) (*models.User, error) {
	v, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, v.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrResetLinkNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// CompletePasswordReset sets the new password and consumes the token in one
// transaction.
func (s *PasswordResetService) CompletePasswordReset(ctx context.Context, token, password, confirmPassword string) error {
	if password != confirmPassword {
		return common.ErrPasswordMismatch
	}
	if password == "" {
		return common.ErrValidation
	}

	v, err := s.lookup(ctx, token)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).UpdatePassword(ctx, v.UserID, hash); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrResetLinkNotFound
			}
			return fmt.Errorf("update password: %w", err)
		}
		consumed, err := s.repomanager.Verifications(tx).Consume(ctx, models.KindPasswordReset, v.Token, v.UserID)
		if err != nil {
			return fmt.Errorf("consume reset link: %w", err)
		}
		if !consumed {
			return common.ErrResetLinkNotFound
		}
		return nil
	})
}

func (s *PasswordResetService) lookup(ctx context.Context, token string) (*models.Verification, error) {
	v, err := s.repomanager.Verifications(s.db).FindByToken(ctx, models.KindPasswordReset, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrResetLinkNotFound
		}
		return nil, fmt.Errorf("find reset link: %w", err)
	}
	if v.Expired(s.now()) {
		return nil, common.ErrResetLinkExpired
	}
	return v, nil
}
