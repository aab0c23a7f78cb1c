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
	"github.com/dmitrijs2005/berboapp/internal/server/config"
	mailer "github.com/dmitrijs2005/berboapp/internal/server/mail"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/repomanager"
)

type MFAService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mail        MailQueue
	events      *EventService
	ttl         time.Duration
	now         func() time.Time
	log         logging.Logger
}

func NewMFAService(db *sql.DB, m repomanager.RepositoryManager, mail MailQueue, events *EventService,
	cfg *config.Config, log logging.Logger) *MFAService {
	return &MFAService{
		db:          db,
		repomanager: m,
		mail:        mail,
		events:      events,
		ttl:         cfg.MFACodeValidityDuration,
		now:         time.Now,
		log:         log.With("module", "mfa"),
	}
}

// SendCode replaces the user's pending code with a fresh one and mails it.
// The code is stored only if the mail was accepted.
func (s *MFAService) SendCode(ctx context.Context, user *models.User) error {
	code, err := common.MakeRandCode(common.MFACodeLength)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	msg, err := mailer.MFACode(user.Email, user.FirstName, code)
	if err != nil {
		return err
	}

	v := &models.Verification{
		UserID:    user.ID,
		Kind:      models.KindMFA,
		Token:     code,
		ExpiresAt: models.ExpiryFrom(s.now(), s.ttl),
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Verifications(tx).Upsert(ctx, v); err != nil {
			return fmt.Errorf("store code: %w", err)
		}
		return s.mail.Enqueue(ctx, msg)
	})
	if err != nil {
		s.log.Error(ctx, "send mfa code failed", "user_id", user.ID, "error", err)
		return err
	}
	return nil
}

// VerifyCode consumes the code if it is live and belongs to email. Expiry is
// reported before ownership.
func (s *MFAService) VerifyCode(ctx context.Context, email, code string, meta models.RequestMeta) (*AuthenticatedUser, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	verifications := s.repomanager.Verifications(s.db)

	v, err := verifications.FindByToken(ctx, models.KindMFA, code)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrCodeNotFound
		}
		return nil, fmt.Errorf("find code: %w", err)
	}
	if v.Expired(s.now()) {
		return nil, common.ErrCodeExpired
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrCodeInvalid
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user.ID != v.UserID {
		return nil, common.ErrCodeInvalid
	}

	consumed, err := verifications.Consume(ctx, models.KindMFA, code, user.ID)
	if err != nil {
		return nil, fmt.Errorf("consume code: %w", err)
	}
	if !consumed {
		return nil, common.ErrCodeNotFound
	}

	role, err := s.repomanager.Roles(s.db).GetByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRoleNotFound
		}
		return nil, fmt.Errorf("get role: %w", err)
	}

	s.events.Record(ctx, user.ID, models.EventLoginAttemptSuccess, meta)
	return &AuthenticatedUser{User: user, Role: role}, nil
}
