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

const accountVerificationPath = "/user/verify/account/"

// AccountVerification is the outcome of following a verification link.
type AccountVerification struct {
	User            *models.User
	AlreadyVerified bool
}

type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	mail        MailQueue
	hasher      *auth.Hasher
	ttl         time.Duration
	baseURL     string
	now         func() time.Time
	log         logging.Logger
}

func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, mail MailQueue, hasher *auth.Hasher,
	cfg *config.Config, log logging.Logger) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		mail:        mail,
		hasher:      hasher,
		ttl:         cfg.AccountVerificationValidityDuration,
		baseURL:     strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:         time.Now,
		log:         log.With("module", "account"),
	}
}

// Register creates a disabled ROLE_USER account and mails its verification
// link. Nothing is persisted unless the mail was accepted.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	token := uuid.NewString()
	msg, err := mailer.AccountVerification(in.Email, in.FirstName, s.baseURL+accountVerificationPath+token)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  hash,
		Enabled:   false,
		NotLocked: true,
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).Create(ctx, user); err != nil {
			return err
		}
		if err := s.assignRole(ctx, tx, user.ID, models.RoleUser); err != nil {
			return err
		}
		v := &models.Verification{
			UserID:    user.ID,
			Kind:      models.KindAccount,
			Token:     token,
			ExpiresAt: models.ExpiryFrom(s.now(), s.ttl),
		}
		if err := s.repomanager.Verifications(tx).Upsert(ctx, v); err != nil {
			return fmt.Errorf("store verification link: %w", err)
		}
		return s.mail.Enqueue(ctx, msg)
	})
	if err != nil {
		s.log.Info(ctx, "registration failed", "email", in.Email, "error", err)
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// VerifyAccount enables the link's owner the first time the link is
// followed. Later visits report AlreadyVerified and change nothing, so a
// user disabled afterwards stays disabled.
func (s *AccountService) VerifyAccount(ctx context.Context, token string) (*AccountVerification, error) {
	v, err := s.repomanager.Verifications(s.db).FindByToken(ctx, models.KindAccount, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrLinkNotFound
		}
		return nil, fmt.Errorf("find verification link: %w", err)
	}
	if v.Expired(s.now()) {
		return nil, common.ErrLinkExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, v.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrLinkNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if v.UsedAt != nil {
		return &AccountVerification{User: user, AlreadyVerified: true}, nil
	}

	var won bool
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if won, err = s.repomanager.Verifications(tx).MarkUsed(ctx, models.KindAccount, v.Token); err != nil || !won {
			return err
		}
		if user.Enabled {
			return nil
		}
		if err := s.repomanager.Users(tx).SetEnabled(ctx, user.ID, true); err != nil {
			return fmt.Errorf("enable user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !won || user.Enabled {
		return &AccountVerification{User: user, AlreadyVerified: true}, nil
	}
	user.Enabled = true
	s.log.Info(ctx, "account verified", "user_id", user.ID)
	return &AccountVerification{User: user}, nil
}

// CreateAdministrator inserts an already enabled account with roleName.
func (s *AccountService) CreateAdministrator(ctx context.Context, in RegisterInput, roleName string) (*models.User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, in.Email); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Password:  hash,
		Enabled:   true,
		NotLocked: true,
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Users(tx).Create(ctx, user); err != nil {
			return err
		}
		return s.assignRole(ctx, tx, user.ID, roleName)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info(ctx, "administrator created", "user_id", user.ID, "email", user.Email, "role", roleName)
	return user, nil
}

func (s *AccountService) ensureEmailFree(ctx context.Context, email string) error {
	exists, err := s.repomanager.Users(s.db).EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if exists {
		return common.ErrEmailExists
	}
	return nil
}

func (s *AccountService) assignRole(ctx context.Context, tx dbx.DBTX, userID int64, roleName string) error {
	if err := s.repomanager.Roles(tx).AssignToUser(ctx, userID, roleName); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrRoleNotFound
		}
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}
