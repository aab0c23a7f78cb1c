package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/dmitrijs2005/berboapp/internal/server/auth"
	"github.com/dmitrijs2005/berboapp/internal/server/config"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/berboapp/internal/server/storage"
)

const imagePath = "/user/image/"

// UpdateInput holds the editable profile fields.
type UpdateInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Title     string
	Bio       string
	Address   string
}

type ProfileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.Hasher
	images      storage.ImageStore
	events      *EventService
	baseURL     string
	log         logging.Logger
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.Hasher, images storage.ImageStore,
	events *EventService, cfg *config.Config, log logging.Logger) *ProfileService {
	return &ProfileService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		images:      images,
		events:      events,
		baseURL:     strings.TrimRight(cfg.PublicBaseURL, "/"),
		log:         log.With("module", "profile"),
	}
}

func (s *ProfileService) Get(ctx context.Context, id int64) (*AuthenticatedUser, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	role, err := s.repomanager.Roles(s.db).GetByUserID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRoleNotFound
		}
		return nil, err
	}
	return &AuthenticatedUser{User: user, Role: role}, nil
}

func (s *ProfileService) Update(ctx context.Context, id int64, in UpdateInput, meta models.RequestMeta) (*AuthenticatedUser, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = normalizeEmail(in.Email)
	if in.FirstName == "" || in.LastName == "" || !validEmail(in.Email) {
		return nil, common.ErrValidation
	}

	users := s.repomanager.Users(s.db)
	user, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user.FirstName, user.LastName, user.Email = in.FirstName, in.LastName, in.Email
	user.Phone = strings.TrimSpace(in.Phone)
	user.Title = strings.TrimSpace(in.Title)
	user.Bio = strings.TrimSpace(in.Bio)
	user.Address = strings.TrimSpace(in.Address)

	if err := users.Update(ctx, user); err != nil {
		return nil, err
	}
	s.events.Record(ctx, id, models.EventProfileUpdate, meta)
	return s.Get(ctx, id)
}

func (s *ProfileService) UpdatePassword(ctx context.Context, id int64, current, password, confirm string, meta models.RequestMeta) error {
	if password != confirm {
		return common.ErrPasswordMismatch
	}
	if password == "" {
		return common.ErrValidation
	}

	users := s.repomanager.Users(s.db)
	user, err := users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(user.Password, current) {
		return common.ErrIncorrectCurrentPassword
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := users.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	s.events.Record(ctx, id, models.EventPasswordUpdate, meta)
	return nil
}

func (s *ProfileService) UpdateSettings(ctx context.Context, id int64, enabled, notLocked bool, meta models.RequestMeta) (*AuthenticatedUser, error) {
	if err := s.repomanager.Users(s.db).UpdateSettings(ctx, id, enabled, notLocked); err != nil {
		return nil, err
	}
	s.events.Record(ctx, id, models.EventAccountSettingsUpdate, meta)
	return s.Get(ctx, id)
}

// ToggleMFA flips MFA for users that have a phone number on file.
func (s *ProfileService) ToggleMFA(ctx context.Context, id int64, meta models.RequestMeta) (*AuthenticatedUser, error) {
	users := s.repomanager.Users(s.db)
	user, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(user.Phone) == "" {
		return nil, common.ErrPhoneRequired
	}
	if err := users.SetUsingMFA(ctx, id, !user.UsingMFA); err != nil {
		return nil, err
	}
	s.events.Record(ctx, id, models.EventMFAUpdate, meta)
	return s.Get(ctx, id)
}

// UpdateRole moves the user to roleName. The new role may not grant any
// permission the current role lacks.
func (s *ProfileService) UpdateRole(ctx context.Context, id int64, roleName string, meta models.RequestMeta) (*AuthenticatedUser, error) {
	roles := s.repomanager.Roles(s.db)
	roleName = strings.TrimSpace(roleName)

	target, err := roles.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRoleNotFound
		}
		return nil, err
	}
	current, err := roles.GetByUserID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRoleNotFound
		}
		return nil, err
	}
	if !current.Covers(target) {
		s.log.Info(ctx, "role escalation refused", "user_id", id, "from", current.Name, "to", target.Name)
		return nil, common.ErrorForbidden
	}

	if err := roles.AssignToUser(ctx, id, roleName); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrRoleNotFound
		}
		return nil, err
	}
	s.events.Record(ctx, id, models.EventRoleUpdate, meta)
	return s.Get(ctx, id)
}

func (s *ProfileService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.repomanager.Roles(s.db).List(ctx)
}

// UpdateImage stores the picture as {email}.png and points image_url at it.
func (s *ProfileService) UpdateImage(ctx context.Context, id int64, r io.Reader, meta models.RequestMeta) (*AuthenticatedUser, error) {
	users := s.repomanager.Users(s.db)
	user, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := user.Email + ".png"
	if err := s.images.Put(ctx, name, r); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	if err := users.SetImageURL(ctx, id, s.baseURL+imagePath+name); err != nil {
		return nil, err
	}
	s.events.Record(ctx, id, models.EventProfilePictureUpdate, meta)
	return s.Get(ctx, id)
}

func (s *ProfileService) Image(ctx context.Context, name string) ([]byte, error) {
	b, err := s.images.Get(ctx, name)
	if errors.Is(err, storage.ErrInvalidName) {
		return nil, common.ErrImageNotFound
	}
	return b, err
}

// Delete removes the account; artifacts, role and events cascade.
func (s *ProfileService) Delete(ctx context.Context, id int64) error {
	if err := s.repomanager.Users(s.db).Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info(ctx, "user deleted", "user_id", id)
	return nil
}
