package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
	"github.com/dmitrijs2005/berboapp/internal/server/services"
	"github.com/go-chi/chi/v5"
)

type AuthAPI interface {
	Login(ctx context.Context, email, password string, meta models.RequestMeta) (*services.LoginResult, error)
	VerifyCode(ctx context.Context, email, code string, meta models.RequestMeta) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.LoginResult, error)
}

type AccountAPI interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	VerifyAccount(ctx context.Context, token string) (*services.AccountVerification, error)
}

type PasswordResetAPI interface {
	RequestReset(ctx context.Context, email string) error
	VerifyResetURL(ctx context.Context, token string) (*models.User, error)
	CompletePasswordReset(ctx context.Context, token, password, confirmPassword string) error
}

type ProfileAPI interface {
	Get(ctx context.Context, id int64) (*services.AuthenticatedUser, error)
	Update(ctx context.Context, id int64, in services.UpdateInput, meta models.RequestMeta) (*services.AuthenticatedUser, error)
	UpdatePassword(ctx context.Context, id int64, current, password, confirm string, meta models.RequestMeta) error
	UpdateSettings(ctx context.Context, id int64, enabled, notLocked bool, meta models.RequestMeta) (*services.AuthenticatedUser, error)
	ToggleMFA(ctx context.Context, id int64, meta models.RequestMeta) (*services.AuthenticatedUser, error)
	UpdateRole(ctx context.Context, id int64, roleName string, meta models.RequestMeta) (*services.AuthenticatedUser, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
	UpdateImage(ctx context.Context, id int64, r io.Reader, meta models.RequestMeta) (*services.AuthenticatedUser, error)
	Image(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, id int64) error
}

type EventAPI interface {
	Recent(ctx context.Context, userID int64) ([]models.UserEvent, error)
}

const maxImageSize = 10 << 20

// Handlers serves the /user routes.
type Handlers struct {
	auth    AuthAPI
	account AccountAPI
	reset   PasswordResetAPI
	profile ProfileAPI
	events  EventAPI
	log     logging.Logger
}

func NewHandlers(a AuthAPI, acc AccountAPI, reset PasswordResetAPI, profile ProfileAPI, events EventAPI, log logging.Logger) *Handlers {
	return &Handlers{auth: a, account: acc, reset: reset, profile: profile, events: events, log: log.With("module", "http_handlers")}
}

// fail logs err with its operation and writes the mapped response.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, op string, err error, args ...any) {
	code, msg := statusFor(err)
	args = append([]any{"op", op, "status", code, "error", err}, args...)
	if code >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", args...)
	} else {
		h.log.Info(r.Context(), "request rejected", args...)
	}
	respond(w, code, msg, nil)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return nil
}

func requestMeta(r *http.Request) models.RequestMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return models.RequestMeta{Device: r.UserAgent(), IPAddress: ip}
}

func mustPrincipal(r *http.Request) int64 {
	p, _ := PrincipalFrom(r.Context())
	return p.ID
}

func loginData(res *services.LoginResult) map[string]any {
	data := map[string]any{"user": authenticatedDTO(&res.AuthenticatedUser)}
	if res.Tokens != nil {
		data["jwt_token"] = res.Tokens.AccessToken
		data["refresh_token"] = res.Tokens.RefreshToken
	}
	return data
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "login", err)
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		h.fail(w, r, "login", err, "email", req.Email)
		return
	}
	if res.MFARequired {
		respond(w, http.StatusOK, "Verification code sent!", loginData(res))
		return
	}
	respond(w, http.StatusOK, "Login successful", loginData(res))
}

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "register", err)
		return
	}
	u, err := h.account.Register(r.Context(), services.RegisterInput(req))
	if err != nil {
		h.fail(w, r, "register", err, "email", req.Email)
		return
	}
	dto := toUserDTO(u, nil)
	dto.RoleName = models.RoleUser
	respond(w, http.StatusCreated, "User successfully registered", map[string]any{"user": dto})
}

func (h *Handlers) VerifyCode(w http.ResponseWriter, r *http.Request) {
	email, code := chi.URLParam(r, "email"), chi.URLParam(r, "code")
	res, err := h.auth.VerifyCode(r.Context(), email, code, requestMeta(r))
	if err != nil {
		h.fail(w, r, "verify_code", err, "email", email)
		return
	}
	respond(w, http.StatusOK, "Login successful", loginData(res))
}

func (h *Handlers) VerifyAccount(w http.ResponseWriter, r *http.Request) {
	res, err := h.account.VerifyAccount(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.fail(w, r, "verify_account", err)
		return
	}
	msg := "Account verified"
	if res.AlreadyVerified {
		msg = "Account already verified"
	}
	respond(w, http.StatusOK, msg, nil)
}

func (h *Handlers) RequestReset(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if err := h.reset.RequestReset(r.Context(), email); err != nil {
		h.fail(w, r, "request_reset", err, "email", email)
		return
	}
	respond(w, http.StatusOK, "Email for password recovery has been sent to: "+email, nil)
}

func (h *Handlers) VerifyResetURL(w http.ResponseWriter, r *http.Request) {
	u, err := h.reset.VerifyResetURL(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.fail(w, r, "verify_reset_url", err)
		return
	}
	respond(w, http.StatusOK, "Enter new Password", map[string]any{"user": toUserDTO(u, nil)})
}

type resetRequest struct {
	URL             string `json:"url"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// linkKey accepts either the bare key or the full emailed link.
func linkKey(url string) string {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	return url[strings.LastIndex(url, "/")+1:]
}

func (h *Handlers) CompleteReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "complete_reset", err)
		return
	}
	if err := h.reset.CompletePasswordReset(r.Context(), linkKey(req.URL), req.Password, req.ConfirmPassword); err != nil {
		h.fail(w, r, "complete_reset", err)
		return
	}
	respond(w, http.StatusOK, "Password reset successfully", nil)
}

func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok || token == "" {
		h.fail(w, r, "refresh_token", common.ErrRefreshTokenInvalid)
		return
	}
	res, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		h.fail(w, r, "refresh_token", err)
		return
	}
	respond(w, http.StatusOK, "Refresh Token", loginData(res))
}

func (h *Handlers) Image(w http.ResponseWriter, r *http.Request) {
	b, err := h.profile.Image(r.Context(), chi.URLParam(r, "fileName"))
	if err != nil {
		h.fail(w, r, "get_image", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	_, _ = w.Write(b)
}

// profileData is the user, recent events and roles payload of every
// profile mutation.
func (h *Handlers) profileData(ctx context.Context, au *services.AuthenticatedUser) (map[string]any, error) {
	events, err := h.events.Recent(ctx, au.User.ID)
	if err != nil {
		return nil, err
	}
	roles, err := h.profile.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"user":   authenticatedDTO(au),
		"events": toEventDTOs(events),
		"roles":  toRoleDTOs(roles),
	}, nil
}

func (h *Handlers) respondProfile(w http.ResponseWriter, r *http.Request, op, msg string, au *services.AuthenticatedUser, err error) {
	if err != nil {
		h.fail(w, r, op, err, "user_id", mustPrincipal(r))
		return
	}
	data, err := h.profileData(r.Context(), au)
	if err != nil {
		h.fail(w, r, op, err, "user_id", au.User.ID)
		return
	}
	respond(w, http.StatusOK, msg, data)
}

func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	au, err := h.profile.Get(r.Context(), mustPrincipal(r))
	h.respondProfile(w, r, "profile", "Profile Retrieved", au, err)
}

type updateRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Title     string `json:"title"`
	Bio       string `json:"bio"`
	Address   string `json:"address"`
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "update_user", err)
		return
	}
	au, err := h.profile.Update(r.Context(), mustPrincipal(r), services.UpdateInput(req), requestMeta(r))
	h.respondProfile(w, r, "update_user", "User updated!", au, err)
}

type updatePasswordRequest struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

func (h *Handlers) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "update_password", err)
		return
	}
	id := mustPrincipal(r)
	if err := h.profile.UpdatePassword(r.Context(), id, req.CurrentPassword, req.NewPassword, req.ConfirmNewPassword, requestMeta(r)); err != nil {
		h.fail(w, r, "update_password", err, "user_id", id)
		return
	}
	au, err := h.profile.Get(r.Context(), id)
	h.respondProfile(w, r, "update_password", "Password updated successfully!", au, err)
}

func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	au, err := h.profile.UpdateRole(r.Context(), mustPrincipal(r), chi.URLParam(r, "roleName"), requestMeta(r))
	h.respondProfile(w, r, "update_role", "Role updated successfully!", au, err)
}

type settingsRequest struct {
	Enabled   *bool `json:"enabled"`
	NotLocked *bool `json:"notLocked"`
}

func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, "update_settings", err)
		return
	}
	if req.Enabled == nil || req.NotLocked == nil {
		h.fail(w, r, "update_settings", common.ErrValidation)
		return
	}
	au, err := h.profile.UpdateSettings(r.Context(), mustPrincipal(r), *req.Enabled, *req.NotLocked, requestMeta(r))
	h.respondProfile(w, r, "update_settings", "Account settings updated successfully!", au, err)
}

func (h *Handlers) UpdateMFA(w http.ResponseWriter, r *http.Request) {
	au, err := h.profile.ToggleMFA(r.Context(), mustPrincipal(r), requestMeta(r))
	h.respondProfile(w, r, "update_mfa", "MFA updated successfully!", au, err)
}

func (h *Handlers) UpdateImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	f, _, err := r.FormFile("image")
	if err != nil {
		h.fail(w, r, "update_image", fmt.Errorf("%w: %v", common.ErrValidation, err))
		return
	}
	defer f.Close()

	au, err := h.profile.UpdateImage(r.Context(), mustPrincipal(r), f, requestMeta(r))
	h.respondProfile(w, r, "update_image", "Profile image updated successfully!", au, err)
}

func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	id := mustPrincipal(r)
	events, err := h.events.Recent(r.Context(), id)
	if err != nil {
		h.fail(w, r, "events", err, "user_id", id)
		return
	}
	respond(w, http.StatusOK, "User Events Retrieved!", map[string]any{"events": toEventDTOs(events)})
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.fail(w, r, "delete_user", common.ErrValidation)
		return
	}
	if err := h.profile.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "delete_user", err, "user_id", id)
		return
	}
	h.log.Info(r.Context(), "user deleted", "user_id", id, "by", mustPrincipal(r))
	respond(w, http.StatusOK, "User deleted!", nil)
}
