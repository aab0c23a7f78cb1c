package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/dmitrijs2005/berboapp/internal/server/auth"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
	"github.com/dmitrijs2005/berboapp/internal/server/ratelimit"
	"github.com/dmitrijs2005/berboapp/internal/server/services"
)

type fakeAuth struct {
	login   func(email, password string) (*services.LoginResult, error)
	code    func(email, code string) (*services.LoginResult, error)
	refresh func(token string) (*services.LoginResult, error)
}

func (f *fakeAuth) Login(_ context.Context, email, password string, _ models.RequestMeta) (*services.LoginResult, error) {
	return f.login(email, password)
}

func (f *fakeAuth) VerifyCode(_ context.Context, email, code string, _ models.RequestMeta) (*services.LoginResult, error) {
	return f.code(email, code)
}

func (f *fakeAuth) Refresh(_ context.Context, token string) (*services.LoginResult, error) {
	return f.refresh(token)
}

type fakeAccount struct {
	register func(in services.RegisterInput) (*models.User, error)
	verify   func(token string) (*services.AccountVerification, error)
}

func (f *fakeAccount) Register(_ context.Context, in services.RegisterInput) (*models.User, error) {
	return f.register(in)
}

func (f *fakeAccount) VerifyAccount(_ context.Context, token string) (*services.AccountVerification, error) {
	return f.verify(token)
}

type fakeReset struct {
	gotToken, gotPassword string
	err                   error
}

func (f *fakeReset) RequestReset(context.Context, string) error { return f.err }

func (f *fakeReset) VerifyResetURL(_ context.Context, token string) (*models.User, error) {
	f.gotToken = token
	if f.err != nil {
		return nil, f.err
	}
	return &models.User{ID: 1, Email: "ada@example.com"}, nil
}

func (f *fakeReset) CompletePasswordReset(_ context.Context, token, password, _ string) error {
	f.gotToken, f.gotPassword = token, password
	return f.err
}

// fakeProfile serves one stored user for every id.
type fakeProfile struct {
	au      *services.AuthenticatedUser
	err     error
	images  map[string][]byte
	deleted []int64
	lastIn  services.UpdateInput
}

func (f *fakeProfile) result() (*services.AuthenticatedUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.au, nil
}

func (f *fakeProfile) Get(context.Context, int64) (*services.AuthenticatedUser, error) {
	return f.result()
}

func (f *fakeProfile) Update(_ context.Context, _ int64, in services.UpdateInput, _ models.RequestMeta) (*services.AuthenticatedUser, error) {
	f.lastIn = in
	return f.result()
}

func (f *fakeProfile) UpdatePassword(context.Context, int64, string, string, string, models.RequestMeta) error {
	return f.err
}

func (f *fakeProfile) UpdateSettings(_ context.Context, _ int64, enabled, notLocked bool, _ models.RequestMeta) (*services.AuthenticatedUser, error) {
	f.au.User.Enabled, f.au.User.NotLocked = enabled, notLocked
	return f.result()
}

func (f *fakeProfile) ToggleMFA(context.Context, int64, models.RequestMeta) (*services.AuthenticatedUser, error) {
	return f.result()
}

func (f *fakeProfile) UpdateRole(context.Context, int64, string, models.RequestMeta) (*services.AuthenticatedUser, error) {
	return f.result()
}

func (f *fakeProfile) ListRoles(context.Context) ([]models.Role, error) {
	return []models.Role{{ID: 1, Name: models.RoleUser, Permission: "READ:USER"}}, nil
}

func (f *fakeProfile) UpdateImage(_ context.Context, _ int64, r io.Reader, _ models.RequestMeta) (*services.AuthenticatedUser, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.images[f.au.User.Email+".png"] = b
	return f.result()
}

func (f *fakeProfile) Image(_ context.Context, name string) ([]byte, error) {
	b, ok := f.images[name]
	if !ok {
		return nil, common.ErrImageNotFound
	}
	return b, nil
}

func (f *fakeProfile) Delete(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

type fakeEvents struct{ events []models.UserEvent }

func (f *fakeEvents) Recent(context.Context, int64) ([]models.UserEvent, error) {
	return f.events, nil
}

type harness struct {
	codec   *auth.Codec
	auth    *fakeAuth
	account *fakeAccount
	reset   *fakeReset
	profile *fakeProfile
	events  *fakeEvents
	router  http.Handler
}

func newHarness(t *testing.T, limiter *ratelimit.Limiter) *harness {
	t.Helper()
	codec, err := auth.NewCodec(auth.CodecConfig{
		SigningKey:   []byte("test-secret"),
		SigningKeyID: "k1",
		AccessTTL:    time.Minute,
		RefreshTTL:   2 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	ada := &models.User{ID: 7, FirstName: "Ada", Email: "ada@example.com", Enabled: true, NotLocked: true}
	h := &harness{
		codec:   codec,
		auth:    &fakeAuth{},
		account: &fakeAccount{},
		reset:   &fakeReset{},
		profile: &fakeProfile{
			au:     &services.AuthenticatedUser{User: ada, Role: &models.Role{ID: 1, Name: models.RoleUser, Permission: "READ:USER"}},
			images: map[string][]byte{},
		},
		events: &fakeEvents{events: []models.UserEvent{{ID: 1, UserID: 7, Type: models.EventLoginAttempt}}},
	}
	log := logging.NewDiscardLogger()
	h.router = NewRouter(RouterConfig{
		Handlers: NewHandlers(h.auth, h.account, h.reset, h.profile, h.events, log),
		Verifier: codec,
		Limiter:  limiter,
		Logger:   log,
	})
	return h
}

func (h *harness) bearer(t *testing.T, id int64, authorities ...string) string {
	t.Helper()
	tok, err := h.codec.CreateAccessToken(id, authorities)
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}
	return "Bearer " + tok
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}
