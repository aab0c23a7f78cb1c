package services

import (
	"context"
	"database/sql"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/dbx"
	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/dmitrijs2005/berboapp/internal/server/auth"
	"github.com/dmitrijs2005/berboapp/internal/server/config"
	mailer "github.com/dmitrijs2005/berboapp/internal/server/mail"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/events"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/roles"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/users"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/verifications"
	"golang.org/x/crypto/bcrypt"
)

// fakeStore is an in-memory stand-in for all repositories.
type fakeStore struct {
	mu        sync.Mutex
	nextID    int64
	users     map[int64]models.User
	roles     []models.Role
	userRoles map[int64]string
	verifs    map[models.Kind]map[string]models.Verification
	events    []models.UserEvent

	eventErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     map[int64]models.User{},
		userRoles: map[int64]string{},
		verifs:    map[models.Kind]map[string]models.Verification{},
		roles: []models.Role{
			{ID: 1, Name: models.RoleUser, Permission: "READ:USER,READ:CUSTOMER"},
			{ID: 2, Name: models.RoleManager, Permission: "READ:USER,READ:CUSTOMER,UPDATE:USER,UPDATE:CUSTOMER"},
			{ID: 3, Name: models.RoleAdmin, Permission: "READ:USER,READ:CUSTOMER,UPDATE:USER,UPDATE:CUSTOMER,CREATE:USER,CREATE:CUSTOMER"},
			{ID: 4, Name: models.RoleSysAdmin, Permission: "READ:USER,READ:CUSTOMER,UPDATE:USER,UPDATE:CUSTOMER,CREATE:USER,CREATE:CUSTOMER,DELETE:USER,DELETE:CUSTOMER"},
		},
	}
}

// addUser seeds an account with the given bcrypt hash and role.
func (f *fakeStore) addUser(u models.User, role string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u.ID = f.nextID
	f.users[u.ID] = u
	f.userRoles[u.ID] = role
	return &u
}

func (f *fakeStore) user(id int64) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id]
}

func (f *fakeStore) artifacts(kind models.Kind) []models.Verification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Verification
	for _, v := range f.verifs[kind] {
		out = append(out, v)
	}
	return out
}

func (f *fakeStore) eventTypes(userID int64) []models.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.EventType
	for _, e := range f.events {
		if e.UserID == userID {
			out = append(out, e.Type)
		}
	}
	return out
}

// users.Repository

func (f *fakeStore) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return nil, common.ErrEmailExists
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	f.users[u.ID] = *u
	return u, nil
}

func (f *fakeStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (f *fakeStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := f.GetByEmail(ctx, email)
	return err == nil, nil
}

func (f *fakeStore) mutate(id int64, fn func(u *models.User)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(&u)
	f.users[id] = u
	return nil
}

func (f *fakeStore) Update(_ context.Context, in *models.User) error {
	f.mu.Lock()
	for id, u := range f.users {
		if id != in.ID && u.Email == in.Email {
			f.mu.Unlock()
			return common.ErrEmailExists
		}
	}
	f.mu.Unlock()
	return f.mutate(in.ID, func(u *models.User) {
		u.FirstName, u.LastName, u.Email = in.FirstName, in.LastName, in.Email
		u.Phone, u.Title, u.Bio, u.Address = in.Phone, in.Title, in.Bio, in.Address
	})
}

func (f *fakeStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	return f.mutate(id, func(u *models.User) { u.Password = hash })
}

func (f *fakeStore) SetEnabled(_ context.Context, id int64, enabled bool) error {
	return f.mutate(id, func(u *models.User) { u.Enabled = enabled })
}

func (f *fakeStore) UpdateSettings(_ context.Context, id int64, enabled, notLocked bool) error {
	return f.mutate(id, func(u *models.User) { u.Enabled, u.NotLocked = enabled, notLocked })
}

func (f *fakeStore) SetUsingMFA(_ context.Context, id int64, usingMFA bool) error {
	return f.mutate(id, func(u *models.User) { u.UsingMFA = usingMFA })
}

func (f *fakeStore) SetImageURL(_ context.Context, id int64, url string) error {
	return f.mutate(id, func(u *models.User) { u.ImageURL = url })
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.users, id)
	delete(f.userRoles, id)
	return nil
}

// roles.Repository

func (f *fakeStore) List(context.Context) ([]models.Role, error) {
	return append([]models.Role(nil), f.roles...), nil
}

func (f *fakeStore) GetByName(_ context.Context, name string) (*models.Role, error) {
	for _, r := range f.roles {
		if r.Name == name {
			return &r, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeStore) GetByUserID(ctx context.Context, userID int64) (*models.Role, error) {
	f.mu.Lock()
	name, ok := f.userRoles[userID]
	f.mu.Unlock()
	if !ok {
		return nil, common.ErrorNotFound
	}
	return f.GetByName(ctx, name)
}

func (f *fakeStore) AssignToUser(ctx context.Context, userID int64, roleName string) error {
	if _, err := f.GetByName(ctx, roleName); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userRoles[userID] = roleName
	return nil
}

// verifications.Repository

func (f *fakeStore) Upsert(_ context.Context, v *models.Verification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byToken := f.verifs[v.Kind]
	if byToken == nil {
		byToken = map[string]models.Verification{}
		f.verifs[v.Kind] = byToken
	}
	for tok, existing := range byToken {
		if existing.UserID == v.UserID {
			delete(byToken, tok)
		}
	}
	stored := *v
	stored.UsedAt = nil
	byToken[v.Token] = stored
	return nil
}

func (f *fakeStore) MarkUsed(_ context.Context, kind models.Kind, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.verifs[kind][token]
	if !ok || v.UsedAt != nil {
		return false, nil
	}
	now := time.Now()
	v.UsedAt = &now
	f.verifs[kind][token] = v
	return true, nil
}

func (f *fakeStore) FindByToken(_ context.Context, kind models.Kind, token string) (*models.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.verifs[kind][token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &v, nil
}

func (f *fakeStore) Consume(_ context.Context, kind models.Kind, token string, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.verifs[kind][token]
	if !ok || v.UserID != userID {
		return false, nil
	}
	delete(f.verifs[kind], token)
	return true, nil
}

// events.Repository

func (f *fakeStore) Insert(_ context.Context, userID int64, t models.EventType, meta models.RequestMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventErr != nil {
		return f.eventErr
	}
	f.events = append(f.events, models.UserEvent{
		ID: int64(len(f.events) + 1), UserID: userID, Type: t,
		Device: meta.Device, IPAddress: meta.IPAddress, CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeStore) Recent(_ context.Context, userID int64, limit int) ([]models.UserEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.UserEvent
	for _, e := range f.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeRepoManager struct{ s *fakeStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return m.s }
func (m *fakeRepoManager) Roles(dbx.DBTX) roles.Repository                 { return m.s }
func (m *fakeRepoManager) Verifications(dbx.DBTX) verifications.Repository { return m.s }
func (m *fakeRepoManager) Events(dbx.DBTX) events.Repository               { return m.s }

type recordingMail struct {
	mu   sync.Mutex
	msgs []mailer.Message
	err  error
}

func (r *recordingMail) Enqueue(_ context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingMail) last(t *testing.T) mailer.Message {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		t.Fatalf("no mail was enqueued")
	}
	return r.msgs[len(r.msgs)-1]
}

type memImages struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memImages) Put(_ context.Context, name string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[name] = b
	return nil
}

func (m *memImages) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[name]
	if !ok {
		return nil, common.ErrImageNotFound
	}
	return b, nil
}

// env wires every service against one fake store.
type env struct {
	t       *testing.T
	db      *sql.DB
	mock    sqlmock.Sqlmock
	store   *fakeStore
	mail    *recordingMail
	images  *memImages
	hasher  *auth.Hasher
	codec   *auth.Codec
	cfg     *config.Config
	now     time.Time
	events  *EventService
	mfa     *MFAService
	auth    *AuthService
	reset   *PasswordResetService
	account *AccountService
	profile *ProfileService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.PublicBaseURL = "http://localhost:8080/"

	e := &env{
		t:      t,
		db:     db,
		mock:   mock,
		store:  newFakeStore(),
		mail:   &recordingMail{},
		images: &memImages{data: map[string][]byte{}},
		hasher: auth.NewHasher(bcrypt.MinCost),
		cfg:    cfg,
		now:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return e.now }

	e.codec, err = auth.NewCodec(auth.CodecConfig{
		SigningKey:   []byte(cfg.SecretKey),
		SigningKeyID: cfg.SigningKeyID,
		AccessTTL:    cfg.AccessTokenValidityDuration,
		RefreshTTL:   cfg.RefreshTokenValidityDuration,
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	rm := &fakeRepoManager{s: e.store}
	log := logging.NewDiscardLogger()
	e.events = NewEventService(db, rm, log)
	e.mfa = NewMFAService(db, rm, e.mail, e.events, cfg, log)
	e.mfa.now = clock
	e.auth = NewAuthService(db, rm, e.codec, e.hasher, e.mfa, e.events, log)
	e.reset = NewPasswordResetService(db, rm, e.mail, e.hasher, cfg, log)
	e.reset.now = clock
	e.account = NewAccountService(db, rm, e.mail, e.hasher, cfg, log)
	e.account.now = clock
	e.profile = NewProfileService(db, rm, e.hasher, e.images, e.events, cfg, log)
	return e
}

func (e *env) hash(pw string) string {
	e.t.Helper()
	h, err := e.hasher.Hash(pw)
	if err != nil {
		e.t.Fatalf("hash: %v", err)
	}
	return h
}

// seedUser adds an enabled, unlocked ROLE_USER account.
func (e *env) seedUser(email, password string, mutate ...func(u *models.User)) *models.User {
	u := models.User{FirstName: "Ada", LastName: "Lovelace", Email: email, Password: e.hash(password), Enabled: true, NotLocked: true}
	for _, m := range mutate {
		m(&u)
	}
	return e.store.addUser(u, models.RoleUser)
}

func (e *env) expectTx(commit bool) {
	e.mock.ExpectBegin()
	if commit {
		e.mock.ExpectCommit()
	} else {
		e.mock.ExpectRollback()
	}
}

func (e *env) assertSQL() {
	e.t.Helper()
	if err := e.mock.ExpectationsWereMet(); err != nil {
		e.t.Fatalf("sql expectations: %v", err)
	}
}

func tokenFromURL(url string) string {
	return url[strings.LastIndex(url, "/")+1:]
}
