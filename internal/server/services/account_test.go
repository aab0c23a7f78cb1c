package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerInput() RegisterInput {
	return RegisterInput{FirstName: "Ada", LastName: "Lovelace", Email: " Ada@Example.com ", Password: "pw"}
}

func TestRegister_CreatesDisabledUserAndMailsLink(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.expectTx(true)

	u, err := e.account.Register(ctx, registerInput())
	require.NoError(t, err)
	e.assertSQL()

	assert.Equal(t, "ada@example.com", u.Email)
	assert.False(t, u.Enabled)
	assert.True(t, u.NotLocked)
	assert.True(t, e.hasher.Compare(e.store.user(u.ID).Password, "pw"))

	role, err := e.store.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, role.Name)

	link := linkFromMail(t, e)
	assert.Regexp(t, `^http://localhost:8080/user/verify/account/[0-9a-f-]{36}$`, link)
	arts := e.store.artifacts(models.KindAccount)
	require.Len(t, arts, 1)
	assert.Equal(t, tokenFromURL(link), arts[0].Token)
	require.NotNil(t, arts[0].ExpiresAt)
	assert.Equal(t, e.now.Add(7*24*time.Hour), *arts[0].ExpiresAt)
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, in := range []RegisterInput{
		{LastName: "L", Email: "a@b.c", Password: "p"},
		{FirstName: "F", Email: "a@b.c", Password: "p"},
		{FirstName: "F", LastName: "L", Email: "not-an-email", Password: "p"},
		{FirstName: "F", LastName: "L", Email: "a@b.c"},
	} {
		_, err := e.account.Register(ctx, in)
		assert.ErrorIs(t, err, common.ErrValidation)
	}
	e.assertSQL()
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := newEnv(t)
	e.seedUser("ada@example.com", "pw")

	_, err := e.account.Register(context.Background(), registerInput())
	assert.ErrorIs(t, err, common.ErrEmailExists)
	assert.Empty(t, e.mail.msgs)
}

func TestRegister_MailFailureRollsBack(t *testing.T) {
	e := newEnv(t)
	e.mail.err = common.ErrEmailDeliveryFailed
	e.expectTx(false)

	_, err := e.account.Register(context.Background(), registerInput())
	assert.ErrorIs(t, err, common.ErrEmailDeliveryFailed)
	e.assertSQL()
}

func TestVerifyAccount_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.expectTx(true)
	u, err := e.account.Register(ctx, registerInput())
	require.NoError(t, err)
	token := tokenFromURL(linkFromMail(t, e))

	_, err = e.account.VerifyAccount(ctx, "wrong-key")
	assert.ErrorIs(t, err, common.ErrLinkNotFound)

	e.expectTx(true)
	res, err := e.account.VerifyAccount(ctx, token)
	require.NoError(t, err)
	assert.False(t, res.AlreadyVerified)
	assert.True(t, res.User.Enabled)
	assert.True(t, e.store.user(u.ID).Enabled)

	res, err = e.account.VerifyAccount(ctx, token)
	require.NoError(t, err)
	assert.True(t, res.AlreadyVerified)
	e.assertSQL()
}

func TestVerifyAccount_DoesNotReenableDisabledUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.account.ttl = 0
	e.expectTx(true)
	u, err := e.account.Register(ctx, registerInput())
	require.NoError(t, err)
	token := tokenFromURL(linkFromMail(t, e))

	e.expectTx(true)
	_, err = e.account.VerifyAccount(ctx, token)
	require.NoError(t, err)

	require.NoError(t, e.store.SetEnabled(ctx, u.ID, false))
	res, err := e.account.VerifyAccount(ctx, token)
	require.NoError(t, err)
	assert.True(t, res.AlreadyVerified)
	assert.False(t, e.store.user(u.ID).Enabled)
	e.assertSQL()
}

func TestVerifyAccount_Expired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.expectTx(true)
	_, err := e.account.Register(ctx, registerInput())
	require.NoError(t, err)
	token := tokenFromURL(linkFromMail(t, e))

	e.now = e.now.Add(8 * 24 * time.Hour)
	_, err = e.account.VerifyAccount(ctx, token)
	assert.ErrorIs(t, err, common.ErrLinkExpired)
}

func TestVerifyAccount_ZeroTTLNeverExpires(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.account.ttl = 0
	e.expectTx(true)
	_, err := e.account.Register(ctx, registerInput())
	require.NoError(t, err)
	token := tokenFromURL(linkFromMail(t, e))

	e.now = e.now.Add(10 * 365 * 24 * time.Hour)
	e.expectTx(true)
	res, err := e.account.VerifyAccount(ctx, token)
	require.NoError(t, err)
	assert.False(t, res.AlreadyVerified)
}

func TestCreateAdministrator(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.expectTx(true)

	u, err := e.account.CreateAdministrator(ctx, registerInput(), models.RoleSysAdmin)
	require.NoError(t, err)
	assert.True(t, u.Enabled)
	assert.Empty(t, e.mail.msgs)

	role, err := e.store.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Contains(t, role.Permissions(), models.PermissionDeleteUser)
	assert.Contains(t, role.Permissions(), models.PermissionDeleteCustomer)

	e.expectTx(false)
	in := registerInput()
	in.Email = "other@example.com"
	_, err = e.account.CreateAdministrator(ctx, in, "ROLE_NOPE")
	assert.ErrorIs(t, err, common.ErrRoleNotFound)
	e.assertSQL()
}
