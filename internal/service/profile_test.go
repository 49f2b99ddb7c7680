package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/wedding-marketplace-api/internal/model"
	"github.com/iliyamo/wedding-marketplace-api/internal/repository"
)

func TestProfileService_ProfileAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "alice@example.com", "Passw0rd!")
	ps := NewProfileService(f.users, f.admins, bcrypt.MinCost, nil)

	p, err := ps.Profile(ctx, reg.User.ID)
	require.NoError(t, err)
	require.Equal(t, "+15550100", p.Phone)
	require.Equal(t, "couple", p.UserType)
	require.False(t, p.EmailVerified)

	p, err = ps.UpdateProfile(ctx, reg.User.ID, "+15550199")
	require.NoError(t, err)
	require.Equal(t, "+15550199", p.Phone)

	_, err = ps.Profile(ctx, "ghost")
	requireAppError(t, err, http.StatusNotFound, MsgUserNotFound)
	_, err = ps.UpdateProfile(ctx, "ghost", "+1")
	requireAppError(t, err, http.StatusNotFound, MsgUserNotFound)
}

func TestProfileService_DeleteAccountBlocksLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "alice@example.com", "Passw0rd!")
	ps := NewProfileService(f.users, f.admins, bcrypt.MinCost, nil)

	require.NoError(t, ps.DeleteAccount(ctx, reg.User.ID))

	_, err := f.sm.Login(ctx, "alice@example.com", "Passw0rd!")
	requireAppError(t, err, http.StatusUnauthorized, MsgAccountDeactivated)
	_, err = f.sm.Refresh(ctx, reg.RefreshToken)
	requireAppError(t, err, http.StatusUnauthorized, MsgUserInactive)

	// soft delete keeps the row
	u, err := f.users.GetByID(ctx, reg.User.ID)
	require.NoError(t, err)
	require.False(t, u.IsActive)
}

func TestProfileService_ChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "alice@example.com", "Passw0rd!")
	ps := NewProfileService(f.users, f.admins, bcrypt.MinCost, nil)

	err := ps.ChangePassword(ctx, reg.User.ID, "wrong", "N3wPassw0rd!")
	requireAppError(t, err, http.StatusBadRequest, MsgWrongCurrentPassword)

	require.NoError(t, ps.ChangePassword(ctx, reg.User.ID, "Passw0rd!", "N3wPassw0rd!"))
	_, err = f.sm.Login(ctx, "alice@example.com", "N3wPassw0rd!")
	require.NoError(t, err)
}

// vanishingUsers loses the row between read and write, as when a
// concurrent deactivation deletes it.
type vanishingUsers struct{ *memUsers }

func (vanishingUsers) UpdatePassword(context.Context, string, string) error {
	return repository.ErrNotFound
}

func TestProfileService_ChangePasswordRowGone(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "alice@example.com", "Passw0rd!")
	ps := NewProfileService(vanishingUsers{f.users}, f.admins, bcrypt.MinCost, nil)

	err := ps.ChangePassword(context.Background(), reg.User.ID, "Passw0rd!", "N3wPassw0rd!")
	requireAppError(t, err, http.StatusNotFound, MsgUserNotFound)
}

func TestProfileService_AdminProfile(t *testing.T) {
	f := newFixture(t)
	f.addAdmin(t, "a-1", "root@example.com", "Sup3rSecret", model.AdminRoleSuperAdmin, true)
	ps := NewProfileService(f.users, f.admins, bcrypt.MinCost, nil)

	v, err := ps.AdminProfile(context.Background(), "a-1")
	require.NoError(t, err)
	require.Equal(t, "Ops a-1", v.Name)
	require.Equal(t, "super_admin", v.Role)

	_, err = ps.AdminProfile(context.Background(), "nope")
	requireAppError(t, err, http.StatusNotFound, MsgAdminNotFound)
}
