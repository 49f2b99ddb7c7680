package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/wedding-marketplace-api/internal/apperror"
	"github.com/iliyamo/wedding-marketplace-api/internal/model"
	"github.com/iliyamo/wedding-marketplace-api/internal/queue"
	"github.com/iliyamo/wedding-marketplace-api/internal/repository"
	"github.com/iliyamo/wedding-marketplace-api/internal/token"
	"github.com/iliyamo/wedding-marketplace-api/internal/utils"
)

// memUsers is an in-memory UserStore keyed by id with a unique email index.
type memUsers struct {
	mu      sync.Mutex
	byID    map[string]*model.User
	creates int

	// skipExistsCheck makes ExistsByEmail lie, simulating a concurrent
	// registration that slipped past the pre-check.
	skipExistsCheck bool
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*model.User{}} }

func (m *memUsers) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.byID {
		if other.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *u
	cp.CreatedAt = time.Now().UTC()
	cp.UpdatedAt = cp.CreatedAt
	m.byID[u.ID] = &cp
	m.creates++
	return nil
}

func (m *memUsers) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skipExistsCheck {
		return false, nil
	}
	for _, u := range m.byID {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) mutate(id string, fn func(*model.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	return m.mutate(id, func(u *model.User) { u.PasswordHash = hash })
}

func (m *memUsers) MarkEmailVerified(_ context.Context, id string) error {
	return m.mutate(id, func(u *model.User) { u.EmailVerified = true })
}

func (m *memUsers) UpdatePhone(_ context.Context, id, phone string) error {
	return m.mutate(id, func(u *model.User) { u.Phone = phone })
}

func (m *memUsers) Deactivate(_ context.Context, id string) error {
	return m.mutate(id, func(u *model.User) { u.IsActive = false })
}

type memAdmins struct{ byID map[string]*model.Admin }

func (m *memAdmins) GetByEmail(_ context.Context, email string) (*model.Admin, error) {
	for _, a := range m.byID {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAdmins) GetByID(_ context.Context, id string) (*model.Admin, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

type captureNotifier struct {
	mu     sync.Mutex
	events []queue.NotificationEvent
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, ev queue.NotificationEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return c.err
}

func (c *captureNotifier) last(t *testing.T) queue.NotificationEvent {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.events)
	return c.events[len(c.events)-1]
}

type fixture struct {
	sm       *SessionManager
	users    *memUsers
	admins   *memAdmins
	notifier *captureNotifier
	codec    *token.Codec
	redis    *miniredis.Miniredis
	tokens   *repository.TokenRepo
}

func testCodec(t *testing.T, opts ...token.Option) *token.Codec {
	t.Helper()
	c, err := token.NewCodec(token.Config{
		AccessSecret:  "access-secret-for-tests",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret-for-tests",
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "wedding-marketplace-test",
	}, opts...)
	require.NoError(t, err)
	return c
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		users:    newMemUsers(),
		admins:   &memAdmins{byID: map[string]*model.Admin{}},
		notifier: &captureNotifier{},
		codec:    testCodec(t),
		redis:    mr,
		tokens:   repository.NewTokenRepo(rdb),
	}
	sm, err := NewSessionManager(f.users, f.admins, f.tokens, f.codec, SessionConfig{
		BcryptCost:     bcrypt.MinCost,
		ResetTokenTTL:  time.Hour,
		VerifyTokenTTL: 24 * time.Hour,
	}, append([]Option{WithNotifier(f.notifier)}, opts...)...)
	require.NoError(t, err)
	f.sm = sm
	return f
}

func (f *fixture) addAdmin(t *testing.T, id, email, password string, role model.AdminRole, active bool) {
	t.Helper()
	hash, err := utils.HashPassword(password, bcrypt.MinCost)
	require.NoError(t, err)
	f.admins.byID[id] = &model.Admin{ID: id, Email: email, PasswordHash: hash, Name: "Ops " + id, Role: role, IsActive: active}
}

func (f *fixture) register(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	res, err := f.sm.Register(context.Background(), RegisterInput{
		Email: email, Password: password, Phone: "+15550100", UserType: model.UserTypeCouple,
	})
	require.NoError(t, err)
	return res
}

func requireAppError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	require.Error(t, err)
	ae, ok := apperror.As(err)
	require.True(t, ok, "expected *apperror.Error, got %T: %v", err, err)
	require.Equal(t, status, ae.Kind.Status())
	require.Equal(t, msg, ae.Message)
}
