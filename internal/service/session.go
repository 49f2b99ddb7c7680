// Package service holds the authentication state machine.  SessionManager
// is the only component that touches both the credential store and the
// ephemeral cache; handlers call it and map the returned *apperror.Error
// values to HTTP responses.
//
// A SessionManager keeps no per-request state and is safe for concurrent
// use as long as its stores are.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/wedding-marketplace-api/internal/apperror"
	"github.com/iliyamo/wedding-marketplace-api/internal/model"
	"github.com/iliyamo/wedding-marketplace-api/internal/queue"
	"github.com/iliyamo/wedding-marketplace-api/internal/repository"
	"github.com/iliyamo/wedding-marketplace-api/internal/token"
	"github.com/iliyamo/wedding-marketplace-api/internal/utils"
)

// Client-facing messages.  Credential failures share one message so that
// responses do not reveal which emails are registered.
const (
	MsgInvalidCredentials   = "Invalid email or password"
	MsgAccountDeactivated   = "Account is deactivated"
	MsgEmailTaken           = "User with this email already exists"
	MsgInvalidRefresh       = "Invalid refresh token"
	MsgTokenRevoked         = "Token has been revoked"
	MsgUserInactive         = "User not found or inactive"
	MsgAdminInactive        = "Admin not found or inactive"
	MsgInvalidResetToken    = "Invalid or expired reset token"
	MsgInvalidVerifyToken   = "Invalid or expired verification token"
	MsgResetRequested       = "If an account with that email exists, a password reset link has been sent"
	MsgEmailAlreadyVerified = "Email already verified"
	MsgInvalidToken         = "Invalid token"
	MsgTokenExpired         = "Token expired"
)

// oneTimeTokenBytes is the entropy of reset/verification tokens.
const oneTimeTokenBytes = 32

// UserStore is the credential store for marketplace users.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	MarkEmailVerified(ctx context.Context, id string) error
	UpdatePhone(ctx context.Context, id, phone string) error
	Deactivate(ctx context.Context, id string) error
}

// AdminStore is the credential store for back-office accounts.
type AdminStore interface {
	GetByEmail(ctx context.Context, email string) (*model.Admin, error)
	GetByID(ctx context.Context, id string) (*model.Admin, error)
}

// TokenStore is the ephemeral cache: revocation set plus one-time tokens.
type TokenStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	PutOneTime(ctx context.Context, purpose repository.OneTimePurpose, token, principalID string, ttl time.Duration) error
	LookupOneTime(ctx context.Context, purpose repository.OneTimePurpose, token string) (string, error)
	DeleteOneTime(ctx context.Context, purpose repository.OneTimePurpose, token string) error
}

// SessionConfig carries the tunables of the session manager.
type SessionConfig struct {
	BcryptCost     int
	ResetTokenTTL  time.Duration
	VerifyTokenTTL time.Duration
}

// SessionManager orchestrates registration, login, refresh, logout,
// password reset and email verification.
type SessionManager struct {
	users    UserStore
	admins   AdminStore
	tokens   TokenStore
	codec    *token.Codec
	cfg      SessionConfig
	notifier Notifier
	log      *zap.Logger
	now      func() time.Time

	// dummyHash is compared against when no account matches, so that
	// unknown emails cost the same bcrypt time as wrong passwords.
	dummyHash string
}

// Option customises a SessionManager.
type Option func(*SessionManager)

// WithNotifier enables delivery of reset and verification tokens.
func WithNotifier(n Notifier) Option { return func(s *SessionManager) { s.notifier = n } }

func WithLogger(l *zap.Logger) Option { return func(s *SessionManager) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *SessionManager) { s.now = now } }

// NewSessionManager wires the manager.  Admin support is optional: a nil
// AdminStore makes admin operations fail with Unauthorized.
func NewSessionManager(users UserStore, admins AdminStore, tokens TokenStore, codec *token.Codec, cfg SessionConfig, opts ...Option) (*SessionManager, error) {
	if users == nil || tokens == nil || codec == nil {
		return nil, errors.New("service: nil dependency passed to NewSessionManager")
	}
	s := &SessionManager{
		users:  users,
		admins: admins,
		tokens: tokens,
		codec:  codec,
		cfg:    cfg,
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	dummy, err := utils.HashPassword(uuid.NewString(), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("service: prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

// ----- results -----

// PrincipalView is the public projection of a user.  It never carries the
// password hash.
type PrincipalView struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	UserType      string `json:"userType"`
	EmailVerified *bool  `json:"emailVerified,omitempty"`
}

// AdminView is the public projection of an admin.
type AdminView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// TokenPair is a freshly issued access/refresh pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User PrincipalView `json:"user"`
	TokenPair
}

// AdminAuthResult is returned by admin login.
type AdminAuthResult struct {
	Admin AdminView `json:"admin"`
	TokenPair
}

// RegisterInput is the payload of Register.
type RegisterInput struct {
	Email    string
	Password string
	Phone    string
	UserType model.UserType
}

// ----- operations -----

// Register creates an active, unverified user and signs them in.
func (s *SessionManager) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	const op = "service.Register"

	exists, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		return nil, apperror.Conflict(MsgEmailTaken)
	}

	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        in.Phone,
		UserType:     in.UserType,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		// the pre-check above races with concurrent registrations; the
		// unique index decides
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, apperror.Conflict(MsgEmailTaken)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pair, err := s.issuePair(userClaims(u))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user_registered", zap.String("user_id", u.ID), zap.String("user_type", string(u.UserType)))
	return &AuthResult{User: userView(u, false), TokenPair: pair}, nil
}

// Login verifies credentials and issues a new pair.
func (s *SessionManager) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	const op = "service.Login"

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u == nil || u.PasswordHash == "" {
		utils.VerifyPassword(s.dummyHash, password)
		s.log.Info("login_failed", zap.String("reason", "unknown_or_passwordless"))
		return nil, apperror.Unauthorized(MsgInvalidCredentials)
	}
	if !u.IsActive {
		s.log.Info("login_failed", zap.String("reason", "deactivated"), zap.String("user_id", u.ID))
		return nil, apperror.Unauthorized(MsgAccountDeactivated)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		s.log.Info("login_failed", zap.String("reason", "bad_password"), zap.String("user_id", u.ID))
		return nil, apperror.Unauthorized(MsgInvalidCredentials)
	}

	pair, err := s.issuePair(userClaims(u))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &AuthResult{User: userView(u, true), TokenPair: pair}, nil
}

// AdminLogin is Login for back-office accounts.
func (s *SessionManager) AdminLogin(ctx context.Context, email, password string) (*AdminAuthResult, error) {
	const op = "service.AdminLogin"

	if s.admins == nil {
		return nil, apperror.Unauthorized(MsgInvalidCredentials)
	}
	a, err := s.admins.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if a == nil || a.PasswordHash == "" {
		utils.VerifyPassword(s.dummyHash, password)
		return nil, apperror.Unauthorized(MsgInvalidCredentials)
	}
	if !a.IsActive {
		return nil, apperror.Unauthorized(MsgAccountDeactivated)
	}
	if !utils.VerifyPassword(a.PasswordHash, password) {
		s.log.Warn("admin_login_failed", zap.String("admin_id", a.ID))
		return nil, apperror.Unauthorized(MsgInvalidCredentials)
	}

	pair, err := s.issuePair(adminClaims(a))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &AdminAuthResult{Admin: adminView(a), TokenPair: pair}, nil
}

// Refresh exchanges a valid, unrevoked user refresh token for a new pair.
// The presented token is left untouched and stays usable until it expires
// or is revoked through Logout.
func (s *SessionManager) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.refresh(ctx, refreshToken, token.PrincipalUser)
}

// AdminRefresh is Refresh for admin refresh tokens.
func (s *SessionManager) AdminRefresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.refresh(ctx, refreshToken, token.PrincipalAdmin)
}

func (s *SessionManager) refresh(ctx context.Context, refreshToken string, want token.PrincipalKind) (*TokenPair, error) {
	const op = "service.Refresh"

	claims, err := s.codec.Verify(token.Refresh, refreshToken)
	if err != nil || kindOf(claims) != want {
		return nil, apperror.Unauthorized(MsgInvalidRefresh)
	}

	revoked, err := s.tokens.IsRevoked(ctx, claims.TokenID())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if revoked {
		s.log.Warn("refresh_revoked", zap.String("principal_id", claims.PrincipalID), zap.String("jti", claims.TokenID()))
		return nil, apperror.Unauthorized(MsgTokenRevoked)
	}

	var fresh token.Claims
	if want == token.PrincipalAdmin {
		a, err := s.loadActiveAdmin(ctx, claims.PrincipalID)
		if err != nil {
			return nil, err
		}
		fresh = adminClaims(a)
	} else {
		u, err := s.loadActiveUser(ctx, claims.PrincipalID)
		if err != nil {
			return nil, err
		}
		fresh = userClaims(u)
	}

	pair, err := s.issuePair(fresh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &pair, nil
}

// Logout revokes a refresh token until its natural expiry.  Revoking an
// already revoked token is a no-op.
func (s *SessionManager) Logout(ctx context.Context, refreshToken string) error {
	const op = "service.Logout"

	claims, err := s.codec.Verify(token.Refresh, refreshToken)
	if err != nil {
		return apperror.Unauthorized(MsgInvalidRefresh)
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.tokens.Revoke(ctx, claims.TokenID(), ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("refresh_token_revoked", zap.String("principal_id", claims.PrincipalID), zap.String("jti", claims.TokenID()))
	return nil
}

// Authenticate validates a bearer access token for the expected principal
// kind and confirms the account still exists and is active.
func (s *SessionManager) Authenticate(ctx context.Context, accessToken string, want token.PrincipalKind) (*token.Claims, error) {
	claims, err := s.codec.Verify(token.Access, accessToken)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return nil, apperror.Unauthorized(MsgTokenExpired).WithCode("TOKEN_EXPIRED")
		}
		return nil, apperror.Unauthorized(MsgInvalidToken).WithCode("INVALID_TOKEN")
	}
	if kindOf(claims) != want {
		return nil, apperror.Unauthorized(MsgInvalidToken).WithCode("INVALID_TOKEN")
	}

	if want == token.PrincipalAdmin {
		if _, err := s.loadActiveAdmin(ctx, claims.PrincipalID); err != nil {
			return nil, err
		}
	} else if _, err := s.loadActiveUser(ctx, claims.PrincipalID); err != nil {
		return nil, err
	}
	return claims, nil
}

// ForgotPassword stores a reset token for email if such a user exists and
// asks the notifier to deliver it.  The caller always answers with
// MsgResetRequested.
func (s *SessionManager) ForgotPassword(ctx context.Context, email string) error {
	const op = "service.ForgotPassword"

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.issueOneTime(ctx, repository.PurposeReset, queue.TypePasswordReset, u, s.cfg.ResetTokenTTL)
}

// ResetPassword consumes a reset token and replaces the password.
func (s *SessionManager) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	const op = "service.ResetPassword"

	key := utils.HashToken(resetToken)
	userID, err := s.tokens.LookupOneTime(ctx, repository.PurposeReset, key)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.BadRequest(MsgInvalidResetToken)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("User not found")
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.tokens.DeleteOneTime(ctx, repository.PurposeReset, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password_reset", zap.String("user_id", userID))
	return nil
}

// SendVerification issues an email verification token for userID.
func (s *SessionManager) SendVerification(ctx context.Context, userID string) error {
	const op = "service.SendVerification"

	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("User not found")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if u.EmailVerified {
		return apperror.BadRequest(MsgEmailAlreadyVerified)
	}
	return s.issueOneTime(ctx, repository.PurposeVerify, queue.TypeEmailVerification, u, s.cfg.VerifyTokenTTL)
}

// VerifyEmail consumes a verification token and marks the email verified.
func (s *SessionManager) VerifyEmail(ctx context.Context, verifyToken string) error {
	const op = "service.VerifyEmail"

	key := utils.HashToken(verifyToken)
	userID, err := s.tokens.LookupOneTime(ctx, repository.PurposeVerify, key)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.BadRequest(MsgInvalidVerifyToken)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.users.MarkEmailVerified(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("User not found")
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.tokens.DeleteOneTime(ctx, repository.PurposeVerify, key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ----- helpers -----

func (s *SessionManager) issuePair(claims token.Claims) (TokenPair, error) {
	access, err := s.codec.Issue(token.Access, claims)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.codec.Issue(token.Refresh, claims)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access.Token, RefreshToken: refresh.Token}, nil
}

// issueOneTime stores the digest of a fresh token and publishes the raw
// value.  Notification failures are logged only.
func (s *SessionManager) issueOneTime(ctx context.Context, purpose repository.OneTimePurpose, evType string, u *model.User, ttl time.Duration) error {
	raw, err := utils.NewOpaqueToken(oneTimeTokenBytes)
	if err != nil {
		return fmt.Errorf("service.issueOneTime: %w", err)
	}
	if err := s.tokens.PutOneTime(ctx, purpose, utils.HashToken(raw), u.ID, ttl); err != nil {
		return fmt.Errorf("service.issueOneTime: %w", err)
	}
	if s.notifier == nil {
		return nil
	}
	now := s.now().UTC()
	ev := queue.NotificationEvent{
		Type:        evType,
		PrincipalID: u.ID,
		Email:       u.Email,
		Token:       raw,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		s.log.Warn("notify_failed", zap.String("type", evType), zap.String("user_id", u.ID), zap.Error(err))
	}
	return nil
}

func (s *SessionManager) hashPassword(plain string) (string, error) {
	hash, err := utils.HashPassword(plain, s.cfg.BcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return "", apperror.BadRequest("Password must be at most 72 bytes").WithCode("VALIDATION_ERROR")
	}
	if err != nil {
		return "", fmt.Errorf("service.hashPassword: %w", err)
	}
	return hash, nil
}

func (s *SessionManager) loadActiveUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Unauthorized(MsgUserInactive)
	}
	if err != nil {
		return nil, fmt.Errorf("service.loadActiveUser: %w", err)
	}
	if !u.IsActive {
		return nil, apperror.Unauthorized(MsgUserInactive)
	}
	return u, nil
}

func (s *SessionManager) loadActiveAdmin(ctx context.Context, id string) (*model.Admin, error) {
	if s.admins == nil {
		return nil, apperror.Unauthorized(MsgAdminInactive)
	}
	a, err := s.admins.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Unauthorized(MsgAdminInactive)
	}
	if err != nil {
		return nil, fmt.Errorf("service.loadActiveAdmin: %w", err)
	}
	if !a.IsActive {
		return nil, apperror.Unauthorized(MsgAdminInactive)
	}
	return a, nil
}

func kindOf(c *token.Claims) token.PrincipalKind {
	if c.Principal == "" {
		return token.PrincipalUser
	}
	return c.Principal
}

func userClaims(u *model.User) token.Claims {
	return token.Claims{PrincipalID: u.ID, Role: string(u.UserType), Email: u.Email, Principal: token.PrincipalUser}
}

func adminClaims(a *model.Admin) token.Claims {
	return token.Claims{PrincipalID: a.ID, Role: string(a.Role), Email: a.Email, Principal: token.PrincipalAdmin}
}

func userView(u *model.User, withVerified bool) PrincipalView {
	v := PrincipalView{ID: u.ID, Email: u.Email, UserType: string(u.UserType)}
	if withVerified {
		verified := u.EmailVerified
		v.EmailVerified = &verified
	}
	return v
}

func adminView(a *model.Admin) AdminView {
	return AdminView{ID: a.ID, Email: a.Email, Name: a.Name, Role: string(a.Role)}
}
