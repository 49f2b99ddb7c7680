package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/wedding-marketplace-api/internal/apperror"
	"github.com/iliyamo/wedding-marketplace-api/internal/repository"
	"github.com/iliyamo/wedding-marketplace-api/internal/utils"
)

const (
	MsgUserNotFound         = "User not found"
	MsgAdminNotFound        = "Admin not found"
	MsgWrongCurrentPassword = "Current password is incorrect"
)

// ProfileView is what an authenticated user sees about themselves.
type ProfileView struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	UserType      string    `json:"userType"`
	EmailVerified bool      `json:"emailVerified"`
	PhoneVerified bool      `json:"phoneVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ProfileService serves the /users/me and /admin/me resources.
type ProfileService struct {
	users      UserStore
	admins     AdminStore
	bcryptCost int
	log        *zap.Logger
}

func NewProfileService(users UserStore, admins AdminStore, bcryptCost int, log *zap.Logger) *ProfileService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileService{users: users, admins: admins, bcryptCost: bcryptCost, log: log}
}

func (p *ProfileService) Profile(ctx context.Context, userID string) (*ProfileView, error) {
	u, err := p.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("service.Profile: %w", err)
	}
	return &ProfileView{
		ID:            u.ID,
		Email:         u.Email,
		Phone:         u.Phone,
		UserType:      string(u.UserType),
		EmailVerified: u.EmailVerified,
		PhoneVerified: u.PhoneVerified,
		CreatedAt:     u.CreatedAt,
	}, nil
}

// UpdateProfile changes the mutable profile fields and returns the result.
// Only the phone number is editable here; email changes need their own
// verification flow.
func (p *ProfileService) UpdateProfile(ctx context.Context, userID, phone string) (*ProfileView, error) {
	if err := p.users.UpdatePhone(ctx, userID, phone); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound(MsgUserNotFound)
		}
		return nil, fmt.Errorf("service.UpdateProfile: %w", err)
	}
	return p.Profile(ctx, userID)
}

// DeleteAccount soft-deletes the user.  Outstanding tokens stop working at
// the next authentication or refresh because both re-check the active flag.
func (p *ProfileService) DeleteAccount(ctx context.Context, userID string) error {
	if err := p.users.Deactivate(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound(MsgUserNotFound)
		}
		return fmt.Errorf("service.DeleteAccount: %w", err)
	}
	p.log.Info("account_deactivated", zap.String("user_id", userID))
	return nil
}

func (p *ProfileService) ChangePassword(ctx context.Context, userID, current, next string) error {
	const op = "service.ChangePassword"

	u, err := p.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, current) {
		return apperror.BadRequest(MsgWrongCurrentPassword)
	}

	hash, err := utils.HashPassword(next, p.bcryptCost)
	if errors.Is(err, utils.ErrPasswordTooLong) {
		return apperror.BadRequest("Password must be at most 72 bytes").WithCode("VALIDATION_ERROR")
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	err = p.users.UpdatePassword(ctx, userID, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// AdminProfile returns the public projection of an admin.
func (p *ProfileService) AdminProfile(ctx context.Context, adminID string) (*AdminView, error) {
	if p.admins == nil {
		return nil, apperror.NotFound(MsgAdminNotFound)
	}
	a, err := p.admins.GetByID(ctx, adminID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound(MsgAdminNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("service.AdminProfile: %w", err)
	}
	v := adminView(a)
	return &v, nil
}
