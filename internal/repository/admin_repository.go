package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/wedding-marketplace-api/internal/model"
)

const adminColumns = "id,email,password_hash,name,role,is_active,created_at,updated_at"

// AdminRepo reads back-office accounts from the `admins` table.
type AdminRepo struct{ DB *sql.DB }

func NewAdminRepo(db *sql.DB) *AdminRepo { return &AdminRepo{DB: db} }

func (r *AdminRepo) GetByEmail(ctx context.Context, email string) (*model.Admin, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+adminColumns+" FROM admins WHERE email=? LIMIT 1", email)
	return scanAdmin(row)
}

func (r *AdminRepo) GetByID(ctx context.Context, id string) (*model.Admin, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+adminColumns+" FROM admins WHERE id=? LIMIT 1", id)
	return scanAdmin(row)
}

func scanAdmin(row *sql.Row) (*model.Admin, error) {
	var (
		a    model.Admin
		hash sql.NullString
		role string
	)
	err := row.Scan(&a.ID, &a.Email, &hash, &a.Name, &role, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.scanAdmin: %w", err)
	}
	a.PasswordHash = hash.String
	a.Role = model.AdminRole(role)
	return &a, nil
}
