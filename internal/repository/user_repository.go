package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/wedding-marketplace-api/internal/model"
)

// mysqlDuplicateEntry is the server error number for unique key violations.
const mysqlDuplicateEntry = 1062

const userColumns = "id,email,password_hash,phone,user_type,is_active,email_verified,phone_verified,created_at,updated_at"

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u.  The caller supplies the id and the password hash.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, phone, user_type, is_active, email_verified) VALUES (?,?,?,?,?,?,?)",
		u.ID, u.Email, nullString(u.PasswordHash), nullString(u.Phone), string(u.UserType), u.IsActive, u.EmailVerified)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("repository.UserRepo.Create: %w", err)
	}
	return nil
}

// ExistsByEmail reports whether a user row with email exists.
func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE email=? LIMIT 1", email).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("repository.UserRepo.ExistsByEmail: %w", err)
	}
	return true, nil
}

// GetByEmail fetches a user by exact email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// UpdatePassword replaces the stored hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return execOne(ctx, r.DB, "repository.UserRepo.UpdatePassword",
		"UPDATE users SET password_hash=?, updated_at=NOW() WHERE id=?", hash, id)
}

// MarkEmailVerified sets email_verified for the user.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id string) error {
	return execOne(ctx, r.DB, "repository.UserRepo.MarkEmailVerified",
		"UPDATE users SET email_verified=TRUE, updated_at=NOW() WHERE id=?", id)
}

// UpdatePhone changes the contact number.
func (r *UserRepo) UpdatePhone(ctx context.Context, id, phone string) error {
	return execOne(ctx, r.DB, "repository.UserRepo.UpdatePhone",
		"UPDATE users SET phone=?, updated_at=NOW() WHERE id=?", nullString(phone), id)
}

// Deactivate soft-deletes the account.  Rows are never removed.
func (r *UserRepo) Deactivate(ctx context.Context, id string) error {
	return execOne(ctx, r.DB, "repository.UserRepo.Deactivate",
		"UPDATE users SET is_active=FALSE, updated_at=NOW() WHERE id=?", id)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		u        model.User
		hash     sql.NullString
		phone    sql.NullString
		userType string
	)
	err := row.Scan(&u.ID, &u.Email, &hash, &phone, &userType, &u.IsActive, &u.EmailVerified, &u.PhoneVerified, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("repository.scanUser: %w", err)
	}
	u.PasswordHash = hash.String
	u.Phone = phone.String
	u.UserType = model.UserType(userType)
	return &u, nil
}

// execOne runs an UPDATE that must match exactly one row.  The DSN sets
// clientFoundRows=true so matched rows are reported even when the new
// values equal the old ones.
func execOne(ctx context.Context, db *sql.DB, op, query string, args ...any) error {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
