package model

import "time"

// UserType enumerates the marketplace roles a user account can hold.
type UserType string

const (
	UserTypeCouple UserType = "couple"
	UserTypeVendor UserType = "vendor"
	UserTypeGuest  UserType = "guest"
)

// Valid reports whether t is one of the known user types.
func (t UserType) Valid() bool {
	switch t {
	case UserTypeCouple, UserTypeVendor, UserTypeGuest:
		return true
	}
	return false
}

// AdminRole enumerates back-office roles.
type AdminRole string

const (
	AdminRoleAdmin      AdminRole = "admin"
	AdminRoleSuperAdmin AdminRole = "super_admin"
)

// User represents a row of the `users` table.  The json tags are omitted
// on purpose: handlers expose a projection that never contains the hash.
//
// Fields:
//  ID            – UUID primary key.
//  Email         – unique email address, stored as given.
//  PasswordHash  – bcrypt hash; empty for accounts created through an
//                  external identity provider.
//  Phone         – optional contact number.
//  UserType      – couple, vendor or guest.
//  IsActive      – false once the account has been soft-deleted.
//  EmailVerified – set when a verification token is consumed.
type User struct {
	ID            string    // users.id
	Email         string    // users.email
	PasswordHash  string    // users.password_hash (nullable)
	Phone         string    // users.phone (nullable)
	UserType      UserType  // users.user_type
	IsActive      bool      // users.is_active
	EmailVerified bool      // users.email_verified
	PhoneVerified bool      // users.phone_verified
	CreatedAt     time.Time // users.created_at
	UpdatedAt     time.Time // users.updated_at
}

// Admin represents a row of the `admins` table.  Admins authenticate
// through a separate login route and their tokens carry the admin kind.
type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         AdminRole
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
