package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/acadmeter/acadmeter/core"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// PasswordCost is the bcrypt cost used for every stored password.
const PasswordCost = 10

var (
	// Roles lists every valid Role.
	Roles = []Role{RoleAdmin, RoleTeacher, RoleStudent}

	// dashboards maps each Role to the path prefix of the area it may access.
	dashboards = map[Role]string{
		RoleAdmin:   "/dashboard",
		RoleTeacher: "/teacher-dashboard",
		RoleStudent: "/student-dashboard",
	}

	// signupRoles are the roles an account can be self-registered with.
	signupRoles = map[Role]bool{
		RoleTeacher: true,
		RoleStudent: true,
	}
)

// ParseRole returns the Role named s, or false if there is none.
func ParseRole(s string) (Role, bool) {
	r := Role(core.CleanString(s, true /* lower */))
	return r, r.Valid()
}

func (r Role) Valid() bool {
	_, ok := dashboards[r]
	return ok
}

// DashboardPath is the path prefix only accounts with this Role may access.
func (r Role) DashboardPath() string {
	return dashboards[r]
}

// HasProfile reports whether accounts with this Role own a row in a profile table.
func (r Role) HasProfile() bool {
	return signupRoles[r]
}

func (r Role) String() string { return string(r) }

type User struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	FirstName    string     `json:"firstName" db:"first_name"`
	LastName     string     `json:"lastName" db:"last_name"`
	Role         Role       `json:"role" db:"role"`
	ProfileID    string     `json:"profileId,omitempty" db:"profile_id"`
	PasswordHash []byte     `json:"-" db:"password_hash"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"` // UTC
	LastLogin    *time.Time `json:"lastLogin,omitempty" db:"last_login"`
}

func (u *User) Name() string {
	return core.CleanString(u.FirstName + " " + u.LastName)
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), PasswordCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// Profile is the role-specific record a teacher or student account points to.
type Profile struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Role      Role      `db:"-"`
	CreatedAt time.Time `db:"created_at"`
}

// ResetToken is the persisted side of a password-reset token.
// Only the digest of the token value is stored.
type ResetToken struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	Used      bool      `db:"used"`
	CreatedAt time.Time `db:"created_at"`
}

// Session records an issued session token so that logout can revoke its row.
type Session struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// NewUser contains information needed to sign up.
type NewUser struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	UserType  string `json:"userType" validate:"required,oneof=teacher student"`
	ProfileID string `json:"id" validate:"required"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email)
	nu.UserType = core.CleanString(nu.UserType, true /* lower */)
	nu.ProfileID = core.CleanString(nu.ProfileID)

	return validate.Struct(nu)
}

type ResetUserPassword struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.Token = core.CleanString(rp.Token)
	return validate.Struct(rp)
}

// GetFilter selects a single User; exactly one field should be set.
type GetFilter struct {
	ID    string
	Email string
}
