package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/acadmeter/acadmeter/core"
	"github.com/acadmeter/acadmeter/core/user"
)

const (
	uniqueViolation = "23505"

	usersEmailKey = "users_email_key"
)

// profileTables maps each role owning a profile to its table.
var profileTables = map[user.Role]string{
	user.RoleTeacher: "teacher_profiles",
	user.RoleStudent: "student_profiles",
}

const userColumns = `id, email, first_name, last_name, role, profile_id, password_hash, created_at, updated_at, last_login`

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

// inTx runs fn in a transaction, rolling back on any error.
func (repo *userRepository) inTx(ctx context.Context, fn func(tx core.DBTransactor) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func trapNoRowsErr(err error, notFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return err
}

func isUniqueViolation(err error, constraint ...string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return len(constraint) == 0 || pqErr.Constraint == constraint[0]
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string) error {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	if err := repo.db.GetContext(ctx, &exists, q, email); err != nil {
		return errors.Wrap(err, "checking email")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User, profile *user.Profile) (user.User, error) {
	err := repo.inTx(ctx, func(tx core.DBTransactor) error {
		q := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		_, err := tx.ExecContext(ctx, q,
			usr.ID, usr.Email, usr.FirstName, usr.LastName, usr.Role, usr.ProfileID,
			usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt, usr.LastLogin,
		)
		if err != nil {
			if isUniqueViolation(err, usersEmailKey) {
				return user.ErrEmailExists
			}
			return errors.Wrap(err, "inserting user")
		}

		if profile == nil {
			return nil
		}
		table, ok := profileTables[profile.Role]
		if !ok {
			return user.ErrInvalidRole
		}
		q = `INSERT INTO ` + table + ` (id, user_id, created_at) VALUES ($1, $2, $3)`
		if _, err = tx.ExecContext(ctx, q, profile.ID, usr.ID, profile.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return user.ErrProfileExists
			}
			return errors.Wrap(err, "inserting profile")
		}
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		usr user.User
		err error
	)
	switch {
	case filter.ID != "":
		err = repo.db.GetContext(ctx, &usr, `SELECT `+userColumns+` FROM users WHERE id = $1`, filter.ID)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &usr, `SELECT `+userColumns+` FROM users WHERE email = $1`, filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		if err = trapNoRowsErr(err, user.ErrNotFound); err == user.ErrNotFound {
			return user.User{}, err
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return usr, nil
}

func (repo *userRepository) updateOne(ctx context.Context, exec core.DBExecutor, q string, args ...interface{}) error {
	res, err := exec.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	err := repo.updateOne(ctx, repo.db, `UPDATE users SET last_login = $1 WHERE id = $2`, at, id)
	return errors.Wrap(err, "updating last login")
}

func (repo *userRepository) UpdatePassword(ctx context.Context, id string, hash []byte, at time.Time) error {
	err := repo.updateOne(ctx, repo.db, `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`, hash, at, id)
	return errors.Wrap(err, "updating password")
}

func (repo *userRepository) CreateResetToken(ctx context.Context, rt user.ResetToken) error {
	q := `INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, used, created_at)
		VALUES (:id, :user_id, :token_hash, :expires_at, :used, :created_at)`
	_, err := sqlx.NamedExecContext(ctx, repo.db, q, rt)
	return errors.Wrap(err, "inserting reset token")
}

func (repo *userRepository) ConsumeResetToken(ctx context.Context, tokenHash, userID string, newHash []byte, now time.Time) error {
	return repo.inTx(ctx, func(tx core.DBTransactor) error {
		q := `UPDATE password_reset_tokens SET used = TRUE
			WHERE token_hash = $1 AND user_id = $2 AND used = FALSE AND expires_at > $3`
		if err := repo.updateOne(ctx, tx, q, tokenHash, userID, now); err != nil {
			if err == user.ErrNotFound {
				return user.ErrResetTokenInvalid
			}
			return errors.Wrap(err, "consuming reset token")
		}

		q = `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
		if err := repo.updateOne(ctx, tx, q, newHash, now, userID); err != nil {
			if err == user.ErrNotFound {
				return user.ErrResetTokenInvalid
			}
			return errors.Wrap(err, "updating password")
		}
		return nil
	})
}

func (repo *userRepository) CreateSession(ctx context.Context, s user.Session) error {
	q := `INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at)
		VALUES (:id, :user_id, :token_hash, :expires_at, :created_at)`
	_, err := sqlx.NamedExecContext(ctx, repo.db, q, s)
	return errors.Wrap(err, "inserting session")
}

func (repo *userRepository) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	return errors.Wrap(err, "deleting session")
}
