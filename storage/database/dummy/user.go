package dummydb

import (
	"context"
	"time"

	"github.com/acadmeter/acadmeter/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) findByEmail(email string) *user.User {
	for _, usr := range repo.db.users {
		if usr.Email == email {
			return usr
		}
	}
	return nil
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if repo.findByEmail(email) != nil {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, profile *user.Profile) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.findByEmail(usr.Email) != nil {
		return user.User{}, user.ErrEmailExists
	}
	if profile != nil {
		table, ok := repo.db.profiles[profile.Role]
		if !ok {
			return user.User{}, user.ErrInvalidRole
		}
		if table[profile.ID] {
			return user.User{}, user.ErrProfileExists
		}
		table[profile.ID] = true
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var found *user.User
	switch {
	case filter.ID != "":
		found = repo.db.users[filter.ID]
	case filter.Email != "":
		found = repo.findByEmail(filter.Email)
	}
	if found == nil {
		return user.User{}, user.ErrNotFound
	}
	return *found, nil
}

func (repo *userRepository) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin = &at
	return nil
}

func (repo *userRepository) UpdatePassword(_ context.Context, id string, hash []byte, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr, ok := repo.db.users[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.PasswordHash = hash
	usr.UpdatedAt = at
	return nil
}

func (repo *userRepository) CreateResetToken(_ context.Context, rt user.ResetToken) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[rt.UserID]; !ok {
		return user.ErrNotFound
	}
	repo.db.resetTokens[rt.TokenHash] = &rt
	return nil
}

func (repo *userRepository) ConsumeResetToken(_ context.Context, tokenHash, userID string, newHash []byte, now time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	rt, ok := repo.db.resetTokens[tokenHash]
	if !ok || rt.Used || rt.UserID != userID || !now.Before(rt.ExpiresAt) {
		return user.ErrResetTokenInvalid
	}
	usr, ok := repo.db.users[userID]
	if !ok {
		return user.ErrResetTokenInvalid
	}
	rt.Used = true
	usr.PasswordHash = newHash
	usr.UpdatedAt = now
	return nil
}

func (repo *userRepository) CreateSession(_ context.Context, s user.Session) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.sessions[s.TokenHash] = s
	return nil
}

func (repo *userRepository) DeleteSession(_ context.Context, tokenHash string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.sessions, tokenHash)
	return nil
}

// ResetToken returns the stored reset token with the given digest (tests).
func (db *DB) ResetToken(tokenHash string) (user.ResetToken, bool) {
	db.RLock()
	defer db.RUnlock()

	rt, ok := db.resetTokens[tokenHash]
	if !ok {
		return user.ResetToken{}, false
	}
	return *rt, true
}

// ExpireResetToken moves the persisted expiry of a reset token (tests).
func (db *DB) ExpireResetToken(tokenHash string, at time.Time) {
	db.Lock()
	defer db.Unlock()

	if rt, ok := db.resetTokens[tokenHash]; ok {
		rt.ExpiresAt = at
	}
}

// HasSession reports whether a session row exists for the digest (tests).
func (db *DB) HasSession(tokenHash string) bool {
	db.RLock()
	defer db.RUnlock()

	_, ok := db.sessions[tokenHash]
	return ok
}

// CountUsers returns the number of stored accounts.
func (db *DB) CountUsers() int {
	db.RLock()
	defer db.RUnlock()
	return len(db.users)
}
