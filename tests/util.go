package testutil

import (
	"context"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/acadmeter/acadmeter/core"
	"github.com/acadmeter/acadmeter/core/user"
)

// NewConfig returns the configuration used by tests; it never reads the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:             core.EnvTest,
		TestMode:        true,
		AppName:         "AcadMeter",
		SecretKey:       "test-secret",
		FrontendBaseURL: "http://localhost:3000",
		FromEmail:       "noreply@acadmeter.test",
		EmailBackend:    "console",
		Server: core.ServerConfig{
			Address:         ":0",
			ShutdownTimeout: 5 * time.Second,
		},
		Auth: core.AuthConfig{
			Issuer:           "AcadMeter",
			SessionTTL:       24 * time.Hour,
			PasswordResetTTL: time.Hour,
			ResetMaxRequests: 5,
			ResetWindow:      15 * time.Minute,
		},
	}
}

// NewValidator returns a validator with every application rule registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	if err := core.InitValidators(validate, translator); err != nil {
		panic(err)
	}
	if err := user.InitValidators(validate, translator); err != nil {
		panic(err)
	}
	return validate, translator
}

// FixedClock returns a time source frozen at *now; tests move it by updating now.
func FixedClock(now *time.Time) func() time.Time {
	return func() time.Time { return *now }
}

// CreateUser stores an account straight through repo, bypassing signup validation.
func CreateUser(t *testing.T, repo user.Repository, role user.Role, email, pwd, profileID string) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	usr := user.User{
		ID:        uuid.New().String(),
		Email:     email,
		FirstName: "Test",
		LastName:  string(role),
		Role:      role,
		ProfileID: profileID,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	var profile *user.Profile
	if role.HasProfile() {
		profile = &user.Profile{ID: profileID, UserID: usr.ID, Role: role, CreatedAt: tstamp}
	}
	usr, err := repo.CreateUser(context.Background(), usr, profile)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
