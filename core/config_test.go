package core

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("ACADMETER_CONFIG_DIR", t.TempDir())

	conf, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, EnvDev, conf.Env)
	assert.True(t, conf.Debug)
	assert.Equal(t, "AcadMeter", conf.AppName)
	assert.Equal(t, 24*time.Hour, conf.Auth.SessionTTL)
	assert.Equal(t, time.Hour, conf.Auth.PasswordResetTTL)
	assert.Equal(t, "localhost:5432", conf.Database.Address())
	from := conf.DefaultFromEmail()
	assert.Equal(t, `"AcadMeter" <noreply@localhost>`, from.String())
}

func TestNewConfig_env(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("ACADMETER_CONFIG_DIR", t.TempDir())
	t.Setenv("ACADMETER_SECRET_KEY", "a-real-secret")
	t.Setenv("ACADMETER_FRONTEND_BASE_URL", "https://acadmeter.example.edu/")
	t.Setenv("ACADMETER_DATABASE_PORT", "6543")
	t.Setenv("ACADMETER_AUTH_SESSION_TTL", "2h")

	conf, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, EnvProd, conf.Env)
	assert.False(t, conf.Debug, "debug must be off by default outside DEV")
	assert.Equal(t, "a-real-secret", conf.SecretKey)
	assert.Equal(t, "https://acadmeter.example.edu", conf.FrontendBaseURL)
	assert.Equal(t, 6543, conf.Database.Port)
	assert.Equal(t, 2*time.Hour, conf.Auth.SessionTTL)
}

func TestNewConfig_prodDebug(t *testing.T) {
	t.Setenv("ENV", "PROD")
	t.Setenv("ACADMETER_CONFIG_DIR", t.TempDir())
	t.Setenv("ACADMETER_SECRET_KEY", "a-real-secret")
	t.Setenv("ACADMETER_DEBUG", "true")

	_, err := NewConfig()
	assert.Equal(t, ErrDebugEnabled, errors.Cause(err))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		secret  string
		baseURL string
		debug   bool
		wantErr error
	}{
		{name: "dev default secret", env: EnvDev, secret: devSecretKey, baseURL: "http://localhost:3000"},
		{name: "test empty secret", env: EnvTest, secret: "", baseURL: "http://localhost:3000"},
		{name: "prod default secret", env: EnvProd, secret: devSecretKey, baseURL: "https://x.edu", wantErr: ErrMissingSecret},
		{name: "qa empty secret", env: EnvQA, secret: "", baseURL: "https://x.edu", wantErr: ErrMissingSecret},
		{name: "prod secret", env: EnvProd, secret: "s3cr3t", baseURL: "https://x.edu"},
		{name: "dev debug", env: EnvDev, secret: devSecretKey, baseURL: "http://localhost:3000", debug: true},
		{name: "prod debug", env: EnvProd, secret: "s3cr3t", baseURL: "https://x.edu", debug: true, wantErr: ErrDebugEnabled},
		{name: "qa debug", env: EnvQA, secret: "s3cr3t", baseURL: "https://x.edu", debug: true, wantErr: ErrDebugEnabled},
		{name: "bad base url", env: EnvProd, secret: "s3cr3t", baseURL: "x.edu", wantErr: ErrInvalidBaseURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := &Config{Env: tt.env, SecretKey: tt.secret, FrontendBaseURL: tt.baseURL, Debug: tt.debug}
			if err := conf.Validate(); errors.Cause(err) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
