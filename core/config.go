package core

import (
	"net"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnvDev  = "DEV"
	EnvTest = "TEST"
	EnvQA   = "QA"
	EnvProd = "PROD"

	envPrefix = "ACADMETER"

	// devSecretKey is only accepted in DEV and TEST.
	devSecretKey = "dev-insecure-3n$w+q9x)k!7z2p^c4v#m8b&h1r6t0y"
)

var (
	ErrMissingSecret  = errors.New("secret key is missing or uses the development default")
	ErrInvalidBaseURL = errors.New("frontend base url is invalid")
	ErrDebugEnabled   = errors.New("debug mode is only allowed in DEV and TEST")
)

type (
	ServerConfig struct {
		Address         string
		Host            string
		DebugHost       string
		ShutdownTimeout time.Duration
		SecureCookies   bool
	}

	AuthConfig struct {
		Issuer           string
		SessionTTL       time.Duration
		PasswordResetTTL time.Duration
		ResetMaxRequests int
		ResetWindow      time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	SMTPConfig struct {
		Host     string
		Port     int
		User     string
		Password string
	}

	RedisConfig struct {
		URL string
	}

	Config struct {
		Env                 string
		Build               string
		Debug               bool
		TestMode            bool
		AppName             string
		SecretKey           string
		FrontendBaseURL     string
		FromEmail           string
		EmailBackend        string
		SendgridApiKey      string
		RollbarToken        string
		CommonPasswordsFile string

		Server   ServerConfig
		Auth     AuthConfig
		Database DatabaseConfig
		SMTP     SMTPConfig
		Redis    RedisConfig
	}
)

// Address returns the "host:port" of the database server.
func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.FromEmail}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDev || c.Env == EnvTest
}

// Validate fails closed on settings that must never fall back to defaults outside development.
func (c *Config) Validate() error {
	if !c.IsDevelopment() && (c.SecretKey == "" || c.SecretKey == devSecretKey) {
		return errors.Wrapf(ErrMissingSecret, "env %s", c.Env)
	}
	if !c.IsDevelopment() && c.Debug {
		return errors.Wrapf(ErrDebugEnabled, "env %s", c.Env)
	}
	u, err := url.ParseRequestURI(c.FrontendBaseURL)
	if err != nil || u.Host == "" {
		return errors.Wrapf(ErrInvalidBaseURL, "%q", c.FrontendBaseURL)
	}
	return nil
}

func setDefaults(v *viper.Viper, env string) {
	v.SetDefault("debug", env == EnvDev)
	v.SetDefault("build", "develop")
	v.SetDefault("app_name", "AcadMeter")
	v.SetDefault("secret_key", devSecretKey)
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("email_backend", "console")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("common_passwords_file", "")

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.debug_host", "localhost:4000")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.secure_cookies", false)

	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.password_reset_ttl", time.Hour)
	v.SetDefault("auth.reset_max_requests", 5)
	v.SetDefault("auth.reset_window", 15*time.Minute)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "acadmeter")
	v.SetDefault("database.user", "acadmeter")
	v.SetDefault("database.password", "")
	v.SetDefault("database.admin_user", "")
	v.SetDefault("database.admin_password", "")
	v.SetDefault("database.disable_tls", false)

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 25)
	v.SetDefault("smtp.user", "")
	v.SetDefault("smtp.password", "")

	v.SetDefault("redis.url", "")
}

// loadDotEnv loads config/.env.<env> if it exists (ignore if it does not).
func loadDotEnv(env string) error {
	dir := os.Getenv(envPrefix + "_CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}
	dotEnvPath := filepath.Join(dir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "stat %s", dotEnvPath)
	}
	return nil
}

// NewConfig reads the configuration from the environment (prefixed with ACADMETER_)
// and validates it.
func NewConfig() (*Config, error) {
	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = EnvDev
	}
	if err := loadDotEnv(env); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v, env)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	conf := &Config{
		Env:                 env,
		Build:               v.GetString("build"),
		Debug:               v.GetBool("debug"),
		TestMode:            env == EnvTest,
		AppName:             v.GetString("app_name"),
		SecretKey:           v.GetString("secret_key"),
		FrontendBaseURL:     strings.TrimRight(v.GetString("frontend_base_url"), "/"),
		FromEmail:           v.GetString("default_from_email"),
		EmailBackend:        v.GetString("email_backend"),
		SendgridApiKey:      v.GetString("sendgrid_api_key"),
		RollbarToken:        v.GetString("rollbar_token"),
		CommonPasswordsFile: v.GetString("common_passwords_file"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debug_host"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			SecureCookies:   v.GetBool("server.secure_cookies"),
		},
		Auth: AuthConfig{
			Issuer:           v.GetString("app_name"),
			SessionTTL:       v.GetDuration("auth.session_ttl"),
			PasswordResetTTL: v.GetDuration("auth.password_reset_ttl"),
			ResetMaxRequests: v.GetInt("auth.reset_max_requests"),
			ResetWindow:      v.GetDuration("auth.reset_window"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.admin_user"),
			AdminPassword: v.GetString("database.admin_password"),
			DisableTLS:    v.GetBool("database.disable_tls"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			User:     v.GetString("smtp.user"),
			Password: v.GetString("smtp.password"),
		},
		Redis: RedisConfig{URL: v.GetString("redis.url")},
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}
