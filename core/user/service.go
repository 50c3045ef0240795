package user

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/acadmeter/acadmeter/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrProfileExists      = errors.New("a profile with this id already exists")
	ErrInvalidCredentials = errors.New("Invalid email or password")
	ErrResetTokenInvalid  = errors.New("invalid or expired token")
	ErrRateLimited        = errors.New("too many requests, please try again later")
	ErrInvalidRole        = errors.New("invalid role")
	ErrProfileRequired    = errors.New("profile id is required")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string) error
		// CreateUser inserts usr and, when not nil, its profile as a single atomic unit.
		CreateUser(ctx context.Context, usr User, profile *Profile) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateLastLogin(ctx context.Context, id string, at time.Time) error
		UpdatePassword(ctx context.Context, id string, hash []byte, at time.Time) error

		CreateResetToken(ctx context.Context, rt ResetToken) error
		// ConsumeResetToken marks the unused, unexpired token used and stores newHash as the
		// user's password in one atomic unit. It returns ErrResetTokenInvalid if no such token exists.
		ConsumeResetToken(ctx context.Context, tokenHash, userID string, newHash []byte, now time.Time) error

		CreateSession(ctx context.Context, s Session) error
		DeleteSession(ctx context.Context, tokenHash string) error
	}

	// Limiter throttles actions per key.
	Limiter interface {
		// Allow returns ErrRateLimited once key has been used too often.
		Allow(ctx context.Context, key string) error
	}

	Service struct {
		repo     Repository
		tokens   *TokenManager
		mailSvc  core.EmailService
		limiter  Limiter
		validate *validator.Validate
		conf     *core.Config
	}
)

func NewService(
	repo Repository,
	tokens *TokenManager,
	mailSvc core.EmailService,
	limiter Limiter,
	validate *validator.Validate,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		tokens:   tokens,
		mailSvc:  mailSvc,
		limiter:  limiter,
		validate: validate,
		conf:     conf,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewFieldValidationError("email", err)
		}
		return errors.Wrap(err, "checking email uniqueness")
	}
	return nil
}

// Signup validates nu and creates a teacher or student account together with its profile.
func (svc *Service) Signup(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	role, ok := ParseRole(nu.UserType)
	if !ok || !role.HasProfile() {
		return User{}, core.NewFieldValidationError("userType", ErrInvalidRole)
	}

	now := time.Now().UTC()
	usr := User{
		ID:        uuid.New().String(),
		Email:     nu.Email,
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Role:      role,
		ProfileID: nu.ProfileID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	profile := &Profile{ID: nu.ProfileID, UserID: usr.ID, Role: role, CreatedAt: now}

	usr, err := svc.repo.CreateUser(ctx, usr, profile)
	if err != nil {
		switch errors.Cause(err) {
		case ErrEmailExists:
			return User{}, core.NewFieldValidationError("email", ErrEmailExists)
		case ErrProfileExists:
			return User{}, core.NewFieldValidationError("id", ErrProfileExists)
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

// CreateAccount creates an account of any role outside of the signup flow.
func (svc *Service) CreateAccount(ctx context.Context, usr User, pwd string) (User, error) {
	if !usr.Role.Valid() {
		return User{}, ErrInvalidRole
	}
	usr.Email = core.CleanString(usr.Email)
	usr.FirstName = core.CleanString(usr.FirstName)
	usr.LastName = core.CleanString(usr.LastName)
	if err := svc.checkUniqueness(ctx, usr.Email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr.ID = uuid.New().String()
	usr.CreatedAt, usr.UpdatedAt = now, now
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	var profile *Profile
	if usr.Role.HasProfile() {
		if usr.ProfileID == "" {
			return User{}, core.NewFieldValidationError("id", ErrProfileRequired)
		}
		profile = &Profile{ID: usr.ProfileID, UserID: usr.ID, Role: usr.Role, CreatedAt: now}
	} else {
		usr.ProfileID = ""
	}
	return svc.repo.CreateUser(ctx, usr, profile)
}

// Authenticate checks the credentials and opens a session.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, string, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email)})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, "", ErrInvalidCredentials
		}
		return User{}, "", errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, "", ErrInvalidCredentials
	}

	now := svc.tokens.Now()
	if err = svc.repo.UpdateLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, "", errors.Wrap(err, "setting lastLogin")
	}
	usr.LastLogin = &now

	token, err := svc.tokens.Issue(NewClaims(usr, PurposeSession), svc.conf.Auth.SessionTTL)
	if err != nil {
		return User{}, "", errors.Wrap(err, "issuing session token")
	}
	sess := Session{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		TokenHash: HashToken(token),
		ExpiresAt: now.Add(svc.conf.Auth.SessionTTL),
		CreatedAt: now,
	}
	if err = svc.repo.CreateSession(ctx, sess); err != nil {
		return User{}, "", errors.Wrap(err, "persisting session")
	}
	return usr, token, nil
}

// VerifySession checks a session token and loads the account it was issued for.
func (svc *Service) VerifySession(ctx context.Context, token string) (User, Claims, error) {
	claims, err := svc.tokens.Verify(token, PurposeSession)
	if err != nil {
		return User{}, Claims{}, err
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: claims.Subject})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, Claims{}, ErrTokenInvalid
		}
		return User{}, Claims{}, errors.Wrap(err, "finding user by ID")
	}
	return usr, claims, nil
}

// Logout deletes the session row matching token, if any.
func (svc *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return errors.Wrap(svc.repo.DeleteSession(ctx, HashToken(token)), "deleting session")
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email)})
}

// SetPassword replaces the password of the account registered with email.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdatePassword(ctx, usr.ID, usr.PasswordHash, time.Now().UTC())
}

// RequestPasswordReset issues a reset token for the account registered with email and mails its link.
// It returns ErrNotFound when no account matches; callers must not reveal it.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = core.CleanString(email)
	if err := svc.limiter.Allow(ctx, "reset:"+email); err != nil {
		return err
	}

	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: email})
	if err != nil {
		return err
	}

	ttl := svc.conf.Auth.PasswordResetTTL
	now := svc.tokens.Now()
	token, err := svc.tokens.Issue(NewClaims(usr, PurposePasswordReset), ttl)
	if err != nil {
		return errors.Wrap(err, "issuing reset token")
	}
	rt := ResetToken{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		TokenHash: HashToken(token),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err = svc.repo.CreateResetToken(ctx, rt); err != nil {
		return errors.Wrap(err, "persisting reset token")
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name(), Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"AppName":   svc.conf.AppName,
			"Name":      usr.FirstName,
			"Link":      svc.resetLink(token),
			"ExpiresIn": ttl.String(),
		},
	}
	return errors.Wrap(svc.mailSvc.SendMessages(ctx, msg), "sending password reset email")
}

func (svc *Service) resetLink(token string) string {
	return fmt.Sprintf("%s/reset-password?%s", svc.conf.FrontendBaseURL, url.Values{"token": {token}}.Encode())
}

// ResetPassword consumes a reset token and sets the new password.
// Bad signatures, wrong purposes, expired, used and unknown tokens all yield ErrResetTokenInvalid.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	if err := data.Validate(svc.validate); err != nil {
		return err
	}

	claims, err := svc.tokens.Verify(data.Token, PurposePasswordReset)
	if err != nil {
		return ErrResetTokenInvalid
	}

	var usr User
	if err = usr.SetPassword(data.NewPassword); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	err = svc.repo.ConsumeResetToken(ctx, HashToken(data.Token), claims.Subject, usr.PasswordHash, svc.tokens.Now())
	if err != nil {
		if errors.Cause(err) == ErrResetTokenInvalid {
			return ErrResetTokenInvalid
		}
		return errors.Wrap(err, "consuming reset token")
	}
	return nil
}
