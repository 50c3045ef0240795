package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/acadmeter/acadmeter/core"
	"github.com/acadmeter/acadmeter/core/user"
)

const (
	msgSignedUp      = "User registered successfully"
	msgTokenValid    = "Token is valid"
	msgResetSent     = "If an account with that email exists, a password reset link has been sent."
	msgPasswordReset = "Password has been reset successfully"
)

type authApi struct {
	svc      *user.Service
	conf     *core.Config
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, deps ServerDeps) {
	api := authApi{
		svc:      deps.UserSvc,
		conf:     deps.Conf,
		validate: deps.Validate,
	}

	g.POST("/login", api.login)
	g.POST("/signup", api.signup)
	g.POST("/logout", api.logout)
	g.GET("/verify", api.verify)
	g.POST("/reset/request", api.requestPasswordReset)
	g.POST("/reset", api.resetPassword)
	g.GET("/roles", api.queryRoles)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, token, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		if errors.Cause(err) == user.ErrInvalidCredentials {
			return errInvalidCredentials
		}
		return errors.Wrap(err, "authenticating")
	}

	ctx.SetCookie(newTokenCookie(api.conf, token, usr.LastLogin.Add(api.conf.Auth.SessionTTL)))
	return ctx.JSON(http.StatusOK, LoginResponse{
		User:     usr,
		Token:    token,
		Redirect: usr.Role.DashboardPath(),
	})
}

func (api *authApi) signup(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	if _, err := api.svc.Signup(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "signing up")
	}
	return ctx.JSON(http.StatusCreated, MessageResponse{Message: msgSignedUp})
}

func (api *authApi) logout(ctx echo.Context) error {
	token, _ := requestToken(ctx)
	if err := api.svc.Logout(ctx.Request().Context(), token); err != nil {
		return errors.Wrap(err, "logging out")
	}
	clearTokenCookie(ctx, api.conf.Server.SecureCookies)
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: true})
}

func (api *authApi) verify(ctx echo.Context) error {
	token, ok := bearerToken(ctx)
	if !ok {
		return errMissingToken
	}

	usr, claims, err := api.svc.VerifySession(ctx.Request().Context(), token)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrTokenInvalid, user.ErrTokenExpired:
			return errInvalidToken
		}
		return errors.Wrap(err, "verifying session")
	}
	setContextClaims(ctx, claims)

	return ctx.JSON(http.StatusOK, VerifyResponse{Message: msgTokenValid, User: usr})
}

func (api *authApi) requestPasswordReset(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// unknown emails get the same answer as registered ones
	err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email)
	switch errors.Cause(err) {
	case nil, user.ErrNotFound:
	case user.ErrRateLimited:
		return errTooManyRequests
	default:
		return errors.Wrap(err, "requesting password reset")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: msgResetSent})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		if errors.Cause(err) == user.ErrResetTokenInvalid {
			return errResetTokenInvalid
		}
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: msgPasswordReset})
}

func (api *authApi) queryRoles(ctx echo.Context) error {
	roles := make([]RoleResponse, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, RoleResponse{Role: r, Dashboard: r.DashboardPath()})
	}
	return ctx.JSON(http.StatusOK, roles)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		User     user.User `json:"user"`
		Token    string    `json:"token"`
		Redirect string    `json:"redirect"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	VerifyResponse struct {
		Message string    `json:"message"`
		User    user.User `json:"user"`
	}

	RoleResponse struct {
		Role      user.Role `json:"role"`
		Dashboard string    `json:"dashboard"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}

	SuccessResponse struct {
		Success bool `json:"success"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email)
	return validate.Struct(pr)
}
