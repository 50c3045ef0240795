package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/acadmeter/acadmeter/core"
	"github.com/acadmeter/acadmeter/core/user"
)

const (
	tokenCookieName  = "token"
	bearerScheme     = "Bearer"
	contextClaimsKey = "claims"
)

func newTokenCookie(conf *core.Config, token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(conf.Auth.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   conf.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// clearTokenCookie tells the client to drop its session cookie.
func clearTokenCookie(ctx echo.Context, secure bool) {
	ctx.SetCookie(&http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(ctx echo.Context) (string, bool) {
	auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func cookieToken(ctx echo.Context) (string, bool) {
	cookie, err := ctx.Cookie(tokenCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// requestToken reads the session token from the cookie, falling back to the Authorization header.
func requestToken(ctx echo.Context) (string, bool) {
	if token, ok := cookieToken(ctx); ok {
		return token, true
	}
	return bearerToken(ctx)
}

func setContextClaims(ctx echo.Context, claims user.Claims) {
	ctx.Set(contextClaimsKey, claims)
}

func getContextClaims(ctx echo.Context) (user.Claims, bool) {
	claims, ok := ctx.Get(contextClaimsKey).(user.Claims)
	return claims, ok
}
