package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/acadmeter/acadmeter/core/user"
)

const homePath = "/"

// roleGuard only lets through requests carrying a valid session token issued to an account with role.
// Every other request is redirected home; invalid or expired tokens are cleared first.
func roleGuard(tokens *user.TokenManager, role user.Role, secureCookies bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token, ok := requestToken(ctx)
			if !ok {
				return ctx.Redirect(http.StatusFound, homePath)
			}

			claims, err := tokens.Verify(token, user.PurposeSession)
			if err != nil {
				clearTokenCookie(ctx, secureCookies)
				return ctx.Redirect(http.StatusFound, homePath)
			}
			if claims.Role != role {
				return ctx.Redirect(http.StatusFound, homePath)
			}

			setContextClaims(ctx, claims)
			return next(ctx)
		}
	}
}
