package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/acadmeter/acadmeter/core/user"
)

// registerDashboards mounts one guarded area per role.
func registerDashboards(app *echo.Echo, tokens *user.TokenManager, secureCookies bool) {
	for _, role := range user.Roles {
		g := app.Group(role.DashboardPath(), roleGuard(tokens, role, secureCookies))
		g.GET("", dashboard)
		g.GET("/*", dashboard)
	}
}

func dashboard(ctx echo.Context) error {
	claims, ok := getContextClaims(ctx)
	if !ok { // never mounted without roleGuard
		return ctx.Redirect(http.StatusFound, homePath)
	}
	return ctx.JSON(http.StatusOK, DashboardResponse{
		Role:      claims.Role,
		ProfileID: claims.ProfileID,
		User: Identity{
			ID:    claims.Subject,
			Email: claims.Email,
		},
	})
}

type (
	Identity struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}

	DashboardResponse struct {
		Role      user.Role `json:"role"`
		ProfileID string    `json:"profileId"`
		User      Identity  `json:"user"`
	}
)
