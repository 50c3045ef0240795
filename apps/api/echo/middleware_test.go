package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acadmeter/acadmeter/core/user"
)

func Test_roleGuard(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, user.RoleAdmin, "a@x.edu", "")
	teacher := app.createUser(t, user.RoleTeacher, "t@x.edu", "T-001")
	student := app.createUser(t, user.RoleStudent, "s@x.edu", "S-001")

	adminToken := app.sessionToken(t, admin)
	teacherToken := app.sessionToken(t, teacher)
	studentToken := app.sessionToken(t, student)

	resetToken, err := app.tokens.Issue(user.NewClaims(teacher, user.PurposePasswordReset), time.Hour)
	require.NoError(t, err)

	// issued a day ago, expired now
	*app.now = app.now.Add(-24 * time.Hour)
	expiredToken := app.sessionToken(t, teacher)
	*app.now = app.now.Add(24 * time.Hour)

	tests := []struct {
		httpTest
		wantCleared bool
	}{
		// no token
		{httpTest: httpTest{name: "no token", path: "/teacher-dashboard", wantCode: http.StatusFound}},
		{httpTest: httpTest{name: "no token, nested path", path: "/teacher-dashboard/classes/42?tab=grades", wantCode: http.StatusFound}},
		{httpTest: httpTest{name: "no token, admin area", path: "/dashboard/users", wantCode: http.StatusFound}},
		{httpTest: httpTest{name: "empty cookie", path: "/student-dashboard", cookie: "", wantCode: http.StatusFound}},

		// invalid tokens are cleared
		{httpTest: httpTest{name: "garbage cookie", path: "/teacher-dashboard", cookie: "garbage", wantCode: http.StatusFound}, wantCleared: true},
		{httpTest: httpTest{name: "expired cookie", path: "/teacher-dashboard", cookie: expiredToken, wantCode: http.StatusFound}, wantCleared: true},
		{httpTest: httpTest{name: "reset token cookie", path: "/teacher-dashboard", cookie: resetToken, wantCode: http.StatusFound}, wantCleared: true},
		{httpTest: httpTest{name: "garbage bearer", path: "/dashboard", token: "garbage", wantCode: http.StatusFound}, wantCleared: true},

		// wrong role
		{httpTest: httpTest{name: "admin on teacher area", path: "/teacher-dashboard", cookie: adminToken, wantCode: http.StatusFound}},
		{httpTest: httpTest{name: "teacher on admin area", path: "/dashboard", cookie: teacherToken, wantCode: http.StatusFound}},
		{httpTest: httpTest{name: "student on teacher subpath", path: "/teacher-dashboard/grades", cookie: studentToken, wantCode: http.StatusFound}},
		{httpTest: httpTest{name: "teacher on student area", path: "/student-dashboard", token: teacherToken, wantCode: http.StatusFound}},

		// right role
		{httpTest: httpTest{
			name: "admin", path: "/dashboard", cookie: adminToken, wantCode: http.StatusOK,
			wantData: marchallObj(t, DashboardResponse{Role: user.RoleAdmin, User: Identity{ID: admin.ID, Email: admin.Email}}),
		}},
		{httpTest: httpTest{
			name: "teacher, trailing slash", path: "/teacher-dashboard/", cookie: teacherToken, wantCode: http.StatusOK,
			wantData: marchallObj(t, DashboardResponse{Role: user.RoleTeacher, ProfileID: "T-001", User: Identity{ID: teacher.ID, Email: teacher.Email}}),
		}},
		{httpTest: httpTest{
			name: "teacher, nested path", path: "/teacher-dashboard/classes/42", cookie: teacherToken, wantCode: http.StatusOK,
			wantData: marchallObj(t, DashboardResponse{Role: user.RoleTeacher, ProfileID: "T-001", User: Identity{ID: teacher.ID, Email: teacher.Email}}),
		}},
		{httpTest: httpTest{
			name: "student, bearer header", path: "/student-dashboard", token: studentToken, wantCode: http.StatusOK,
			wantData: marchallObj(t, DashboardResponse{Role: user.RoleStudent, ProfileID: "S-001", User: Identity{ID: student.ID, Email: student.Email}}),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := tt.request()
			app.do(req, rec)
			checkCodeAndData(t, tt.httpTest, rec)

			if tt.wantCode == http.StatusFound {
				assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation), "redirect must go home and nowhere else")
			}

			cookie := responseCookie(rec, tokenCookieName)
			if tt.wantCleared {
				require.NotNil(t, cookie, "invalid token must be cleared")
				assert.Empty(t, cookie.Value)
				assert.True(t, cookie.MaxAge < 0)
			} else {
				assert.Nil(t, cookie)
			}
		})
	}
}

func Test_roleGuard_rechecksEveryRequest(t *testing.T) {
	app := setup(t)
	teacher := app.createUser(t, user.RoleTeacher, "t@x.edu", "T-001")
	token := app.sessionToken(t, teacher)

	req, rec := newCookieRequest(http.MethodGet, "/teacher-dashboard", token)
	assert.Equal(t, http.StatusOK, app.do(req, rec).Code)

	*app.now = app.now.Add(24 * time.Hour)

	req, rec = newCookieRequest(http.MethodGet, "/teacher-dashboard", token)
	assert.Equal(t, http.StatusFound, app.do(req, rec).Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
}

// register a teacher, log in, and visit the dashboards with the session cookie
func Test_teacherJourney(t *testing.T) {
	app := setup(t)

	signup := marchallObj(t, user.NewUser{
		FirstName: "Tina", LastName: "Teach", Email: "t@x.edu",
		Password: "Passw0rd1", UserType: "teacher", ProfileID: "T-001",
	})
	req, rec := newRequest(http.MethodPost, "/api/auth/signup", signup)
	require.Equal(t, http.StatusCreated, app.do(req, rec).Code)

	req, rec = newRequest(http.MethodPost, "/api/auth/login", marchallObj(t, LoginRequest{Email: "t@x.edu", Password: "Passw0rd1"}))
	require.Equal(t, http.StatusOK, app.do(req, rec).Code)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	claims, err := app.tokens.Verify(login.Token, user.PurposeSession)
	require.NoError(t, err)
	assert.Equal(t, user.RoleTeacher, claims.Role)

	cookie := responseCookie(rec, tokenCookieName)
	require.NotNil(t, cookie)

	req, rec = newCookieRequest(http.MethodGet, "/teacher-dashboard", cookie.Value)
	assert.Equal(t, http.StatusOK, app.do(req, rec).Code)

	req, rec = newCookieRequest(http.MethodGet, "/dashboard", cookie.Value)
	assert.Equal(t, http.StatusFound, app.do(req, rec).Code)
	assert.Equal(t, "/", rec.Header().Get(echo.HeaderLocation))
}

func Test_home(t *testing.T) {
	app := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	app.do(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to AcadMeter API!", rec.Body.String())
}
