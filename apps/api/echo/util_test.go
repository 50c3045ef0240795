package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/acadmeter/acadmeter/core"
	"github.com/acadmeter/acadmeter/core/user"
	emailsvc "github.com/acadmeter/acadmeter/services/email"
	logsvc "github.com/acadmeter/acadmeter/services/logger"
	"github.com/acadmeter/acadmeter/services/ratelimit"
	dummydb "github.com/acadmeter/acadmeter/storage/database/dummy"
	testutil "github.com/acadmeter/acadmeter/tests"
)

const testPassword = "Passw0rd1"

type (
	httpErr struct {
		Error string `json:"error"`
	}

	httpTest struct {
		name     string
		method   string
		path     string
		body     []byte
		token    string
		cookie   string
		wantCode int
		wantData []byte
	}

	testApp struct {
		server  *Server
		db      *dummydb.DB
		repo    user.Repository
		mailSvc *emailsvc.ConsoleService
		tokens  *user.TokenManager
		conf    *core.Config
		now     *time.Time
	}

	setupOpt func(deps *testDeps)

	testDeps struct {
		mailSvc core.EmailService
		limiter user.Limiter
	}
)

func withEmailService(svc core.EmailService) setupOpt {
	return func(deps *testDeps) { deps.mailSvc = svc }
}

func withLimiter(l user.Limiter) setupOpt {
	return func(deps *testDeps) { deps.limiter = l }
}

func setup(t *testing.T, opts ...setupOpt) *testApp {
	t.Helper()

	conf := testutil.NewConfig()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	db := dummydb.Open()
	repo := dummydb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	deps := &testDeps{mailSvc: mailSvc, limiter: ratelimit.Noop{}}
	for _, opt := range opts {
		opt(deps)
	}

	validate, translator := testutil.NewValidator()
	tokens := user.NewTokenManager(conf)
	tokens.SetClock(testutil.FixedClock(&now))

	logger := logsvc.NewRollbarLogger(log.New(&bytes.Buffer{}, "API : ", log.LstdFlags), conf)
	logger.Enable(false)
	usrSvc := user.NewService(repo, tokens, deps.mailSvc, deps.limiter, validate, conf)

	server := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    usrSvc,
		Tokens:     tokens,
		Validate:   validate,
		Translator: translator,
	})
	return &testApp{
		server:  server,
		db:      db,
		repo:    repo,
		mailSvc: mailSvc,
		tokens:  tokens,
		conf:    conf,
		now:     &now,
	}
}

func (app *testApp) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	app.server.ServeHTTP(rec, req)
	return rec
}

// sessionToken issues a session token for usr the way login does.
func (app *testApp) sessionToken(t *testing.T, usr user.User) string {
	token, err := app.tokens.Issue(user.NewClaims(usr, user.PurposeSession), app.conf.Auth.SessionTTL)
	require.NoError(t, err)
	return token
}

func (app *testApp) createUser(t *testing.T, role user.Role, email, profileID string) user.User {
	return testutil.CreateUser(t, app.repo, role, email, testPassword, profileID)
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func newCookieRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	req, rec := newRequest(method, path, data...)
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: token})
	return req, rec
}

func (tt httpTest) request() (*http.Request, *httptest.ResponseRecorder) {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	if tt.cookie != "" {
		req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: tt.cookie})
	}
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// failingEmailService refuses every message.
type failingEmailService struct{}

func (failingEmailService) SendMessages(context.Context, ...*core.EmailMessage) error {
	return errSMTPDown
}

var errSMTPDown = errors.New("smtp: connection refused")
