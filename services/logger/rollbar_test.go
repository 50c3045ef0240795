package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/acadmeter/acadmeter/core"
	"github.com/acadmeter/acadmeter/core/user"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	logger := NewRollbarLogger(log.New(buf, "TEST : ", 0), &core.Config{Env: core.EnvTest})
	logger.Enable(false)
	return logger
}

func TestRollbarLogger_write(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	usr := user.User{ID: "u1", Email: "t@x.edu", PasswordHash: []byte("secret-hash")}
	logger.Error("login failed", errors.New("boom"), usr)

	out := buf.String()
	assert.Contains(t, out, "TEST : [error] login failed")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "user: u1 <t@x.edu>")
	assert.NotContains(t, out, "secret-hash")
}

func TestRollbarLogger_redactsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Warn("reset failed", map[string]interface{}{
		"token":       "eyJhbGciOi.payload.sig",
		"newPassword": "Passw0rd1",
		"status":      500,
	})

	out := buf.String()
	assert.Contains(t, out, "[warning] reset failed")
	assert.Contains(t, out, "status:500")
	assert.Contains(t, out, redacted)
	assert.NotContains(t, out, "eyJhbGciOi")
	assert.NotContains(t, out, "Passw0rd1")
}

func Test_newEntry(t *testing.T) {
	anon := user.User{}
	first := user.User{ID: "u1"}
	second := user.User{ID: "u2"}

	e := newEntry("info", "hello", []interface{}{anon, first, second, 42})
	if assert.NotNil(t, e.person) {
		assert.Equal(t, "u1", e.person.ID, "only the first identified account is kept")
	}
	assert.Equal(t, []interface{}{42}, e.extras)

	e = newEntry("info", "hello", []interface{}{anon})
	assert.Nil(t, e.person)
}
