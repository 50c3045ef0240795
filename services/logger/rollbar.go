package logsvc

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/acadmeter/acadmeter/core"
	"github.com/acadmeter/acadmeter/core/user"
)

const redacted = "[redacted]"

// sensitiveField matches structured field names whose values never leave the process.
var sensitiveField = regexp.MustCompile(`(?i)password|token|secret|authorization|cookie`)

// RollbarLogger prints every entry and reports it to Rollbar while enabled.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetScrubFields(sensitiveField)
	rollbar.SetScrubHeaders(sensitiveField)
	return &RollbarLogger{std: std}
}

// Enable turns reporting to Rollbar on or off; entries are printed either way.
func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// entry is one log call split into the account it concerns and its other arguments
// (errors, field maps, values).
type entry struct {
	level  string
	msg    string
	person *user.User
	extras []interface{}
}

func newEntry(level, msg string, args []interface{}) entry {
	e := entry{level: level, msg: msg, extras: make([]interface{}, 0, len(args))}
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			if e.person == nil && v.ID != "" {
				usr := v
				e.person = &usr
			}
		case map[string]interface{}:
			e.extras = append(e.extras, redact(v))
		default:
			e.extras = append(e.extras, arg)
		}
	}
	return e
}

func redact(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if sensitiveField.MatchString(k) {
			v = redacted
		}
		out[k] = v
	}
	return out
}

func (l RollbarLogger) report(e entry) {
	if e.person != nil {
		rollbar.SetPerson(e.person.ID, e.person.Name(), e.person.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(e.level, append([]interface{}{e.msg}, e.extras...)...)
}

func (l RollbarLogger) write(e entry) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.level, e.msg)
	if e.person != nil {
		fmt.Fprintf(&b, "\n\tuser: %s <%s>", e.person.ID, e.person.Email)
	}
	for _, x := range e.extras {
		fmt.Fprintf(&b, "\n\t%+v", x)
	}
	l.std.Println(b.String())
}

func (l RollbarLogger) log(level, msg string, args []interface{}) {
	e := newEntry(level, msg, args)
	l.report(e)
	l.write(e)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

// Fatal reports msg as critical, waits for delivery and exits.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal("exiting")
}
