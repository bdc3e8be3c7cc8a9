package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
)

// RollbarLogger sends events to Rollbar, then logs them through the wrapped local logger.
// A user.User arg becomes the Rollbar person; report.Report and map args become custom data.
type RollbarLogger struct {
	local core.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(local core.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug && conf.RollbarToken != "")
	return &RollbarLogger{local: local}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Close waits for the queued items to be sent.
func (l *RollbarLogger) Close() {
	rollbar.Close()
}

// rollbarArgs builds the args of a rollbar call: the message, the error (if any) and the custom data.
func rollbarArgs(msg string, args []interface{}) []interface{} {
	var (
		err    error
		person *user.User
	)
	custom := make(map[string]interface{})

	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			if err == nil {
				err = a
			}
		case user.User:
			if person == nil {
				usr := a
				person = &usr
				custom["user_role"] = usr.Role
			}
		case report.Report:
			custom["report_id"] = a.ID
			custom["report_status"] = a.Status
		case map[string]interface{}:
			for k, v := range a {
				custom[k] = v
			}
		}
	}

	if person != nil {
		rollbar.SetPerson(person.ID, person.Username, person.Email)
	} else {
		rollbar.ClearPerson()
	}

	rbArgs := []interface{}{msg}
	if err != nil {
		rbArgs = append(rbArgs, err)
	}
	if len(custom) > 0 {
		rbArgs = append(rbArgs, custom)
	}
	return rbArgs
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(rollbarArgs(msg, args)...)
	l.local.Debug(msg, args...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(rollbarArgs(msg, args)...)
	l.local.Info(msg, args...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(rollbarArgs(msg, args)...)
	l.local.Warn(msg, args...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(rollbarArgs(msg, args)...)
	l.local.Error(msg, args...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(rollbarArgs(msg, args)...)
	rollbar.Close()
	l.local.Fatal(msg, args...)
}
