package logsvc

import (
	"fmt"
	"io"
	"os"
	"sort"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// RollbarLogger reports to rollbar and writes logfmt lines through go-kit/log.
type RollbarLogger struct {
	kit  kitlog.Logger
	exit func(code int)
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger returns a logger writing to w; component (API, ADMIN...) is attached to every line.
func NewRollbarLogger(w io.Writer, component string, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)

	kit := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	if conf.Debug {
		kit = level.NewFilter(kit, level.AllowDebug())
	} else {
		kit = level.NewFilter(kit, level.AllowInfo())
	}
	kit = kitlog.With(kit, "ts", kitlog.DefaultTimestampUTC, "caller", kitlog.Caller(5), "component", component)
	return &RollbarLogger{kit: kit, exit: os.Exit}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in User
		if usr, ok := arg.(user.User); ok {
			if !usrSet { // only set one User
				rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
				usrSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

// keyvals turns args into logfmt pairs.
func keyvals(msg string, args []interface{}) []interface{} {
	kv := []interface{}{"msg", msg}
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			kv = append(kv, "err", a.Error())
		case user.User:
			kv = append(kv, "user", a.Username, "user_id", a.ID)
		case map[string]interface{}:
			keys := make([]string, 0, len(a))
			for k := range a {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				kv = append(kv, k, a[k])
			}
		default:
			kv = append(kv, "extra", fmt.Sprintf("%+v", a))
		}
	}
	return kv
}

func (l RollbarLogger) log(lvl func(kitlog.Logger) kitlog.Logger, msg string, args []interface{}) {
	_ = lvl(l.kit).Log(keyvals(msg, args)...)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.log(level.Debug, msg, args)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.log(level.Info, msg, args)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.log(level.Warn, msg, args)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.log(level.Error, msg, args)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.log(level.Error, msg, args)
	rollbar.Wait()
	l.exit(1)
}
