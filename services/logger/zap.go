// Package logsvc implements core.Logger: a zap sink for local output and a Rollbar reporter on top of it.
package logsvc

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
)

type ZapLogger struct {
	sl *zap.SugaredLogger
}

var _ core.Logger = (*ZapLogger)(nil)

// NewZapLogger builds a console logger in debug mode and a JSON one otherwise (or when LOG_JSON is set).
func NewZapLogger(conf *core.Config) (*ZapLogger, error) {
	var zc zap.Config
	if conf.Debug && !conf.Log.JSON {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.DisableStacktrace = true

	if conf.Log.Level != "" {
		lvl, err := zapcore.ParseLevel(conf.Log.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	zl, err := zc.Build(zap.AddCallerSkip(1), zap.Fields(zap.String("env", conf.Env), zap.String("build", conf.Build)))
	if err != nil {
		return nil, err
	}
	return &ZapLogger{sl: zl.Sugar()}, nil
}

// NewNopLogger discards everything (tests).
func NewNopLogger() *ZapLogger {
	return &ZapLogger{sl: zap.NewNop().Sugar()}
}

func (l *ZapLogger) Sync() error { return l.sl.Sync() }

// fields maps the args accepted by core.Logger to structured fields.
func fields(args []interface{}) []interface{} {
	kv := make([]interface{}, 0, len(args)*2)
	for i, arg := range args {
		switch a := arg.(type) {
		case error:
			kv = append(kv, zap.Error(a))
		case user.User:
			kv = append(kv, zap.String("user_id", a.ID), zap.String("username", a.Username))
		case report.Report:
			kv = append(kv, zap.String("report_id", a.ID), zap.String("report_status", a.Status))
		case map[string]interface{}:
			for k, v := range a {
				kv = append(kv, zap.Any(k, v))
			}
		default:
			kv = append(kv, zap.Any(fmt.Sprintf("arg%d", i), a))
		}
	}
	return kv
}

func (l *ZapLogger) Debug(msg string, args ...interface{}) { l.sl.Debugw(msg, fields(args)...) }
func (l *ZapLogger) Info(msg string, args ...interface{})  { l.sl.Infow(msg, fields(args)...) }
func (l *ZapLogger) Warn(msg string, args ...interface{})  { l.sl.Warnw(msg, fields(args)...) }
func (l *ZapLogger) Error(msg string, args ...interface{}) { l.sl.Errorw(msg, fields(args)...) }
func (l *ZapLogger) Fatal(msg string, args ...interface{}) { l.sl.Fatalw(msg, fields(args)...) }
