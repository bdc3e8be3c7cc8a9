package core

// Logger is implemented by the app loggers (see services/logger).
// Extra args may be errors, maps of extra data or the user.User in context.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
