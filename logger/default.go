package logger

import "sync/atomic"

// holder wraps the default logger so that it can be swapped while sessions are logging.
type holder struct{ l Logger }

var defLogger atomic.Pointer[holder]

func init() {
	defLogger.Store(&holder{l: NewSlog(InfoLevel, false)})
}

// GetLogger returns the package default logger. Sessions and index builds created without
// an explicit logger log through it.
func GetLogger() Logger {
	return defLogger.Load().l
}

// SetLogger replaces the package default logger. A nil logger is ignored.
func SetLogger(l Logger) {
	if l != nil {
		defLogger.Store(&holder{l: l})
	}
}

func Debug(msg string, keysAndValues ...any) { GetLogger().Debug(msg, keysAndValues...) }

func Info(msg string, keysAndValues ...any) { GetLogger().Info(msg, keysAndValues...) }

func Warn(msg string, keysAndValues ...any) { GetLogger().Warn(msg, keysAndValues...) }

func Error(msg string, keysAndValues ...any) { GetLogger().Error(msg, keysAndValues...) }

func Fatal(msg string, keysAndValues ...any) { GetLogger().Fatal(msg, keysAndValues...) }

// SetLevel sets the level of the current default logger.
func SetLevel(level Level) { GetLogger().SetLevel(level) }

// With creates a child of the current default logger.
func With(keyValues ...any) Logger { return GetLogger().With(keyValues...) }
