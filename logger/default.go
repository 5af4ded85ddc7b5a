package logger

import "sync/atomic"

type holder struct{ l Logger }

var defLogger atomic.Pointer[holder]

func init() {
	defLogger.Store(&holder{l: NewSlog(InfoLevel, false)})
}

func Debug(msg string, keysAndValues ...any) { GetLogger().Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)  { GetLogger().Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)  { GetLogger().Warn(msg, keysAndValues...) }
func Error(msg string, keysAndValues ...any) { GetLogger().Error(msg, keysAndValues...) }
func Fatal(msg string, keysAndValues ...any) { GetLogger().Fatal(msg, keysAndValues...) }

// SetLevel changes the level of the package default logger.
func SetLevel(level LogLevel) {
	GetLogger().SetLevel(level)
}

// GetLogger returns the package default logger. Sessions, engines, transports
// and locators fall back to it when no logger option is supplied.
func GetLogger() Logger {
	return defLogger.Load().l
}

// SetDefault replaces the package default logger. A nil l is ignored.
//
// Components capture the default when they are created, so it should be set
// before any board session or locator is built.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defLogger.Store(&holder{l: l})
}

func With(keyValues ...any) Logger {
	return GetLogger().With(keyValues...)
}
