package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/labstack/gommon/log"
)

var std = log.New("relaychat")

func init() {
	std.SetHeader(`${time_rfc3339} ${level} ${prefix}`)
	Configure(os.Getenv("ENVIRONMENT"))
}

// Configure sets the level from the running environment: DEBUG in
// development, INFO elsewhere.
func Configure(environment string) {
	if environment == "development" {
		std.SetLevel(log.DEBUG)
		return
	}
	std.SetLevel(log.INFO)
}

func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// Logger exposes the shared logger so echo can write through it.
func Logger() *log.Logger {
	return std
}

func Info(format string, v ...interface{}) {
	std.Infof(format, v...)
}

func Error(format string, v ...interface{}) {
	std.Errorf(format, v...)
}

func Debug(format string, v ...interface{}) {
	std.Debugf(format, v...)
}

func Warn(format string, v ...interface{}) {
	std.Warnf(format, v...)
}

// Fatal logs and exits the process with status 1.
func Fatal(format string, v ...interface{}) {
	std.Fatalf(format, v...)
}

func WithContext(ctx interface{}, format string, v ...interface{}) string {
	_, file, line, _ := runtime.Caller(1)
	contextStr := fmt.Sprintf("%v:%d", file, line)
	if ctx != nil {
		contextStr = fmt.Sprintf("%v - %v", contextStr, ctx)
	}
	return fmt.Sprintf("[%s] %s", contextStr, fmt.Sprintf(format, v...))
}
