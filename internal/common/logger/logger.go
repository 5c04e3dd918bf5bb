package logger

import (
	"fmt"
	"log"
	"os"
)

// Logger is a leveled logger shared by every service component.
// NOTE: Log lines are prefixed with the service name so aggregated
// output from both services stays readable.
type Logger struct {
	service string
	std     *log.Logger
	debug   bool
}

func New(service string) *Logger {
	return &Logger{
		service: service,
		std:     log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds),
		debug:   os.Getenv("LOG_DEBUG") == "true",
	}
}

func (l *Logger) output(level, msg string) {
	l.std.Printf("[%s] %s %s", level, l.service, msg)
}

func (l *Logger) Debug(msg string) {
	if l.debug {
		l.output("DEBUG", msg)
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.debug {
		l.output("DEBUG", fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Info(msg string) {
	l.output("INFO", msg)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.output("INFO", fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(msg string) {
	l.output("WARN", msg)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.output("WARN", fmt.Sprintf(format, args...))
}

func (l *Logger) Error(msg string) {
	l.output("ERROR", msg)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.output("ERROR", fmt.Sprintf(format, args...))
}

// Fatalf logs the message and exits the process.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.output("FATAL", fmt.Sprintf(format, args...))
	os.Exit(1)
}
