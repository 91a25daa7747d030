package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// Logger is the logging contract used across services
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type stdLogger struct {
	l *log.Logger
}

// New returns a Logger writing to stdout with the given prefix
func New(prefix string) Logger {
	return &stdLogger{l: log.New(os.Stdout, prefix, log.LstdFlags|log.Lmsgprefix)}
}

func (s *stdLogger) Info(msg string, keysAndValues ...interface{}) {
	s.l.Println("INFO  " + msg + format(keysAndValues))
}

func (s *stdLogger) Warn(msg string, keysAndValues ...interface{}) {
	s.l.Println("WARN  " + msg + format(keysAndValues))
}

func (s *stdLogger) Error(msg string, keysAndValues ...interface{}) {
	s.l.Println("ERROR " + msg + format(keysAndValues))
}

func format(kv []interface{}) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(kv); i += 2 {
		if i+1 < len(kv) {
			fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
		} else {
			fmt.Fprintf(&b, " %v=?", kv[i])
		}
	}
	return b.String()
}

type nop struct{}

// Nop discards everything
func Nop() Logger { return nop{} }

func (nop) Info(string, ...interface{})  {}
func (nop) Warn(string, ...interface{})  {}
func (nop) Error(string, ...interface{}) {}
