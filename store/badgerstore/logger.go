package badgerstore

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// badgerLogger routes BadgerDB's printf-style logs into slog.
type badgerLogger struct {
	log *slog.Logger
}

var _ badger.Logger = badgerLogger{}

func newBadgerLogger(l *slog.Logger) badgerLogger {
	return badgerLogger{log: l.With("component", "badger")}
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Info(sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(sprintf(format, args...))
}

func sprintf(format string, args ...any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
