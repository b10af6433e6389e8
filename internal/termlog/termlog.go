// Package termlog provides structured, per-session event logging for the
// terminal core. It replaces the teacher's hand-rolled JSONL marshalling
// (src/logging/logger.go) with a logrus-backed logger so that the rest of
// the ambient stack (PTY lifecycle, decoder/OSC errors, renderer resize
// events) goes through the same structured-logging path.
package termlog

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// EventKind mirrors the teacher's logging.EventType: the category of a
// per-session event.
type EventKind string

const (
	EventInput  EventKind = "input"
	EventOutput EventKind = "output"
	EventStart  EventKind = "start"
	EventEnd    EventKind = "end"
)

// Logger writes structured per-session logs. Each session gets its own
// logrus.Logger writing JSON lines to
// baseDir/YYYY/MM/<YYYYMMDD-HHMMSS>-<session>.jsonl, the same directory
// layout the teacher's logger used.
type Logger struct {
	baseDir string
	mu      sync.Mutex
	loggers map[string]*sessionLogger
}

type sessionLogger struct {
	log  *logrus.Logger
	file *os.File
}

// New creates a Logger rooted at baseDir.
func New(baseDir string) *Logger {
	return &Logger{baseDir: baseDir, loggers: make(map[string]*sessionLogger)}
}

func (l *Logger) sessionEntry(session string) (*sessionLogger, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if sl, ok := l.loggers[session]; ok {
		return sl, nil
	}

	now := time.Now()
	dir := filepath.Join(l.baseDir, now.Format("2006"), now.Format("01"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	filename := now.Format("20060102-150405") + "-" + sanitize(session) + ".jsonl"
	f, err := os.OpenFile(filepath.Join(dir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	log.SetOutput(f)
	log.SetLevel(logrus.DebugLevel)

	sl := &sessionLogger{log: log, file: f}
	l.loggers[session] = sl
	return sl, nil
}

// Event logs one terminal event for session.
func (l *Logger) Event(session string, kind EventKind, data string) error {
	sl, err := l.sessionEntry(session)
	if err != nil {
		return err
	}
	entry := sl.log.WithFields(logrus.Fields{
		"session": session,
		"type":    string(kind),
	})
	if data != "" {
		entry = entry.WithField("data", data)
	}
	entry.Info("terminal event")
	return nil
}

// Warn logs a non-fatal runtime condition (decoder error, malformed OSC,
// swapchain skip) for session, per spec §7's runtime error policy.
func (l *Logger) Warn(session, component, message string) error {
	sl, err := l.sessionEntry(session)
	if err != nil {
		return err
	}
	sl.log.WithFields(logrus.Fields{
		"session":   session,
		"component": component,
	}).Warn(message)
	return nil
}

// CloseSession closes and forgets the log file for session.
func (l *Logger) CloseSession(session string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl, ok := l.loggers[session]
	if !ok {
		return nil
	}
	delete(l.loggers, session)
	return sl.file.Close()
}

// Close closes all open session log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var lastErr error
	for name, sl := range l.loggers {
		if err := sl.file.Close(); err != nil {
			lastErr = err
		}
		delete(l.loggers, name)
	}
	return lastErr
}

func sanitize(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			out = append(out, c)
		case c == ' ':
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "session"
	}
	return string(out)
}
