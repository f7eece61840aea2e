package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SessionLogWriter is the per-session .jsonl file behind a session logger.
// While the file is open an .active marker sits next to it.
type SessionLogWriter struct {
	mu        sync.Mutex
	file      *os.File
	logDir    string
	sessionID string
}

// NewSessionLogWriter creates the log directory, the session log file and
// its .active marker.
func NewSessionLogWriter(logDir, sessionID string) (*SessionLogWriter, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("storage logger: mkdir %q: %w", logDir, err)
	}
	filePath := filepath.Join(logDir, sessionID+".jsonl")
	f, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("storage logger: create %q: %w", filePath, err)
	}
	if af, err := os.Create(filepath.Join(logDir, sessionID+".active")); err == nil {
		af.Close()
	}
	return &SessionLogWriter{file: f, logDir: logDir, sessionID: sessionID}, nil
}

func (w *SessionLogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return len(p), nil
	}
	return w.file.Write(p)
}

func (w *SessionLogWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

// Close closes the log file and removes the .active marker.
func (w *SessionLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var err error
	if w.file != nil {
		err = w.file.Close()
		w.file = nil
	}
	_ = os.Remove(filepath.Join(w.logDir, w.sessionID+".active"))
	return err
}

// NewSessionLogger returns a logger that writes to base and, as JSON lines,
// to writer. The first line records the session and room.
func NewSessionLogger(base *Logger, writer *SessionLogWriter, roomName string) *Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(writer), zapcore.DebugLevel)

	zl := base.Zap().WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, fileCore)
	}))
	logger := &Logger{base: zl, attrs: make(map[string]interface{}, len(base.attrs))}
	for k, v := range base.attrs {
		logger.attrs[k] = v
	}
	logger.Info("session log opened",
		"session_id", writer.sessionID,
		"room_name", roomName,
		"started_at", time.Now().UTC().Format(time.RFC3339),
	)
	return logger
}
