package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionLoggerTeesToFile(t *testing.T) {
	dir := t.TempDir()
	base, logs := newObservedLogger()

	writer, err := NewSessionLogWriter(dir, "job-1")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "job-1.active"))

	logger := NewSessionLogger(base, writer, "practice-room")
	logger.With(map[string]interface{}{"speaker": "user"}).Info("utterance recorded", "words", 3)
	require.NoError(t, writer.Close())

	assert.NoFileExists(t, filepath.Join(dir, "job-1.active"))
	assert.Equal(t, 2, logs.Len())

	data, err := os.ReadFile(filepath.Join(dir, "job-1.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"room_name":"practice-room"`)
	assert.Contains(t, lines[1], `"msg":"utterance recorded"`)
	assert.Contains(t, lines[1], `"speaker":"user"`)
}
