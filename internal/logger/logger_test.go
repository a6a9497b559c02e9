package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLoggerFormatsCategoryAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	l.LogVote("SUBMIT", "ticket#4", "vote recorded for club 1")
	l.LogIntegrity("RECONCILE", "club 2 counts differ")

	out := buf.String()
	assert.Contains(t, out, "INFO  [VOTE      ] [SUBMIT] ticket#4 - vote recorded for club 1")
	assert.Contains(t, out, "ERROR [INTEGRITY ] [RECONCILE] club 2 counts differ")
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	l := NewNopLogger()
	l.Info("APP", "hello")
	l.Close()
}

func TestFileLoggerMirrorsJSON(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "nested", "voting.log")
	l, err := newFileLogger(&console, path, false)
	require.NoError(t, err)

	l.LogSecurity("LOGIN_FAILED", "bad password for alice")
	l.Close()
	l.Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NotEmpty(t, lines)

	var rec record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "WARN", rec.Level)
	assert.Equal(t, "SECURITY", rec.Category)
	assert.Equal(t, "[LOGIN_FAILED] bad password for alice", rec.Message)
	assert.Contains(t, rec.Source, "logger_test.go:")
	assert.Contains(t, console.String(), "WARN  [SECURITY  ] [LOGIN_FAILED] bad password for alice")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "FATAL", LevelFatal.String())
	assert.Equal(t, "INFO", Level(42).String())
}
