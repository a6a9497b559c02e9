package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level orders log severities.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (lv Level) String() string {
	if lv < LevelDebug || lv > LevelFatal {
		return "INFO"
	}
	return levelNames[lv]
}

const (
	logDir     = "logs"
	timeLayout = "2006-01-02T15:04:05.000Z"
)

// record is one JSON line in the log file.
type record struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Source    string `json:"source,omitempty"`
}

type palette struct{ level, category *color.Color }

var (
	palettes = map[Level]palette{
		LevelDebug: {color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)},
		LevelInfo:  {color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)},
		LevelWarn:  {color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)},
		LevelError: {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
		LevelFatal: {color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
	}
	clockColor  = color.New(color.FgBlue)
	sourceColor = color.New(color.FgMagenta)
)

// Logger prints category-tagged lines to a console writer and, when a file
// is attached, mirrors each line as JSON.
type Logger struct {
	mu      sync.Mutex
	console io.Writer
	file    *os.File
	colored bool
}

// NewLogger logs in colour to stdout and to logs/voting-service-<date>.log.
func NewLogger() *Logger {
	path := filepath.Join(logDir, fmt.Sprintf("voting-service-%s.log", time.Now().Format("2006-01-02")))
	l, err := newFileLogger(os.Stdout, path, true)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	l.Info("LOGGER", "JSON log file: "+path)
	return l
}

func newFileLogger(console io.Writer, path string, colored bool) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &Logger{console: console, file: file, colored: colored}, nil
}

// NewWriterLogger writes plain terminal lines to w and keeps no log file.
func NewWriterLogger(w io.Writer) *Logger {
	return &Logger{console: w}
}

// NewNopLogger discards everything.
func NewNopLogger() *Logger {
	return &Logger{console: io.Discard}
}

// write is called through exactly one exported method, so the source
// reported is that method's caller.
func (l *Logger) write(level Level, category, message string) {
	rec := record{
		Timestamp: time.Now().UTC().Format(timeLayout),
		Level:     level.String(),
		Category:  strings.ToUpper(category),
		Message:   message,
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		rec.Source = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	io.WriteString(l.console, l.consoleLine(level, rec))
	if l.file != nil {
		if b, err := json.Marshal(rec); err == nil {
			l.file.Write(append(b, '\n'))
		}
	}
}

func (l *Logger) consoleLine(level Level, rec record) string {
	clock := rec.Timestamp[11:19]
	lvl := fmt.Sprintf("%-5s", rec.Level)
	cat := fmt.Sprintf("[%-10s]", rec.Category)

	if !l.colored {
		return fmt.Sprintf("%s %s %s %s\n", clock, lvl, cat, rec.Message)
	}

	p := palettes[level]
	var b strings.Builder
	b.WriteString(clockColor.Sprint(clock))
	b.WriteByte(' ')
	b.WriteString(p.level.Sprint(lvl))
	b.WriteByte(' ')
	b.WriteString(p.category.Sprint(cat))
	b.WriteByte(' ')
	b.WriteString(rec.Message)
	if rec.Source != "" {
		b.WriteString(sourceColor.Sprintf(" (%s)", rec.Source))
	}
	b.WriteByte('\n')
	return b.String()
}

func (l *Logger) Debug(category, message string) { l.write(LevelDebug, category, message) }
func (l *Logger) Info(category, message string)  { l.write(LevelInfo, category, message) }
func (l *Logger) Warn(category, message string)  { l.write(LevelWarn, category, message) }
func (l *Logger) Error(category, message string) { l.write(LevelError, category, message) }

func (l *Logger) Fatal(category, message string) {
	l.write(LevelFatal, category, message)
	os.Exit(1)
}

// tagged renders "[action] subject - message".
func tagged(action, subject, message string) string {
	return fmt.Sprintf("[%s] %s - %s", action, subject, message)
}

func (l *Logger) LogVote(action, ticketRef, message string) {
	l.write(LevelInfo, "VOTE", tagged(action, ticketRef, message))
}

func (l *Logger) LogAdmin(action, actor, message string) {
	l.write(LevelInfo, "ADMIN", tagged(action, actor, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.write(LevelInfo, "API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.write(LevelInfo, "KAFKA", tagged(action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.write(LevelInfo, "DATABASE", tagged(operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.write(LevelWarn, "SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

// LogIntegrity is the operator channel for invariant breaches.
func (l *Logger) LogIntegrity(event, message string) {
	l.write(LevelError, "INTEGRITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l.file == nil {
		return
	}
	l.Info("LOGGER", "Closing log file")
	l.mu.Lock()
	defer l.mu.Unlock()
	l.file.Close()
	l.file = nil
}
