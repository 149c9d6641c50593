package log

import (
	"fmt"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.Mutex
	logger   = stdlog.New(os.Stderr, "", 0)
	minLevel = LevelInfo
)

// SetLevel sets the minimum emitted level.
func SetLevel(l Level) {
	mu.Lock()
	minLevel = l
	mu.Unlock()
}

// ParseLevel maps a config string to a level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) { emit(LevelDebug, msg, kv...) }

func Info(msg string, kv ...any) { emit(LevelInfo, msg, kv...) }

func Warn(msg string, kv ...any) { emit(LevelWarn, msg, kv...) }

// Error logs msg with err prepended to the key-value pairs.
func Error(msg string, err error, kv ...any) {
	emit(LevelError, msg, append([]any{"err", err}, kv...)...)
}

func rank(l Level) int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// emit writes one line:
//
//	2026-01-14T10:00:00-05:00 [INFO] msg key=value ...
func emit(level Level, msg string, kv ...any) {
	mu.Lock()
	min := minLevel
	mu.Unlock()
	if rank(level) < rank(min) {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format(time.RFC3339))
	b.WriteString(" [")
	b.WriteString(string(level))
	b.WriteString("] ")
	b.WriteString(msg)

	// kv is expected as alternating key, value pairs; a trailing odd
	// element is ignored and non-string keys are skipped.
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(fmt.Sprint(kv[i+1]))
	}

	logger.Println(b.String())
}
