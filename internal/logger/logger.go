// Package logger provides leveled structured logging for the analytics daemon.
package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Logger provides leveled logging. When json is true, each line is written
// as a self-contained JSON object instead of through logger's own
// timestamp/flag formatting, since the two are mutually exclusive ways of
// rendering the same record.
type Logger struct {
	level  Level
	logger *log.Logger
	json   bool
	out    *os.File
}

var defaultLogger *Logger

// Init initializes the default logger with the specified level and format.
// format "json" emits one JSON object per line ({"time","level","msg"}) to
// stderr. Any other value (e.g. "text") uses the plain log.Logger writer
// and additionally adds the caller file:line.
func Init(level string, format string) {
	var l Level
	switch strings.ToLower(level) {
	case "debug":
		l = DebugLevel
	case "info":
		l = InfoLevel
	case "warn":
		l = WarnLevel
	case "error":
		l = ErrorLevel
	default:
		l = InfoLevel
	}

	isJSON := strings.ToLower(format) == "json"

	flags := log.LstdFlags | log.Lmicroseconds
	if !isJSON {
		flags |= log.Lshortfile
	}

	defaultLogger = &Logger{
		level:  l,
		logger: log.New(os.Stderr, "", flags),
		json:   isJSON,
		out:    os.Stderr,
	}
}

func ensure() {
	if defaultLogger == nil {
		Init("info", "json")
	}
}

type jsonRecord struct {
	Time  string `json:"time"`
	Level string `json:"level"`
	Msg   string `json:"msg"`
}

func (l *Logger) log(depth int, level, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.json {
		rec := jsonRecord{Time: time.Now().UTC().Format(time.RFC3339Nano), Level: level, Msg: msg}
		data, err := json.Marshal(rec)
		if err != nil {
			_ = l.logger.Output(depth+1, msg)
			return
		}
		fmt.Fprintln(l.out, string(data))
		return
	}
	_ = l.logger.Output(depth+1, "["+level+"] "+msg)
}

func Debug(format string, args ...interface{}) {
	ensure()
	if defaultLogger.level <= DebugLevel {
		defaultLogger.log(2, "DEBUG", format, args...)
	}
}

func Info(format string, args ...interface{}) {
	ensure()
	if defaultLogger.level <= InfoLevel {
		defaultLogger.log(2, "INFO", format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	ensure()
	if defaultLogger.level <= WarnLevel {
		defaultLogger.log(2, "WARN", format, args...)
	}
}

func Error(format string, args ...interface{}) {
	ensure()
	if defaultLogger.level <= ErrorLevel {
		defaultLogger.log(2, "ERROR", format, args...)
	}
}

func Fatal(format string, args ...interface{}) {
	ensure()
	defaultLogger.log(2, "FATAL", format, args...)
	os.Exit(1)
}
