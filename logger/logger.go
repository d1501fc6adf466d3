package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level defines the log level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

var (
	currentLevel = InfoLevel
	mu           sync.RWMutex
	logger       = log.New(os.Stderr, "", log.LstdFlags)
)

// ParseLevel 将配置中的级别字符串转换为 Level，未知值按 info 处理
func ParseLevel(levelStr string) Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// SetLevel sets the global log level
func SetLevel(levelStr string) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = ParseLevel(levelStr)
}

// SetOutput sets the output destination for the logger
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// Debugf logs a formatted message at DebugLevel
func Debugf(format string, v ...interface{}) {
	if shouldLog(DebugLevel) {
		output("DEBUG", fmt.Sprintf(format, v...))
	}
}

// Info logs a message at InfoLevel
func Info(v ...interface{}) {
	if shouldLog(InfoLevel) {
		output("INFO", fmt.Sprint(v...))
	}
}

// Infof logs a formatted message at InfoLevel
func Infof(format string, v ...interface{}) {
	if shouldLog(InfoLevel) {
		output("INFO", fmt.Sprintf(format, v...))
	}
}

// Warn logs a message at WarnLevel
func Warn(v ...interface{}) {
	if shouldLog(WarnLevel) {
		output("WARN", fmt.Sprint(v...))
	}
}

// Warnf logs a formatted message at WarnLevel
func Warnf(format string, v ...interface{}) {
	if shouldLog(WarnLevel) {
		output("WARN", fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted message at ErrorLevel
func Errorf(format string, v ...interface{}) {
	if shouldLog(ErrorLevel) {
		output("ERROR", fmt.Sprintf(format, v...))
	}
}

// Fatalf logs a formatted message at FatalLevel and exits
func Fatalf(format string, v ...interface{}) {
	output("FATAL", fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Event 输出一条拦截事件日志
// warning/error 类事件按对应级别输出，其余按 info 输出，并带上事件类别
func Event(category, msg string) {
	level, tag := InfoLevel, "INFO"
	switch category {
	case "warning":
		level, tag = WarnLevel, "WARN"
	case "error":
		level, tag = ErrorLevel, "ERROR"
	}
	if shouldLog(level) {
		output(tag, fmt.Sprintf("[%s] %s", category, msg))
	}
}

func shouldLog(level Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return level >= currentLevel
}

func output(levelStr, msg string) {
	// Use standard log package to handle timestamp and concurrency
	logger.Output(3, fmt.Sprintf("[%s] %s", levelStr, msg))
}
