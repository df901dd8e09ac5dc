package logger

import (
	"io"
	"log"
	"os"
)

// Logger 日志接口
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
	Warn(format string, args ...interface{})
}

// DefaultLogger 默认日志实现：状态信息写标准输出，诊断信息写标准错误
type DefaultLogger struct {
	out     *log.Logger
	err     *log.Logger
	verbose bool
}

// New 创建日志实现，verbose 为 true 时输出 Debug 日志
func New(stdout, stderr io.Writer, verbose bool) *DefaultLogger {
	return &DefaultLogger{
		out:     log.New(stdout, "", log.LstdFlags),
		err:     log.New(stderr, "", log.LstdFlags),
		verbose: verbose,
	}
}

// NewDefault 使用进程标准流创建日志实现
func NewDefault(verbose bool) *DefaultLogger {
	return New(os.Stdout, os.Stderr, verbose)
}

func (dl *DefaultLogger) Info(format string, args ...interface{}) {
	dl.out.Printf("[INFO] "+format, args...)
}

func (dl *DefaultLogger) Error(format string, args ...interface{}) {
	dl.err.Printf("[ERROR] "+format, args...)
}

func (dl *DefaultLogger) Debug(format string, args ...interface{}) {
	if !dl.verbose {
		return
	}
	dl.out.Printf("[DEBUG] "+format, args...)
}

func (dl *DefaultLogger) Warn(format string, args ...interface{}) {
	dl.err.Printf("[WARN] "+format, args...)
}

// Discard 丢弃所有日志，用于测试
var Discard Logger = New(io.Discard, io.Discard, false)
