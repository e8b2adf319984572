package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// InitLog 之前也能打印，测试里不需要额外初始化
var logger = log.New(os.Stdout)

func InitLog(appName string, logLevel string) {
	// 使用 os.Stdout 而不是 os.Stderr，控制台不会把所有日志显示为红色
	logger = log.New(os.Stdout)
	logger.SetPrefix(appName)
	logger.SetReportTimestamp(true)
	logger.SetTimeFormat(time.DateTime)

	// 显示文件名和行号
	logger.SetReportCaller(true)
	SetLevel(logLevel)
}

// SetLevel 调整日志级别，配置热更新时调用
func SetLevel(logLevel string) {
	if logLevel == "" {
		logLevel = "info"
	}

	switch strings.ToLower(logLevel) {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
}

// SetOutput 重定向输出，测试中用 io.Discard 静音
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func Fatal(format string, args ...any) {
	if len(args) == 0 {
		logger.Fatal(format)
	} else {
		logger.Fatalf(format, args...)
	}
}

func Info(format string, args ...any) {
	if len(args) == 0 {
		logger.Info(format)
	} else {
		logger.Infof(format, args...)
	}
}

func Warn(format string, args ...any) {
	if len(args) == 0 {
		logger.Warn(format)
	} else {
		logger.Warnf(format, args...)
	}
}

func Error(format string, args ...any) {
	if len(args) == 0 {
		logger.Error(format)
	} else {
		logger.Errorf(format, args...)
	}
}

func Debug(format string, args ...any) {
	if len(args) == 0 {
		logger.Debug(format)
	} else {
		logger.Debugf(format, args...)
	}
}
