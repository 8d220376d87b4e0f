// Package obslog owns the process-wide zap logger.
package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() { global.Store(zap.NewNop()) }

// L returns the global logger. It is a no-op logger until InitFromEnv or Set runs.
func L() *zap.Logger { return global.Load() }

// Set replaces the global logger; tests use it to capture output.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	global.Store(l)
}

func Sync() { _ = L().Sync() }

type options struct {
	level      zapcore.Level
	console    bool
	toFile     bool
	filePath   string
	showCaller bool
	format     string
}

func optionsFromEnv() options {
	o := options{
		level:      parseLevel(getenvDefault("LOG_LEVEL", "info")),
		console:    strings.EqualFold(getenvDefault("LOG_TO_CONSOLE", "true"), "true"),
		toFile:     strings.EqualFold(getenvDefault("LOG_TO_FILE", "false"), "true"),
		filePath:   strings.TrimSpace(getenvDefault("LOG_FILE", filepath.Join("logs", "server.log"))),
		showCaller: strings.EqualFold(getenvDefault("LOG_CALLER", "false"), "true"),
		format:     strings.ToLower(strings.TrimSpace(getenvDefault("LOG_FORMAT", "json"))),
	}
	switch o.format {
	case "legacy", "json", "console":
	default:
		o.format = "json"
	}
	if o.format == "legacy" {
		o.showCaller = true
	}
	return o
}

// InitFromEnv builds the global logger from LOG_* variables.
func InitFromEnv() error {
	l, err := build(optionsFromEnv())
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

func build(o options) (*zap.Logger, error) {
	var cores []zapcore.Core
	if o.console {
		cores = append(cores, zapcore.NewCore(encoder(o.format), zapcore.AddSync(os.Stdout), o.level))
	}
	if o.toFile {
		if err := ensureDir(filepath.Dir(o.filePath)); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(o.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder(o.format), zapcore.AddSync(f), o.level))
	}
	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), o.level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.ErrorLevel))
	if o.showCaller {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger.With(zap.String("service", "frostfury")), nil
}

func encoder(format string) zapcore.Encoder {
	switch format {
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig())
	case "legacy":
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	default:
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
