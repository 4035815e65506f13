// Package logger builds the service's zap logger: a console or JSON stream
// on stdout, optionally teed into a rotating JSON file.
package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/sifan077/utmlink/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "utmlink"

// Config drives how the logger is built. A non-empty File adds a rotating
// JSON sink next to stdout.
type Config struct {
	Development bool
	Level       string
	Encoding    string

	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// FromConfig maps the log section of the service config.
func FromConfig(cfg config.LogConfig, development bool) Config {
	return Config{
		Development: development,
		Level:       cfg.Level,
		Encoding:    cfg.Encoding,
		File:        cfg.File,
		MaxSizeMB:   cfg.MaxSizeMB,
		MaxBackups:  cfg.MaxBackups,
		MaxAgeDays:  cfg.MaxAgeDays,
	}
}

var (
	mu      sync.Mutex
	current *zap.Logger
)

// Init builds a logger from cfg and makes it the one Sync flushes. The
// previous logger is flushed first.
func Init(cfg Config) (*zap.Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	prev := current
	current = l
	mu.Unlock()

	if prev != nil {
		_ = prev.Sync()
	}
	zap.ReplaceGlobals(l)
	return l, nil
}

// MustInit is Init for startup code; it panics on a bad config.
func MustInit(cfg Config) *zap.Logger {
	l, err := Init(cfg)
	if err != nil {
		panic(err)
	}
	return l
}

// Sync flushes the logger installed by Init. Errors from syncing a terminal
// are not failures.
func Sync() error {
	mu.Lock()
	l := current
	mu.Unlock()
	if l == nil {
		return nil
	}

	err := l.Sync()
	if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) || errors.Is(err, os.ErrInvalid) {
		return nil
	}
	return err
}

// New builds a logger without installing it.
func New(cfg Config) (*zap.Logger, error) {
	level, err := parseLevel(cfg)
	if err != nil {
		return nil, err
	}

	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "json"
		if cfg.Development {
			encoding = "console"
		}
	}

	var enc zapcore.Encoder
	switch encoding {
	case "console":
		enc = zapcore.NewConsoleEncoder(consoleEncoderConfig(stdoutIsTerminal()))
	case "json":
		enc = zapcore.NewJSONEncoder(jsonEncoderConfig())
	default:
		return nil, fmt.Errorf("logger: unknown encoding %q", encoding)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level)
	if cfg.File != "" {
		core = zapcore.NewTee(core, fileCore(cfg, level))
	}

	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	}
	if cfg.Development {
		opts = append(opts, zap.Development())
	} else {
		opts = append(opts, zap.Fields(zap.String("service", serviceName)))
	}
	return zap.New(core, opts...), nil
}

func parseLevel(cfg Config) (zap.AtomicLevel, error) {
	if cfg.Level == "" {
		if cfg.Development {
			return zap.NewAtomicLevelAt(zapcore.DebugLevel), nil
		}
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	}
	level, err := zap.ParseAtomicLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("logger: invalid level %q: %w", cfg.Level, err)
	}
	return level, nil
}

func fileCore(cfg Config, level zapcore.LevelEnabler) zapcore.Core {
	sink := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	return zapcore.NewCore(zapcore.NewJSONEncoder(jsonEncoderConfig()), zapcore.AddSync(sink), level)
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.StacktraceKey = "stack"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	return cfg
}

// consoleEncoderConfig renders "time | LEVEL | logger | caller | msg".
func consoleEncoderConfig(color bool) zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.ConsoleSeparator = " | "
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cfg.EncodeDuration = zapcore.StringDurationEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg
}

func stdoutIsTerminal() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
