// Package logging builds the structured logging sink used throughout
// the agent. It generalizes the teacher's (cppla-moto/utils/log.go)
// zap-over-lumberjack pipeline into a Logger interface the engine
// depends on, so the engine never imports zap directly.
package logging

import (
	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a re-export of zap.Field so callers of Logger don't need to
// import zap themselves.
type Field = zap.Field

// Logger is the capability set the engine depends on through an
// interface rather than a concrete type.
type Logger interface {
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
}

// Config controls the on-disk rotation and verbosity of the default
// Logger, mirroring the teacher's config/setting.go log section.
type Config struct {
	Level      string // debug|info|warn|error|dpanic|panic|fatal
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var levelMap = map[string]zapcore.Level{
	"debug":  zapcore.DebugLevel,
	"info":   zapcore.InfoLevel,
	"warn":   zapcore.WarnLevel,
	"error":  zapcore.ErrorLevel,
	"dpanic": zapcore.DPanicLevel,
	"panic":  zapcore.PanicLevel,
	"fatal":  zapcore.FatalLevel,
}

// ZapLogger adapts *zap.Logger to the Logger interface.
type ZapLogger struct {
	z *zap.Logger
}

// New builds a ZapLogger writing JSON through a lumberjack-rotated
// file sink, exactly the pipeline shape of the teacher's init().
func New(cfg Config) (*ZapLogger, error) {
	level, ok := levelMap[cfg.Level]
	if !ok {
		level = zapcore.InfoLevel
	}
	enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= level
	})

	hook := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    orDefault(cfg.MaxSizeMB, 1024),
		MaxBackups: orDefault(cfg.MaxBackups, 5),
		MaxAge:     orDefault(cfg.MaxAgeDays, 30),
		Compress:   cfg.Compress,
	}
	sink := zapcore.AddSync(hook)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, enabler),
	)

	return &ZapLogger{z: zap.New(core, zap.AddCaller())}, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func (l *ZapLogger) Info(msg string, fields ...Field)  { l.z.Info(msg, fields...) }
func (l *ZapLogger) Warn(msg string, fields ...Field)  { l.z.Warn(msg, fields...) }
func (l *ZapLogger) Debug(msg string, fields ...Field) { l.z.Debug(msg, fields...) }

// Sync flushes the underlying zap core; callers should defer this at
// process exit, matching the teacher's `defer utils.Logger.Sync()`.
func (l *ZapLogger) Sync() error { return l.z.Sync() }

// Nop is a Logger that discards everything, used by tests that don't
// care about log output.
type Nop struct{}

func (Nop) Info(string, ...Field)  {}
func (Nop) Warn(string, ...Field)  {}
func (Nop) Debug(string, ...Field) {}

var _ Logger = (*ZapLogger)(nil)
var _ Logger = Nop{}

// Convenience field constructors re-exported so callers don't import zap.
var (
	String = zap.String
	Uint32 = zap.Uint32
	Uint16 = zap.Uint16
	Int    = zap.Int
	Err    = zap.Error
	Bool   = zap.Bool
)
