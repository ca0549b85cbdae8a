// Package logging provides the leveled, named, zap-backed logger used
// throughout the visualization server: one Logger per component, each able
// to spawn named sub-loggers, with level control adjustable at runtime via
// a --debug flag or a later SetLevel call.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a logging severity, ordered the same way as zapcore.Level.
type Level int32

const (
	DEBUG Level = iota - 1
	INFO
	WARN
	ERROR
)

// AsZap converts to the equivalent zapcore.Level.
func (l Level) AsZap() zapcore.Level {
	return zapcore.Level(l)
}

// Logger is the logging interface every component in this server takes a
// dependency on, rather than a concrete zap type, so that tests can swap in
// an observed logger and adapters can each carry their own named sublogger.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a new Logger named "parent.subname", sharing level
	// and output with its parent.
	Sublogger(subname string) Logger

	SetLevel(level Level)
	GetLevel() Level
}

type impl struct {
	name string
	sc   *sharedConfig
}

// sharedConfig is the mutable state every sublogger of the same root shares:
// one AtomicLevel and one underlying zap core, so raising the level on a
// root logger raises it for every sublogger spawned from it.
type sharedConfig struct {
	level *zap.AtomicLevel
	core  *zap.SugaredLogger
}

func newZapConfig(level zapcore.Level) zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

func newFromZapLevel(name string, level zapcore.Level) Logger {
	cfg := newZapConfig(level)
	atom := cfg.Level
	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Building the console encoder from a literal, known-good config
		// cannot fail in practice; fall back to zap's own default rather
		// than panicking if it ever does.
		fmt.Fprintln(os.Stderr, "logging: falling back to zap default:", err)
		zl = zap.NewExample()
	}
	return &impl{name: name, sc: &sharedConfig{level: &atom, core: zl.Sugar()}}
}

// NewLogger returns a root logger at INFO level.
func NewLogger(name string) Logger {
	return newFromZapLevel(name, zapcore.InfoLevel)
}

// NewDebugLogger returns a root logger at DEBUG level.
func NewDebugLogger(name string) Logger {
	return newFromZapLevel(name, zapcore.DebugLevel)
}

func (imp *impl) Sublogger(subname string) Logger {
	name := subname
	if imp.name != "" {
		name = imp.name + "." + subname
	}
	return &impl{name: name, sc: imp.sc}
}

func (imp *impl) SetLevel(level Level) {
	imp.sc.level.SetLevel(level.AsZap())
}

func (imp *impl) GetLevel() Level {
	return Level(imp.sc.level.Level())
}

func (imp *impl) named() *zap.SugaredLogger {
	return imp.sc.core.Named(imp.name)
}

func (imp *impl) Debug(args ...interface{})            { imp.named().Debug(args...) }
func (imp *impl) Debugf(t string, args ...interface{}) { imp.named().Debugf(t, args...) }
func (imp *impl) Debugw(m string, kv ...interface{})   { imp.named().Debugw(m, kv...) }
func (imp *impl) Info(args ...interface{})             { imp.named().Info(args...) }
func (imp *impl) Infof(t string, args ...interface{})  { imp.named().Infof(t, args...) }
func (imp *impl) Infow(m string, kv ...interface{})    { imp.named().Infow(m, kv...) }
func (imp *impl) Warn(args ...interface{})             { imp.named().Warn(args...) }
func (imp *impl) Warnf(t string, args ...interface{})  { imp.named().Warnf(t, args...) }
func (imp *impl) Warnw(m string, kv ...interface{})    { imp.named().Warnw(m, kv...) }
func (imp *impl) Error(args ...interface{})            { imp.named().Error(args...) }
func (imp *impl) Errorf(t string, args ...interface{}) { imp.named().Errorf(t, args...) }
func (imp *impl) Errorw(m string, kv ...interface{})   { imp.named().Errorw(m, kv...) }
