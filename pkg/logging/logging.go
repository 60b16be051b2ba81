// Package logging configures structured logging for the stego proxy.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where log lines go and how verbose they are.
type Options struct {
	Level      string // DEBUG, INFO, WARNING or ERROR
	Stdout     bool
	Filename   string // empty disables file rotation
	MaxSizeMB  int
	MaxAge     int
	MaxBackups int
}

func toZapLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING", "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a *zap.SugaredLogger per opt. There is no package-level
// logger: callers construct one at startup and thread it through the
// listener and handlers.
func New(opt Options) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	var cores []zapcore.Core
	level := toZapLevel(opt.Level)

	if opt.Stdout || opt.Filename == "" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level))
	}

	if opt.Filename != "" {
		rotator := &lumberjack.Logger{
			Filename:   opt.Filename,
			MaxSize:    defaultInt(opt.MaxSizeMB, 10),
			MaxAge:     defaultInt(opt.MaxAge, 28),
			MaxBackups: defaultInt(opt.MaxBackups, 5),
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), level))
	}

	core := zapcore.NewTee(cores...)
	return zap.New(core).Sugar()
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Nop returns a logger that discards everything, for use in tests.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
