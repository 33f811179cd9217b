// Package logging builds the zap logger shared by every component.
//
// Console output uses the human-readable encoder; when a log file is
// configured, JSON entries are also written through a size-rotated file. The
// logger is installed globally with zap.ReplaceGlobals so components log via
// zap.L().
package logging

import (
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type writeSyncer struct {
	io.Writer
}

func (ws writeSyncer) Sync() error { return nil }

// fileSyncer wraps a lumberjack rotated log file as a zapcore.WriteSyncer.
func fileSyncer(path string) zapcore.WriteSyncer {
	return writeSyncer{&lumberjack.Logger{
		Filename:   path,
		MaxSize:    20, // MB
		MaxBackups: 5,
		MaxAge:     28, // days
		LocalTime:  true,
	}}
}

// Setup constructs the process logger. level is a zap level name; file may be
// empty to disable the rotated JSON file core.
func Setup(level, file string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleCfg),
		zapcore.Lock(os.Stderr),
		lvl,
	)

	core := consoleCore
	if file != "" {
		jsonCfg := zap.NewProductionEncoderConfig()
		jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(jsonCfg),
			fileSyncer(file),
			lvl,
		)
		core = zapcore.NewTee(consoleCore, fileCore)
	}

	logger := zap.New(core, zap.AddCaller())
	zap.ReplaceGlobals(logger)
	return logger, nil
}
