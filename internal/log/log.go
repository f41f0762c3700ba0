// Copyright (c) 2024 Netskope, Inc. All rights reserved.

package log

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogName is used when no log name is configured.
const DefaultLogName = "s1export"

// NewLogger returns a logger using the Zap structured logger.
// If stdout is false, the log goes to <logDir>/<logName>.log. Otherwise it is
// written to stdout.
func NewLogger(logDir, logName string, debug, stdout bool) (*zap.Logger, error) {
	cfg := encoderConfig(debug)

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	var sink zapcore.WriteSyncer
	if stdout {
		sink = zapcore.AddSync(os.Stdout)
	} else {
		path, err := LogPath(logDir, logName)
		if err != nil {
			return nil, err
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		sink = zapcore.AddSync(file)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), sink, level)
	if debug {
		return zap.New(core, zap.AddCaller()), nil
	}
	return zap.New(core), nil
}

// LogPath resolves and prepares the log file location.
func LogPath(logDir, logName string) (string, error) {
	if logDir == "" {
		logDir = "/tmp"
	}
	if logName == "" {
		logName = DefaultLogName
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return filepath.Join(logDir, logName+".log"), nil
}

// ForJob tags every entry with the job id and report name.
func ForJob(logger *zap.Logger, jobID, report string) *zap.Logger {
	return logger.With(zap.String("job_id", jobID), zap.String("report", report))
}

func encoderConfig(debug bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.EpochTimeEncoder
	cfg.LevelKey = "lv"
	cfg.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(l.CapitalString()[:2])
	}
	if debug {
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
		cfg.CallerKey = "call"
	}
	return cfg
}
