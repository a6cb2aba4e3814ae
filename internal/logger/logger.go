// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger is a thin, five-level wrapper around log/slog. It exists
// so every package in this module logs through one place that can be
// pointed at stderr or a rotated file, and rendered as text or JSON,
// without threading a *slog.Logger through every constructor.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/blockfs-labs/blockfs/cfg"
)

// Severity names accepted in cfg.LoggingConfig.Severity.
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

// Custom levels. slog only defines Debug/Info/Warn/Error; TRACE sits
// below Debug for finer-grained output, and OFF sits above Error to
// silence everything.
const (
	LevelTrace slog.Level = slog.LevelDebug - 4
	LevelDebug            = slog.LevelDebug
	LevelInfo             = slog.LevelInfo
	LevelWarn             = slog.LevelWarn
	LevelError            = slog.LevelError
	LevelOff   slog.Level = math.MaxInt32
)

const defaultAsyncBufferSize = 1 << 12

// loggerFactory holds everything needed to (re)build defaultLogger: where
// it writes, at what severity, and in which wire format.
type loggerFactory struct {
	file            io.WriteCloser
	sysWriter       io.Writer
	format          string
	level           string
	logRotateConfig cfg.LogRotateConfig
}

var (
	defaultLevelVar      = new(slog.LevelVar)
	defaultLoggerFactory = &loggerFactory{
		format:          "json",
		level:           INFO,
		sysWriter:       os.Stderr,
		logRotateConfig: cfg.DefaultLogRotateConfig(),
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, defaultLevelVar, ""))
)

// Init (re)configures the default logger from a cfg.LoggingConfig. Called
// once by blockfsctl after loading its configuration, before a
// subcommand runs.
func Init(c cfg.LoggingConfig) error {
	factory := &loggerFactory{
		format:          c.Format,
		level:           c.Severity,
		logRotateConfig: c.LogRotate,
	}
	if factory.format == "" {
		factory.format = "json"
	}

	var w io.Writer
	if c.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   string(c.FilePath),
			MaxSize:    c.LogRotate.MaxFileSizeMB,
			MaxBackups: c.LogRotate.BackupFileCount,
			Compress:   c.LogRotate.Compress,
		}
		factory.file = lj
		w = NewAsyncLogger(lj, defaultAsyncBufferSize)
	} else {
		factory.sysWriter = os.Stderr
		w = os.Stderr
	}

	levelVar := new(slog.LevelVar)
	setLoggingLevel(c.Severity, levelVar)

	defaultLevelVar = levelVar
	defaultLoggerFactory = factory
	defaultLogger = slog.New(factory.createJsonOrTextHandler(w, levelVar, ""))
	return nil
}

// SetLogFormat switches the wire format ("text" or "json") of the default
// logger in place, keeping its level. The rebuilt logger writes to the
// factory's sysWriter (os.Stderr when unset); a file sink set up by Init
// is not kept.
func SetLogFormat(format string) {
	if format == "" {
		format = "json"
	}
	defaultLoggerFactory.format = format

	w := defaultLoggerFactory.sysWriter
	if w == nil {
		w = os.Stderr
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, defaultLevelVar, ""))
}

func setLoggingLevel(level string, levelVar *slog.LevelVar) {
	switch level {
	case TRACE:
		levelVar.Set(LevelTrace)
	case DEBUG:
		levelVar.Set(LevelDebug)
	case INFO:
		levelVar.Set(LevelInfo)
	case WARNING:
		levelVar.Set(LevelWarn)
	case ERROR:
		levelVar.Set(LevelError)
	case OFF:
		levelVar.Set(LevelOff)
	default:
		levelVar.Set(LevelInfo)
	}
}

// createJsonOrTextHandler builds a slog.Handler over w at the given level,
// rendering "level"/"msg" as "severity"/"message" and, for the time,
// keeping "time" in text format but renaming it to "timestamp" nested as
// {"seconds":...,"nanos":...} in JSON, and prefixing every message with
// prefix.
func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, levelVar *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.MessageKey:
				return slog.String("message", prefix+a.Value.String())
			case slog.LevelKey:
				lvl, _ := a.Value.Any().(slog.Level)
				return slog.String("severity", severityName(lvl))
			case slog.TimeKey:
				t := a.Value.Time()
				if f.format == "text" {
					return slog.String("time", t.Format("2006/01/02 15:04:05.000000"))
				}
				return slog.Attr{
					Key: "timestamp",
					Value: slog.GroupValue(
						slog.Int64("seconds", t.Unix()),
						slog.Int64("nanos", int64(t.Nanosecond())),
					),
				}
			}
			return a
		},
	}

	if f.format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func severityName(l slog.Level) string {
	switch {
	case l < LevelDebug:
		return TRACE
	case l < LevelInfo:
		return DEBUG
	case l < LevelWarn:
		return INFO
	case l < LevelError:
		return WARNING
	default:
		return ERROR
	}
}

func logAt(level slog.Level, format string, v ...interface{}) {
	defaultLogger.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func Tracef(format string, v ...interface{}) { logAt(LevelTrace, format, v...) }
func Debugf(format string, v ...interface{}) { logAt(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { logAt(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { logAt(LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { logAt(LevelError, format, v...) }
