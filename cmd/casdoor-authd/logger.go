package main

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a console logger writing to w at the given level.
func newLogger(level string, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(zapcore.Lock(zapcore.AddSync(w))),
		lvl,
	)

	return zap.New(core, zap.AddCaller()), nil
}

// infoPrefixes mark library messages logged at info; everything else is
// debug. Only the transport layer reports denials at info, once per request.
var infoPrefixes = []string{
	"httpserver: denied ",
	"grpcserver: denied ",
}

// printfLogger adapts zap to the Printf logger the library packages accept.
type printfLogger struct {
	sugar *zap.SugaredLogger
}

func newPrintfLogger(logger *zap.Logger) *printfLogger {
	return &printfLogger{sugar: logger.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *printfLogger) Printf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	for _, prefix := range infoPrefixes {
		if strings.HasPrefix(msg, prefix) {
			l.sugar.Info(msg)
			return
		}
	}
	l.sugar.Debug(msg)
}
