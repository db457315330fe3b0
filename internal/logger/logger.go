package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// global is the shared logger instance used throughout the daemon.
	//nolint:gochecknoglobals // Logger is used all over the project, so it's okay.
	global *zap.SugaredLogger
	// defaultLevel is the minimum console log level.
	//nolint:gochecknoglobals // If the logging level is not set, the daemon will have no logs.
	defaultLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// logFilePermissions is applied when the log file is created.
const logFilePermissions = 0o640

func init() { //nolint:gochecknoinits // If the logging level is not set, the daemon will have no logs.
	SetLogger(New(defaultLevel, zapcore.AddSync(os.Stdout)))
}

// newEncoder returns the console encoder shared by every sink.
//
//nolint:ireturn // zapcore.Encoder is the type zap expects.
func newEncoder(colored bool) zapcore.Encoder {
	encodeLevel := zapcore.CapitalLevelEncoder
	if colored {
		encodeLevel = zapcore.CapitalColorLevelEncoder
	}

	//nolint:exhaustruct // Default encoder configuration values are fine.
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "message",
		LevelKey:         "level",
		NameKey:          "logger",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      encodeLevel,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " | ",
	})
}

// New creates a console logger writing to sink.
// If level is nil the shared atomic level is used.
func New(level zapcore.LevelEnabler, sink zapcore.WriteSyncer, options ...zap.Option) *zap.SugaredLogger {
	if level == nil {
		level = defaultLevel
	}

	core := zapcore.NewCore(newEncoder(true), sink, level)

	return zap.New(core, options...).Sugar()
}

// Setup configures the global logger from daemon settings.
// Console output follows levelName; when filePath is set, every message down to
// debug is also appended to that file. The returned function flushes and closes the file.
func Setup(levelName, filePath string) (func(), error) {
	if levelName != "" {
		level, ok := ParseLogLevel(levelName)
		if !ok {
			return nil, fmt.Errorf("unknown log level %q", levelName)
		}

		defaultLevel.SetLevel(level)
	}

	if filePath == "" {
		SetLogger(New(defaultLevel, zapcore.AddSync(os.Stdout)))

		return func() { _ = global.Sync() }, nil
	}

	file, err := os.OpenFile(filepath.Clean(filePath), os.O_CREATE|os.O_APPEND|os.O_WRONLY, logFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileCore := zapcore.NewCore(newEncoder(false), zapcore.AddSync(file), zapcore.DebugLevel)
	SetLogger(New(defaultLevel, zapcore.AddSync(os.Stdout), WithSink(fileCore)))

	return func() {
		_ = global.Sync()
		_ = file.Close()
	}, nil
}

// ParseLogLevel converts string input to zap log level.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	case "dpanic":
		return zapcore.DPanicLevel, true
	case "panic":
		return zapcore.PanicLevel, true
	case "fatal":
		return zapcore.FatalLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}

// Level returns the current console logging level.
func Level() zapcore.Level {
	return defaultLevel.Level()
}

// Logger returns the global logger.
func Logger() *zap.SugaredLogger {
	return global
}

// SetLogger sets the global logger.
// This function is not thread-safe.
func SetLogger(l *zap.SugaredLogger) {
	global = l
}

// SetLevel sets the console log level for the global logger.
func SetLevel(level zapcore.Level) {
	//nolint: errcheck // No need to check the error here.
	defer global.Sync()

	defaultLevel.SetLevel(level)
}
