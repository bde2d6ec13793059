package log

import (
	"io"
	"os"
	"strings"

	ipfslog "github.com/ipfs/go-log/v2"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger defines the logging interface used across rollnode.
type Logger interface {
	// Info takes a message and a set of key/value pairs and logs with level INFO.
	// The key of the tuple must be a string.
	Info(msg string, keyVals ...any)

	// Warn takes a message and a set of key/value pairs and logs with level WARN.
	// The key of the tuple must be a string.
	Warn(msg string, keyVals ...any)

	// Error takes a message and a set of key/value pairs and logs with level ERR.
	// The key of the tuple must be a string.
	Error(msg string, keyVals ...any)

	// Debug takes a message and a set of key/value pairs and logs with level DEBUG.
	// The key of the tuple must be a string.
	Debug(msg string, keyVals ...any)

	// With returns a new wrapped logger with additional context provided by a set.
	With(keyVals ...any) Logger

	// Impl returns the underlying logger implementation.
	// Advanced users can type cast the returned value to *ipfslog.ZapEventLogger.
	Impl() any
}

// zapLogger wraps ipfs/go-log ZapEventLogger to implement our Logger interface
type zapLogger struct {
	logger *ipfslog.ZapEventLogger
}

// Option defines configuration options for the logger
type Option func(*Config)

// Config holds logger configuration
type Config struct {
	Level      zapcore.Level
	EnableJSON bool
	Trace      bool
	// File redirects SetupLogging output from stderr to a file.
	File string
}

// NewLogger creates a new logger that writes to the given destination.
// A nil destination or os.Stderr routes through the process-wide ipfs/go-log
// subsystem "rollnode", configured by SetupLogging.
func NewLogger(dst io.Writer, options ...Option) Logger {
	config := &Config{Level: zapcore.InfoLevel}
	for _, opt := range options {
		opt(config)
	}

	if dst == nil || dst == os.Stderr {
		logger := ipfslog.Logger("rollnode")
		_ = ipfslog.SetLogLevel("rollnode", config.Level.String())
		return &zapLogger{logger: logger}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if config.EnableJSON {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	zapOpts := []zap.Option{}
	if config.Trace {
		zapOpts = append(zapOpts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(dst), config.Level)
	sugared := zap.New(core, zapOpts...).Sugar()
	return &zapLogger{logger: &ipfslog.ZapEventLogger{SugaredLogger: *sugared}}
}

// SetupLogging configures the process-wide ipfs/go-log backend and returns
// the logger for the named subsystem.
func SetupLogging(subsystem string, options ...Option) Logger {
	config := &Config{Level: zapcore.InfoLevel}
	for _, opt := range options {
		opt(config)
	}

	logCfg := ipfslog.Config{
		Stderr: true,
		Level:  ipfslog.LogLevel(config.Level),
		Format: ipfslog.PlaintextOutput,
	}
	if config.EnableJSON {
		logCfg.Format = ipfslog.JSONOutput
	}
	if config.File != "" {
		logCfg.Stderr = false
		logCfg.File = config.File
	}
	ipfslog.SetupLogging(logCfg)

	logger := ipfslog.Logger(subsystem)
	if !config.Trace {
		return &zapLogger{logger: logger}
	}
	sugared := logger.Desugar().WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)).Sugar()
	return &zapLogger{logger: &ipfslog.ZapEventLogger{SugaredLogger: *sugared}}
}

// NewNopLogger creates a no-op logger.
func NewNopLogger() Logger {
	sugared := zap.New(zapcore.NewNopCore()).Sugar()
	return &zapLogger{logger: &ipfslog.ZapEventLogger{SugaredLogger: *sugared}}
}

// NewTestLogger creates a logger that writes through t.Log at debug level.
func NewTestLogger(t TestingT) Logger {
	return NewLogger(&testWriter{t: t}, LevelOption(zerolog.DebugLevel))
}

type testWriter struct {
	t TestingT
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func (z *zapLogger) Info(msg string, keyVals ...any) {
	z.logger.Infow(msg, keyVals...)
}

func (z *zapLogger) Warn(msg string, keyVals ...any) {
	z.logger.Warnw(msg, keyVals...)
}

func (z *zapLogger) Error(msg string, keyVals ...any) {
	z.logger.Errorw(msg, keyVals...)
}

func (z *zapLogger) Debug(msg string, keyVals ...any) {
	z.logger.Debugw(msg, keyVals...)
}

func (z *zapLogger) With(keyVals ...any) Logger {
	sugared := z.logger.With(keyVals...)
	return &zapLogger{logger: &ipfslog.ZapEventLogger{SugaredLogger: *sugared}}
}

func (z *zapLogger) Impl() any {
	return z.logger
}

// OutputJSONOption enables JSON output format
func OutputJSONOption() Option {
	return func(c *Config) {
		c.EnableJSON = true
	}
}

// LevelOption sets the log level
func LevelOption(level zerolog.Level) Option {
	return func(c *Config) {
		switch level {
		case zerolog.DebugLevel, zerolog.TraceLevel:
			c.Level = zapcore.DebugLevel
		case zerolog.WarnLevel:
			c.Level = zapcore.WarnLevel
		case zerolog.ErrorLevel:
			c.Level = zapcore.ErrorLevel
		default:
			c.Level = zapcore.InfoLevel
		}
	}
}

// ParseLevelOption parses a textual level (debug, info, warn, error) into an
// Option. Unknown levels fall back to info.
func ParseLevelOption(level string) Option {
	zl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		zl = zerolog.InfoLevel
	}
	return LevelOption(zl)
}

// FileOption writes process-wide logs to path instead of stderr.
func FileOption(path string) Option {
	return func(c *Config) {
		c.File = path
	}
}

// TraceOption enables or disables stack traces on error logs
func TraceOption(enabled bool) Option {
	return func(c *Config) {
		c.Trace = enabled
	}
}

// TestingT is an interface for testing.T
type TestingT interface {
	Log(args ...any)
	Logf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
}
