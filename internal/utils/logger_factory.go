package utils

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel names a supported logging verbosity.
type LogLevel string

// LogFormat names a supported logging output format.
type LogFormat string

const (
	// LogLevelDebug enables debug, info, warn, and error events.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo enables info, warn, and error events.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn enables warn and error events.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError enables error events only.
	LogLevelError LogLevel = "error"

	// LogFormatStructured emits machine-readable JSON diagnostics.
	LogFormatStructured LogFormat = "structured"
	// LogFormatConsole emits human-readable diagnostics and console events.
	LogFormatConsole LogFormat = "console"
)

const (
	unsupportedLogLevelTemplateConstant  = "unsupported log level %q"
	unsupportedLogFormatTemplateConstant = "unsupported log format %q"
	logTimestampKeyConstant              = "timestamp"
)

// LoggerOutputs bundles the loggers produced for a configuration.
//
// DiagnosticLogger carries structured diagnostics honoring the requested log
// level. ConsoleLogger carries user-facing events and is a no-op unless the
// console format is selected.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	ConsoleLogger    *zap.Logger
}

// LoggerFactory builds zap loggers for the supported levels and formats.
type LoggerFactory struct{}

// NewLoggerFactory constructs a LoggerFactory instance.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLoggerOutputs builds diagnostic and console loggers writing to the
// process standard error stream.
func (factory *LoggerFactory) CreateLoggerOutputs(logLevel LogLevel, logFormat LogFormat) (LoggerOutputs, error) {
	zapLevel, levelError := resolveZapLevel(logLevel)
	if levelError != nil {
		return LoggerOutputs{}, levelError
	}

	stderrSyncer := zapcore.Lock(os.Stderr)

	switch logFormat {
	case LogFormatStructured:
		encoderConfiguration := zap.NewProductionEncoderConfig()
		encoderConfiguration.TimeKey = logTimestampKeyConstant
		encoderConfiguration.EncodeTime = zapcore.ISO8601TimeEncoder
		diagnosticCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfiguration), stderrSyncer, zapLevel)
		return LoggerOutputs{
			DiagnosticLogger: zap.New(diagnosticCore),
			ConsoleLogger:    zap.NewNop(),
		}, nil
	case LogFormatConsole:
		diagnosticEncoderConfiguration := zap.NewDevelopmentEncoderConfig()
		diagnosticCore := zapcore.NewCore(zapcore.NewConsoleEncoder(diagnosticEncoderConfiguration), stderrSyncer, zapLevel)

		consoleEncoderConfiguration := zap.NewDevelopmentEncoderConfig()
		consoleEncoderConfiguration.TimeKey = zapcore.OmitKey
		consoleEncoderConfiguration.LevelKey = zapcore.OmitKey
		consoleEncoderConfiguration.CallerKey = zapcore.OmitKey
		consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncoderConfiguration), stderrSyncer, zapcore.InfoLevel)

		return LoggerOutputs{
			DiagnosticLogger: zap.New(diagnosticCore),
			ConsoleLogger:    zap.New(consoleCore),
		}, nil
	default:
		return LoggerOutputs{}, fmt.Errorf(unsupportedLogFormatTemplateConstant, string(logFormat))
	}
}

func resolveZapLevel(logLevel LogLevel) (zapcore.Level, error) {
	switch logLevel {
	case LogLevelDebug:
		return zapcore.DebugLevel, nil
	case LogLevelInfo:
		return zapcore.InfoLevel, nil
	case LogLevelWarn:
		return zapcore.WarnLevel, nil
	case LogLevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InvalidLevel, fmt.Errorf(unsupportedLogLevelTemplateConstant, string(logLevel))
	}
}
