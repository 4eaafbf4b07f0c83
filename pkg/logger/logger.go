package logger

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
	WithField(key string, value interface{}) Logger
}

type NullLogger struct{}

func (NullLogger) Debug(msg string) {}
func (NullLogger) Info(msg string)  {}
func (NullLogger) Warn(msg string)  {}
func (NullLogger) Error(msg string) {}
func (NullLogger) Fatal(msg string) {}
func (NullLogger) WithField(key string, value interface{}) Logger {
	return NullLogger{}
}

func NewNullLogger() Logger {
	return NullLogger{}
}

// ZerologAdapter exposes a zerolog.Logger through the Logger interface.
type ZerologAdapter struct {
	log zerolog.Logger
}

func NewZerologAdapter(log zerolog.Logger) Logger {
	return &ZerologAdapter{log: log}
}

func (z *ZerologAdapter) Debug(msg string) { z.log.Debug().Msg(msg) }
func (z *ZerologAdapter) Info(msg string)  { z.log.Info().Msg(msg) }
func (z *ZerologAdapter) Warn(msg string)  { z.log.Warn().Msg(msg) }
func (z *ZerologAdapter) Error(msg string) { z.log.Error().Msg(msg) }
func (z *ZerologAdapter) Fatal(msg string) { z.log.Fatal().Msg(msg) }

func (z *ZerologAdapter) WithField(key string, value interface{}) Logger {
	return &ZerologAdapter{log: z.log.With().Interface(key, value).Logger()}
}

// NewFileLogger creates a zerolog logger writing JSON lines to the given file.
func NewFileLogger(path string) (*zerolog.Logger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, err
	}
	log := zerolog.New(logFile).With().Timestamp().Logger()
	return &log, nil
}
