package pion

import (
	"github.com/pion/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// loggerFactory routes pion's scoped loggers into zerolog.
type loggerFactory struct{}

func (lf loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return logger{zl: log.With().Str("component", "pion").Str("scope", scope).Logger()}
}

type logger struct {
	zl zerolog.Logger
}

func (l logger) Trace(msg string)                          { l.zl.Trace().Msg(msg) }
func (l logger) Tracef(format string, args ...interface{}) { l.zl.Trace().Msgf(format, args...) }
func (l logger) Debug(msg string)                          { l.zl.Debug().Msg(msg) }
func (l logger) Debugf(format string, args ...interface{}) { l.zl.Debug().Msgf(format, args...) }
func (l logger) Info(msg string)                           { l.zl.Info().Msg(msg) }
func (l logger) Infof(format string, args ...interface{})  { l.zl.Info().Msgf(format, args...) }
func (l logger) Warn(msg string)                           { l.zl.Warn().Msg(msg) }
func (l logger) Warnf(format string, args ...interface{})  { l.zl.Warn().Msgf(format, args...) }
func (l logger) Error(msg string)                          { l.zl.Error().Msg(msg) }
func (l logger) Errorf(format string, args ...interface{}) { l.zl.Error().Msgf(format, args...) }
