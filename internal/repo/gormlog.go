package repo

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQueryThreshold is the duration above which a statement is logged as
// slow.
const slowQueryThreshold = 200 * time.Millisecond

// gormLogger sends GORM's statement log through the zerolog logger found in
// the query context (zerolog.Ctx), so database events carry the same
// request or job fields as everything else.
//
// Behavior:
//   - gorm.ErrRecordNotFound is never logged. Empty claim polls and
//     idempotency lookups hit it on every cycle and it is an expected
//     outcome, returned to the caller as ErrNotFound.
//   - Other statement errors are logged at error level with the SQL.
//   - Statements slower than slowThreshold are logged at warn level.
//   - At logger.Info every statement is logged at debug level.
type gormLogger struct {
	level         logger.LogLevel
	slowThreshold time.Duration
}

var _ logger.Interface = gormLogger{}

func newGormLogger(level logger.LogLevel, slow time.Duration) gormLogger {
	return gormLogger{level: level, slowThreshold: slow}
}

func (l gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	l.level = level
	return l
}

func (l gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		zerolog.Ctx(ctx).Info().Str("component", "gorm").Msgf(msg, data...)
	}
}

func (l gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		zerolog.Ctx(ctx).Warn().Str("component", "gorm").Msgf(msg, data...)
	}
}

func (l gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		zerolog.Ctx(ctx).Error().Str("component", "gorm").Msgf(msg, data...)
	}
}

func (l gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		zerolog.Ctx(ctx).Error().Err(err).
			Str("component", "gorm").
			Dur("elapsed", elapsed).
			Int64("rows", rows).
			Str("sql", sql).
			Msg("query failed")
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= logger.Warn:
		sql, rows := fc()
		zerolog.Ctx(ctx).Warn().
			Str("component", "gorm").
			Dur("elapsed", elapsed).
			Dur("threshold", l.slowThreshold).
			Int64("rows", rows).
			Str("sql", sql).
			Msg("slow query")
	case l.level >= logger.Info:
		sql, rows := fc()
		zerolog.Ctx(ctx).Debug().
			Str("component", "gorm").
			Dur("elapsed", elapsed).
			Int64("rows", rows).
			Str("sql", sql).
			Msg("query")
	}
}
