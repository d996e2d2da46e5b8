package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	appctx "github.com/gatherhq/registration-service/internal/pkg/context"
)

var Logger zerolog.Logger

func Init() {
	InitWithWriter(os.Stdout)
}

func InitWithWriter(w io.Writer) {
	level, err := zerolog.ParseLevel(env("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var base zerolog.Logger
	switch env("LOG_FORMAT", "console") {
	case "json":
		base = zerolog.New(w)
	default:
		cw := zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: env("LOG_TIME_FORMAT", time.RFC3339),
			NoColor:    env("LOG_COLOR", "") == "0",
		}
		base = zerolog.New(cw)
	}

	l := base.With().Timestamp().Logger().Level(level)
	if env("LOG_CALLER", "") == "1" {
		l = l.With().Caller().Logger()
	}

	Logger = l
	zlog.Logger = Logger
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// WithCtx returns the global logger enriched with the trace id, if any.
func WithCtx(ctx context.Context) *zerolog.Logger {
	l := Logger
	if tid := appctx.GetTraceID(ctx); tid != "" {
		l = l.With().Str("trace_id", tid).Logger()
	}
	return &l
}
