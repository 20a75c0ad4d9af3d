package store

import (
	"context"
	"log/slog"

	"github.com/vango-dev/compose/pkg/compose"
)

// LogPlugin logs every store event with the state before and after it.
// Failed actions log at Error level.
func LogPlugin(logger *slog.Logger) Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	return func(s *Store) {
		compose.Subscribe[Event](s.Events(), compose.Next(func(ev Event) compose.Cleanup {
			level := slog.LevelInfo
			if ev.Kind == KindError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("store", s.Path()),
				slog.String("event", ev.Action+"."+ev.Kind.String()),
				slog.Time("at", ev.Time),
				slog.Any("previous", map[string]any(ev.Previous)),
				slog.Any("payload", ev.Payload),
				slog.Any("next", map[string]any(ev.Current)),
			}
			if ev.Err != nil {
				attrs = append(attrs, slog.Any("error", ev.Err))
			}
			logger.LogAttrs(context.Background(), level, "store event", attrs...)
			return nil
		}), compose.WithName("store-log"))
	}
}
