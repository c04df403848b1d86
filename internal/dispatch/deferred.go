package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// Deferred is a LocalDispatcher for processes that exit before anything
// could fire. It accepts every call and arms nothing.
type Deferred struct{}

func (Deferred) Schedule(ctx context.Context, key model.Key, fireAt time.Time, _ model.LocalPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.Debug(config.MsgLocalDeferred,
		config.LogKeyComponent, config.CompDispatch,
		config.LogKeyKey, key.String(),
		config.LogKeyFireAt, fireAt.Format(config.DateFormatDisplay),
	)
	return nil
}

func (Deferred) Cancel(ctx context.Context, _ model.Key) error {
	return ctx.Err()
}
