package service

import (
	"context"
	"log/slog"
	"time"

	"rsvpdash/internal/util"
)

// Notifier receives user-facing success and failure notices. Calls must not
// block and their outcome is never checked.
type Notifier interface {
	Success(ctx context.Context, msg string)
	Failure(ctx context.Context, msg string, err error)
}

// LogNotifier writes notices to the default slog logger.
type LogNotifier struct{}

func (LogNotifier) Success(ctx context.Context, msg string) {
	slog.InfoContext(ctx, "notice", "kind", "success", "msg", msg)
}

func (LogNotifier) Failure(ctx context.Context, msg string, err error) {
	slog.WarnContext(ctx, "notice", "kind", "failure", "msg", msg, "err", err)
}

type nopNotifier struct{}

func (nopNotifier) Success(context.Context, string)        {}
func (nopNotifier) Failure(context.Context, string, error) {}

func notifierOr(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}

func nowOr(now func() time.Time) time.Time {
	if now == nil {
		return util.NowUTC()
	}
	return now()
}

// notifyErr forwards err to n as a failure notice and returns it unchanged.
func notifyErr(ctx context.Context, n Notifier, msg string, err error) error {
	if err != nil {
		notifierOr(n).Failure(ctx, msg, err)
	}
	return err
}
