package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/mailsweep/internal/instrumentation"
	"github.com/teemow/mailsweep/internal/logging"
)

// DefaultDelay is the pause between consecutive sends in commit mode.
const DefaultDelay = time.Second

// Action performs the externally visible effect for one item.
type Action[T any] func(ctx context.Context, item T) error

// Event describes the processing of a single item. It is passed to
// Options.OnItem after the item has been handled.
type Event struct {
	Index  int // 1-based position in the batch
	Total  int
	ID     string
	DryRun bool
	Err    error
}

// Recorder receives per-item and per-run metrics.
type Recorder interface {
	RecordDispatchItem(ctx context.Context, workflow, mode, status string)
	RecordDispatchRun(ctx context.Context, workflow, mode string, attempted, failed int, duration time.Duration)
}

// Options configures a dispatch run.
type Options[T any] struct {
	// Workflow names the run in logs and metrics (e.g. "contacts", "send").
	Workflow string

	// Commit switches from preview to actually invoking the action.
	Commit bool

	// Delay is inserted between consecutive actions in commit mode. Zero disables it.
	Delay time.Duration

	// ID extracts the identifier recorded in Result.ID.
	ID func(T) string

	// Preview runs for each item in dry-run mode instead of the action. It
	// should do everything short of the external effect; an error counts the
	// item as failed. May be nil.
	Preview Action[T]

	// OnItem is called after each item; may be nil.
	OnItem func(Event)

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics may be nil.
	Metrics Recorder

	// Sleep waits for d or until ctx is done. Defaults to a timer based sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run processes items in order and returns the final counters.
//
// The run stops early only when ctx is cancelled; items not reached are
// neither attempted nor counted, and the outcome is marked Interrupted.
func Run[T any](ctx context.Context, items []T, opts Options[T], action Action[T]) *Outcome {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithOperation(logger, "dispatch."+opts.Workflow)

	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	mode := ModeDryRun
	if opts.Commit {
		mode = ModeCommit
	}

	ctx, span := instrumentation.StartSpan(ctx, "dispatch."+opts.Workflow,
		attribute.String("dispatch.mode", mode),
		attribute.Int("dispatch.items", len(items)),
	)
	defer span.End()

	start := time.Now()
	outcome := &Outcome{
		DryRun:  !opts.Commit,
		Results: make([]Result, 0, len(items)),
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			outcome.Interrupted = true
			break
		}

		id := fmt.Sprintf("#%d", i+1)
		if opts.ID != nil {
			id = opts.ID(item)
		}

		var actionErr error
		result := Result{ID: id}
		switch {
		case !opts.Commit && opts.Preview != nil:
			actionErr = opts.Preview(ctx, item)
		case opts.Commit:
			actionErr = action(ctx, item)
		}
		switch {
		case actionErr != nil:
			result.Status = StatusError
			result.Error = actionErr.Error()
			logger.Warn("item failed", slog.String("id", id), slog.String("mode", mode), logging.Err(actionErr))
		case !opts.Commit:
			result.Status = StatusDryRun
			logger.Debug("would process item", slog.String("id", id))
		default:
			result.Status = StatusSuccess
			logger.Debug("item processed", slog.String("id", id))
		}
		outcome.record(result)

		if opts.Metrics != nil {
			opts.Metrics.RecordDispatchItem(ctx, opts.Workflow, mode, result.Status)
		}
		if opts.OnItem != nil {
			opts.OnItem(Event{Index: i + 1, Total: len(items), ID: id, DryRun: !opts.Commit, Err: actionErr})
		}

		if opts.Commit && opts.Delay > 0 && i < len(items)-1 {
			if err := sleep(ctx, opts.Delay); err != nil {
				outcome.Interrupted = true
				break
			}
		}
	}

	duration := time.Since(start)
	if opts.Metrics != nil {
		opts.Metrics.RecordDispatchRun(ctx, opts.Workflow, mode, outcome.Attempted, outcome.Failed, duration)
	}

	span.SetAttributes(
		attribute.Int("dispatch.attempted", outcome.Attempted),
		attribute.Int("dispatch.failed", outcome.Failed),
	)
	if outcome.Failed > 0 {
		instrumentation.SetSpanError(span, fmt.Errorf("%d of %d items failed", outcome.Failed, outcome.Attempted))
	} else {
		instrumentation.SetSpanSuccess(span)
	}

	logger.Info("dispatch finished",
		slog.String("mode", mode),
		slog.Int("attempted", outcome.Attempted),
		slog.Int("succeeded", outcome.Succeeded),
		slog.Int("failed", outcome.Failed),
		slog.Bool("interrupted", outcome.Interrupted),
		slog.Duration(logging.KeyDuration, duration),
	)

	return outcome
}

// Run modes used in logs and metrics.
const (
	ModeDryRun = "dry_run"
	ModeCommit = "commit"
)

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
