package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSleeper struct {
	calls []time.Duration
	err   error
}

func (f *fakeSleeper) sleep(_ context.Context, d time.Duration) error {
	f.calls = append(f.calls, d)
	return f.err
}

type fakeRecorder struct {
	items []string
	runs  int
}

func (f *fakeRecorder) RecordDispatchItem(_ context.Context, _, mode, status string) {
	f.items = append(f.items, mode+":"+status)
}

func (f *fakeRecorder) RecordDispatchRun(_ context.Context, _, _ string, _, _ int, _ time.Duration) {
	f.runs++
}

func identity(s string) string { return s }

func TestRun_DryRunNeverCallsAction(t *testing.T) {
	sleeper := &fakeSleeper{}
	calls := 0

	outcome := Run(context.Background(), []string{"a", "b", "c"}, Options[string]{
		Workflow: "test",
		Delay:    time.Second,
		ID:       identity,
		Sleep:    sleeper.sleep,
	}, func(context.Context, string) error {
		calls++
		return nil
	})

	assert.Equal(t, 0, calls)
	assert.Empty(t, sleeper.calls, "dry run must not pause")
	assert.True(t, outcome.DryRun)
	assert.Equal(t, 3, outcome.Attempted)
	assert.Equal(t, 3, outcome.Succeeded)
	assert.Equal(t, 0, outcome.Failed)
	for _, r := range outcome.Results {
		assert.Equal(t, StatusDryRun, r.Status)
	}
}

func TestRun_DryRunPreviewFailuresAreCounted(t *testing.T) {
	var previewed []string
	actionCalls := 0
	var events []Event

	outcome := Run(context.Background(), []string{"a", "bad", "c"}, Options[string]{
		Workflow: "test",
		ID:       identity,
		Preview: func(_ context.Context, item string) error {
			previewed = append(previewed, item)
			if item == "bad" {
				return errors.New("cannot build")
			}
			return nil
		},
		OnItem: func(e Event) { events = append(events, e) },
	}, func(context.Context, string) error {
		actionCalls++
		return nil
	})

	assert.Equal(t, 0, actionCalls)
	assert.Equal(t, []string{"a", "bad", "c"}, previewed)
	assert.Equal(t, 3, outcome.Attempted)
	assert.Equal(t, 2, outcome.Succeeded)
	assert.Equal(t, 1, outcome.Failed)
	assert.Equal(t, ExitPartialFailure, outcome.ExitCode())
	require.Len(t, outcome.Results, 3)
	assert.Equal(t, StatusDryRun, outcome.Results[0].Status)
	assert.Equal(t, StatusError, outcome.Results[1].Status)
	assert.Equal(t, "cannot build", outcome.Results[1].Error)
	require.Len(t, events, 3)
	assert.True(t, events[1].DryRun)
	assert.EqualError(t, events[1].Err, "cannot build")
}

func TestRun_CommitCallsActionOncePerItemInOrder(t *testing.T) {
	var seen []string

	outcome := Run(context.Background(), []string{"a", "b", "c"}, Options[string]{
		Commit: true,
		ID:     identity,
	}, func(_ context.Context, item string) error {
		seen = append(seen, item)
		return nil
	})

	assert.Equal(t, []string{"a", "b", "c"}, seen)
	assert.False(t, outcome.DryRun)
	assert.Equal(t, 3, outcome.Attempted)
	assert.Equal(t, 3, outcome.Succeeded)
	assert.Equal(t, ExitOK, outcome.ExitCode())
}

func TestRun_FailureDoesNotAbort(t *testing.T) {
	items := []string{"r1", "r2", "r3", "r4", "r5"}
	var seen []string

	outcome := Run(context.Background(), items, Options[string]{
		Commit: true,
		ID:     identity,
	}, func(_ context.Context, item string) error {
		seen = append(seen, item)
		if item == "r3" {
			return errors.New("quota exceeded")
		}
		return nil
	})

	assert.Equal(t, items, seen)
	assert.Equal(t, 5, outcome.Attempted)
	assert.Equal(t, 4, outcome.Succeeded)
	assert.Equal(t, 1, outcome.Failed)
	assert.Equal(t, ExitPartialFailure, outcome.ExitCode())

	failed := outcome.FailedResults()
	require.Len(t, failed, 1)
	assert.Equal(t, "r3", failed[0].ID)
	assert.Equal(t, "quota exceeded", failed[0].Error)
	assert.InDelta(t, 80.0, outcome.SuccessRate(), 0.001)
}

func TestRun_EmptyBatch(t *testing.T) {
	for _, commit := range []bool{false, true} {
		outcome := Run(context.Background(), nil, Options[string]{Commit: commit}, func(context.Context, string) error {
			t.Fatal("action must not be called")
			return nil
		})

		assert.Equal(t, 0, outcome.Attempted)
		assert.Equal(t, 0, outcome.Succeeded)
		assert.Equal(t, 0, outcome.Failed)
		assert.Equal(t, 100.0, outcome.SuccessRate())
	}
}

func TestRun_DelayBetweenCommitCallsOnly(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		want  int
	}{
		{"single item has no delay", []string{"a"}, 0},
		{"no delay after last item", []string{"a", "b", "c"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sleeper := &fakeSleeper{}
			Run(context.Background(), tt.items, Options[string]{
				Commit: true,
				Delay:  1500 * time.Millisecond,
				Sleep:  sleeper.sleep,
			}, func(context.Context, string) error { return nil })

			require.Len(t, sleeper.calls, tt.want)
			for _, d := range sleeper.calls {
				assert.Equal(t, 1500*time.Millisecond, d)
			}
		})
	}
}

func TestRun_DelayAppliesAfterFailures(t *testing.T) {
	sleeper := &fakeSleeper{}
	Run(context.Background(), []string{"a", "b"}, Options[string]{
		Commit: true,
		Delay:  time.Second,
		Sleep:  sleeper.sleep,
	}, func(context.Context, string) error { return errors.New("boom") })

	assert.Len(t, sleeper.calls, 1)
}

func TestRun_ZeroDelayNeverSleeps(t *testing.T) {
	sleeper := &fakeSleeper{}
	Run(context.Background(), []string{"a", "b"}, Options[string]{
		Commit: true,
		Sleep:  sleeper.sleep,
	}, func(context.Context, string) error { return nil })

	assert.Empty(t, sleeper.calls)
}

func TestRun_CancelledContextStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	outcome := Run(ctx, []string{"a", "b", "c"}, Options[string]{Commit: true}, func(context.Context, string) error {
		calls++
		cancel()
		return nil
	})

	assert.Equal(t, 1, calls)
	assert.True(t, outcome.Interrupted)
	assert.Equal(t, 1, outcome.Attempted)
	assert.Equal(t, outcome.Attempted, outcome.Succeeded+outcome.Failed)
}

func TestRun_InterruptedSleep(t *testing.T) {
	sleeper := &fakeSleeper{err: context.Canceled}

	outcome := Run(context.Background(), []string{"a", "b"}, Options[string]{
		Commit: true,
		Delay:  time.Second,
		Sleep:  sleeper.sleep,
	}, func(context.Context, string) error { return nil })

	assert.True(t, outcome.Interrupted)
	assert.Equal(t, 1, outcome.Attempted)
}

func TestRun_EventsAndMetrics(t *testing.T) {
	recorder := &fakeRecorder{}
	var events []Event

	Run(context.Background(), []string{"ok", "bad"}, Options[string]{
		Workflow: "send",
		Commit:   true,
		ID:       identity,
		Metrics:  recorder,
		OnItem:   func(e Event) { events = append(events, e) },
	}, func(_ context.Context, item string) error {
		if item == "bad" {
			return errors.New("rejected")
		}
		return nil
	})

	require.Len(t, events, 2)
	assert.Equal(t, Event{Index: 1, Total: 2, ID: "ok"}, events[0])
	assert.Equal(t, 2, events[1].Index)
	assert.EqualError(t, events[1].Err, "rejected")

	assert.Equal(t, []string{"commit:success", "commit:error"}, recorder.items)
	assert.Equal(t, 1, recorder.runs)
}

func TestRun_DefaultIDs(t *testing.T) {
	outcome := Run(context.Background(), []int{7, 8}, Options[int]{}, func(context.Context, int) error { return nil })

	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "#1", outcome.Results[0].ID)
	assert.Equal(t, "#2", outcome.Results[1].ID)
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestOutcomeJSON(t *testing.T) {
	o := &Outcome{}
	o.record(Result{ID: "a", Status: StatusSuccess})
	o.record(Result{ID: "b", Status: StatusError, Error: "nope"})

	assert.Contains(t, o.JSON(), `"attempted": 2`)
	assert.Contains(t, o.JSON(), `"error": "nope"`)
}
