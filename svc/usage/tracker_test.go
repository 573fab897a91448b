package usage_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cenety/saascore/pkg/async"
	"github.com/cenety/saascore/pkg/limits"
	"github.com/cenety/saascore/pkg/logger"
	"github.com/cenety/saascore/svc/usage"
)

type inlineRunner struct{ names []string }

func (r *inlineRunner) Submit(ctx context.Context, name string, task async.Task) bool {
	r.names = append(r.names, name)
	_ = task(ctx)
	return true
}

func TestTracker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 15, 12, 30, 0, 0, time.UTC))
	periodStart := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta("INSERT INTO usage_metrics")

	t.Run("upserts current month", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		tenant := uuid.New()
		mock.ExpectExec(query).
			WithArgs(tenant, "api_calls", int64(5), periodStart, periodEnd).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		tr := usage.NewTracker(mock, usage.WithTrackerClock(clock))
		require.NoError(t, tr.Track(ctx, tenant, limits.ResourceAPICalls, 5))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()
		tr := usage.NewTracker(newMock(t), usage.WithTrackerClock(clock))
		assert.ErrorIs(t, tr.Track(ctx, uuid.New(), limits.Resource("seats"), 1), usage.ErrInvalidMetric)
		assert.ErrorIs(t, tr.Track(ctx, uuid.Nil, limits.ResourceAPICalls, 1), usage.ErrInvalidMetric)
		assert.ErrorIs(t, tr.Track(ctx, uuid.New(), limits.ResourceAPICalls, 0), usage.ErrInvalidMetric)
	})

	t.Run("database failure", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		mock.ExpectExec(query).WillReturnError(errors.New("deadlock detected"))

		tr := usage.NewTracker(mock, usage.WithTrackerClock(clock))
		assert.ErrorIs(t, tr.Track(ctx, uuid.New(), limits.ResourceEmailSends, 1), usage.ErrFailedToTrack)
	})

	t.Run("async through runner", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		mock.ExpectExec(query).WillReturnResult(pgxmock.NewResult("INSERT", 1))

		runner := &inlineRunner{}
		tr := usage.NewTracker(mock, usage.WithTrackerClock(clock), usage.WithRunner(runner))
		assert.True(t, tr.TrackAsync(ctx, uuid.New(), limits.ResourceEmailSends, 1))
		assert.Equal(t, []string{"usage:email_sends"}, runner.names)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("async without runner logs failures", func(t *testing.T) {
		t.Parallel()
		mock := newMock(t)
		mock.ExpectExec(query).WillReturnError(errors.New("read only transaction"))

		tr := usage.NewTracker(mock, usage.WithTrackerClock(clock), usage.WithTrackerLogger(logger.Discard()))
		assert.False(t, tr.TrackAsync(ctx, uuid.New(), limits.ResourceAPICalls, 1))
	})
}
