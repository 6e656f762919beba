package progress

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogReader struct {
	output string
	err    error
}

func (f *fakeLogReader) PodLogs(ctx context.Context, name string) (string, error) {
	return f.output, f.err
}

func TestTracker_Remaining(t *testing.T) {
	t.Run("reads latest counts line", func(t *testing.T) {
		tracker := NewTracker(&fakeLogReader{output: "10:10\n7:10\n3:10\n"})

		report, err := tracker.Remaining(context.Background())
		require.NoError(t, err)

		assert.EqualValues(t, 3, report.BatchesRemaining)
		assert.EqualValues(t, 10, report.BatchesTotal)
		assert.EqualValues(t, 3*6400, report.ImagesRemaining)
		assert.False(t, report.Done)
	})

	t.Run("done when queue drained", func(t *testing.T) {
		tracker := NewTracker(&fakeLogReader{output: "1:10\n0:10\n"})

		report, err := tracker.Remaining(context.Background())
		require.NoError(t, err)
		assert.True(t, report.Done)
	})

	t.Run("empty queue before fill is not done", func(t *testing.T) {
		tracker := NewTracker(&fakeLogReader{output: "0:0\n"})

		report, err := tracker.Remaining(context.Background())
		require.NoError(t, err)
		assert.False(t, report.Done)
	})

	t.Run("no counts yet", func(t *testing.T) {
		tracker := NewTracker(&fakeLogReader{output: "waiting for redis\n"})

		_, err := tracker.Remaining(context.Background())
		assert.ErrorIs(t, err, ErrNoProgress)
	})

	t.Run("log read failure", func(t *testing.T) {
		tracker := NewTracker(&fakeLogReader{err: errors.New("pod not found")})

		_, err := tracker.Remaining(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoProgress)
	})
}

func TestTracker_Watch(t *testing.T) {
	t.Run("returns when transform completes", func(t *testing.T) {
		tracker := NewTracker(&fakeLogReader{output: "0:10\n"})

		var out strings.Builder
		err := tracker.Watch(context.Background(), time.Millisecond, &out)
		require.NoError(t, err)
		assert.Contains(t, out.String(), "transform complete")
	})

	t.Run("stops on cancel", func(t *testing.T) {
		tracker := NewTracker(&fakeLogReader{output: "5:10\n"})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		var out strings.Builder
		err := tracker.Watch(ctx, time.Millisecond, &out)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Contains(t, out.String(), "images remaining")
	})
}
