// Package progress tracks how much transform work remains, fed by the poll
// pod's log output.
package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/andrewasheridan/kaleidoscope/pkg/queue"
)

// PollPodName is the pod whose logs carry the counts lines.
const PollPodName = "poll"

// ErrNoProgress means the poll pod has not logged a counts line yet.
var ErrNoProgress = errors.New("no progress reported yet")

// LogReader reads a pod's logs. Implemented by kubernetes.Manager.
type LogReader interface {
	PodLogs(ctx context.Context, name string) (string, error)
}

// Report describes the current state of the transform step
type Report struct {
	BatchesRemaining int64 `json:"batches_remaining"`
	BatchesTotal     int64 `json:"batches_total"`
	ImagesRemaining  int64 `json:"images_remaining"`
	Done             bool  `json:"done"`
}

// Tracker reports transform progress
type Tracker struct {
	logs LogReader
}

// NewTracker creates a Tracker reading the poll pod's logs
func NewTracker(logs LogReader) *Tracker {
	return &Tracker{logs: logs}
}

// Remaining reads the latest counts from the poll pod. ImagesRemaining is an
// estimate: batches still queued times the batch size.
func (t *Tracker) Remaining(ctx context.Context) (Report, error) {
	output, err := t.logs.PodLogs(ctx, PollPodName)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read poll logs: %w", err)
	}

	remaining, total, ok := queue.ParseCounts(output)
	if !ok {
		return Report{}, ErrNoProgress
	}

	report := Report{
		BatchesRemaining: remaining,
		BatchesTotal:     total,
		ImagesRemaining:  remaining * queue.DefaultBatchSize,
		Done:             total > 0 && remaining == 0,
	}
	RecordCounts(remaining, total)
	return report, nil
}

var spinner = []byte{'-', '/', '|', '\\'}

// Watch polls until the transform is done, writing a spinner line to out on
// every tick. It returns nil when remaining hits zero and the context error
// if cancelled first.
func (t *Tracker) Watch(ctx context.Context, interval time.Duration, out io.Writer) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report, err := t.Remaining(ctx)
			if errors.Is(err, ErrNoProgress) {
				fmt.Fprintf(out, "\rwaiting for first report  %c", spinner[tick%len(spinner)])
				tick++
				continue
			}
			if err != nil {
				log.Printf("[PROGRESS] %v", err)
				tick++
				continue
			}

			if report.Done {
				fmt.Fprintf(out, "\rtransform complete, %d batches processed\n", report.BatchesTotal)
				return nil
			}

			fmt.Fprintf(out, "\r~%d original images remaining  %c", report.ImagesRemaining, spinner[tick%len(spinner)])
			tick++
		}
	}
}
