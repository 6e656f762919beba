package scaling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/andrewasheridan/kaleidoscope/pkg/manifest"
)

func newTestScaler(t *testing.T, workers int32) (*WorkerScaler, *fake.Clientset) {
	t.Helper()

	client := fake.NewSimpleClientset()
	job := manifest.WorkerJob("origin", "augmented", workers)
	_, err := client.BatchV1().Jobs("default").Create(context.Background(), job, metav1.CreateOptions{})
	require.NoError(t, err)

	return NewWorkerScaler(client, Config{Namespace: "default"}), client
}

func TestNewWorkerScalerDefaults(t *testing.T) {
	scaler := NewWorkerScaler(fake.NewSimpleClientset(), Config{Namespace: "default"})

	assert.Equal(t, manifest.WorkerJobName, scaler.config.Job)
	assert.Equal(t, int32(DefaultMaxWorkers), scaler.config.MaxWorkers)
}

func TestScale(t *testing.T) {
	scaler, _ := newTestScaler(t, 10)
	ctx := context.Background()

	require.NoError(t, scaler.Scale(ctx, 25))

	status, err := scaler.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(25), status.Parallelism)

	t.Run("rejects negative workers", func(t *testing.T) {
		assert.Error(t, scaler.Scale(ctx, -1))
	})

	t.Run("rejects workers above the maximum", func(t *testing.T) {
		assert.Error(t, scaler.Scale(ctx, DefaultMaxWorkers+1))
	})

	t.Run("scaling to the current parallelism is a no-op", func(t *testing.T) {
		require.NoError(t, scaler.Scale(ctx, 25))
	})

	t.Run("fails when the job does not exist", func(t *testing.T) {
		missing := NewWorkerScaler(fake.NewSimpleClientset(), Config{Namespace: "default"})
		assert.Error(t, missing.Scale(ctx, 5))
	})
}

func TestDrain(t *testing.T) {
	scaler, _ := newTestScaler(t, 10)
	ctx := context.Background()

	require.NoError(t, scaler.Drain(ctx))

	status, err := scaler.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(0), status.Parallelism)
}

func TestWaitForWorkers(t *testing.T) {
	scaler, client := newTestScaler(t, 2)
	ctx := context.Background()

	// mark both workers active so the wait returns immediately
	job, err := client.BatchV1().Jobs("default").Get(ctx, manifest.WorkerJobName, metav1.GetOptions{})
	require.NoError(t, err)
	job.Status.Active = 2
	_, err = client.BatchV1().Jobs("default").UpdateStatus(ctx, job, metav1.UpdateOptions{})
	require.NoError(t, err)

	assert.NoError(t, scaler.WaitForWorkers(ctx, 30*time.Second))
}
