// Package scaling adjusts the worker job parallelism while a transform run
// is in flight.
package scaling

import (
	"context"
	"fmt"
	"log"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/andrewasheridan/kaleidoscope/pkg/manifest"
)

const (
	// DefaultScaleTimeout bounds how long Scale waits for the workers to
	// reach the requested parallelism.
	DefaultScaleTimeout = 2 * time.Minute
	// DefaultMaxWorkers caps the parallelism a scale request may ask for.
	DefaultMaxWorkers = 100
)

// Config holds the worker scaler configuration
type Config struct {
	Namespace  string
	Job        string
	MaxWorkers int32
}

// Status represents the current state of the worker job
type Status struct {
	Parallelism int32 `json:"parallelism"`
	Active      int32 `json:"active"`
	Succeeded   int32 `json:"succeeded"`
	Failed      int32 `json:"failed"`
}

// WorkerScaler changes the parallelism of the running worker job
type WorkerScaler struct {
	clientset kubernetes.Interface
	config    Config
}

// NewWorkerScaler creates a new WorkerScaler
func NewWorkerScaler(clientset kubernetes.Interface, config Config) *WorkerScaler {
	if config.Job == "" {
		config.Job = manifest.WorkerJobName
	}
	if config.MaxWorkers == 0 {
		config.MaxWorkers = DefaultMaxWorkers
	}

	return &WorkerScaler{
		clientset: clientset,
		config:    config,
	}
}

// Scale sets the worker job parallelism. Kubernetes lets parallelism change
// on a live job, so a slow run can be widened without relaunching it.
func (s *WorkerScaler) Scale(ctx context.Context, workers int32) error {
	if workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", workers)
	}
	if workers > s.config.MaxWorkers {
		return fmt.Errorf("workers %d exceeds the maximum of %d", workers, s.config.MaxWorkers)
	}

	job, err := s.clientset.BatchV1().Jobs(s.config.Namespace).Get(ctx, s.config.Job, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("failed to get worker job: %w", err)
	}

	if job.Spec.Parallelism != nil && *job.Spec.Parallelism == workers {
		log.Printf("[SCALER] Worker job already at parallelism %d", workers)
		return nil
	}

	job.Spec.Parallelism = &workers
	if _, err := s.clientset.BatchV1().Jobs(s.config.Namespace).Update(ctx, job, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("failed to update worker job: %w", err)
	}

	log.Printf("[SCALER] Worker job %s/%s scaled to %d", s.config.Namespace, s.config.Job, workers)
	return nil
}

// Drain scales the worker job to zero without deleting it
func (s *WorkerScaler) Drain(ctx context.Context) error {
	return s.Scale(ctx, 0)
}

// Status reports the worker job's parallelism and pod counts
func (s *WorkerScaler) Status(ctx context.Context) (Status, error) {
	job, err := s.clientset.BatchV1().Jobs(s.config.Namespace).Get(ctx, s.config.Job, metav1.GetOptions{})
	if err != nil {
		return Status{}, fmt.Errorf("failed to get worker job: %w", err)
	}

	status := Status{
		Active:    job.Status.Active,
		Succeeded: job.Status.Succeeded,
		Failed:    job.Status.Failed,
	}
	if job.Spec.Parallelism != nil {
		status.Parallelism = *job.Spec.Parallelism
	}
	return status, nil
}

// WaitForWorkers polls until the job has as many active pods as its
// parallelism asks for
func (s *WorkerScaler) WaitForWorkers(ctx context.Context, timeout time.Duration) error {
	return wait.PollUntilContextTimeout(ctx, 2*time.Second, timeout, true, func(ctx context.Context) (bool, error) {
		status, err := s.Status(ctx)
		if err != nil {
			return false, err
		}

		if status.Active >= status.Parallelism {
			log.Printf("[SCALER] Worker job %s/%s has %d active workers", s.config.Namespace, s.config.Job, status.Active)
			return true, nil
		}

		log.Printf("[SCALER] Waiting for workers: %d/%d active", status.Active, status.Parallelism)
		return false, nil
	})
}
