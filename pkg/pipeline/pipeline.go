// Package pipeline orchestrates the kaleidoscope image augmentation pipeline:
// buckets, cluster resources, upload, transform, progress and download.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	corev1 "k8s.io/api/core/v1"

	"github.com/andrewasheridan/kaleidoscope/pkg/config"
	"github.com/andrewasheridan/kaleidoscope/pkg/manifest"
	"github.com/andrewasheridan/kaleidoscope/pkg/progress"
)

// ClusterResources is the slice of the kubernetes manager the pipeline drives
type ClusterResources interface {
	VerifyAccess(ctx context.Context) error
	EnsureBase(ctx context.Context, creds manifest.Credentials) error
	LaunchQueueMaker(ctx context.Context, originBucket string, force bool) error
	LaunchPoll(ctx context.Context, force bool) error
	LaunchWorkers(ctx context.Context, originBucket, destinationBucket string, workers int32) error
	WaitForPodRunning(ctx context.Context, name string, timeout time.Duration) error
	PodPhase(ctx context.Context, name string) (corev1.PodPhase, error)
	PodLogs(ctx context.Context, name string) (string, error)
	TearDown(ctx context.Context) error
}

// ImageStore is the slice of the object store the pipeline drives
type ImageStore interface {
	EnsureBucket(bucketName string) error
	EnableVersioning(bucketName string) error
	DeleteBucket(bucketName string) error
	ListKeys(ctx context.Context, bucketName string) ([]string, error)
	UploadDirectory(ctx context.Context, dir, bucketName string) (int, error)
	CopyBucket(ctx context.Context, from, to string) (int, error)
	DownloadAll(ctx context.Context, bucketName, dir string) (int, error)
}

// Pipeline ties the cluster resources and the object store together
type Pipeline struct {
	config  *config.Config
	k8s     ClusterResources
	store   ImageStore
	tracker *progress.Tracker
}

// New creates a Pipeline
func New(cfg *config.Config, k8s ClusterResources, store ImageStore) *Pipeline {
	return &Pipeline{
		config:  cfg,
		k8s:     k8s,
		store:   store,
		tracker: progress.NewTracker(k8s),
	}
}

// EnsureBuckets creates the state store and both image buckets. The state
// store gets versioning, which kops requires.
func (p *Pipeline) EnsureBuckets() error {
	if err := p.store.EnsureBucket(p.config.StateStoreBucket()); err != nil {
		return fmt.Errorf("failed to ensure state store bucket: %w", err)
	}
	if err := p.store.EnableVersioning(p.config.StateStoreBucket()); err != nil {
		return fmt.Errorf("failed to enable state store versioning: %w", err)
	}

	for _, bucket := range []string{p.config.OriginBucket(), p.config.AugmentedBucket()} {
		if err := p.store.EnsureBucket(bucket); err != nil {
			return fmt.Errorf("failed to ensure bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// Up ensures buckets and the base cluster resources
func (p *Pipeline) Up(ctx context.Context, creds manifest.Credentials) error {
	if err := p.k8s.VerifyAccess(ctx); err != nil {
		return err
	}
	if err := p.EnsureBuckets(); err != nil {
		return err
	}
	if err := p.k8s.EnsureBase(ctx, creds); err != nil {
		return err
	}
	log.Printf("[PIPELINE] Base resources ready, upload images next")
	return nil
}

// Upload pushes images into the origin bucket and launches the queue-maker.
// Exactly one of localDir and s3Origin must be set.
func (p *Pipeline) Upload(ctx context.Context, localDir, s3Origin string, force bool) (int, error) {
	var (
		count int
		err   error
	)

	switch {
	case s3Origin != "":
		count, err = p.store.CopyBucket(ctx, s3Origin, p.config.OriginBucket())
	case localDir != "":
		count, err = p.store.UploadDirectory(ctx, localDir, p.config.OriginBucket())
	default:
		return 0, fmt.Errorf("at least one image origin must be set")
	}
	if err != nil {
		return 0, err
	}
	progress.RecordUpload(count)
	log.Printf("[PIPELINE] Uploaded %d images to %s", count, p.config.OriginBucket())

	err = p.k8s.LaunchQueueMaker(ctx, p.config.OriginBucket(), force)
	progress.RecordLaunch("queue-maker", err)
	if err != nil {
		return count, err
	}

	log.Printf("[PIPELINE] Ready to transform")
	return count, nil
}

// Transform launches the poll pod and the worker job
func (p *Pipeline) Transform(ctx context.Context) error {
	err := p.k8s.LaunchPoll(ctx, false)
	progress.RecordLaunch("poll", err)
	if err != nil {
		return err
	}

	err = p.k8s.LaunchWorkers(ctx, p.config.OriginBucket(), p.config.AugmentedBucket(), p.config.Workers)
	progress.RecordLaunch("workers", err)
	if err != nil {
		return err
	}

	log.Printf("[PIPELINE] Transform running with %d workers", p.config.Workers)
	return nil
}

// Progress reports how much transform work remains
func (p *Pipeline) Progress(ctx context.Context) (progress.Report, error) {
	return p.tracker.Remaining(ctx)
}

// Watch blocks until the transform completes, rendering progress to out
func (p *Pipeline) Watch(ctx context.Context, interval time.Duration, out io.Writer) error {
	return p.tracker.Watch(ctx, interval, out)
}

// Download pulls every augmented image into dir
func (p *Pipeline) Download(ctx context.Context, dir string) (int, error) {
	count, err := p.store.DownloadAll(ctx, p.config.AugmentedBucket(), dir)
	if err != nil {
		return count, err
	}
	progress.RecordDownload(count)
	log.Printf("[PIPELINE] Downloaded %d augmented images to %s", count, dir)
	return count, nil
}

// Phases reports the phase of each pipeline pod for the status endpoint.
// Missing pods report as NotCreated.
func (p *Pipeline) Phases(ctx context.Context) map[string]string {
	phases := map[string]string{}
	for _, name := range []string{"redis-master", "queue-maker", progress.PollPodName} {
		phase, err := p.k8s.PodPhase(ctx, name)
		if err != nil {
			phases[name] = "NotCreated"
			continue
		}
		phases[name] = string(phase)
	}
	return phases
}

// Down deletes the cluster resources, and the image buckets too when
// deleteBuckets is set. Buckets must already be empty for S3 to accept the
// deletion.
func (p *Pipeline) Down(ctx context.Context, deleteBuckets bool) error {
	if err := p.k8s.TearDown(ctx); err != nil {
		return err
	}
	if !deleteBuckets {
		return nil
	}

	for _, bucket := range []string{p.config.OriginBucket(), p.config.AugmentedBucket()} {
		if err := p.store.DeleteBucket(bucket); err != nil {
			return fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
		}
	}
	return nil
}
