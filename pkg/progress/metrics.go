package progress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue metrics
	batchesRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kaleidoscope_batches_remaining",
			Help: "Work batches still queued for the transform workers",
		},
	)

	batchesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kaleidoscope_batches_total",
			Help: "Work batches queued by the queue-maker in total",
		},
	)

	// Transfer metrics
	imagesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kaleidoscope_images_uploaded_total",
			Help: "Images uploaded to the origin bucket",
		},
	)

	imagesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kaleidoscope_images_downloaded_total",
			Help: "Augmented images downloaded from the destination bucket",
		},
	)

	// Launch metrics
	launchOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kaleidoscope_launch_operations_total",
			Help: "Pipeline step launches by outcome",
		},
		[]string{"step", "status"},
	)
)

// RecordCounts updates the queue gauges
func RecordCounts(remaining, total int64) {
	batchesRemaining.Set(float64(remaining))
	batchesTotal.Set(float64(total))
}

// RecordUpload counts uploaded images
func RecordUpload(count int) {
	imagesUploaded.Add(float64(count))
}

// RecordDownload counts downloaded images
func RecordDownload(count int) {
	imagesDownloaded.Add(float64(count))
}

// RecordLaunch counts a pipeline step launch attempt
func RecordLaunch(step string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	launchOps.WithLabelValues(step, status).Inc()
}
