// Package operation provides HTTP handlers for driving pipeline steps remotely.
package operation

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andrewasheridan/kaleidoscope/pkg/progress"
)

// Manager defines the pipeline operations the handlers expose
type Manager interface {
	Transform(ctx context.Context) error
	Download(ctx context.Context, dir string) (int, error)
	Progress(ctx context.Context) (progress.Report, error)
	Phases(ctx context.Context) map[string]string
}

// GinHandler handles pipeline operation requests using Gin
type GinHandler struct {
	manager Manager
}

// NewGinHandler creates a new Gin operation handler
func NewGinHandler(manager Manager) *GinHandler {
	return &GinHandler{
		manager: manager,
	}
}

// TransformHandler launches the poll pod and the worker job
func (h *GinHandler) TransformHandler(c *gin.Context) {
	ctx := c.Request.Context()
	log.Printf("Transform requested")

	if err := h.manager.Transform(ctx); err != nil {
		log.Printf("Failed to start transform: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"message": err.Error(),
				"type":    "transform_failed",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "transform started",
	})
}

// DownloadRequest carries the optional target directory for a download
type DownloadRequest struct {
	Dir string `json:"dir"`
}

// DownloadHandler pulls the augmented images to the server's filesystem
func (h *GinHandler) DownloadHandler(c *gin.Context) {
	ctx := c.Request.Context()

	// an empty body is fine, a malformed one is not
	var req DownloadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": gin.H{
					"message": err.Error(),
					"type":    "bad_request",
				},
			})
			return
		}
	}
	if req.Dir == "" {
		req.Dir = "augmented_images"
	}

	log.Printf("Download requested into %s", req.Dir)

	count, err := h.manager.Download(ctx, req.Dir)
	if err != nil {
		log.Printf("Failed to download: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"message": err.Error(),
				"type":    "download_failed",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"count":  count,
		"dir":    req.Dir,
	})
}

// ProgressHandler reports how much transform work remains
func (h *GinHandler) ProgressHandler(c *gin.Context) {
	report, err := h.manager.Progress(c.Request.Context())
	if err != nil {
		if errors.Is(err, progress.ErrNoProgress) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "pending",
				"message": "no progress reported yet",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"message": err.Error(),
				"type":    "progress_failed",
			},
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// StatusHandler reports the phase of every pipeline pod
func (h *GinHandler) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pods": h.manager.Phases(c.Request.Context()),
	})
}

// HealthHandler is the liveness endpoint
func (h *GinHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
