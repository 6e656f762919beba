package cmd

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/andrewasheridan/kaleidoscope/pkg/operation"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline operations over HTTP",
	Long: `Start an HTTP server exposing the pipeline:

- POST /operations/transform launches the poll pod and the worker job
- POST /operations/download pulls the augmented images
- GET /progress reports the remaining work
- GET /status reports the phase of every pipeline pod
- GET /metrics exposes Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}
		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}

		handler := operation.NewGinHandler(p)

		router := gin.New()
		router.Use(gin.Logger(), gin.Recovery())
		router.GET("/healthz", handler.HealthHandler)
		router.GET("/status", handler.StatusHandler)
		router.GET("/progress", handler.ProgressHandler)
		router.POST("/operations/transform", handler.TransformHandler)
		router.POST("/operations/download", handler.DownloadHandler)
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))

		log.Printf("[SERVE] Listening on :%s for namespace %s", servePort, cfg.Namespace)
		return router.Run(":" + servePort)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", getEnvOrDefault("PORT", "8080"), "HTTP server port")
}
