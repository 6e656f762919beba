package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	uploadDir   string
	uploadFrom  string
	uploadForce bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Push images into the origin bucket and start the queue-maker",
	Long: `Upload the original images and launch the queue-maker pod, which batches
their keys into the redis work queue.

Images come from a local directory (--dir) or are copied from an existing
bucket (--from-s3). Exactly one of the two must be set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}
		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}
		count, err := p.Upload(cmd.Context(), uploadDir, uploadFrom, uploadForce)
		if err != nil {
			return err
		}
		log.Printf("[UPLOAD] %d images in %s, queue-maker launched", count, cfg.OriginBucket())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringVar(&uploadDir, "dir", "", "Local directory of images to upload")
	uploadCmd.Flags().StringVar(&uploadFrom, "from-s3", "", "Existing bucket to copy images from")
	uploadCmd.Flags().BoolVar(&uploadForce, "force", false, "Replace a finished queue-maker pod")
}
