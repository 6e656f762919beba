package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var downloadTarget string

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Pull the augmented images to a local directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}
		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}
		count, err := p.Download(cmd.Context(), downloadTarget)
		if err != nil {
			return err
		}
		log.Printf("[DOWNLOAD] %d images saved to %s", count, downloadTarget)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVar(&downloadTarget, "dir", "augmented_images", "Directory the images are saved to")
}
