package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	progressWatch    bool
	progressInterval time.Duration
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Report how much transform work remains",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}
		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}

		if progressWatch {
			return p.Watch(cmd.Context(), progressInterval, os.Stdout)
		}

		report, err := p.Progress(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%d of %d batches remaining, about %d images to go\n",
			report.BatchesRemaining, report.BatchesTotal, report.ImagesRemaining)
		if report.Done {
			fmt.Println("transform complete, download the results next")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(progressCmd)

	progressCmd.Flags().BoolVar(&progressWatch, "watch", false, "Keep watching until the transform completes")
	progressCmd.Flags().DurationVar(&progressInterval, "interval", 5*time.Second, "Polling interval in watch mode")
}
