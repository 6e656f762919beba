package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Launch the poll pod and the worker job",
	Long: `Start the augmentation run: the worker job pops batches off the redis
queue, augments every image and writes the results to the augmented
bucket, while the poll pod reports the remaining work on its stdout.

Follow the run with "kaleidoscope progress --watch".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}
		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}
		if err := p.Transform(cmd.Context()); err != nil {
			return err
		}
		log.Printf("[TRANSFORM] %d workers launched", cfg.Workers)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(transformCmd)
}
