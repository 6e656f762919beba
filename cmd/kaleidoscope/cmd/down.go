package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

var downDeleteBuckets bool

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Remove the pipeline resources from the cluster",
	Long: `Delete the pods, the worker job, the redis service and the credential
secret. With --delete-buckets the image buckets go too.

The kops state store bucket is never deleted here, the cluster still
depends on it. Use "kaleidoscope cluster delete" first if you want the
whole thing gone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}
		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}
		if err := p.Down(cmd.Context(), downDeleteBuckets); err != nil {
			return err
		}
		log.Printf("[DOWN] Pipeline resources removed from namespace %s", cfg.Namespace)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downCmd)

	downCmd.Flags().BoolVar(&downDeleteBuckets, "delete-buckets", false, "Also delete the origin and augmented buckets")
}
