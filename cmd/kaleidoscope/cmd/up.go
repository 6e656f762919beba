package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/andrewasheridan/kaleidoscope/pkg/manifest"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create the buckets, the credential secret and the redis queue",
	Long: `Prepare everything the pipeline needs before images are uploaded:

- the kops state store bucket, with versioning
- the origin and augmented image buckets
- the credential secret in the cluster
- the redis master pod and its service`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}
		if err := cfg.CheckEnv(); err != nil {
			return err
		}
		creds, err := manifest.CredentialsFromEnv()
		if err != nil {
			return err
		}
		p, err := newPipeline(cfg)
		if err != nil {
			return err
		}
		if err := p.Up(cmd.Context(), creds); err != nil {
			return err
		}
		log.Printf("[UP] Pipeline base is ready in namespace %s", cfg.Namespace)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(upCmd)
}
