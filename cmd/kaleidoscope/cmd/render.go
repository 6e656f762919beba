package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/andrewasheridan/kaleidoscope/pkg/manifest"
)

var outputDir string

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Write the pipeline manifests as YAML files",
	Long: `Render every manifest the pipeline would create to a directory, so they
can be inspected or applied with kubectl instead of the CLI.

The credential secret is built from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
and AWS_DEFAULT_REGION, so treat the output directory as sensitive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}

		creds, err := manifest.CredentialsFromEnv()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(outputDir, 0o700); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		objects := map[string]runtime.Object{
			"secret.yaml":        manifest.CredentialSecret(creds),
			"redis-service.yaml": manifest.RedisService(),
			"redis-master.yaml":  manifest.RedisMasterPod(),
			"queue_maker.yaml":   manifest.QueueMakerPod(cfg.OriginBucket()),
			"poll.yaml":          manifest.PollPod(),
			"worker-job.yaml":    manifest.WorkerJob(cfg.OriginBucket(), cfg.AugmentedBucket(), cfg.Workers),
		}

		for name, obj := range objects {
			data, err := manifest.Encode(obj)
			if err != nil {
				return fmt.Errorf("failed to encode %s: %w", name, err)
			}
			path := filepath.Join(outputDir, name)
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			log.Printf("[RENDER] Wrote %s", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&outputDir, "output-dir", "manifests", "Directory the YAML files are written to")
}
