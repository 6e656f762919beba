package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/spf13/cobra"

	"github.com/andrewasheridan/kaleidoscope/pkg/config"
	"github.com/andrewasheridan/kaleidoscope/pkg/kubernetes"
	"github.com/andrewasheridan/kaleidoscope/pkg/objectstore"
	"github.com/andrewasheridan/kaleidoscope/pkg/pipeline"
)

var (
	clusterPrefix string
	namespace     string
	region        string
	zone          string
	nodeCount     int
	nodeSize      string
	workers       int
)

var rootCmd = &cobra.Command{
	Use:   "kaleidoscope",
	Short: "Massively parallel image augmentation on Kubernetes",
	Long: `Kaleidoscope runs image augmentation at scale: originals go into an S3
bucket, a queue-maker pod batches them into a redis work queue, a worker
job fans the batches out across the cluster, and the augmented images
land in a second bucket ready for download.`,
}

func Execute() error {
	return rootCmd.Execute()
}

// SetVersion wires the build metadata into the root command
func SetVersion(version, commit, date string) {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&clusterPrefix, "cluster-prefix", getEnvOrDefault("KALEIDOSCOPE_PREFIX", config.DefaultClusterPrefix), "Prefix for the cluster and bucket names")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", getEnvOrDefault("KALEIDOSCOPE_NAMESPACE", config.DefaultNamespace), "Kubernetes namespace")
	rootCmd.PersistentFlags().StringVar(&region, "region", getEnvOrDefault("AWS_DEFAULT_REGION", "us-east-1"), "AWS region")
	rootCmd.PersistentFlags().StringVar(&zone, "zone", getEnvOrDefault("KALEIDOSCOPE_ZONE", "us-east-1a"), "Availability zone for the cluster nodes")
	rootCmd.PersistentFlags().IntVar(&nodeCount, "node-count", getEnvIntOrDefault("KALEIDOSCOPE_NODE_COUNT", 2), "Cluster node count")
	rootCmd.PersistentFlags().StringVar(&nodeSize, "node-size", getEnvOrDefault("KALEIDOSCOPE_NODE_SIZE", "t2.medium"), "Cluster node instance type")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", getEnvIntOrDefault("KALEIDOSCOPE_WORKERS", config.DefaultWorkers), "Worker job parallelism")
}

// pipelineConfig assembles and validates the configuration from the
// persistent flags
func pipelineConfig() (*config.Config, error) {
	cfg := &config.Config{
		ClusterPrefix: clusterPrefix,
		Namespace:     namespace,
		Region:        region,
		Zone:          zone,
		NodeCount:     nodeCount,
		NodeSize:      nodeSize,
		Workers:       int32(workers),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newPipeline builds the pipeline from a kubeconfig-backed clientset and an
// AWS session
func newPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	clientset, err := kubernetes.NewClientset()
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	k8s := kubernetes.NewManager(clientset, &kubernetes.Config{Namespace: cfg.Namespace})

	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	store := objectstore.New(sess, objectstore.WaitForCompletion(true))

	return pipeline.New(cfg, k8s, store), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
