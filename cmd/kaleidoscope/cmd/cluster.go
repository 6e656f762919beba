package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrewasheridan/kaleidoscope/pkg/cluster"
	"github.com/andrewasheridan/kaleidoscope/pkg/config"
)

var clusterDryRun bool

var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Manage the kops cluster the pipeline runs on",
}

var clusterCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the cluster with kops",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cfg, err := clusterManager(cmd.Context())
		if err != nil {
			return err
		}
		if err := cfg.CheckEnv(); err != nil {
			return err
		}
		return mgr.Create(cmd.Context(), clusterDryRun)
	},
}

var clusterValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check whether the cluster is ready",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cfg, err := clusterManager(cmd.Context())
		if err != nil {
			return err
		}
		ready, err := mgr.Validate(cmd.Context())
		if err != nil {
			return err
		}
		if !ready {
			fmt.Printf("cluster %s is still converging, validate again in a few minutes\n", cfg.ClusterName())
			return nil
		}
		fmt.Printf("cluster %s is ready\n", cfg.ClusterName())
		return nil
	},
}

var clusterDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the cluster with kops",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, cfg, err := clusterManager(cmd.Context())
		if err != nil {
			return err
		}
		if err := cfg.CheckEnv(); err != nil {
			return err
		}
		return mgr.Delete(cmd.Context(), clusterDryRun)
	},
}

func clusterManager(ctx context.Context) (*cluster.Manager, *config.Config, error) {
	cfg, err := pipelineConfig()
	if err != nil {
		return nil, nil, err
	}
	mgr := cluster.NewManager(cfg)
	if !mgr.Installed(ctx) {
		return nil, nil, fmt.Errorf("kops is not installed, see https://kops.sigs.k8s.io/install/")
	}
	return mgr, cfg, nil
}

func init() {
	rootCmd.AddCommand(clusterCmd)
	clusterCmd.AddCommand(clusterCreateCmd, clusterValidateCmd, clusterDeleteCmd)

	clusterCmd.PersistentFlags().BoolVar(&clusterDryRun, "dry-run", false, "Show what kops would do without applying")
}
