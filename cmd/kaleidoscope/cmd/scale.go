package cmd

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/andrewasheridan/kaleidoscope/pkg/config"
	"github.com/andrewasheridan/kaleidoscope/pkg/kubernetes"
	"github.com/andrewasheridan/kaleidoscope/pkg/scaling"
)

var (
	scaleWorkers int
	scaleWait    bool
)

var scaleCmd = &cobra.Command{
	Use:   "scale",
	Short: "Change the worker parallelism of a running transform",
	Long: `Widen or narrow a transform run without relaunching it. Parallelism can
change on a live job, so --workers takes effect on the next scheduling
pass. Scaling to 0 pauses the run, the queue keeps its state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pipelineConfig()
		if err != nil {
			return err
		}
		clientset, err := kubernetes.NewClientset()
		if err != nil {
			return err
		}

		scaler := scaling.NewWorkerScaler(clientset, scaling.Config{Namespace: cfg.Namespace})
		if err := scaler.Scale(cmd.Context(), int32(scaleWorkers)); err != nil {
			return err
		}
		if scaleWait {
			if err := scaler.WaitForWorkers(cmd.Context(), scaling.DefaultScaleTimeout); err != nil {
				return err
			}
		}
		log.Printf("[SCALE] Worker parallelism set to %d", scaleWorkers)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scaleCmd)

	scaleCmd.Flags().IntVar(&scaleWorkers, "workers", config.DefaultWorkers, "New worker parallelism")
	scaleCmd.Flags().BoolVar(&scaleWait, "wait", false, "Wait until the workers are active")
}
