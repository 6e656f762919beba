// Package cluster manages the kops cluster lifecycle by wrapping the kops CLI.
package cluster

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"strings"

	"github.com/andrewasheridan/kaleidoscope/pkg/config"
)

// Runner executes an external command and returns its combined output.
// The default implementation shells out; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	output, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return string(output), nil
}

// Manager drives kops for the configured cluster
type Manager struct {
	runner Runner
	config *config.Config
}

// NewManager creates a Manager shelling out to kops
func NewManager(cfg *config.Config) *Manager {
	return NewManagerWithRunner(cfg, execRunner{})
}

// NewManagerWithRunner creates a Manager with a custom command runner
func NewManagerWithRunner(cfg *config.Config, runner Runner) *Manager {
	return &Manager{runner: runner, config: cfg}
}

// Installed reports whether the kops binary is available
func (m *Manager) Installed(ctx context.Context) bool {
	_, err := m.runner.Run(ctx, "kops", "version")
	return err == nil
}

// Create declares the cluster with kops and applies it. With dryRun the
// apply step only reports what would change.
func (m *Manager) Create(ctx context.Context, dryRun bool) error {
	args := []string{
		"create", "cluster",
		fmt.Sprintf("--node-count=%d", m.config.NodeCount),
		fmt.Sprintf("--node-size=%s", m.config.NodeSize),
		fmt.Sprintf("--zones=%s", m.config.Zone),
		fmt.Sprintf("--name=%s", m.config.ClusterName()),
	}

	log.Printf("[CLUSTER] $ kops %s", strings.Join(args, " "))
	if _, err := m.runner.Run(ctx, "kops", args...); err != nil {
		return fmt.Errorf("cluster creation failed: %w", err)
	}

	return m.Apply(ctx, dryRun)
}

// Apply pushes the declared cluster state. Spinning up takes several
// minutes; Validate reports when the cluster is usable.
func (m *Manager) Apply(ctx context.Context, dryRun bool) error {
	args := []string{"update", "cluster", "--name", m.config.ClusterName()}
	if !dryRun {
		args = append(args, "--yes")
	}

	log.Printf("[CLUSTER] $ kops %s", strings.Join(args, " "))
	if _, err := m.runner.Run(ctx, "kops", args...); err != nil {
		return fmt.Errorf("cluster update failed: %w", err)
	}
	return nil
}

// Validate asks kops whether the cluster is ready
func (m *Manager) Validate(ctx context.Context) (bool, error) {
	output, err := m.runner.Run(ctx, "kops", "validate", "cluster")
	if err != nil {
		// kops exits non-zero while the cluster is still coming up
		return false, nil
	}

	ready := strings.Contains(output, fmt.Sprintf("Your cluster %s is ready", m.config.ClusterName()))
	return ready, nil
}

// Delete tears the cluster down
func (m *Manager) Delete(ctx context.Context, dryRun bool) error {
	args := []string{"delete", "cluster", "--name", m.config.ClusterName()}
	if !dryRun {
		args = append(args, "--yes")
	}

	log.Printf("[CLUSTER] $ kops %s", strings.Join(args, " "))
	if _, err := m.runner.Run(ctx, "kops", args...); err != nil {
		return fmt.Errorf("cluster deletion failed: %w", err)
	}
	return nil
}
