package kubernetes

import (
	"context"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"
)

// PodLogs returns the full log output of the named pod
func (m *Manager) PodLogs(ctx context.Context, name string) (string, error) {
	req := m.clientset.CoreV1().Pods(m.config.Namespace).GetLogs(name, &corev1.PodLogOptions{})

	stream, err := req.Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to stream logs for pod %s: %w", name, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return "", fmt.Errorf("failed to read logs for pod %s: %w", name, err)
	}
	return string(data), nil
}
