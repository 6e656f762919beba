// Package kubernetes provides Kubernetes client and resource management for the pipeline.
package kubernetes

// Config holds the Kubernetes-specific configuration
type Config struct {
	Namespace string
}
