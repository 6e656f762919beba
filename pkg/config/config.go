// Package config holds the pipeline configuration and the resource names derived from it.
package config

import (
	"fmt"
	"os"
	"regexp"
)

const (
	// DefaultClusterPrefix is the prefix used for the cluster and bucket names.
	DefaultClusterPrefix = "kaleidoscope"
	// DefaultNamespace is the namespace the pipeline resources are created in.
	DefaultNamespace = "default"
	// DefaultWorkers is the default worker job parallelism.
	DefaultWorkers = 10
)

// bucket names: lowercase alphanumerics and hyphens, no leading/trailing hyphen
var bucketPrefixRE = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// Config holds the pipeline configuration
type Config struct {
	ClusterPrefix string
	Namespace     string
	Region        string
	Zone          string
	NodeCount     int
	NodeSize      string
	Workers       int32
}

// ClusterName returns the kops cluster name derived from the prefix
func (c *Config) ClusterName() string {
	return c.ClusterPrefix + ".k8s.local"
}

// StateStoreBucket returns the name of the kops state store bucket
func (c *Config) StateStoreBucket() string {
	return c.ClusterPrefix + "-kops-state-store"
}

// OriginBucket returns the name of the bucket holding the original images
func (c *Config) OriginBucket() string {
	return c.ClusterPrefix + "-original-images-bucket"
}

// AugmentedBucket returns the name of the bucket receiving augmented images
func (c *Config) AugmentedBucket() string {
	return c.ClusterPrefix + "-augmented-images-bucket"
}

// Validate checks if the pipeline configuration is valid
func (c *Config) Validate() error {
	if c.ClusterPrefix == "" {
		return fmt.Errorf("cluster prefix cannot be empty")
	}
	if !bucketPrefixRE.MatchString(c.ClusterPrefix) {
		return fmt.Errorf("cluster prefix %q is not a valid bucket name prefix", c.ClusterPrefix)
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	if c.Region == "" {
		return fmt.Errorf("region cannot be empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

// CheckEnv verifies that the kops environment variables match the derived
// cluster names. The returned error contains the exact export lines needed
// to fix a mismatch.
func (c *Config) CheckEnv() error {
	return c.checkEnv(os.Getenv)
}

// checkEnv is the testable core of CheckEnv
func (c *Config) checkEnv(getenv func(string) string) error {
	message := "please run these commands and try again:"
	ok := true

	if getenv("KOPS_CLUSTER_NAME") != c.ClusterName() {
		message += fmt.Sprintf("\n  export KOPS_CLUSTER_NAME=%q", c.ClusterName())
		ok = false
	}
	if getenv("KOPS_STATE_STORE") != "s3://"+c.StateStoreBucket() {
		message += fmt.Sprintf("\n  export KOPS_STATE_STORE=%q", "s3://"+c.StateStoreBucket())
		ok = false
	}

	if !ok {
		return fmt.Errorf("%s", message)
	}
	return nil
}
