package config

import (
	"strings"
	"testing"
)

func TestConfig_DerivedNames(t *testing.T) {
	c := &Config{ClusterPrefix: "kaleidoscope"}

	if got := c.ClusterName(); got != "kaleidoscope.k8s.local" {
		t.Errorf("ClusterName() = %v, want kaleidoscope.k8s.local", got)
	}
	if got := c.StateStoreBucket(); got != "kaleidoscope-kops-state-store" {
		t.Errorf("StateStoreBucket() = %v", got)
	}
	if got := c.OriginBucket(); got != "kaleidoscope-original-images-bucket" {
		t.Errorf("OriginBucket() = %v", got)
	}
	if got := c.AugmentedBucket(); got != "kaleidoscope-augmented-images-bucket" {
		t.Errorf("AugmentedBucket() = %v", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		ClusterPrefix: "kaleidoscope",
		Namespace:     "default",
		Region:        "us-east-1",
		Workers:       10,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"single character prefix", func(c *Config) { c.ClusterPrefix = "k" }, false},
		{"empty prefix", func(c *Config) { c.ClusterPrefix = "" }, true},
		{"uppercase prefix", func(c *Config) { c.ClusterPrefix = "Kaleidoscope" }, true},
		{"trailing hyphen", func(c *Config) { c.ClusterPrefix = "kaleidoscope-" }, true},
		{"empty namespace", func(c *Config) { c.Namespace = "" }, true},
		{"empty region", func(c *Config) { c.Region = "" }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			if err := c.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_CheckEnv(t *testing.T) {
	c := &Config{ClusterPrefix: "kaleidoscope"}

	t.Run("matching environment", func(t *testing.T) {
		env := map[string]string{
			"KOPS_CLUSTER_NAME": "kaleidoscope.k8s.local",
			"KOPS_STATE_STORE":  "s3://kaleidoscope-kops-state-store",
		}
		if err := c.checkEnv(func(k string) string { return env[k] }); err != nil {
			t.Errorf("checkEnv() error = %v, want nil", err)
		}
	})

	t.Run("missing variables include export lines", func(t *testing.T) {
		err := c.checkEnv(func(string) string { return "" })
		if err == nil {
			t.Fatal("checkEnv() error = nil, want error")
		}
		if !strings.Contains(err.Error(), `export KOPS_CLUSTER_NAME="kaleidoscope.k8s.local"`) {
			t.Errorf("error missing cluster name export line: %v", err)
		}
		if !strings.Contains(err.Error(), `export KOPS_STATE_STORE="s3://kaleidoscope-kops-state-store"`) {
			t.Errorf("error missing state store export line: %v", err)
		}
	})
}
