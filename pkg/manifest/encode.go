package manifest

import (
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/yaml"
)

// Encode serializes a manifest object to YAML
func Encode(obj runtime.Object) ([]byte, error) {
	data, err := yaml.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return data, nil
}

// DecodePod parses a Pod manifest from YAML
func DecodePod(data []byte) (*corev1.Pod, error) {
	pod := &corev1.Pod{}
	if err := yaml.UnmarshalStrict(data, pod); err != nil {
		return nil, fmt.Errorf("failed to decode pod manifest: %w", err)
	}
	return pod, nil
}

// DecodeSecret parses a Secret manifest from YAML
func DecodeSecret(data []byte) (*corev1.Secret, error) {
	secret := &corev1.Secret{}
	if err := yaml.UnmarshalStrict(data, secret); err != nil {
		return nil, fmt.Errorf("failed to decode secret manifest: %w", err)
	}
	return secret, nil
}

// DecodeService parses a Service manifest from YAML
func DecodeService(data []byte) (*corev1.Service, error) {
	service := &corev1.Service{}
	if err := yaml.UnmarshalStrict(data, service); err != nil {
		return nil, fmt.Errorf("failed to decode service manifest: %w", err)
	}
	return service, nil
}

// DecodeJob parses a Job manifest from YAML
func DecodeJob(data []byte) (*batchv1.Job, error) {
	job := &batchv1.Job{}
	if err := yaml.UnmarshalStrict(data, job); err != nil {
		return nil, fmt.Errorf("failed to decode job manifest: %w", err)
	}
	return job, nil
}
