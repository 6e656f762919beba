package manifest

import (
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
)

// validRestartPolicies is the set the orchestrator accepts.
var validRestartPolicies = map[corev1.RestartPolicy]bool{
	corev1.RestartPolicyAlways:    true,
	corev1.RestartPolicyOnFailure: true,
	corev1.RestartPolicyNever:     true,
}

// ValidatePod checks a pod manifest against the constraints the API server
// would enforce, so that bad manifests are caught before they leave the
// process.
func ValidatePod(pod *corev1.Pod) error {
	if pod.Name == "" {
		return fmt.Errorf("pod name cannot be empty")
	}
	if err := validatePodSpec(&pod.Spec); err != nil {
		return fmt.Errorf("pod %s: %w", pod.Name, err)
	}
	return nil
}

// ValidateJob checks a job manifest and its pod template
func ValidateJob(job *batchv1.Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name cannot be empty")
	}
	if job.Spec.Parallelism != nil && *job.Spec.Parallelism < 1 {
		return fmt.Errorf("job %s: parallelism must be at least 1, got %d", job.Name, *job.Spec.Parallelism)
	}
	if err := validatePodSpec(&job.Spec.Template.Spec); err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	if job.Spec.Template.Spec.RestartPolicy == corev1.RestartPolicyAlways {
		return fmt.Errorf("job %s: restartPolicy Always is not accepted for job pods", job.Name)
	}
	return nil
}

func validatePodSpec(spec *corev1.PodSpec) error {
	if len(spec.Containers) == 0 {
		return fmt.Errorf("at least one container is required")
	}
	if !validRestartPolicies[spec.RestartPolicy] {
		return fmt.Errorf("invalid restartPolicy %q", spec.RestartPolicy)
	}
	for _, container := range spec.Containers {
		if err := validateContainer(&container); err != nil {
			return err
		}
	}
	return nil
}

func validateContainer(container *corev1.Container) error {
	if container.Image == "" {
		return fmt.Errorf("container %s: image cannot be empty", container.Name)
	}
	for _, port := range container.Ports {
		if port.ContainerPort < 1 || port.ContainerPort > 65535 {
			return fmt.Errorf("container %s: containerPort %d outside valid range 1-65535",
				container.Name, port.ContainerPort)
		}
	}
	for _, env := range container.Env {
		if env.ValueFrom == nil || env.ValueFrom.SecretKeyRef == nil {
			continue
		}
		ref := env.ValueFrom.SecretKeyRef
		if ref.Name == "" {
			return fmt.Errorf("container %s: env %s references a secret with no name", container.Name, env.Name)
		}
		if ref.Key == "" {
			return fmt.Errorf("container %s: env %s references secret %s with no key", container.Name, env.Name, ref.Name)
		}
	}
	return nil
}

// SecretKeyRefs collects the (secret, key) pairs a pod spec references.
// The kubernetes manager verifies each against the live secret before the
// pod is created.
func SecretKeyRefs(spec *corev1.PodSpec) map[string][]string {
	refs := map[string][]string{}
	for _, container := range spec.Containers {
		for _, env := range container.Env {
			if env.ValueFrom == nil || env.ValueFrom.SecretKeyRef == nil {
				continue
			}
			ref := env.ValueFrom.SecretKeyRef
			refs[ref.Name] = append(refs[ref.Name], ref.Key)
		}
	}
	return refs
}
