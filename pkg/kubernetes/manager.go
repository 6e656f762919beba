package kubernetes

import (
	"context"
	"fmt"
	"log"
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"

	"github.com/andrewasheridan/kaleidoscope/pkg/manifest"
	"github.com/andrewasheridan/kaleidoscope/pkg/rbac"
)

const (
	// DefaultLaunchTimeout bounds how long we wait for a launched pod to leave Pending.
	DefaultLaunchTimeout = 5 * time.Minute
)

// Manager handles the pipeline's Kubernetes resources
type Manager struct {
	clientset kubernetes.Interface
	config    *Config
}

// NewManager creates a new Manager
func NewManager(clientset kubernetes.Interface, config *Config) *Manager {
	return &Manager{
		clientset: clientset,
		config:    config,
	}
}

// VerifyAccess checks the current identity can manage every resource the
// pipeline creates in its namespace
func (m *Manager) VerifyAccess(ctx context.Context) error {
	return rbac.VerifyPermissions(ctx, m.clientset, m.config.Namespace)
}

// EnsureBase ensures the credential secret, the redis service and the redis
// master pod exist. Called once before any pipeline step launches.
func (m *Manager) EnsureBase(ctx context.Context, creds manifest.Credentials) error {
	if err := m.ensureSecret(ctx, creds); err != nil {
		return fmt.Errorf("failed to ensure secret: %w", err)
	}
	if err := m.ensureRedisService(ctx); err != nil {
		return fmt.Errorf("failed to ensure redis service: %w", err)
	}
	if err := m.ensureRedisMaster(ctx); err != nil {
		return fmt.Errorf("failed to ensure redis master: %w", err)
	}
	return nil
}

// ensureSecret creates or updates the credential secret
func (m *Manager) ensureSecret(ctx context.Context, creds manifest.Credentials) error {
	secret := manifest.CredentialSecret(creds)

	existing, err := m.clientset.CoreV1().Secrets(m.config.Namespace).Get(ctx, secret.Name, metav1.GetOptions{})
	if err != nil {
		if errors.IsNotFound(err) {
			_, err = m.clientset.CoreV1().Secrets(m.config.Namespace).Create(ctx, secret, metav1.CreateOptions{})
			if err != nil {
				return fmt.Errorf("failed to create secret: %w", err)
			}
			log.Printf("Created Secret %s/%s", m.config.Namespace, secret.Name)
			return nil
		}
		return fmt.Errorf("failed to get secret: %w", err)
	}

	existing.Data = nil
	existing.StringData = secret.StringData
	_, err = m.clientset.CoreV1().Secrets(m.config.Namespace).Update(ctx, existing, metav1.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("failed to update secret: %w", err)
	}
	log.Printf("Updated Secret %s/%s", m.config.Namespace, secret.Name)
	return nil
}

// ensureRedisService creates the redis service if it doesn't exist
func (m *Manager) ensureRedisService(ctx context.Context) error {
	service := manifest.RedisService()

	_, err := m.clientset.CoreV1().Services(m.config.Namespace).Get(ctx, service.Name, metav1.GetOptions{})
	if err != nil {
		if errors.IsNotFound(err) {
			_, err = m.clientset.CoreV1().Services(m.config.Namespace).Create(ctx, service, metav1.CreateOptions{})
			if err != nil {
				return fmt.Errorf("failed to create service: %w", err)
			}
			log.Printf("Created Service %s/%s", m.config.Namespace, service.Name)
			return nil
		}
		return fmt.Errorf("failed to get service: %w", err)
	}

	log.Printf("Service %s/%s already exists", m.config.Namespace, service.Name)
	return nil
}

// ensureRedisMaster creates the redis master pod if it doesn't exist
func (m *Manager) ensureRedisMaster(ctx context.Context) error {
	pod := manifest.RedisMasterPod()

	_, err := m.clientset.CoreV1().Pods(m.config.Namespace).Get(ctx, pod.Name, metav1.GetOptions{})
	if err != nil {
		if errors.IsNotFound(err) {
			_, err = m.clientset.CoreV1().Pods(m.config.Namespace).Create(ctx, pod, metav1.CreateOptions{})
			if err != nil {
				return fmt.Errorf("failed to create redis master: %w", err)
			}
			log.Printf("Created Pod %s/%s", m.config.Namespace, pod.Name)
			return nil
		}
		return fmt.Errorf("failed to get redis master: %w", err)
	}

	log.Printf("Pod %s/%s already exists", m.config.Namespace, pod.Name)
	return nil
}

// VerifySecretKeys checks that every listed key exists in the named secret.
// Launch paths call this before creating pods that resolve secretKeyRefs, so
// a missing key fails here with a clear message instead of leaving a pod
// stuck in CreateContainerConfigError.
func (m *Manager) VerifySecretKeys(ctx context.Context, secretName string, keys ...string) error {
	secret, err := m.clientset.CoreV1().Secrets(m.config.Namespace).Get(ctx, secretName, metav1.GetOptions{})
	if err != nil {
		if errors.IsNotFound(err) {
			return fmt.Errorf("secret %s/%s does not exist", m.config.Namespace, secretName)
		}
		return fmt.Errorf("failed to get secret %s: %w", secretName, err)
	}

	var missing []string
	for _, key := range keys {
		if _, ok := secret.Data[key]; ok {
			continue
		}
		if _, ok := secret.StringData[key]; ok {
			continue
		}
		missing = append(missing, key)
	}
	if len(missing) > 0 {
		return fmt.Errorf("secret %s/%s is missing keys %v", m.config.Namespace, secretName, missing)
	}
	return nil
}

// LaunchQueueMaker creates the one-shot queue-maker pod. With restartPolicy
// Never a finished pod stays around, so force deletes any previous run first.
func (m *Manager) LaunchQueueMaker(ctx context.Context, originBucket string, force bool) error {
	return m.launchPod(ctx, manifest.QueueMakerPod(originBucket), force)
}

// LaunchPoll creates the poll pod reporting queue progress
func (m *Manager) LaunchPoll(ctx context.Context, force bool) error {
	return m.launchPod(ctx, manifest.PollPod(), force)
}

func (m *Manager) launchPod(ctx context.Context, pod *corev1.Pod, force bool) error {
	if err := manifest.ValidatePod(pod); err != nil {
		return fmt.Errorf("invalid pod manifest: %w", err)
	}
	if err := m.verifyPodSecretRefs(ctx, &pod.Spec); err != nil {
		return err
	}

	if force {
		if err := m.deletePod(ctx, pod.Name); err != nil {
			return err
		}
		// deletion is asynchronous; the old pod lingers in Terminating
		// and Create would hit AlreadyExists until it is gone
		if err := m.waitForPodGone(ctx, pod.Name); err != nil {
			return err
		}
	}

	_, err := m.clientset.CoreV1().Pods(m.config.Namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		if errors.IsAlreadyExists(err) {
			return fmt.Errorf("pod %s already exists; it is a one-shot step, rerun with force to replace it", pod.Name)
		}
		return fmt.Errorf("failed to create pod %s: %w", pod.Name, err)
	}
	log.Printf("Created Pod %s/%s", m.config.Namespace, pod.Name)
	return nil
}

// LaunchWorkers creates the parallel transform job
func (m *Manager) LaunchWorkers(ctx context.Context, originBucket, destinationBucket string, workers int32) error {
	job := manifest.WorkerJob(originBucket, destinationBucket, workers)
	if err := manifest.ValidateJob(job); err != nil {
		return fmt.Errorf("invalid job manifest: %w", err)
	}
	if err := m.verifyPodSecretRefs(ctx, &job.Spec.Template.Spec); err != nil {
		return err
	}

	_, err := m.clientset.BatchV1().Jobs(m.config.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.Name, err)
	}
	log.Printf("Created Job %s/%s with %d workers", m.config.Namespace, job.Name, workers)
	return nil
}

// verifyPodSecretRefs verifies every secretKeyRef in the spec resolves
func (m *Manager) verifyPodSecretRefs(ctx context.Context, spec *corev1.PodSpec) error {
	for secretName, keys := range manifest.SecretKeyRefs(spec) {
		if err := m.VerifySecretKeys(ctx, secretName, keys...); err != nil {
			return err
		}
	}
	return nil
}

// waitForPodGone waits until the named pod has finished terminating
func (m *Manager) waitForPodGone(ctx context.Context, name string) error {
	return wait.PollUntilContextTimeout(ctx, 500*time.Millisecond, DefaultLaunchTimeout, true, func(ctx context.Context) (bool, error) {
		_, err := m.clientset.CoreV1().Pods(m.config.Namespace).Get(ctx, name, metav1.GetOptions{})
		if errors.IsNotFound(err) {
			return true, nil
		}
		if err != nil {
			return false, err
		}

		log.Printf("Waiting for pod %s/%s to terminate", m.config.Namespace, name)
		return false, nil
	})
}

// WaitForPodRunning waits until the named pod is running, or succeeded in
// case it finished faster than we polled.
func (m *Manager) WaitForPodRunning(ctx context.Context, name string, timeout time.Duration) error {
	return wait.PollUntilContextTimeout(ctx, 2*time.Second, timeout, true, func(ctx context.Context) (bool, error) {
		pod, err := m.clientset.CoreV1().Pods(m.config.Namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, err
		}

		switch pod.Status.Phase {
		case corev1.PodRunning, corev1.PodSucceeded:
			log.Printf("Pod %s/%s is %s", m.config.Namespace, name, pod.Status.Phase)
			return true, nil
		case corev1.PodFailed:
			return false, fmt.Errorf("pod %s failed and will not be restarted", name)
		}

		log.Printf("Waiting for pod %s/%s: %s", m.config.Namespace, name, pod.Status.Phase)
		return false, nil
	})
}

// PodPhase returns the phase of the named pod
func (m *Manager) PodPhase(ctx context.Context, name string) (corev1.PodPhase, error) {
	pod, err := m.clientset.CoreV1().Pods(m.config.Namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get pod %s: %w", name, err)
	}
	return pod.Status.Phase, nil
}

// TearDown deletes every pipeline resource. Missing resources are fine.
func (m *Manager) TearDown(ctx context.Context) error {
	propagation := metav1.DeletePropagationBackground
	err := m.clientset.BatchV1().Jobs(m.config.Namespace).Delete(ctx, manifest.WorkerJobName, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	if err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete worker job: %w", err)
	}

	for _, name := range []string{"queue-maker", "poll", "redis-master"} {
		if err := m.deletePod(ctx, name); err != nil {
			return err
		}
	}

	err = m.clientset.CoreV1().Services(m.config.Namespace).Delete(ctx, manifest.RedisServiceName, metav1.DeleteOptions{})
	if err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete redis service: %w", err)
	}

	err = m.clientset.CoreV1().Secrets(m.config.Namespace).Delete(ctx, manifest.SecretName, metav1.DeleteOptions{})
	if err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	log.Printf("Tore down pipeline resources in %s", m.config.Namespace)
	return nil
}

func (m *Manager) deletePod(ctx context.Context, name string) error {
	err := m.clientset.CoreV1().Pods(m.config.Namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete pod %s: %w", name, err)
	}
	return nil
}
