package kubernetes

import (
	"context"
	"strings"
	"testing"
	"time"

	authv1 "k8s.io/api/authorization/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/andrewasheridan/kaleidoscope/pkg/manifest"
)

var testCreds = manifest.Credentials{
	Region:          "us-east-1",
	AccessKeyID:     "AKIATEST",
	SecretAccessKey: "secret",
}

func TestManager_VerifyAccess(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	manager := NewManager(clientset, &Config{Namespace: "test-ns"})
	ctx := context.Background()

	t.Run("denied access is reported", func(t *testing.T) {
		// the fake API server denies reviews unless stubbed
		if err := manager.VerifyAccess(ctx); err == nil {
			t.Fatal("VerifyAccess() expected error for denied permissions")
		}
	})

	t.Run("granted access passes", func(t *testing.T) {
		clientset.Fake.PrependReactor("create", "selfsubjectaccessreviews", func(action k8stesting.Action) (bool, runtime.Object, error) {
			return true, &authv1.SelfSubjectAccessReview{
				Status: authv1.SubjectAccessReviewStatus{Allowed: true},
			}, nil
		})

		if err := manager.VerifyAccess(ctx); err != nil {
			t.Fatalf("VerifyAccess() error = %v", err)
		}
	})
}

func TestManager_EnsureBase(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	manager := NewManager(clientset, &Config{Namespace: "test-ns"})

	ctx := context.Background()

	t.Run("creates secret, service and redis master", func(t *testing.T) {
		if err := manager.EnsureBase(ctx, testCreds); err != nil {
			t.Fatalf("EnsureBase() error = %v", err)
		}

		secret, err := clientset.CoreV1().Secrets("test-ns").Get(ctx, manifest.SecretName, metav1.GetOptions{})
		if err != nil {
			t.Fatalf("Failed to get Secret: %v", err)
		}
		if secret.StringData["AWS_ACCESS_KEY_ID"] != "AKIATEST" {
			t.Errorf("secret access key id = %v", secret.StringData["AWS_ACCESS_KEY_ID"])
		}

		svc, err := clientset.CoreV1().Services("test-ns").Get(ctx, manifest.RedisServiceName, metav1.GetOptions{})
		if err != nil {
			t.Fatalf("Failed to get Service: %v", err)
		}
		if svc.Spec.Ports[0].Port != manifest.RedisPort {
			t.Errorf("Service port = %v, want %v", svc.Spec.Ports[0].Port, manifest.RedisPort)
		}

		_, err = clientset.CoreV1().Pods("test-ns").Get(ctx, "redis-master", metav1.GetOptions{})
		if err != nil {
			t.Errorf("Failed to get redis master pod: %v", err)
		}
	})

	t.Run("second call updates rather than fails", func(t *testing.T) {
		updated := testCreds
		updated.Region = "eu-west-1"

		if err := manager.EnsureBase(ctx, updated); err != nil {
			t.Fatalf("EnsureBase() error = %v", err)
		}

		secret, err := clientset.CoreV1().Secrets("test-ns").Get(ctx, manifest.SecretName, metav1.GetOptions{})
		if err != nil {
			t.Fatalf("Failed to get Secret: %v", err)
		}
		if secret.StringData["AWS_DEFAULT_REGION"] != "eu-west-1" {
			t.Errorf("secret region = %v, want eu-west-1", secret.StringData["AWS_DEFAULT_REGION"])
		}
	})
}

func TestManager_VerifySecretKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("missing secret", func(t *testing.T) {
		manager := NewManager(fake.NewSimpleClientset(), &Config{Namespace: "test-ns"})

		err := manager.VerifySecretKeys(ctx, manifest.SecretName, manifest.SecretKeys...)
		if err == nil {
			t.Fatal("VerifySecretKeys() error = nil, want error for missing secret")
		}
		if !strings.Contains(err.Error(), "does not exist") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		clientset := fake.NewSimpleClientset(&corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: manifest.SecretName, Namespace: "test-ns"},
			Data:       map[string][]byte{"AWS_DEFAULT_REGION": []byte("us-east-1")},
		})
		manager := NewManager(clientset, &Config{Namespace: "test-ns"})

		err := manager.VerifySecretKeys(ctx, manifest.SecretName, manifest.SecretKeys...)
		if err == nil {
			t.Fatal("VerifySecretKeys() error = nil, want error for missing keys")
		}
		if !strings.Contains(err.Error(), "AWS_ACCESS_KEY_ID") {
			t.Errorf("error should name the missing key: %v", err)
		}
	})

	t.Run("all keys present", func(t *testing.T) {
		clientset := fake.NewSimpleClientset()
		manager := NewManager(clientset, &Config{Namespace: "test-ns"})

		if err := manager.EnsureBase(ctx, testCreds); err != nil {
			t.Fatalf("EnsureBase() error = %v", err)
		}
		if err := manager.VerifySecretKeys(ctx, manifest.SecretName, manifest.SecretKeys...); err != nil {
			t.Errorf("VerifySecretKeys() error = %v", err)
		}
	})
}

func TestManager_LaunchQueueMaker(t *testing.T) {
	ctx := context.Background()

	t.Run("refuses to launch without the secret", func(t *testing.T) {
		manager := NewManager(fake.NewSimpleClientset(), &Config{Namespace: "test-ns"})

		err := manager.LaunchQueueMaker(ctx, "origin-bucket", false)
		if err == nil {
			t.Fatal("LaunchQueueMaker() error = nil, want secret verification failure")
		}

		// no pod may be created when the secret refs cannot resolve
		pods, _ := manager.clientset.CoreV1().Pods("test-ns").List(ctx, metav1.ListOptions{})
		if len(pods.Items) != 0 {
			t.Errorf("expected no pods, got %d", len(pods.Items))
		}
	})

	t.Run("launches once the secret exists", func(t *testing.T) {
		clientset := fake.NewSimpleClientset()
		manager := NewManager(clientset, &Config{Namespace: "test-ns"})

		if err := manager.EnsureBase(ctx, testCreds); err != nil {
			t.Fatalf("EnsureBase() error = %v", err)
		}
		if err := manager.LaunchQueueMaker(ctx, "origin-bucket", false); err != nil {
			t.Fatalf("LaunchQueueMaker() error = %v", err)
		}

		pod, err := clientset.CoreV1().Pods("test-ns").Get(ctx, "queue-maker", metav1.GetOptions{})
		if err != nil {
			t.Fatalf("Failed to get queue-maker pod: %v", err)
		}
		if pod.Spec.RestartPolicy != corev1.RestartPolicyNever {
			t.Errorf("restartPolicy = %v, want Never", pod.Spec.RestartPolicy)
		}
	})

	t.Run("second launch without force fails", func(t *testing.T) {
		clientset := fake.NewSimpleClientset()
		manager := NewManager(clientset, &Config{Namespace: "test-ns"})

		if err := manager.EnsureBase(ctx, testCreds); err != nil {
			t.Fatalf("EnsureBase() error = %v", err)
		}
		if err := manager.LaunchQueueMaker(ctx, "origin-bucket", false); err != nil {
			t.Fatalf("first LaunchQueueMaker() error = %v", err)
		}

		err := manager.LaunchQueueMaker(ctx, "origin-bucket", false)
		if err == nil {
			t.Fatal("second LaunchQueueMaker() error = nil, want already-exists error")
		}

		// force replaces the finished pod
		if err := manager.LaunchQueueMaker(ctx, "origin-bucket", true); err != nil {
			t.Errorf("forced LaunchQueueMaker() error = %v", err)
		}
	})

	t.Run("force waits out a terminating pod", func(t *testing.T) {
		clientset := fake.NewSimpleClientset()
		manager := NewManager(clientset, &Config{Namespace: "test-ns"})

		if err := manager.EnsureBase(ctx, testCreds); err != nil {
			t.Fatalf("EnsureBase() error = %v", err)
		}
		if err := manager.LaunchQueueMaker(ctx, "origin-bucket", false); err != nil {
			t.Fatalf("first LaunchQueueMaker() error = %v", err)
		}

		// the API server acknowledges the delete but keeps the pod around
		// in Terminating for a while
		clientset.Fake.PrependReactor("delete", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
			return true, nil, nil
		})

		polls := 0
		terminating := true
		clientset.Fake.PrependReactor("get", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
			if !terminating || action.(k8stesting.GetAction).GetName() != "queue-maker" {
				return false, nil, nil
			}
			polls++
			if polls > 1 {
				// the grace period ends, the pod finally goes away
				_ = clientset.Tracker().Delete(corev1.SchemeGroupVersion.WithResource("pods"), "test-ns", "queue-maker")
				terminating = false
			}
			return false, nil, nil
		})

		if err := manager.LaunchQueueMaker(ctx, "origin-bucket", true); err != nil {
			t.Fatalf("forced LaunchQueueMaker() error = %v", err)
		}
		if polls < 2 {
			t.Errorf("expected the launch to wait for termination, saw %d polls", polls)
		}

		if _, err := clientset.CoreV1().Pods("test-ns").Get(ctx, "queue-maker", metav1.GetOptions{}); err != nil {
			t.Errorf("Failed to get replacement pod: %v", err)
		}
	})
}

func TestManager_LaunchWorkers(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	manager := NewManager(clientset, &Config{Namespace: "test-ns"})
	ctx := context.Background()

	if err := manager.EnsureBase(ctx, testCreds); err != nil {
		t.Fatalf("EnsureBase() error = %v", err)
	}
	if err := manager.LaunchWorkers(ctx, "origin", "augmented", 25); err != nil {
		t.Fatalf("LaunchWorkers() error = %v", err)
	}

	job, err := clientset.BatchV1().Jobs("test-ns").Get(ctx, "transform-workers", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if job.Spec.Parallelism == nil || *job.Spec.Parallelism != 25 {
		t.Errorf("parallelism = %v, want 25", job.Spec.Parallelism)
	}
}

func TestManager_WaitForPodRunning(t *testing.T) {
	ctx := context.Background()

	t.Run("running pod", func(t *testing.T) {
		clientset := fake.NewSimpleClientset(&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "queue-maker", Namespace: "test-ns"},
			Status:     corev1.PodStatus{Phase: corev1.PodRunning},
		})
		manager := NewManager(clientset, &Config{Namespace: "test-ns"})

		if err := manager.WaitForPodRunning(ctx, "queue-maker", 10*time.Second); err != nil {
			t.Errorf("WaitForPodRunning() error = %v", err)
		}
	})

	t.Run("failed pod is terminal", func(t *testing.T) {
		clientset := fake.NewSimpleClientset(&corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "queue-maker", Namespace: "test-ns"},
			Status:     corev1.PodStatus{Phase: corev1.PodFailed},
		})
		manager := NewManager(clientset, &Config{Namespace: "test-ns"})

		err := manager.WaitForPodRunning(ctx, "queue-maker", 10*time.Second)
		if err == nil {
			t.Error("WaitForPodRunning() error = nil, want failure for terminal pod")
		}
	})
}

func TestManager_TearDown(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	manager := NewManager(clientset, &Config{Namespace: "test-ns"})
	ctx := context.Background()

	if err := manager.EnsureBase(ctx, testCreds); err != nil {
		t.Fatalf("EnsureBase() error = %v", err)
	}
	if err := manager.LaunchQueueMaker(ctx, "origin", false); err != nil {
		t.Fatalf("LaunchQueueMaker() error = %v", err)
	}

	if err := manager.TearDown(ctx); err != nil {
		t.Fatalf("TearDown() error = %v", err)
	}

	pods, _ := clientset.CoreV1().Pods("test-ns").List(ctx, metav1.ListOptions{})
	if len(pods.Items) != 0 {
		t.Errorf("expected no pods after teardown, got %d", len(pods.Items))
	}

	// a second teardown must not error on missing resources
	if err := manager.TearDown(ctx); err != nil {
		t.Errorf("second TearDown() error = %v", err)
	}
}
