// Package manifest builds the Kubernetes manifests for the kaleidoscope pipeline.
//
// All builders are pure: they return typed API objects and never touch the
// cluster. Secret values are never embedded in pod manifests, only referenced
// through secretKeyRef.
package manifest

import (
	"fmt"
	"os"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// SecretName is the name of the secret holding the AWS credentials.
	SecretName = "secret-secret"

	// QueueMakerImage is the image that feeds the work queue.
	QueueMakerImage = "andrewasheridan/queue-maker:packaged-golf"
	// PollImage reports queue progress on stdout.
	PollImage = "andrewasheridan/poll:packaged-golf"
	// WorkerImage runs the image transformations.
	WorkerImage = "andrewasheridan/worker:packaged-golf"
	// RedisImage backs the work queue.
	RedisImage = "redis:latest"

	// RedisPort is the port redis listens on, also declared by the
	// queue-maker container.
	RedisPort = 6379
	// RedisServiceName is the in-cluster DNS name of the queue.
	RedisServiceName = "redis"

	// WorkerJobName is the name of the job running the transformations.
	WorkerJobName = "transform-workers"
)

// Environment variable names resolved from the credential secret.
const (
	EnvRegion          = "AWS_DEFAULT_REGION"
	EnvAccessKeyID     = "AWS_ACCESS_KEY_ID"
	EnvSecretAccessKey = "AWS_SECRET_ACCESS_KEY"
)

// SecretKeys are the keys every pipeline pod resolves from the secret.
var SecretKeys = []string{EnvRegion, EnvAccessKeyID, EnvSecretAccessKey}

// Credentials holds the AWS credentials planted into the secret
type Credentials struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// CredentialsFromEnv reads the credentials from the process environment
func CredentialsFromEnv() (Credentials, error) {
	creds := Credentials{
		Region:          os.Getenv(EnvRegion),
		AccessKeyID:     os.Getenv(EnvAccessKeyID),
		SecretAccessKey: os.Getenv(EnvSecretAccessKey),
	}
	if creds.Region == "" || creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return Credentials{}, fmt.Errorf("set %s, %s and %s in your environment",
			EnvAccessKeyID, EnvSecretAccessKey, EnvRegion)
	}
	return creds, nil
}

// CredentialSecret builds the secret the pipeline pods pull AWS credentials
// from. Values go into StringData raw; the API server encodes them.
func CredentialSecret(creds Credentials) *corev1.Secret {
	return &corev1.Secret{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Secret"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   SecretName,
			Labels: pipelineLabels("credentials"),
		},
		Type: corev1.SecretTypeOpaque,
		StringData: map[string]string{
			EnvRegion:          creds.Region,
			EnvAccessKeyID:     creds.AccessKeyID,
			EnvSecretAccessKey: creds.SecretAccessKey,
		},
	}
}

// RedisService builds the ClusterIP service fronting the queue
func RedisService() *corev1.Service {
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   RedisServiceName,
			Labels: pipelineLabels("queue"),
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": "redis"},
			Ports: []corev1.ServicePort{
				{Name: "redis", Protocol: corev1.ProtocolTCP, Port: RedisPort},
			},
			Type: corev1.ServiceTypeClusterIP,
		},
	}
}

// RedisMasterPod builds the single redis pod backing the queue
func RedisMasterPod() *corev1.Pod {
	return &corev1.Pod{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   "redis-master",
			Labels: map[string]string{"app": "redis", "pipeline": "kaleidoscope"},
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{
					Name:  "redis",
					Image: RedisImage,
					Ports: []corev1.ContainerPort{
						{ContainerPort: RedisPort, Name: "redis"},
					},
				},
			},
			RestartPolicy: corev1.RestartPolicyAlways,
		},
	}
}

// QueueMakerPod builds the one-shot pod that enumerates the origin bucket
// and fills the work queue. It exits when the queue is full and is never
// restarted.
func QueueMakerPod(originBucket string) *corev1.Pod {
	return &corev1.Pod{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   "queue-maker",
			Labels: pipelineLabels("queue-maker"),
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{
					Name:    "queue-maker",
					Image:   QueueMakerImage,
					Command: []string{"python", "queue_maker.py"},
					Ports: []corev1.ContainerPort{
						{ContainerPort: RedisPort},
					},
					Env: append(credentialEnv(),
						corev1.EnvVar{Name: "REDIS_HOST", Value: RedisServiceName},
						corev1.EnvVar{Name: "ORIGIN_BUCKET", Value: originBucket},
					),
				},
			},
			RestartPolicy: corev1.RestartPolicyNever,
		},
	}
}

// PollPod builds the pod that prints `remaining:total` queue counts to its
// log, one line per interval.
func PollPod() *corev1.Pod {
	return &corev1.Pod{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   "poll",
			Labels: pipelineLabels("poll"),
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{
					Name:    "poll",
					Image:   PollImage,
					Command: []string{"python", "poll.py"},
					Env: []corev1.EnvVar{
						{Name: "REDIS_HOST", Value: RedisServiceName},
					},
				},
			},
			RestartPolicy: corev1.RestartPolicyNever,
		},
	}
}

// WorkerJob builds the parallel job draining the queue. Workers pull keys
// from redis, transform the images and push results to the destination
// bucket.
func WorkerJob(originBucket, destinationBucket string, workers int32) *batchv1.Job {
	backoffLimit := int32(4)
	return &batchv1.Job{
		TypeMeta: metav1.TypeMeta{APIVersion: "batch/v1", Kind: "Job"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   WorkerJobName,
			Labels: pipelineLabels("worker"),
		},
		Spec: batchv1.JobSpec{
			Parallelism:  &workers,
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: pipelineLabels("worker"),
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:    "worker",
							Image:   WorkerImage,
							Command: []string{"python", "worker.py"},
							Env: append(credentialEnv(),
								corev1.EnvVar{Name: "REDIS_HOST", Value: RedisServiceName},
								corev1.EnvVar{Name: "ORIGIN_BUCKET", Value: originBucket},
								corev1.EnvVar{Name: "DESTINATION_BUCKET", Value: destinationBucket},
							),
						},
					},
					RestartPolicy: corev1.RestartPolicyOnFailure,
				},
			},
		},
	}
}

// credentialEnv maps the AWS variables through secretKeyRef so the manifests
// carry pointers into the secret, never values.
func credentialEnv() []corev1.EnvVar {
	env := make([]corev1.EnvVar, 0, len(SecretKeys))
	for _, key := range SecretKeys {
		env = append(env, corev1.EnvVar{
			Name: key,
			ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: SecretName},
					Key:                  key,
				},
			},
		})
	}
	return env
}

func pipelineLabels(app string) map[string]string {
	return map[string]string{
		"app":      app,
		"pipeline": "kaleidoscope",
	}
}
