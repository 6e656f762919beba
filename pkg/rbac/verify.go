// Package rbac verifies the service account can touch everything the
// pipeline creates before any of it is created.
package rbac

import (
	"context"
	"fmt"
	"strings"

	authv1 "k8s.io/api/authorization/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// RequiredPermission represents a permission that needs to be verified
type RequiredPermission struct {
	APIGroup    string
	Resource    string
	Subresource string
	Verb        string
	Namespace   string
}

// GetRequiredPermissions returns the permissions the pipeline needs: full
// control of its pods, the credential secret, the redis service and the
// worker job, all namespace-scoped.
func GetRequiredPermissions(namespace string) []RequiredPermission {
	permissions := []RequiredPermission{}

	for _, verb := range []string{"get", "list", "create", "delete"} {
		permissions = append(permissions, RequiredPermission{APIGroup: "", Resource: "pods", Verb: verb, Namespace: namespace})
	}
	permissions = append(permissions, RequiredPermission{APIGroup: "", Resource: "pods", Subresource: "log", Verb: "get", Namespace: namespace})

	for _, verb := range []string{"get", "create", "update", "delete"} {
		permissions = append(permissions, RequiredPermission{APIGroup: "", Resource: "secrets", Verb: verb, Namespace: namespace})
	}

	for _, verb := range []string{"get", "create", "delete"} {
		permissions = append(permissions, RequiredPermission{APIGroup: "", Resource: "services", Verb: verb, Namespace: namespace})
	}

	// update covers the worker scaler patching the live job's parallelism
	for _, verb := range []string{"get", "create", "update", "delete"} {
		permissions = append(permissions, RequiredPermission{APIGroup: "batch", Resource: "jobs", Verb: verb, Namespace: namespace})
	}

	return permissions
}

// VerifyPermissions checks if the current identity has all required
// permissions. The returned error lists every missing one.
func VerifyPermissions(ctx context.Context, clientset kubernetes.Interface, namespace string) error {
	var missing []string

	for _, perm := range GetRequiredPermissions(namespace) {
		allowed, err := CheckPermission(ctx, clientset, perm)
		if err != nil {
			return fmt.Errorf("failed to check permission %s/%s:%s: %w", perm.APIGroup, perm.Resource, perm.Verb, err)
		}
		if !allowed {
			missing = append(missing, fmt.Sprintf("  - %s %s.%s (namespace=%s)", perm.Verb, perm.Resource, perm.APIGroup, perm.Namespace))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required RBAC permissions:\n%s", strings.Join(missing, "\n"))
	}
	return nil
}

// CheckPermission verifies if a specific permission is granted
func CheckPermission(ctx context.Context, clientset kubernetes.Interface, perm RequiredPermission) (bool, error) {
	sar := &authv1.SelfSubjectAccessReview{
		Spec: authv1.SelfSubjectAccessReviewSpec{
			ResourceAttributes: &authv1.ResourceAttributes{
				Verb:        perm.Verb,
				Group:       perm.APIGroup,
				Resource:    perm.Resource,
				Subresource: perm.Subresource,
				Namespace:   perm.Namespace,
			},
		},
	}

	result, err := clientset.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, sar, metav1.CreateOptions{})
	if err != nil {
		return false, err
	}

	return result.Status.Allowed, nil
}
