// Copyright Contributors to the Open Cluster Management project
package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	authzv1 "k8s.io/api/authorization/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes"
	fake "k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"
)

func newTestSource(authenticated bool, username string) *OpenShiftProjectSource {
	calls := 0
	return &OpenShiftProjectSource{
		tokenReviews: newTokenReviewCache(
			fakeAuthClient(authenticated, username, &calls).AuthenticationV1(), time.Minute),
	}
}

func fakeProject(name, uid string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "project.openshift.io/v1",
		"kind":       "Project",
		"metadata": map[string]interface{}{
			"name": name,
			"uid":  uid,
		},
	}}
}

func Test_ResolveUser_normalizesIdentity(t *testing.T) {
	source := newTestSource(true, `MYDOMAIN\alice`)

	rc, err := source.ResolveUser(context.TODO(), "token")

	assert.Nil(t, err)
	assert.Equal(t, "MYDOMAIN/alice", rc.Identity)
	assert.Equal(t, `MYDOMAIN\alice`, rc.Username, "impersonation must use the identity as reported by the cluster")
	assert.Equal(t, "user-uid", rc.UID)
}

func Test_ResolveUser_rejectedToken(t *testing.T) {
	source := newTestSource(false, "")

	_, err := source.ResolveUser(context.TODO(), "bad-token")

	assert.True(t, IsAuthError(err))
}

func Test_ListProjectsFor_sorted(t *testing.T) {
	scheme := runtime.NewScheme()
	dynamicClient := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(scheme,
		map[schema.GroupVersionResource]string{projectsGVR: "ProjectList"},
		fakeProject("zeta", "uid3"), fakeProject("alpha", "uid1"))
	source := &OpenShiftProjectSource{
		impersonateDynamic: func(rc RequestContext) (dynamic.Interface, error) {
			return dynamicClient, nil
		},
	}

	projects, err := source.ListProjectsFor(context.TODO(), RequestContext{Identity: "alice"})

	assert.Nil(t, err)
	assert.Equal(t, []Project{{Name: "alpha", UID: "uid1"}, {Name: "zeta", UID: "uid3"}}, projects)
}

func Test_IsOperationsUser(t *testing.T) {
	for _, allowed := range []bool{true, false} {
		fakeClient := fake.NewSimpleClientset()
		fakeClient.PrependReactor("create", "selfsubjectaccessreviews",
			func(action clienttesting.Action) (bool, runtime.Object, error) {
				review, _ := action.(clienttesting.CreateAction).GetObject().(*authzv1.SelfSubjectAccessReview)
				assert.Equal(t, "get", review.Spec.ResourceAttributes.Verb)
				assert.Equal(t, "namespaces", review.Spec.ResourceAttributes.Resource)
				assert.Equal(t, "", review.Spec.ResourceAttributes.Namespace, "operations check must be cluster scoped")
				return true, &authzv1.SelfSubjectAccessReview{
					Status: authzv1.SubjectAccessReviewStatus{Allowed: allowed},
				}, nil
			})
		source := &OpenShiftProjectSource{
			impersonateKube: func(rc RequestContext) (kubernetes.Interface, error) {
				return fakeClient, nil
			},
		}

		result, err := source.IsOperationsUser(context.TODO(), RequestContext{Identity: "bob"})

		assert.Nil(t, err)
		assert.Equal(t, allowed, result)
	}
}
