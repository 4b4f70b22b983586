// Copyright Contributors to the Open Cluster Management project
package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	authv1 "k8s.io/api/authentication/v1"
	"k8s.io/apimachinery/pkg/runtime"
	fake "k8s.io/client-go/kubernetes/fake"
	clienttesting "k8s.io/client-go/testing"
)

// Fake authentication client that counts TokenReview requests and answers
// with the given status.
func fakeAuthClient(authenticated bool, username string, calls *int) *fake.Clientset {
	fakeClient := fake.NewSimpleClientset()
	fakeClient.PrependReactor("create", "tokenreviews",
		func(action clienttesting.Action) (bool, runtime.Object, error) {
			*calls++
			return true, &authv1.TokenReview{
				Status: authv1.TokenReviewStatus{
					Authenticated: authenticated,
					User:          authv1.UserInfo{Username: username, UID: "user-uid"},
				},
			}, nil
		})
	return fakeClient
}

func Test_getTokenReview_newRequest(t *testing.T) {
	calls := 0
	cache := newTokenReviewCache(fakeAuthClient(true, "alice", &calls).AuthenticationV1(), time.Minute)

	tr, err := cache.getTokenReview(context.TODO(), "1234567890")

	assert.Nil(t, err)
	assert.True(t, tr.Status.Authenticated)
	assert.Equal(t, "alice", tr.Status.User.Username)
	assert.Equal(t, 1, calls)
}

func Test_getTokenReview_usingCache(t *testing.T) {
	calls := 0
	cache := newTokenReviewCache(fakeAuthClient(true, "alice", &calls).AuthenticationV1(), time.Minute)

	_, err := cache.getTokenReview(context.TODO(), "1234567890")
	assert.Nil(t, err)
	_, err = cache.getTokenReview(context.TODO(), "1234567890")
	assert.Nil(t, err)

	assert.Equal(t, 1, calls, "second request must be served from cache")
}

func Test_getTokenReview_expiredCache(t *testing.T) {
	calls := 0
	cache := newTokenReviewCache(fakeAuthClient(true, "alice", &calls).AuthenticationV1(), 10*time.Millisecond)

	_, err := cache.getTokenReview(context.TODO(), "1234567890")
	assert.Nil(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = cache.getTokenReview(context.TODO(), "1234567890")
	assert.Nil(t, err)
	assert.Equal(t, 2, calls, "expired entry must trigger a new TokenReview")
}
