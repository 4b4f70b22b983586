// Copyright Contributors to the Open Cluster Management project
package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	authv1 "k8s.io/api/authentication/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	authnv1client "k8s.io/client-go/kubernetes/typed/authentication/v1"
	"k8s.io/klog/v2"
)

const tokenReviewCacheSize = 1000

// Caches TokenReview responses keyed by the raw bearer token so repeated
// requests from the same client don't hammer the cluster API.
type tokenReviewCache struct {
	authClient authnv1client.AuthenticationV1Interface
	reviews    *expirable.LRU[string, *authv1.TokenReview]
}

func newTokenReviewCache(authClient authnv1client.AuthenticationV1Interface, ttl time.Duration) *tokenReviewCache {
	return &tokenReviewCache{
		authClient: authClient,
		reviews:    expirable.NewLRU[string, *authv1.TokenReview](tokenReviewCacheSize, nil, ttl),
	}
}

// Get the TokenReview response for a given token.
// Will use cached data if available and valid, otherwise starts a new request.
func (t *tokenReviewCache) getTokenReview(ctx context.Context, token string) (*authv1.TokenReview, error) {
	if tr, exists := t.reviews.Get(token); exists {
		klog.V(6).Info("Using TokenReview from cache.")
		return tr, nil
	}

	klog.V(5).Info("Triggering a new TokenReview request.")
	tr := &authv1.TokenReview{
		Spec: authv1.TokenReviewSpec{
			Token: token,
		},
	}
	result, err := t.authClient.TokenReviews().Create(ctx, tr, metav1.CreateOptions{})
	if err != nil {
		klog.Warning("Error during TokenReview. ", err.Error())
		return nil, err
	}

	t.reviews.Add(token, result)
	return result, nil
}
