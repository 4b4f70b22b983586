// Copyright Contributors to the Open Cluster Management project
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/stolostron/search-acl-sync/pkg/config"
	"github.com/stolostron/search-acl-sync/pkg/metrics"
	authzv1 "k8s.io/api/authorization/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/klog/v2"
)

var projectsGVR = schema.GroupVersionResource{Group: "project.openshift.io", Version: "v1", Resource: "projects"}

// RequestContext carries what the surrounding request pipeline resolved about
// the caller. Identity is the normalized form and is authoritative for the
// cache key and every generated role name. Username is the identity as
// reported by the cluster, used for impersonated API calls.
type RequestContext struct {
	Identity string
	Username string
	UID      string
	Token    string
}

// ProjectSource is the contract with the cluster authorization source.
type ProjectSource interface {
	// ResolveUser validates the token and returns the caller's identity.
	// An invalid credential returns an AuthError.
	ResolveUser(ctx context.Context, token string) (RequestContext, error)

	// ListProjectsFor returns the projects visible to the caller.
	ListProjectsFor(ctx context.Context, rc RequestContext) ([]Project, error)

	// IsOperationsUser reports whether the caller has cluster-wide
	// (cross-tenant) visibility.
	IsOperationsUser(ctx context.Context, rc RequestContext) (bool, error)
}

// OpenShiftProjectSource implements ProjectSource against the cluster API.
// Project listing and access checks run impersonated as the caller so the
// cluster's own RBAC answers, not this service's.
type OpenShiftProjectSource struct {
	restConfig   *rest.Config
	tokenReviews *tokenReviewCache

	// Test hooks. When set, impersonated clients are not built from restConfig.
	impersonateKube    func(rc RequestContext) (kubernetes.Interface, error)
	impersonateDynamic func(rc RequestContext) (dynamic.Interface, error)
}

func NewOpenShiftProjectSource(restConfig *rest.Config) *OpenShiftProjectSource {
	kubeClient, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		klog.Fatal("Error building kubernetes client for token review. ", err)
	}
	return &OpenShiftProjectSource{
		restConfig:   restConfig,
		tokenReviews: newTokenReviewCache(kubeClient.AuthenticationV1(), time.Duration(config.Cfg.AuthCacheTTL)*time.Millisecond),
	}
}

func (o *OpenShiftProjectSource) ResolveUser(ctx context.Context, token string) (RequestContext, error) {
	tr, err := o.tokenReviews.getTokenReview(ctx, token)
	if err != nil {
		return RequestContext{}, fmt.Errorf("unable to validate token: %w", err)
	}
	if !tr.Status.Authenticated {
		metrics.AuthnFailed.Inc()
		return RequestContext{}, &AuthError{Identity: tr.Status.User.Username}
	}

	return RequestContext{
		Identity: NormalizeIdentity(tr.Status.User.Username),
		Username: tr.Status.User.Username,
		UID:      tr.Status.User.UID,
		Token:    token,
	}, nil
}

func (o *OpenShiftProjectSource) ListProjectsFor(ctx context.Context, rc RequestContext) ([]Project, error) {
	client, err := o.dynamicClientFor(rc)
	if err != nil {
		return nil, err
	}

	list, err := client.Resource(projectsGVR).List(ctx, metav1.ListOptions{})
	if err != nil {
		if apierrors.IsUnauthorized(err) || apierrors.IsForbidden(err) {
			metrics.AuthnFailed.Inc()
			return nil, &AuthError{Identity: rc.Identity, Err: err}
		}
		return nil, err
	}

	projects := make([]Project, 0, len(list.Items))
	for _, item := range list.Items {
		projects = append(projects, Project{Name: item.GetName(), UID: string(item.GetUID())})
	}
	SortProjects(projects)
	klog.V(5).Infof("User %s has %d projects.", rc.Identity, len(projects))
	return projects, nil
}

func (o *OpenShiftProjectSource) IsOperationsUser(ctx context.Context, rc RequestContext) (bool, error) {
	client, err := o.kubeClientFor(rc)
	if err != nil {
		return false, err
	}

	// Cluster-wide read on namespaces is the marker for operations visibility.
	ssar := &authzv1.SelfSubjectAccessReview{
		Spec: authzv1.SelfSubjectAccessReviewSpec{
			ResourceAttributes: &authzv1.ResourceAttributes{
				Verb:     "get",
				Resource: "namespaces",
			},
		},
	}
	result, err := client.AuthorizationV1().SelfSubjectAccessReviews().Create(ctx, ssar, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsUnauthorized(err) {
			metrics.AuthnFailed.Inc()
			return false, &AuthError{Identity: rc.Identity, Err: err}
		}
		return false, err
	}
	klog.V(6).Infof("SelfSubjectAccessReview for user %s allowed: %t", rc.Identity, result.Status.Allowed)
	return result.Status.Allowed, nil
}

func (o *OpenShiftProjectSource) impersonationConfig(rc RequestContext) *rest.Config {
	conf := rest.CopyConfig(o.restConfig)
	conf.Impersonate = rest.ImpersonationConfig{
		UserName: rc.Username,
		UID:      rc.UID,
	}
	return conf
}

func (o *OpenShiftProjectSource) kubeClientFor(rc RequestContext) (kubernetes.Interface, error) {
	if o.impersonateKube != nil {
		return o.impersonateKube(rc)
	}
	return kubernetes.NewForConfig(o.impersonationConfig(rc))
}

func (o *OpenShiftProjectSource) dynamicClientFor(rc RequestContext) (dynamic.Interface, error) {
	if o.impersonateDynamic != nil {
		return o.impersonateDynamic(rc)
	}
	return dynamic.NewForConfig(o.impersonationConfig(rc))
}
