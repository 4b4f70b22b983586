// Copyright Contributors to the Open Cluster Management project
package syncer

import (
	"context"

	"github.com/stolostron/search-acl-sync/pkg/acl"
	"github.com/stolostron/search-acl-sync/pkg/auth"
	"github.com/stolostron/search-acl-sync/pkg/usercache"
	"k8s.io/klog/v2"
)

// Syncer is what the request path calls: resolve the caller, refresh the
// membership cache if this user isn't in it, and run a sync cycle so the
// stored documents pick up the change.
type Syncer struct {
	source  auth.ProjectSource
	cache   *usercache.Cache
	manager *acl.DocumentManager
}

func New(source auth.ProjectSource, cache *usercache.Cache, manager *acl.DocumentManager) *Syncer {
	return &Syncer{source: source, cache: cache, manager: manager}
}

// EnsureSynced makes sure the caller's projects are reflected in the stored
// ACL documents. An AuthError from the cluster fails the request; a sync
// failure does not, because the request is still served from the ACL state
// already in the store.
func (s *Syncer) EnsureSynced(ctx context.Context, token string) error {
	rc, err := s.source.ResolveUser(ctx, token)
	if err != nil {
		return err
	}

	if s.cache.HasUser(rc.Identity) {
		klog.V(5).Infof("User %s is already cached, skipping sync.", rc.Identity)
		return nil
	}

	projects, err := s.source.ListProjectsFor(ctx, rc)
	if err != nil {
		return err
	}
	isOperations, err := s.source.IsOperationsUser(ctx, rc)
	if err != nil {
		return err
	}

	s.cache.Update(rc.Identity, projects, isOperations)
	klog.V(3).Infof("Cached user %s with %d projects (operations=%t). Starting ACL sync.",
		rc.Identity, len(projects), isOperations)

	if err := s.manager.SyncFromCache(ctx); err != nil {
		// Stale-but-safe: the enforcement layer keeps using the previously
		// synced state, and the next request retriggers the cycle.
		klog.Warningf("ACL sync for user %s did not complete: %s", rc.Identity, err.Error())
	}
	return nil
}
