// Copyright Contributors to the Open Cluster Management project
package acl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stolostron/search-acl-sync/pkg/config"
	"github.com/stolostron/search-acl-sync/pkg/metrics"
	"github.com/stolostron/search-acl-sync/pkg/notifier"
	"github.com/stolostron/search-acl-sync/pkg/store"
	"github.com/stolostron/search-acl-sync/pkg/usercache"
	"k8s.io/klog/v2"
)

// retryBackoff is the sleep between failed sync attempts. Six attempts with
// these sleeps in between bound a failing cycle before giving up.
var retryBackoff = []time.Duration{
	1 * time.Second,
	1 * time.Second,
	2 * time.Second,
	3 * time.Second,
	5 * time.Second,
	8 * time.Second,
}

// DocumentManager performs the load-mutate-write-notify cycle that keeps the
// stored ACL documents consistent with the membership cache. Cycles are
// strictly serialized: a write is never based on a version read concurrently
// with another cycle's write.
type DocumentManager struct {
	store        store.DocumentStore
	cache        *usercache.Cache
	strategy     SyncStrategy
	reloadSignal chan struct{}

	lock          sync.Mutex
	reloadTimeout time.Duration
	expireIn      time.Duration

	// Replaceable in tests.
	sleep func(time.Duration)
	now   func() time.Time
}

func NewDocumentManager(docStore store.DocumentStore, cache *usercache.Cache,
	strategy SyncStrategy, reloadNotifier *notifier.ReloadNotifier) *DocumentManager {
	m := &DocumentManager{
		store:         docStore,
		cache:         cache,
		strategy:      strategy,
		reloadSignal:  make(chan struct{}, 1),
		reloadTimeout: time.Duration(config.Cfg.ReloadTimeout) * time.Millisecond,
		expireIn:      time.Duration(config.Cfg.ACLExpireIn) * time.Millisecond,
		sleep:         time.Sleep,
		now:           time.Now,
	}
	reloadNotifier.Subscribe("acl-document-manager", m.onReload)
	return m
}

// onReload runs on the notifier's worker goroutine. The buffered channel
// keeps it from ever blocking the fan-out.
func (m *DocumentManager) onReload(tag string) {
	select {
	case m.reloadSignal <- struct{}{}:
	default:
	}
}

// SyncFromCache regenerates the machine-generated entries in both documents
// from the current cache and writes them back. Transient store failures and
// version conflicts are retried with backoff; when every attempt fails the
// cycle reports ErrSyncExhausted and the caller moves on, because the next
// request touching the same user will trigger a fresh cycle.
func (m *DocumentManager) SyncFromCache(ctx context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	start := time.Now()
	defer func() {
		metrics.SyncDuration.Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt, delay := range retryBackoff {
		err := m.applySync(ctx)
		if err == nil {
			if attempt > 0 {
				klog.V(2).Infof("ACL document sync succeeded on attempt %d.", attempt+1)
			}
			m.notifyAndWait(ctx)
			return nil
		}
		lastErr = err
		metrics.SyncRetries.Inc()
		klog.V(2).Infof("ACL document sync attempt %d failed: %s", attempt+1, err.Error())
		if attempt < len(retryBackoff)-1 {
			m.sleep(delay)
		}
	}

	metrics.SyncFailed.Inc()
	klog.Warningf("ACL document sync failed after %d attempts. Last error: %s", len(retryBackoff), lastErr.Error())
	return ErrSyncExhausted
}

// ExpireStaleEntries drops every generated entry whose expiry has passed.
// Best effort: not retried, the next scheduled run catches anything missed.
func (m *DocumentManager) ExpireStaleEntries(ctx context.Context, now time.Time) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	results := m.store.GetMany(ctx, store.Kinds...)
	rolesDoc, rolesVersion, err := loadRoleDocument(results[store.KindRoles])
	if err != nil {
		return err
	}
	mappingsDoc, mappingsVersion, err := loadRoleMappingDocument(results[store.KindRolesMapping])
	if err != nil {
		return err
	}

	removed := rolesDoc.RemoveExpired(now) + mappingsDoc.RemoveExpired(now)
	if removed == 0 {
		klog.V(3).Info("No expired ACL entries found.")
		return nil
	}
	klog.Infof("Removing %d expired ACL entries.", removed)

	if err := m.writeDocument(ctx, store.KindRoles, rolesDoc.ToRaw(), rolesVersion); err != nil {
		return err
	}
	if err := m.writeDocument(ctx, store.KindRolesMapping, mappingsDoc.ToRaw(), mappingsVersion); err != nil {
		return err
	}
	m.notifyAndWait(ctx)
	return nil
}

// SeedDocuments writes initial empty documents at first boot. A document
// that exists but does not parse here is a deployment problem, surfaced as a
// ConfigurationError with no retry.
func (m *DocumentManager) SeedDocuments(ctx context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	results := m.store.GetMany(ctx, store.Kinds...)
	for _, kind := range store.Kinds {
		result := results[kind]
		switch result.Status {
		case store.GetFound:
			if err := validateDocument(kind, result.Raw); err != nil {
				return &ConfigurationError{Kind: string(kind), Err: err}
			}
			klog.V(2).Infof("Found existing %s document.", kind)
		case store.GetNotFound:
			if err := m.store.Insert(ctx, kind, store.RawDocument{}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("error reading %s document during seed: %w", kind, result.Err)
		}
	}
	return nil
}

// applySync is one load-mutate-write pass.
func (m *DocumentManager) applySync(ctx context.Context) error {
	results := m.store.GetMany(ctx, store.Kinds...)
	rolesDoc, rolesVersion, err := loadRoleDocument(results[store.KindRoles])
	if err != nil {
		return err
	}
	mappingsDoc, mappingsVersion, err := loadRoleMappingDocument(results[store.KindRolesMapping])
	if err != nil {
		return err
	}

	rolesDoc.RemoveGenerated()
	mappingsDoc.RemoveGenerated()

	// Truncate to seconds so the serialized expiry round-trips exactly.
	expiresAt := m.now().Add(m.expireIn).UTC().Truncate(time.Second)
	generated := m.strategy.Generate(m.cache.Snapshot(), expiresAt)
	for _, role := range generated.Roles {
		rolesDoc.Put(role)
	}
	for _, mapping := range generated.RoleMappings {
		mappingsDoc.Put(mapping)
	}
	klog.V(4).Infof("Strategy %s generated %d roles and %d role mappings.",
		m.strategy.Name(), len(generated.Roles), len(generated.RoleMappings))

	if err := m.writeDocument(ctx, store.KindRoles, rolesDoc.ToRaw(), rolesVersion); err != nil {
		return err
	}
	return m.writeDocument(ctx, store.KindRolesMapping, mappingsDoc.ToRaw(), mappingsVersion)
}

func (m *DocumentManager) writeDocument(ctx context.Context, kind store.Kind, raw store.RawDocument, expectedVersion int64) error {
	result := m.store.Update(ctx, kind, raw, expectedVersion)
	switch result.Status {
	case store.UpdateOK:
		return nil
	case store.UpdateConflict:
		metrics.DocumentWriteConflicts.Inc()
		return fmt.Errorf("version conflict writing %s document at version %d", kind, expectedVersion)
	default:
		return fmt.Errorf("transient error writing %s document: %w", kind, result.Err)
	}
}

// notifyAndWait asks the store to propagate the change, then waits a bounded
// time for the enforcement layer's reload signal. Missing the signal is not a
// failure; downstream consistency is eventual either way.
func (m *DocumentManager) notifyAndWait(ctx context.Context) {
	// Drop any signal left over from an earlier cycle.
	select {
	case <-m.reloadSignal:
	default:
	}

	m.store.NotifyReload(ctx, store.Kinds)

	select {
	case <-m.reloadSignal:
		klog.V(3).Info("Received reload signal from enforcement layer.")
	case <-time.After(m.reloadTimeout):
		metrics.ReloadWaitTimeouts.Inc()
		klog.V(2).Infof("No reload signal within %s. Continuing.", m.reloadTimeout)
	}
}

func loadRoleDocument(result store.GetResult) (*RoleDocument, int64, error) {
	if err := checkGetResult(store.KindRoles, result); err != nil {
		return nil, 0, err
	}
	doc := NewRoleDocument()
	if err := doc.Load(result.Raw); err != nil {
		return nil, 0, err
	}
	return doc, result.Version, nil
}

func loadRoleMappingDocument(result store.GetResult) (*RoleMappingDocument, int64, error) {
	if err := checkGetResult(store.KindRolesMapping, result); err != nil {
		return nil, 0, err
	}
	doc := NewRoleMappingDocument()
	if err := doc.Load(result.Raw); err != nil {
		return nil, 0, err
	}
	return doc, result.Version, nil
}

// An absent document aborts the attempt. Writing a fabricated empty document
// could wipe user-authored entries, so absence is treated as transient.
func checkGetResult(kind store.Kind, result store.GetResult) error {
	switch result.Status {
	case store.GetFound:
		return nil
	case store.GetNotFound:
		return fmt.Errorf("%s document is absent, refusing to fabricate an empty document", kind)
	default:
		return fmt.Errorf("error loading %s document: %w", kind, result.Err)
	}
}

func validateDocument(kind store.Kind, raw store.RawDocument) error {
	if kind == store.KindRoles {
		return NewRoleDocument().Load(raw)
	}
	return NewRoleMappingDocument().Load(raw)
}
