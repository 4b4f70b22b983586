// Copyright Contributors to the Open Cluster Management project
package usercache

import (
	"sync"
	"time"

	"github.com/stolostron/search-acl-sync/pkg/auth"
	"github.com/stolostron/search-acl-sync/pkg/config"
	"github.com/stolostron/search-acl-sync/pkg/metrics"
	"k8s.io/klog/v2"
)

// UserEntry holds the projects resolved for one user identity.
type UserEntry struct {
	Identity     string
	Projects     []auth.Project
	IsOperations bool      // Grants cross-tenant (operations) visibility.
	UpdatedAt    time.Time // Time the projects were last resolved from the cluster.
}

// Cache holds the user -> projects membership known to this process.
// Entries are written by concurrent in-flight requests and expired by a
// background job; last writer wins per identity. The cache is never
// persisted. Losing it only means the next request re-resolves projects
// from the cluster.
type Cache struct {
	users map[string]*UserEntry
	lock  sync.RWMutex
	ttl   time.Duration
}

func New() *Cache {
	return &Cache{
		users: map[string]*UserEntry{},
		ttl:   time.Duration(config.Cfg.UserCacheTTL) * time.Millisecond,
	}
}

// NewWithTTL builds a cache with an explicit TTL, bypassing config.
func NewWithTTL(ttl time.Duration) *Cache {
	return &Cache{
		users: map[string]*UserEntry{},
		ttl:   ttl,
	}
}

// Update upserts the entry for identity and resets its refresh time.
func (c *Cache) Update(identity string, projects []auth.Project, isOperations bool) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.users[identity] = &UserEntry{
		Identity:     identity,
		Projects:     append([]auth.Project{}, projects...),
		IsOperations: isOperations,
		UpdatedAt:    time.Now(),
	}
	metrics.CachedUsers.Set(float64(len(c.users)))
}

// Get returns a copy of the entry for identity, or false when unknown.
func (c *Cache) Get(identity string) (UserEntry, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	entry, exists := c.users[identity]
	if !exists {
		return UserEntry{}, false
	}
	return copyEntry(entry), true
}

func (c *Cache) HasUser(identity string) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	_, exists := c.users[identity]
	return exists
}

// AllProjects returns the distinct projects across every cached user.
func (c *Cache) AllProjects() []auth.Project {
	c.lock.RLock()
	defer c.lock.RUnlock()

	seen := map[auth.Project]struct{}{}
	result := []auth.Project{}
	for _, entry := range c.users {
		for _, p := range entry.Projects {
			if _, exists := seen[p]; !exists {
				seen[p] = struct{}{}
				result = append(result, p)
			}
		}
	}
	auth.SortProjects(result)
	return result
}

// Snapshot returns a copy of every entry under a single lock acquisition.
// Callers iterate the copy, so a concurrent Update or Expire can't race them.
func (c *Cache) Snapshot() map[string]UserEntry {
	c.lock.RLock()
	defer c.lock.RUnlock()

	snapshot := make(map[string]UserEntry, len(c.users))
	for identity, entry := range c.users {
		snapshot[identity] = copyEntry(entry)
	}
	return snapshot
}

// Expire removes every entry whose last refresh is older than the TTL.
// Safe to run concurrently with Update and Get.
func (c *Cache) Expire(now time.Time) {
	c.lock.Lock()
	defer c.lock.Unlock()

	for identity, entry := range c.users {
		if now.After(entry.UpdatedAt.Add(c.ttl)) {
			klog.V(3).Infof("Removing expired cache entry for user %s", identity)
			delete(c.users, identity)
		}
	}
	metrics.CachedUsers.Set(float64(len(c.users)))
}

func copyEntry(entry *UserEntry) UserEntry {
	result := *entry
	result.Projects = append([]auth.Project{}, entry.Projects...)
	return result
}
