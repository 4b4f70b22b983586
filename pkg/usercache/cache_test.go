// Copyright Contributors to the Open Cluster Management project
package usercache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stolostron/search-acl-sync/pkg/auth"
)

func Test_Cache_updateAndGet(t *testing.T) {
	cache := NewWithTTL(time.Minute)
	projects := []auth.Project{{Name: "foo", UID: "uid1"}}

	cache.Update("alice", projects, false)

	entry, found := cache.Get("alice")
	assert.True(t, found)
	assert.Equal(t, "alice", entry.Identity)
	assert.Equal(t, projects, entry.Projects)
	assert.False(t, entry.IsOperations)
	assert.True(t, cache.HasUser("alice"))
	assert.False(t, cache.HasUser("bob"))
}

func Test_Cache_updateReplacesProjects(t *testing.T) {
	cache := NewWithTTL(time.Minute)
	cache.Update("alice", []auth.Project{{Name: "foo", UID: "uid1"}}, false)
	cache.Update("alice", []auth.Project{{Name: "bar", UID: "uid2"}}, true)

	entry, _ := cache.Get("alice")
	assert.Equal(t, []auth.Project{{Name: "bar", UID: "uid2"}}, entry.Projects)
	assert.True(t, entry.IsOperations)
}

func Test_Cache_expireRemovesStaleEntries(t *testing.T) {
	cache := NewWithTTL(100 * time.Millisecond)
	cache.Update("alice", []auth.Project{{Name: "foo", UID: "uid1"}}, false)

	cache.Expire(time.Now())
	assert.True(t, cache.HasUser("alice"), "entry within TTL must survive")

	cache.Expire(time.Now().Add(time.Second))
	assert.False(t, cache.HasUser("alice"), "entry past TTL must be removed")
}

func Test_Cache_allProjectsDistinctSorted(t *testing.T) {
	cache := NewWithTTL(time.Minute)
	shared := auth.Project{Name: "foo", UID: "uid1"}
	cache.Update("alice", []auth.Project{shared, {Name: "zed", UID: "uid3"}}, false)
	cache.Update("bob", []auth.Project{shared, {Name: "bar", UID: "uid2"}}, false)

	assert.Equal(t, []auth.Project{
		{Name: "bar", UID: "uid2"},
		{Name: "foo", UID: "uid1"},
		{Name: "zed", UID: "uid3"},
	}, cache.AllProjects())
}

func Test_Cache_snapshotIsACopy(t *testing.T) {
	cache := NewWithTTL(time.Minute)
	cache.Update("alice", []auth.Project{{Name: "foo", UID: "uid1"}}, false)

	snapshot := cache.Snapshot()
	snapshot["alice"].Projects[0] = auth.Project{Name: "mutated"}
	delete(snapshot, "alice")

	entry, found := cache.Get("alice")
	assert.True(t, found)
	assert.Equal(t, []auth.Project{{Name: "foo", UID: "uid1"}}, entry.Projects)
}

func Test_Cache_concurrentAccess(t *testing.T) {
	cache := NewWithTTL(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				cache.Update("alice", []auth.Project{{Name: "foo", UID: "uid1"}}, false)
				cache.Get("alice")
				cache.Snapshot()
				cache.Expire(time.Now())
			}
		}()
	}
	wg.Wait()
	assert.True(t, cache.HasUser("alice"))
}
