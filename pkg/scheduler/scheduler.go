// Copyright Contributors to the Open Cluster Management project
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stolostron/search-acl-sync/pkg/acl"
	"github.com/stolostron/search-acl-sync/pkg/config"
	"github.com/stolostron/search-acl-sync/pkg/usercache"
	"k8s.io/klog/v2"
)

// Scheduler runs the two background expiry jobs: membership cache expiry and
// stale generated ACL entry cleanup.
type Scheduler struct {
	cron    *cron.Cron
	cache   *usercache.Cache
	manager *acl.DocumentManager

	cacheExpireDelay    time.Duration
	cacheExpireInterval time.Duration
	aclExpireInterval   time.Duration
}

func New(cache *usercache.Cache, manager *acl.DocumentManager) *Scheduler {
	return &Scheduler{
		cron:                cron.New(),
		cache:               cache,
		manager:             manager,
		cacheExpireDelay:    time.Duration(config.Cfg.CacheExpireDelay) * time.Millisecond,
		cacheExpireInterval: time.Duration(config.Cfg.CacheExpireInterval) * time.Millisecond,
		aclExpireInterval:   time.Duration(config.Cfg.ACLExpireInterval) * time.Millisecond,
	}
}

// Start launches the jobs. The first cache expiry pass runs after a short
// initial delay; after that both jobs run on their fixed periods until the
// context ends or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	// First cache expiry pass ahead of the periodic schedule.
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cacheExpireDelay):
			s.cache.Expire(time.Now())
		}
	}()

	_, err := s.cron.AddFunc(every(s.cacheExpireInterval), func() {
		s.cache.Expire(time.Now())
	})
	if err != nil {
		return fmt.Errorf("error scheduling cache expiry job: %w", err)
	}

	_, err = s.cron.AddFunc(every(s.aclExpireInterval), func() {
		if err := s.manager.ExpireStaleEntries(ctx, time.Now()); err != nil {
			// Best effort. The next run catches whatever this one missed.
			klog.Warningf("Error expiring stale ACL entries: %s", err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("error scheduling ACL expiry job: %w", err)
	}

	s.cron.Start()
	klog.Infof("Scheduler started. Cache expiry every %s, ACL entry expiry every %s.",
		s.cacheExpireInterval, s.aclExpireInterval)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the periodic jobs. Jobs already running finish on their own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	klog.V(2).Info("Scheduler stopped.")
}

func every(interval time.Duration) string {
	return fmt.Sprintf("@every %s", interval)
}
