// Copyright Contributors to the Open Cluster Management project

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stolostron/search-acl-sync/pkg/store"
	"k8s.io/klog/v2"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// StoreHealthChecker checks the document store's connection pool.
type StoreHealthChecker struct{}

func (StoreHealthChecker) Ping(ctx context.Context) error {
	pool := store.GetConnPool(ctx)
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}
	return pool.Ping(ctx)
}

// livenessProbe is used to check if this service is alive.
func livenessProbe(w http.ResponseWriter, r *http.Request) {
	klog.V(5).Info("livenessProbe")
	fmt.Fprint(w, "OK")
}

// readinessProbe checks if the document store is available.
func (s *Server) readinessProbe(w http.ResponseWriter, r *http.Request) {
	klog.V(5).Info("readinessProbe")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.health.Ping(ctx); err != nil {
		http.Error(w, "Document store unavailable", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprint(w, "OK")
}
