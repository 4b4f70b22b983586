// Copyright Contributors to the Open Cluster Management project
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stolostron/search-acl-sync/pkg/auth"
	"github.com/stolostron/search-acl-sync/pkg/config"
	"github.com/stolostron/search-acl-sync/pkg/metrics"
	"github.com/stolostron/search-acl-sync/pkg/syncer"
	klog "k8s.io/klog/v2"
)

// Server exposes the operational surface: health probes, metrics, and the
// sync trigger the request pipeline calls.
type Server struct {
	syncer *syncer.Syncer
	health HealthChecker
}

func NewServer(s *syncer.Syncer, health HealthChecker) *Server {
	return &Server{syncer: s, health: health}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/livenessProbe", livenessProbe).Methods("GET")
	router.HandleFunc("/readinessProbe", s.readinessProbe).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(metrics.PromRegistry, promhttp.HandlerOpts{})).Methods("GET")
	router.HandleFunc("/sync", s.syncHandler).Methods("POST")
	return router
}

// StartAndListen blocks serving the router.
func (s *Server) StartAndListen() {
	port := config.Cfg.HttpPort
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	klog.Infof("search-acl-sync is now running on http://localhost:%d", port)
	klog.Fatal(srv.ListenAndServe())
}

// syncHandler resolves the caller from the Authorization header and ensures
// the stored ACL documents reflect their current project membership.
func (s *Server) syncHandler(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		http.Error(w, "Missing or malformed Authorization header.", http.StatusUnauthorized)
		return
	}

	if err := s.syncer.EnsureSynced(r.Context(), token); err != nil {
		if auth.IsAuthError(err) {
			klog.V(2).Infof("Rejected sync request: %s", err.Error())
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}
		// Transient cluster API failure. The caller can retry.
		klog.Warningf("Unable to resolve projects for sync request: %s", err.Error())
		http.Error(w, "Temporary error resolving project membership.", http.StatusServiceUnavailable)
		return
	}
	fmt.Fprint(w, "OK")
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(header, "Bearer ")
	return token, token != ""
}
