package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/stolostron/search-acl-sync/pkg/acl"
	"github.com/stolostron/search-acl-sync/pkg/auth"
	"github.com/stolostron/search-acl-sync/pkg/config"
	"github.com/stolostron/search-acl-sync/pkg/notifier"
	"github.com/stolostron/search-acl-sync/pkg/scheduler"
	"github.com/stolostron/search-acl-sync/pkg/server"
	"github.com/stolostron/search-acl-sync/pkg/store"
	"github.com/stolostron/search-acl-sync/pkg/syncer"
	"github.com/stolostron/search-acl-sync/pkg/usercache"

	klog "k8s.io/klog/v2"
)

func main() {
	// Initialize the logger.
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()
	klog.Info("Starting search-acl-sync.")

	// Read the config from the environment.
	conf := config.New()
	conf.PrintConfig()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool := store.GetConnPool(ctx)
	if pool == nil {
		klog.Fatal("Unable to connect to the document store database.")
	}
	docStore := store.NewPostgresStore(pool)
	if err := docStore.EnsureSchema(ctx); err != nil {
		klog.Fatal("Unable to initialize the document store schema. ", err)
	}

	reloadNotifier := notifier.New()
	reloadNotifier.Start()
	defer reloadNotifier.Stop()

	cache := usercache.New()
	strategy := acl.NewStrategy(conf.RoleStrategy, conf.LegacyIndexPrefix)
	manager := acl.NewDocumentManager(docStore, cache, strategy, reloadNotifier)

	if err := manager.SeedDocuments(ctx); err != nil {
		// A malformed existing document is a deployment problem. Fail fast.
		klog.Fatal("Unable to seed ACL documents. ", err)
	}

	listener := store.NewReloadListener(ctx, reloadNotifier)
	if err := listener.Start(); err != nil {
		// Degraded but workable: sync cycles fall back to the reload timeout.
		klog.Warning("Reload listener unavailable, relying on timeouts. ", err)
	}
	defer listener.Stop()

	sched := scheduler.New(cache, manager)
	if err := sched.Start(ctx); err != nil {
		klog.Fatal("Unable to start the expiry scheduler. ", err)
	}

	source := auth.NewOpenShiftProjectSource(config.GetClientConfig())
	srv := server.NewServer(syncer.New(source, cache, manager), server.StoreHealthChecker{})
	srv.StartAndListen()
}
