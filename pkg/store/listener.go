// Copyright Contributors to the Open Cluster Management project
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/stolostron/search-acl-sync/pkg/config"
	"github.com/stolostron/search-acl-sync/pkg/notifier"
	"k8s.io/klog/v2"
)

// ReloadListener holds a dedicated LISTEN connection on the reload channel
// and republishes every notification into the ReloadNotifier. This is how the
// enforcement layer's re-read of the ACL documents completes the document
// manager's bounded wait.
type ReloadListener struct {
	notifier *notifier.ReloadNotifier
	ctx      context.Context
	cancel   context.CancelFunc
	conn     *pgx.Conn

	// connect is replaceable for tests.
	connect func(ctx context.Context) (*pgx.Conn, error)
}

func NewReloadListener(parent context.Context, n *notifier.ReloadNotifier) *ReloadListener {
	ctx, cancel := context.WithCancel(parent)
	return &ReloadListener{
		notifier: n,
		ctx:      ctx,
		cancel:   cancel,
		connect:  connectListener,
	}
}

// Start connects and launches the listen goroutine.
func (l *ReloadListener) Start() error {
	conn, err := l.connect(l.ctx)
	if err != nil {
		return fmt.Errorf("failed to connect reload listener: %w", err)
	}
	l.conn = conn
	go l.listen()
	klog.Info("Reload listener started successfully.")
	return nil
}

func (l *ReloadListener) Stop() {
	l.cancel()
}

// Establishes a dedicated connection for LISTEN.
// Does not use the pgxpool connection pool.
func connectListener(ctx context.Context) (*pgx.Conn, error) {
	cfg := config.Cfg
	dbConnString := connString()

	redactedDbConn := strings.ReplaceAll(dbConnString, "password="+cfg.DBPass, "password=[REDACTED]")
	klog.V(2).Infof("Connecting reload listener to PostgreSQL: %s", redactedDbConn)

	conn, err := pgx.Connect(ctx, dbConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if _, err = conn.Exec(ctx, fmt.Sprintf("LISTEN %s", ReloadChannel)); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("unable to listen to channel %s: %w", ReloadChannel, err)
	}

	klog.V(2).Infof("Successfully listening to Postgres channel: %s", ReloadChannel)
	return conn, nil
}

// listen receives notifications and forwards them to the notifier.
func (l *ReloadListener) listen() {
	defer func() {
		if l.conn != nil {
			l.conn.Close(context.Background())
		}
		klog.Info("Reload listener stopped.")
	}()

	for {
		notification, err := l.conn.WaitForNotification(l.ctx)
		if err != nil {
			if l.ctx.Err() != nil {
				// Context was cancelled, exit gracefully.
				return
			}
			klog.Errorf("Error waiting for reload notification: %v", err)
			l.reconnect()
			continue
		}

		if notification != nil {
			klog.V(3).Infof("Received reload notification for %s.", notification.Payload)
			l.notifier.Publish(notification.Payload)
		}
	}
}

// reconnect replaces a lost connection, retrying until the context ends.
func (l *ReloadListener) reconnect() {
	if l.conn != nil {
		l.conn.Close(context.Background())
		l.conn = nil
	}
	for {
		if l.ctx.Err() != nil {
			return
		}
		conn, err := l.connect(l.ctx)
		if err == nil {
			l.conn = conn
			return
		}
		klog.Warningf("Reload listener reconnect failed, retrying in 5s: %s", err.Error())
		select {
		case <-l.ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}
