// Copyright Contributors to the Open Cluster Management project
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	pgxpool "github.com/jackc/pgx/v4/pgxpool"
	"github.com/stolostron/search-acl-sync/pkg/config"
	"github.com/stolostron/search-acl-sync/pkg/metrics"
	klog "k8s.io/klog/v2"
)

var pool *pgxpool.Pool
var timeLastPing time.Time

func connString() string {
	cfg := config.Cfg
	return fmt.Sprint(
		"host=", cfg.DBHost,
		" port=", cfg.DBPort,
		" user=", cfg.DBUser,
		" password=", cfg.DBPass,
		" dbname=", cfg.DBName,
		" sslmode=require", // https://www.postgresql.org/docs/current/libpq-connect.html
	)
}

func initializePool(ctx context.Context) {
	dbConnString := connString()

	// Remove password from connection log.
	redactedDbConn := strings.ReplaceAll(dbConnString, "password="+config.Cfg.DBPass, "password=[REDACTED]")
	klog.Infof("Initializing connection to PostgreSQL using: %s", redactedDbConn)

	poolConfig, configErr := pgxpool.ParseConfig(dbConnString)
	if configErr != nil {
		klog.Error("Error parsing database connection configuration.", configErr)
		return
	}

	poolConfig.MaxConns = int32(config.Cfg.DBMaxConns)
	conn, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		klog.Errorf("Unable to connect to database: %+v\n", err)
		metrics.DBConnectionFailed.WithLabelValues("DBConnect").Inc()
	}

	pool = conn
}

// GetConnPool returns the shared connection pool, initializing it on first
// use. Pings are throttled to once per second.
func GetConnPool(ctx context.Context) *pgxpool.Pool {
	if pool == nil {
		initializePool(ctx)
	}

	if pool != nil {
		// Skip database ping if checked less than 1 second ago.
		if time.Since(timeLastPing) < time.Second {
			return pool
		}
		err := pool.Ping(ctx)
		if err != nil {
			klog.Error("Unable to get a database connection. ", err)
			metrics.DBConnectionFailed.WithLabelValues("DBPing").Inc()
			return nil
		}
		timeLastPing = time.Now()
		klog.V(2).Info("Confirmed database connection.")
	}
	return pool
}
