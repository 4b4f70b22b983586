// Copyright Contributors to the Open Cluster Management project
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/driftprogramming/pgxpoolmock"
	"github.com/stolostron/search-acl-sync/pkg/metrics"
	klog "k8s.io/klog/v2"
)

// The change hint and the reload completion travel on distinct channels.
// Publishing and listening on the same channel would let this service's own
// hint satisfy the post-write reload wait without the enforcement layer
// having re-read anything.
const (
	// ChangedChannel carries this service's hint that a document was written.
	ChangedChannel = "acl_documents_changed"
	// ReloadChannel carries the enforcement layer's signal that it finished
	// re-reading the ACL documents.
	ReloadChannel = "acl_documents_reloaded"
)

var documentsTable = goqu.S("acl").Table("documents")

// PostgresStore keeps each ACL document as one row:
// acl.documents(kind TEXT PRIMARY KEY, doc JSONB, version BIGINT).
// The version column carries the optimistic concurrency check.
type PostgresStore struct {
	pool pgxpoolmock.PgxPool
}

func NewPostgresStore(pool pgxpoolmock.PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the schema and table on first boot.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS acl"); err != nil {
		return fmt.Errorf("error creating schema acl: %w", err)
	}
	_, err := s.pool.Exec(ctx,
		"CREATE TABLE IF NOT EXISTS acl.documents (kind TEXT PRIMARY KEY, doc JSONB NOT NULL, version BIGINT NOT NULL DEFAULT 1)")
	if err != nil {
		return fmt.Errorf("error creating table acl.documents: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMany(ctx context.Context, kinds ...Kind) map[Kind]GetResult {
	defer observeQuery("getDocuments", time.Now())

	results := make(map[Kind]GetResult, len(kinds))
	for _, kind := range kinds {
		results[kind] = GetResult{Status: GetNotFound}
	}

	kindStrings := make([]string, len(kinds))
	for i, kind := range kinds {
		kindStrings[i] = string(kind)
	}
	sql, params, err := goqu.From(documentsTable).
		Select("kind", "doc", "version").
		Where(goqu.C("kind").In(kindStrings)).ToSQL()
	if err != nil {
		klog.Errorf("Error building document query: %s", err.Error())
		return errorResults(kinds, err)
	}
	klog.V(6).Info("Document query: ", sql)

	rows, err := s.pool.Query(ctx, sql, params...)
	if err != nil {
		klog.Warning("Error reading ACL documents. ", err)
		return errorResults(kinds, err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var doc []byte
		var version int64
		if err := rows.Scan(&kind, &doc, &version); err != nil {
			klog.Warning("Error scanning ACL document row. ", err)
			return errorResults(kinds, err)
		}
		raw := RawDocument{}
		if err := json.Unmarshal(doc, &raw); err != nil {
			klog.Warningf("Error unmarshaling stored %s document: %s", kind, err.Error())
			results[Kind(kind)] = GetResult{Status: GetError, Err: err}
			continue
		}
		results[Kind(kind)] = GetResult{Status: GetFound, Raw: raw, Version: version}
	}
	if rows.Err() != nil {
		return errorResults(kinds, rows.Err())
	}
	return results
}

func (s *PostgresStore) Update(ctx context.Context, kind Kind, raw RawDocument, expectedVersion int64) UpdateResult {
	defer observeQuery("updateDocument", time.Now())

	docJSON, err := json.Marshal(raw)
	if err != nil {
		// Generated documents always marshal; anything else is a bug.
		return UpdateResult{Status: UpdateTransient, Err: err}
	}

	sql, params, err := goqu.Update(documentsTable).
		Set(goqu.Record{"doc": goqu.L("?::jsonb", string(docJSON)), "version": goqu.L("version + 1")}).
		Where(goqu.C("kind").Eq(string(kind)), goqu.C("version").Eq(expectedVersion)).
		ToSQL()
	if err != nil {
		return UpdateResult{Status: UpdateTransient, Err: err}
	}

	tag, err := s.pool.Exec(ctx, sql, params...)
	if err != nil {
		klog.Warningf("Error writing %s document: %s", kind, err.Error())
		return UpdateResult{Status: UpdateTransient, Err: err}
	}
	if tag.RowsAffected() == 0 {
		klog.V(2).Infof("Version conflict writing %s document at version %d.", kind, expectedVersion)
		return UpdateResult{Status: UpdateConflict}
	}
	return UpdateResult{Status: UpdateOK}
}

func (s *PostgresStore) Insert(ctx context.Context, kind Kind, raw RawDocument) error {
	defer observeQuery("insertDocument", time.Now())

	docJSON, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	sql, params, err := goqu.Insert(documentsTable).
		Cols("kind", "doc", "version").
		Vals(goqu.Vals{string(kind), goqu.L("?::jsonb", string(docJSON)), 1}).
		ToSQL()
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, sql, params...); err != nil {
		return fmt.Errorf("error seeding %s document: %w", kind, err)
	}
	klog.Infof("Seeded initial %s document.", kind)
	return nil
}

func (s *PostgresStore) NotifyReload(ctx context.Context, kinds []Kind) {
	for _, kind := range kinds {
		if _, err := s.pool.Exec(ctx, "SELECT pg_notify($1, $2)", ChangedChannel, string(kind)); err != nil {
			klog.Warningf("Error notifying reload for %s: %s", kind, err.Error())
		}
	}
}

func errorResults(kinds []Kind, err error) map[Kind]GetResult {
	results := make(map[Kind]GetResult, len(kinds))
	for _, kind := range kinds {
		results[kind] = GetResult{Status: GetError, Err: err}
	}
	return results
}

func observeQuery(name string, start time.Time) {
	metrics.DBQueryDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}
