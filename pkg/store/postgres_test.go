// Copyright Contributors to the Open Cluster Management project
package store

import (
	"context"
	"testing"

	"github.com/driftprogramming/pgxpoolmock"
	"github.com/golang/mock/gomock"
	"github.com/jackc/pgconn"
	"github.com/stretchr/testify/assert"
)

func newMockStore(t *testing.T) (*PostgresStore, *pgxpoolmock.MockPgxPool) {
	ctrl := gomock.NewController(t)
	mockPool := pgxpoolmock.NewMockPgxPool(ctrl)
	return NewPostgresStore(mockPool), mockPool
}

func Test_GetMany_found(t *testing.T) {
	store, mockPool := newMockStore(t)

	pgxRows := pgxpoolmock.NewRows([]string{"kind", "doc", "version"}).
		AddRow("roles", []byte(`{"gen_project_foo":{}}`), int64(3)).
		AddRow("rolesmapping", []byte(`{}`), int64(5)).
		ToPgxRows()
	mockPool.EXPECT().Query(gomock.Any(),
		gomock.Eq(`SELECT "kind", "doc", "version" FROM "acl"."documents" WHERE ("kind" IN ('roles', 'rolesmapping'))`),
		gomock.Eq([]interface{}{}),
	).Return(pgxRows, nil)

	results := store.GetMany(context.TODO(), Kinds...)

	assert.Equal(t, GetFound, results[KindRoles].Status)
	assert.Equal(t, int64(3), results[KindRoles].Version)
	assert.Contains(t, results[KindRoles].Raw, "gen_project_foo")
	assert.Equal(t, GetFound, results[KindRolesMapping].Status)
	assert.Equal(t, int64(5), results[KindRolesMapping].Version)
}

func Test_GetMany_missingRowIsNotFound(t *testing.T) {
	store, mockPool := newMockStore(t)

	pgxRows := pgxpoolmock.NewRows([]string{"kind", "doc", "version"}).
		AddRow("roles", []byte(`{}`), int64(1)).
		ToPgxRows()
	mockPool.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Eq([]interface{}{})).
		Return(pgxRows, nil)

	results := store.GetMany(context.TODO(), Kinds...)

	assert.Equal(t, GetFound, results[KindRoles].Status)
	assert.Equal(t, GetNotFound, results[KindRolesMapping].Status)
}

func Test_GetMany_corruptDocument(t *testing.T) {
	store, mockPool := newMockStore(t)

	pgxRows := pgxpoolmock.NewRows([]string{"kind", "doc", "version"}).
		AddRow("roles", []byte(`not json`), int64(1)).
		ToPgxRows()
	mockPool.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Eq([]interface{}{})).
		Return(pgxRows, nil)

	results := store.GetMany(context.TODO(), KindRoles)

	assert.Equal(t, GetError, results[KindRoles].Status)
	assert.NotNil(t, results[KindRoles].Err)
}

func Test_Update_ok(t *testing.T) {
	store, mockPool := newMockStore(t)

	mockPool.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Eq([]interface{}{})).
		Return(pgconn.CommandTag("UPDATE 1"), nil)

	result := store.Update(context.TODO(), KindRoles, RawDocument{"gen_project_foo": map[string]interface{}{}}, 3)

	assert.Equal(t, UpdateOK, result.Status)
}

func Test_Update_versionConflict(t *testing.T) {
	store, mockPool := newMockStore(t)

	// No row matches the expected version, so zero rows are updated.
	mockPool.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Eq([]interface{}{})).
		Return(pgconn.CommandTag("UPDATE 0"), nil)

	result := store.Update(context.TODO(), KindRoles, RawDocument{}, 3)

	assert.Equal(t, UpdateConflict, result.Status)
}

func Test_Update_transientError(t *testing.T) {
	store, mockPool := newMockStore(t)

	mockPool.EXPECT().Exec(gomock.Any(), gomock.Any(), gomock.Eq([]interface{}{})).
		Return(pgconn.CommandTag(""), assert.AnError)

	result := store.Update(context.TODO(), KindRoles, RawDocument{}, 3)

	assert.Equal(t, UpdateTransient, result.Status)
	assert.NotNil(t, result.Err)
}

func Test_Insert_seedsVersionOne(t *testing.T) {
	store, mockPool := newMockStore(t)

	mockPool.EXPECT().Exec(gomock.Any(),
		gomock.Eq(`INSERT INTO "acl"."documents" ("kind", "doc", "version") VALUES ('roles', '{}'::jsonb, 1)`),
		gomock.Eq([]interface{}{}),
	).Return(pgconn.CommandTag("INSERT 0 1"), nil)

	err := store.Insert(context.TODO(), KindRoles, RawDocument{})

	assert.Nil(t, err)
}

func Test_NotifyReload_oneNotifyPerKind(t *testing.T) {
	store, mockPool := newMockStore(t)

	mockPool.EXPECT().Exec(gomock.Any(), gomock.Eq("SELECT pg_notify($1, $2)"),
		gomock.Eq(ChangedChannel), gomock.Eq("roles")).
		Return(pgconn.CommandTag("SELECT 1"), nil)
	mockPool.EXPECT().Exec(gomock.Any(), gomock.Eq("SELECT pg_notify($1, $2)"),
		gomock.Eq(ChangedChannel), gomock.Eq("rolesmapping")).
		Return(pgconn.CommandTag("SELECT 1"), nil)

	store.NotifyReload(context.TODO(), Kinds)
}

func Test_NotifyReload_doesNotFeedOwnReloadWait(t *testing.T) {
	// The write hint and the enforcement layer's reload completion must
	// travel on different channels, or the hint would loop back through the
	// listener and release the post-write wait on its own.
	assert.NotEqual(t, ReloadChannel, ChangedChannel)

	store, mockPool := newMockStore(t)
	mockPool.EXPECT().Exec(gomock.Any(), gomock.Eq("SELECT pg_notify($1, $2)"),
		gomock.Not(gomock.Eq(ReloadChannel)), gomock.Eq("roles")).
		Return(pgconn.CommandTag("SELECT 1"), nil)

	store.NotifyReload(context.TODO(), []Kind{KindRoles})
}
