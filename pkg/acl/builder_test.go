// Copyright Contributors to the Open Cluster Management project
package acl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_RolesBuilder_mergesGrants(t *testing.T) {
	b := NewRolesBuilder()
	b.AddIndexGrant("gen_project_foo", "foo?uid1?*", "*", "indices:data/read*")
	b.AddIndexGrant("gen_project_foo", "foo?uid1?*", "*", "indices:admin/mappings/get")
	b.AddIndexGrant("gen_project_foo", "foo?uid1?*", "*", "indices:data/read*") // duplicate
	b.AddClusterAction("gen_project_foo", "cluster:monitor/health")

	roles := b.Build()
	assert.Equal(t, 1, len(roles))
	assert.Equal(t, []string{"indices:admin/mappings/get", "indices:data/read*"},
		roles[0].IndexGrants["foo?uid1?*"]["*"])
	assert.Equal(t, []string{"cluster:monitor/health"}, roles[0].ClusterActions)
}

func Test_RolesBuilder_sortedDeterministicOutput(t *testing.T) {
	build := func() []Role {
		b := NewRolesBuilder()
		b.AddIndexGrant("gen_project_zeta", "zeta?*", "*", "b", "a")
		b.AddIndexGrant("gen_project_alpha", "alpha?*", "*", "a")
		b.AddClusterAction("gen_project_alpha", "z")
		b.AddClusterAction("gen_project_alpha", "a")
		return b.Build()
	}

	roles := build()
	assert.Equal(t, "gen_project_alpha", roles[0].Name)
	assert.Equal(t, "gen_project_zeta", roles[1].Name)
	assert.Equal(t, []string{"a", "z"}, roles[0].ClusterActions)
	assert.Equal(t, build(), roles)
}

func Test_RoleMappingsBuilder_dedupsUsers(t *testing.T) {
	expiresAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	b := NewRoleMappingsBuilder()
	b.AddUser("gen_project_foo", "bob")
	b.AddUser("gen_project_foo", "alice")
	b.AddUser("gen_project_foo", "bob")
	b.ExpireAt("gen_project_foo", expiresAt)

	mappings := b.Build()
	assert.Equal(t, 1, len(mappings))
	assert.Equal(t, []string{"alice", "bob"}, mappings[0].Users)
	assert.Equal(t, expiresAt, mappings[0].ExpiresAt)
}
