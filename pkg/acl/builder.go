// Copyright Contributors to the Open Cluster Management project
package acl

import (
	"sort"
	"time"
)

// RolesBuilder accumulates role entries, deduplicating by name. Adding a
// grant to an existing role merges it; actions on the same pattern and type
// are unioned.
type RolesBuilder struct {
	roles map[string]*Role
}

func NewRolesBuilder() *RolesBuilder {
	return &RolesBuilder{roles: map[string]*Role{}}
}

func (b *RolesBuilder) role(name string) *Role {
	if existing, exists := b.roles[name]; exists {
		return existing
	}
	role := &Role{Name: name}
	b.roles[name] = role
	return role
}

func (b *RolesBuilder) AddClusterAction(roleName, action string) *RolesBuilder {
	role := b.role(roleName)
	for _, existing := range role.ClusterActions {
		if existing == action {
			return b
		}
	}
	role.ClusterActions = append(role.ClusterActions, action)
	return b
}

func (b *RolesBuilder) AddIndexGrant(roleName, pattern, docType string, actions ...string) *RolesBuilder {
	role := b.role(roleName)
	if role.IndexGrants == nil {
		role.IndexGrants = map[string]map[string][]string{}
	}
	if role.IndexGrants[pattern] == nil {
		role.IndexGrants[pattern] = map[string][]string{}
	}
	existing := role.IndexGrants[pattern][docType]
	for _, action := range actions {
		if !containsString(existing, action) {
			existing = append(existing, action)
		}
	}
	role.IndexGrants[pattern][docType] = existing
	return b
}

func (b *RolesBuilder) ExpireAt(roleName string, expiresAt time.Time) *RolesBuilder {
	b.role(roleName).ExpiresAt = expiresAt
	return b
}

// Build returns the accumulated roles sorted by name, with action lists
// sorted so repeated builds over the same input are byte-identical.
func (b *RolesBuilder) Build() []Role {
	result := make([]Role, 0, len(b.roles))
	for _, role := range b.roles {
		sort.Strings(role.ClusterActions)
		for _, types := range role.IndexGrants {
			for docType := range types {
				sort.Strings(types[docType])
			}
		}
		result = append(result, *role)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// RoleMappingsBuilder accumulates role-mapping entries, deduplicating by
// name and by user within a mapping.
type RoleMappingsBuilder struct {
	mappings map[string]*RoleMapping
}

func NewRoleMappingsBuilder() *RoleMappingsBuilder {
	return &RoleMappingsBuilder{mappings: map[string]*RoleMapping{}}
}

func (b *RoleMappingsBuilder) mapping(name string) *RoleMapping {
	if existing, exists := b.mappings[name]; exists {
		return existing
	}
	mapping := &RoleMapping{Name: name}
	b.mappings[name] = mapping
	return mapping
}

func (b *RoleMappingsBuilder) AddUser(mappingName, identity string) *RoleMappingsBuilder {
	mapping := b.mapping(mappingName)
	if !containsString(mapping.Users, identity) {
		mapping.Users = append(mapping.Users, identity)
	}
	return b
}

func (b *RoleMappingsBuilder) ExpireAt(mappingName string, expiresAt time.Time) *RoleMappingsBuilder {
	b.mapping(mappingName).ExpiresAt = expiresAt
	return b
}

func (b *RoleMappingsBuilder) Build() []RoleMapping {
	result := make([]RoleMapping, 0, len(b.mappings))
	for _, mapping := range b.mappings {
		sort.Strings(mapping.Users)
		result = append(result, *mapping)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
