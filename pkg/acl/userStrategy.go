// Copyright Contributors to the Open Cluster Management project
package acl

import (
	"time"

	"github.com/stolostron/search-acl-sync/pkg/usercache"
)

// UserStrategy emits one role per user carrying that user's complete grant
// set: cluster capability tokens, one index grant per project, and the
// personal dashboard grant. Operations users share a single durable
// operations role and mapping instead of per-project entries.
type UserStrategy struct {
	legacyIndexPrefix string
}

func (s *UserStrategy) Name() string { return "user" }

func (s *UserStrategy) Generate(snapshot map[string]usercache.UserEntry, expiresAt time.Time) Generated {
	roles := NewRolesBuilder()
	mappings := NewRoleMappingsBuilder()

	for _, identity := range sortedIdentities(snapshot) {
		entry := snapshot[identity]

		if entry.IsOperations {
			addOperationsRole(roles)
			mappings.AddUser(OperationsRoleName, identity)
			continue
		}

		roleName := UserRoleName(identity)
		for _, action := range userClusterActions {
			roles.AddClusterAction(roleName, action)
		}
		for _, project := range entry.Projects {
			roles.AddIndexGrant(roleName, IndexPattern(project), allTypes, projectReadActions...)
			if s.legacyIndexPrefix != "" {
				roles.AddIndexGrant(roleName, LegacyIndexPattern(s.legacyIndexPrefix, project), allTypes, projectReadActions...)
			}
		}
		roles.AddIndexGrant(roleName, KibanaIndexPattern(identity), allTypes, kibanaAllActions...)
		roles.ExpireAt(roleName, expiresAt)

		mappings.AddUser(roleName, identity)
		mappings.ExpireAt(roleName, expiresAt)
	}

	return Generated{Roles: roles.Build(), RoleMappings: mappings.Build()}
}
