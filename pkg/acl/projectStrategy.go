// Copyright Contributors to the Open Cluster Management project
package acl

import (
	"sort"
	"time"

	"github.com/stolostron/search-acl-sync/pkg/auth"
	"github.com/stolostron/search-acl-sync/pkg/usercache"
)

// ProjectStrategy emits one role per distinct tenant project across all
// cached users, and one role-mapping per project listing every user who has
// it. Each user additionally gets a personal dashboard role; operations
// users are bound to the shared operations and dashboard entries instead.
type ProjectStrategy struct {
	legacyIndexPrefix string
}

func (s *ProjectStrategy) Name() string { return "project" }

func (s *ProjectStrategy) Generate(snapshot map[string]usercache.UserEntry, expiresAt time.Time) Generated {
	roles := NewRolesBuilder()
	mappings := NewRoleMappingsBuilder()

	// One role per distinct project, regardless of which user supplied it.
	for _, project := range distinctProjects(snapshot) {
		roleName := ProjectRoleName(project)
		roles.AddIndexGrant(roleName, IndexPattern(project), allTypes, projectReadActions...)
		if s.legacyIndexPrefix != "" {
			roles.AddIndexGrant(roleName, LegacyIndexPattern(s.legacyIndexPrefix, project), allTypes, projectReadActions...)
		}
		roles.ExpireAt(roleName, expiresAt)
		mappings.ExpireAt(roleName, expiresAt)
	}

	for _, identity := range sortedIdentities(snapshot) {
		entry := snapshot[identity]
		for _, project := range entry.Projects {
			mappings.AddUser(ProjectRoleName(project), identity)
		}

		if entry.IsOperations {
			addOperationsRole(roles)
			addSharedKibanaRole(roles)
			mappings.AddUser(OperationsRoleName, identity)
			mappings.AddUser(SharedKibanaRoleName, identity)
			continue
		}

		// Personal dashboard role and binding.
		kibanaRole := KibanaRoleName(identity)
		roles.AddIndexGrant(kibanaRole, KibanaIndexPattern(identity), allTypes, kibanaAllActions...)
		roles.ExpireAt(kibanaRole, expiresAt)
		mappings.AddUser(kibanaRole, identity)
		mappings.ExpireAt(kibanaRole, expiresAt)
	}

	return Generated{Roles: roles.Build(), RoleMappings: mappings.Build()}
}

func distinctProjects(snapshot map[string]usercache.UserEntry) []auth.Project {
	seen := map[auth.Project]struct{}{}
	result := []auth.Project{}
	for _, entry := range snapshot {
		for _, project := range entry.Projects {
			if _, exists := seen[project]; !exists {
				seen[project] = struct{}{}
				result = append(result, project)
			}
		}
	}
	auth.SortProjects(result)
	return result
}

func sortedIdentities(snapshot map[string]usercache.UserEntry) []string {
	identities := make([]string, 0, len(snapshot))
	for identity := range snapshot {
		identities = append(identities, identity)
	}
	sort.Strings(identities)
	return identities
}
