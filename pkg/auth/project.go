// Copyright Contributors to the Open Cluster Management project
package auth

import (
	"sort"
	"strings"
)

// Project is a tenant unit in the cluster authorization source. The UID is
// stable across a delete and recreate of a project with the same name, which
// is why downstream index patterns include it. UID may be empty in
// deployments that predate uid-scoped index naming.
type Project struct {
	Name string
	UID  string
}

// SortProjects orders a slice of projects by name, then uid.
// Deterministic ordering keeps generated documents stable between sync cycles.
func SortProjects(projects []Project) {
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].Name != projects[j].Name {
			return projects[i].Name < projects[j].Name
		}
		return projects[i].UID < projects[j].UID
	})
}

// NormalizeIdentity rewrites a backslash-namespaced identity (as produced by
// some authentication backends) to the forward-slash form. The normalized
// form is the authoritative identity everywhere downstream: cache key, role
// name, and dashboard index hash.
func NormalizeIdentity(identity string) string {
	return strings.ReplaceAll(identity, "\\", "/")
}
