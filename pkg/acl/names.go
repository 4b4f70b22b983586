// Copyright Contributors to the Open Cluster Management project
package acl

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/stolostron/search-acl-sync/pkg/auth"
)

const (
	// GeneratedPrefix marks entries produced by a sync strategy. The
	// enforcement layer's documents may also hold user-authored entries;
	// the prefix is what keeps regeneration from ever touching those.
	GeneratedPrefix = "gen_"

	// Shared durable entries for users with operations visibility.
	OperationsRoleName   = "gen_ocp_operations"
	SharedKibanaRoleName = "gen_kibana_shared_ops"

	// The shared operations dashboard index.
	kibanaOpsIndex = ".kibana.ops"
)

func isGeneratedName(name string) bool {
	return strings.HasPrefix(name, GeneratedPrefix)
}

// ProjectRoleName is the deterministic role name for a tenant project.
func ProjectRoleName(p auth.Project) string {
	return "gen_project_" + escapePattern(p.Name)
}

// UserRoleName is the deterministic role name carrying one user's full grant
// set under the user-centric strategy.
func UserRoleName(identity string) string {
	return "gen_user_" + UsernameHash(identity)
}

// KibanaRoleName is the role guarding one user's personal dashboard index.
func KibanaRoleName(identity string) string {
	return "gen_kibana_" + UsernameHash(identity)
}

// UsernameHash is pinned to SHA-1 hex for compatibility with the dashboard
// index names the enforcement layer already has on disk. Do not change it.
func UsernameHash(identity string) string {
	sum := sha1.Sum([]byte(identity))
	return hex.EncodeToString(sum[:])
}

// KibanaIndexName is the user's personal dashboard index.
func KibanaIndexName(identity string) string {
	return ".kibana." + UsernameHash(identity)
}

// IndexPattern returns the pattern granting access to a project's indices.
// A dot is structurally significant in a pattern, so dots in names are
// escaped to '?'. The uid part is omitted when the deployment has none.
func IndexPattern(p auth.Project) string {
	if p.UID == "" {
		return escapePattern(p.Name) + "?*"
	}
	return escapePattern(p.Name) + "?" + escapePattern(p.UID) + "?*"
}

// LegacyIndexPattern is the prefixed variant kept for indices created before
// uid-scoped naming.
func LegacyIndexPattern(prefix string, p auth.Project) string {
	return escapePattern(prefix) + "?" + IndexPattern(p)
}

// KibanaIndexPattern is the pattern matching one user's dashboard index.
func KibanaIndexPattern(identity string) string {
	return escapePattern(KibanaIndexName(identity))
}

func sharedKibanaIndexPattern() string {
	return escapePattern(kibanaOpsIndex)
}

func escapePattern(s string) string {
	return strings.ReplaceAll(s, ".", "?")
}
