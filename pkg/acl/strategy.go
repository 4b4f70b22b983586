// Copyright Contributors to the Open Cluster Management project
package acl

import (
	"time"

	"github.com/stolostron/search-acl-sync/pkg/usercache"
	"k8s.io/klog/v2"
)

// Actions granted by generated entries. These tokens belong to the
// enforcement layer's vocabulary.
var (
	projectReadActions = []string{
		"indices:data/read*",
		"indices:admin/mappings/fields/get*",
		"indices:admin/validate/query*",
		"indices:admin/get*",
	}
	kibanaAllActions         = []string{"indices:*"}
	userClusterActions       = []string{"cluster:monitor/health", "cluster:monitor/nodes/info"}
	operationsClusterActions = []string{"cluster:monitor/*"}
)

// allTypes is the type pattern used on every index grant.
const allTypes = "*"

// Generated is the complete set of machine-generated entries a strategy
// wants to exist in the documents.
type Generated struct {
	Roles        []Role
	RoleMappings []RoleMapping
}

// SyncStrategy projects a cache snapshot into the generated entry set.
// Implementations are pure: same snapshot and expiry in, same entries out,
// byte for byte, with no hidden I/O.
type SyncStrategy interface {
	Name() string
	Generate(snapshot map[string]usercache.UserEntry, expiresAt time.Time) Generated
}

// NewStrategy selects the strategy for the configured kind.
func NewStrategy(kind, legacyIndexPrefix string) SyncStrategy {
	switch kind {
	case "project":
		return &ProjectStrategy{legacyIndexPrefix: legacyIndexPrefix}
	case "user":
		return &UserStrategy{legacyIndexPrefix: legacyIndexPrefix}
	default:
		klog.Warningf("Unknown role strategy [%s]. Using user strategy.", kind)
		return &UserStrategy{legacyIndexPrefix: legacyIndexPrefix}
	}
}

// The shared entries for operations users are durable: they carry no expiry
// because they are not tied to any single user's cache entry.
func addOperationsRole(roles *RolesBuilder) {
	for _, action := range operationsClusterActions {
		roles.AddClusterAction(OperationsRoleName, action)
	}
	roles.AddIndexGrant(OperationsRoleName, "*?*?*", allTypes, projectReadActions...)
	roles.AddIndexGrant(OperationsRoleName, "?operations?*", allTypes, kibanaAllActions...)
}

func addSharedKibanaRole(roles *RolesBuilder) {
	roles.AddIndexGrant(SharedKibanaRoleName, sharedKibanaIndexPattern(), allTypes, kibanaAllActions...)
}
