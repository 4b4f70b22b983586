// Copyright Contributors to the Open Cluster Management project
package acl

import (
	"fmt"
	"sort"
	"time"

	"github.com/stolostron/search-acl-sync/pkg/store"
)

// Role is one named entry in the roles document. IndexGrants maps an
// index pattern to a type pattern to the actions granted on it.
type Role struct {
	Name           string
	ClusterActions []string
	IndexGrants    map[string]map[string][]string
	ExpiresAt      time.Time // Zero means the entry never expires.
}

// RoleMapping binds a role name to the users holding it.
type RoleMapping struct {
	Name      string
	Users     []string
	ExpiresAt time.Time
}

// IsGenerated reports whether the entry was produced by a sync strategy.
// Only generated entries are ever removed or regenerated; everything else is
// user-authored and must not be touched.
func (r Role) IsGenerated() bool        { return isGeneratedName(r.Name) }
func (m RoleMapping) IsGenerated() bool { return isGeneratedName(m.Name) }

// RoleDocument is the typed, in-memory form of the roles document. It lives
// only for the duration of one sync cycle; holding it across cycles would
// mean writing from a stale version.
type RoleDocument struct {
	entries map[string]Role
}

func NewRoleDocument() *RoleDocument {
	return &RoleDocument{entries: map[string]Role{}}
}

// Load parses the untyped form retrieved from the store. Unknown keys inside
// an entry are tolerated; an entry that is not an object at all is malformed.
func (d *RoleDocument) Load(raw store.RawDocument) error {
	entries := make(map[string]Role, len(raw))
	for name, value := range raw {
		body, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("roles entry %s is not an object", name)
		}
		role := Role{Name: name}
		role.ClusterActions = toStringSlice(body["cluster"])
		role.IndexGrants = toIndexGrants(body["indices"])
		expiresAt, err := toExpiry(body["expires"])
		if err != nil {
			return fmt.Errorf("roles entry %s: %w", name, err)
		}
		role.ExpiresAt = expiresAt
		entries[name] = role
	}
	d.entries = entries
	return nil
}

// Entries returns a snapshot sorted by name. Safe to iterate while removing
// entries from the document.
func (d *RoleDocument) Entries() []Role {
	result := make([]Role, 0, len(d.entries))
	for _, role := range d.entries {
		result = append(result, role)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (d *RoleDocument) Get(name string) (Role, bool) {
	role, exists := d.entries[name]
	return role, exists
}

func (d *RoleDocument) Put(role Role) {
	d.entries[role.Name] = role
}

func (d *RoleDocument) Remove(name string) {
	delete(d.entries, name)
}

// RemoveGenerated drops every strategy-produced entry, leaving user-authored
// entries in place.
func (d *RoleDocument) RemoveGenerated() {
	for _, role := range d.Entries() {
		if role.IsGenerated() {
			d.Remove(role.Name)
		}
	}
}

// RemoveExpired drops generated entries whose expiry has passed.
func (d *RoleDocument) RemoveExpired(now time.Time) int {
	removed := 0
	for _, role := range d.Entries() {
		if role.IsGenerated() && !role.ExpiresAt.IsZero() && role.ExpiresAt.Before(now) {
			d.Remove(role.Name)
			removed++
		}
	}
	return removed
}

// ToRaw serializes back to the stored form. Load(ToRaw(d)) yields d again,
// modulo key ordering.
func (d *RoleDocument) ToRaw() store.RawDocument {
	raw := store.RawDocument{}
	for name, role := range d.entries {
		body := map[string]interface{}{}
		if len(role.ClusterActions) > 0 {
			body["cluster"] = role.ClusterActions
		}
		if len(role.IndexGrants) > 0 {
			body["indices"] = role.IndexGrants
		}
		if !role.ExpiresAt.IsZero() {
			body["expires"] = role.ExpiresAt.UTC().Format(time.RFC3339)
		}
		raw[name] = body
	}
	return raw
}

// RoleMappingDocument is the typed form of the rolesmapping document.
type RoleMappingDocument struct {
	entries map[string]RoleMapping
}

func NewRoleMappingDocument() *RoleMappingDocument {
	return &RoleMappingDocument{entries: map[string]RoleMapping{}}
}

func (d *RoleMappingDocument) Load(raw store.RawDocument) error {
	entries := make(map[string]RoleMapping, len(raw))
	for name, value := range raw {
		body, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("rolesmapping entry %s is not an object", name)
		}
		mapping := RoleMapping{Name: name}
		mapping.Users = toStringSlice(body["users"])
		expiresAt, err := toExpiry(body["expires"])
		if err != nil {
			return fmt.Errorf("rolesmapping entry %s: %w", name, err)
		}
		mapping.ExpiresAt = expiresAt
		entries[name] = mapping
	}
	d.entries = entries
	return nil
}

func (d *RoleMappingDocument) Entries() []RoleMapping {
	result := make([]RoleMapping, 0, len(d.entries))
	for _, mapping := range d.entries {
		result = append(result, mapping)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func (d *RoleMappingDocument) Get(name string) (RoleMapping, bool) {
	mapping, exists := d.entries[name]
	return mapping, exists
}

func (d *RoleMappingDocument) Put(mapping RoleMapping) {
	d.entries[mapping.Name] = mapping
}

func (d *RoleMappingDocument) Remove(name string) {
	delete(d.entries, name)
}

func (d *RoleMappingDocument) RemoveGenerated() {
	for _, mapping := range d.Entries() {
		if mapping.IsGenerated() {
			d.Remove(mapping.Name)
		}
	}
}

func (d *RoleMappingDocument) RemoveExpired(now time.Time) int {
	removed := 0
	for _, mapping := range d.Entries() {
		if mapping.IsGenerated() && !mapping.ExpiresAt.IsZero() && mapping.ExpiresAt.Before(now) {
			d.Remove(mapping.Name)
			removed++
		}
	}
	return removed
}

func (d *RoleMappingDocument) ToRaw() store.RawDocument {
	raw := store.RawDocument{}
	for name, mapping := range d.entries {
		body := map[string]interface{}{}
		if len(mapping.Users) > 0 {
			body["users"] = mapping.Users
		}
		if !mapping.ExpiresAt.IsZero() {
			body["expires"] = mapping.ExpiresAt.UTC().Format(time.RFC3339)
		}
		raw[name] = body
	}
	return raw
}

// toStringSlice accepts both the []interface{} shape produced by JSON
// decoding and the []string shape produced by ToRaw.
func toStringSlice(value interface{}) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		return append([]string{}, v...)
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	default:
		return nil
	}
}

func toIndexGrants(value interface{}) map[string]map[string][]string {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]map[string][]string:
		result := make(map[string]map[string][]string, len(v))
		for pattern, types := range v {
			result[pattern] = map[string][]string{}
			for docType, actions := range types {
				result[pattern][docType] = append([]string{}, actions...)
			}
		}
		return result
	case map[string]interface{}:
		result := make(map[string]map[string][]string, len(v))
		for pattern, typesValue := range v {
			types, ok := typesValue.(map[string]interface{})
			if !ok {
				continue
			}
			result[pattern] = map[string][]string{}
			for docType, actions := range types {
				result[pattern][docType] = toStringSlice(actions)
			}
		}
		return result
	default:
		return nil
	}
}

func toExpiry(value interface{}) (time.Time, error) {
	if value == nil {
		return time.Time{}, nil
	}
	s, ok := value.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expires is not a string")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse expires timestamp: %w", err)
	}
	return t, nil
}
