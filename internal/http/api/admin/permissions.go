package admin

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// Capability keys assignable to staff accounts. The wildcard grants all.
const (
	PermWildcard = "*"
	PermKeys     = "keys"
	PermLists    = "lists"
)

// ParsePermissions decodes the stored capability list. Malformed JSON
// yields an empty set rather than an error so a bad row cannot grant access.
func ParsePermissions(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var perms []string
	if errUnmarshal := json.Unmarshal(raw, &perms); errUnmarshal != nil {
		return nil
	}
	return perms
}

// HasPermission reports whether the capability list grants the given key.
func HasPermission(perms []string, key string) bool {
	for _, p := range perms {
		if p == PermWildcard || p == key {
			return true
		}
	}
	return false
}
