package models

import "strings"

// Role names seeded by the initial migration.
const (
	RoleUser     = "ROLE_USER"
	RoleManager  = "ROLE_MANAGER"
	RoleAdmin    = "ROLE_ADMIN"
	RoleSysAdmin = "ROLE_SYSADMIN"
)

// Authorities checked by the access policy.
const (
	PermissionUpdateUser     = "UPDATE:USER"
	PermissionDeleteUser     = "DELETE:USER"
	PermissionDeleteCustomer = "DELETE:CUSTOMER"
)

type Role struct {
	ID         int64
	Name       string
	Permission string
}

// Covers reports whether r grants every permission of other.
func (r *Role) Covers(other *Role) bool {
	have := make(map[string]struct{})
	for _, p := range r.Permissions() {
		have[p] = struct{}{}
	}
	for _, p := range other.Permissions() {
		if _, ok := have[p]; !ok {
			return false
		}
	}
	return true
}

// Permissions splits the comma-delimited permission column, dropping blanks.
func (r *Role) Permissions() []string {
	out := []string{}
	for _, p := range strings.Split(r.Permission, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
