package rbac

import (
	"regexp"
	"strings"
)

var roleToken = regexp.MustCompile(`\w+`)

// ParseRoles splits the X-Roles header into role tokens. The gateway sends
// "(null)" for users without roles; that and an empty header both map to
// RoleImpotent.
func ParseRoles(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" || header == "(null)" {
		return []string{RoleImpotent}
	}
	roles := roleToken.FindAllString(header, -1)
	if len(roles) == 0 {
		return []string{RoleImpotent}
	}
	return roles
}
