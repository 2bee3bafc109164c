package rbac

import "strings"

// Built-in privilege names requested by route handlers.
const (
	PrivilegeUser  = "user"
	PrivilegeAdmin = "admin"
)

// RoleImpotent is assigned when the gateway forwards no roles at all. It
// never grants anything.
const RoleImpotent = "impotent"

// Identity describes the caller as asserted by the authenticating gateway.
// It is trusted as-is.
type Identity struct {
	UID      int64
	Username string
}

// ACLKind enumerates the access levels an employee record can carry.
type ACLKind int

const (
	// ACLSelf limits the caller to their own records.
	ACLSelf ACLKind = iota
	// ACLReadOnly grants the read-only overview.
	ACLReadOnly
	// ACLDepartment scopes the caller to one department.
	ACLDepartment
	// ACLAdmin grants access to every department.
	ACLAdmin
)

// ACL is the parsed per-employee access level. The stored value is either a
// keyword ("admin", "readonly") or a department number.
type ACL struct {
	Kind ACLKind
	dept string
	raw  string
}

// ParseACL classifies a stored ACL value.
func ParseACL(raw string) ACL {
	value := strings.TrimSpace(raw)
	switch {
	case value == "admin":
		return ACL{Kind: ACLAdmin, raw: value}
	case value == "readonly":
		return ACL{Kind: ACLReadOnly, raw: value}
	case isDigits(value):
		return ACL{Kind: ACLDepartment, dept: value, raw: value}
	default:
		return ACL{Kind: ACLSelf, raw: value}
	}
}

// Dept returns the department number for department-scoped ACLs.
func (a ACL) Dept() string {
	return a.dept
}

// IsDepartment reports whether the ACL is department scoped.
func (a ACL) IsDepartment() bool {
	return a.Kind == ACLDepartment
}

// IsAdmin reports whether the ACL grants access to all departments.
func (a ACL) IsAdmin() bool {
	return a.Kind == ACLAdmin
}

// String returns the stored value.
func (a ACL) String() string {
	return a.raw
}

// CoversDepartment reports whether a department-scoped ACL matches dept
// exactly or matches its leading digit.
func (a ACL) CoversDepartment(dept string) bool {
	if a.Kind != ACLDepartment || dept == "" {
		return false
	}
	return a.dept == dept || a.dept == dept[:1]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MatchesLeadingDigit reports whether a department-scoped ACL equals the
// first character of dept. Department numbers are hierarchical: "12" and
// "15" both belong to the manager holding "1".
func (a ACL) MatchesLeadingDigit(dept string) bool {
	if a.Kind != ACLDepartment || dept == "" {
		return false
	}
	return a.dept == dept[:1]
}
