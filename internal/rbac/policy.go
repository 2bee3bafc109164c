package rbac

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicy []byte

const wildcardPrivilege = "*"

// Policy answers whether a set of roles holds a privilege.
type Policy struct {
	grants map[string]map[string]struct{}
}

type policyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// DefaultPolicy returns the embedded policy.
func DefaultPolicy() (*Policy, error) {
	return ParsePolicy(defaultPolicy)
}

// LoadPolicy reads a YAML policy from path, falling back to the embedded
// policy when path is empty.
func LoadPolicy(path string) (*Policy, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPolicy()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rbac: read policy: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes a YAML policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("rbac: parse policy: %w", err)
	}
	p := &Policy{grants: make(map[string]map[string]struct{}, len(file.Roles))}
	for role, privileges := range file.Roles {
		role = normalize(role)
		if role == "" || role == RoleImpotent {
			continue
		}
		set := make(map[string]struct{}, len(privileges))
		for _, priv := range privileges {
			if priv = normalize(priv); priv != "" {
				set[priv] = struct{}{}
			}
		}
		p.grants[role] = set
	}
	return p, nil
}

// HavePrivilege reports whether any of roles is granted privilege.
func (p *Policy) HavePrivilege(privilege string, roles []string) bool {
	if p == nil {
		return false
	}
	privilege = normalize(privilege)
	if privilege == "" {
		privilege = PrivilegeUser
	}
	for _, role := range roles {
		set, ok := p.grants[normalize(role)]
		if !ok {
			continue
		}
		if _, ok := set[privilege]; ok {
			return true
		}
		if _, ok := set[wildcardPrivilege]; ok {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
