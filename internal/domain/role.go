package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// RolePrefix is required at the start of every role name.
const RolePrefix = "ROLE_"

// Role is a named grant such as ROLE_USER.
type Role string

// Canonical roles.
const (
	RoleUser      Role = "ROLE_USER"
	RoleAdmin     Role = "ROLE_ADMIN"
	RoleModerator Role = "ROLE_MODERATOR"
)

// ParseRole normalizes a role name: it trims whitespace, upper-cases it and
// adds RolePrefix when missing. The result is validated.
func ParseRole(name string) (Role, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return "", ErrInvalidRole
	}
	if !strings.HasPrefix(n, RolePrefix) {
		n = RolePrefix + n
	}
	r := Role(n)
	if err := r.Validate(); err != nil {
		return "", err
	}
	return r, nil
}

// Validate checks that the role name is non-empty, carries RolePrefix and
// has something after it.
func (r Role) Validate() error {
	s := string(r)
	if strings.TrimSpace(s) == "" {
		return ErrInvalidRole
	}
	if !strings.HasPrefix(s, RolePrefix) || len(s) == len(RolePrefix) {
		return NewDomainError(ErrInvalidRole, "role name must start with "+RolePrefix, s)
	}
	return nil
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}

// RoleSet is an unordered set of roles without duplicates.
// The zero value is not usable; call NewRoleSet.
type RoleSet map[Role]struct{}

// NewRoleSet creates a set holding the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// RoleSetFromNames builds a set from raw role names without normalizing them.
func RoleSetFromNames(names []string) RoleSet {
	s := make(RoleSet, len(names))
	for _, n := range names {
		s[Role(n)] = struct{}{}
	}
	return s
}

// Add inserts a role. It reports whether the set changed.
func (s RoleSet) Add(r Role) bool {
	if _, ok := s[r]; ok {
		return false
	}
	s[r] = struct{}{}
	return true
}

// Remove deletes a role. It reports whether the set changed.
func (s RoleSet) Remove(r Role) bool {
	if _, ok := s[r]; !ok {
		return false
	}
	delete(s, r)
	return true
}

// Has reports whether the role is in the set.
func (s RoleSet) Has(r Role) bool {
	_, ok := s[r]
	return ok
}

// Len returns the number of roles.
func (s RoleSet) Len() int {
	return len(s)
}

// Names returns the role names sorted alphabetically.
func (s RoleSet) Names() []string {
	names := make([]string, 0, len(s))
	for r := range s {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return names
}

// Equal reports whether both sets hold the same roles.
func (s RoleSet) Equal(other RoleSet) bool {
	if len(s) != len(other) {
		return false
	}
	for r := range s {
		if !other.Has(r) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy of the set.
func (s RoleSet) Clone() RoleSet {
	c := make(RoleSet, len(s))
	for r := range s {
		c[r] = struct{}{}
	}
	return c
}

// MarshalJSON encodes the set as a sorted list of names.
func (s RoleSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a list of names.
func (s *RoleSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = RoleSetFromNames(names)
	return nil
}
