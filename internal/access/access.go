package access

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/appetiteclub/apt"
)

// Role is an exclusive identity class assigned to a user. Roles form a
// closed, ordered set; declaration order fixes each role's bitmask.
type Role uint8

const (
	RolePublic Role = iota
	RoleUser
	RoleAdmin
	RoleRoot

	roleCount
)

// Wildcard is the level declaration entry that admits every role.
const Wildcard = "*"

var roleTitles = [roleCount]string{
	RolePublic: "public",
	RoleUser:   "user",
	RoleAdmin:  "admin",
	RoleRoot:   "root",
}

// Title returns the declared name of the role.
func (r Role) Title() string {
	if !r.Valid() {
		return "unknown"
	}
	return roleTitles[r]
}

func (r Role) String() string {
	return r.Title()
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r < roleCount
}

// BitMask returns the single bit assigned to the role: the Kth declared
// role carries 2^(K-1), so all role masks are pairwise disjoint.
func (r Role) BitMask() uint {
	return 1 << uint(r)
}

// Is reports whether r and other denote the same role. It is an identity
// check, not a hierarchy check: both the bit and the title must match.
func (r Role) Is(other Role) bool {
	return r == other && r.Title() == other.Title()
}

// MarshalJSON emits the role title rather than its numeric value.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Title())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	role, ok := ParseRole(name)
	if !ok {
		return fmt.Errorf("unknown role %q", name)
	}
	*r = role
	return nil
}

// ParseRole resolves a declared role title, case-insensitively.
func ParseRole(name string) (Role, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for r := RolePublic; r < roleCount; r++ {
		if roleTitles[r] == name {
			return r, true
		}
	}
	return 0, false
}

// AllRoles returns every declared role in declaration order.
func AllRoles() []Role {
	roles := make([]Role, 0, roleCount)
	for r := RolePublic; r < roleCount; r++ {
		roles = append(roles, r)
	}
	return roles
}

// Level is a named permission tier: the set of roles it accepts.
type Level struct {
	name  string
	roles [roleCount]bool
}

// Name returns the level's declared name.
func (l Level) Name() string {
	return l.name
}

// Allows reports whether a user holding the given role satisfies the
// level. Membership in the level's role set is the whole check.
func (l Level) Allows(r Role) bool {
	return r.Valid() && l.roles[r]
}

// BitMask returns the bitwise union of the masks of every role the level
// accepts. Kept for diagnostics: Allows(r) holds exactly when
// r.BitMask()&l.BitMask() == r.BitMask().
func (l Level) BitMask() uint {
	var mask uint
	for r := RolePublic; r < roleCount; r++ {
		if l.roles[r] {
			mask |= r.BitMask()
		}
	}
	return mask
}

// LevelSpec declares a level by name and the role titles it accepts. A
// single Wildcard entry admits every role.
type LevelSpec struct {
	Name  string
	Roles []string
}

// BuildLevels materializes level declarations. A declaration referencing
// an undeclared role is a configuration error: it is logged and skipped,
// never fatal.
func BuildLevels(specs []LevelSpec, logger apt.Logger) map[string]Level {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}

	levels := make(map[string]Level, len(specs))
	for _, spec := range specs {
		level := Level{name: spec.Name}
		for _, name := range spec.Roles {
			if name == Wildcard {
				for _, r := range AllRoles() {
					level.roles[r] = true
				}
				continue
			}
			r, ok := ParseRole(name)
			if !ok {
				logger.Error("unknown role in level declaration", "level", spec.Name, "role", name)
				continue
			}
			level.roles[r] = true
		}
		levels[spec.Name] = level
	}
	return levels
}

// DefaultLevels is the level table the HTTP layer gates on.
func DefaultLevels(logger apt.Logger) map[string]Level {
	return BuildLevels([]LevelSpec{
		{Name: "public", Roles: []string{Wildcard}},
		{Name: "user", Roles: []string{"user", "admin", "root"}},
		{Name: "admin", Roles: []string{"admin", "root"}},
		{Name: "root", Roles: []string{"root"}},
	}, logger)
}
