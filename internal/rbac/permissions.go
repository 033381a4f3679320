package rbac

import (
	"encoding/json"
	"errors"
	"fmt"
)

// PermissionLevel is a capability tag held by a member. The set is closed;
// these names are part of the session token payload, keep them stable.
type PermissionLevel string

const (
	CommunityDJ             PermissionLevel = "COMMUNITY_DJ"
	StudentDJ               PermissionLevel = "STUDENT_DJ"
	GeneralManager          PermissionLevel = "GENERAL_MANAGER"
	AssistantGeneralManager PermissionLevel = "ASSISTANT_GENERAL_MANAGER"
	OperationsDirector      PermissionLevel = "OPERATIONS_DIRECTOR"
	ProgrammingDirector     PermissionLevel = "PROGRAMMING_DIRECTOR"
	SchedulingCoordinator   PermissionLevel = "SCHEDULING_COORDINATOR"
	VolunteerCoordinator    PermissionLevel = "VOLUNTEER_COORDINATOR"
	Webmaster               PermissionLevel = "WEBMASTER"
)

// Superuser satisfies every route requirement.
const Superuser = Webmaster

var ErrUnknownPermission = errors.New("rbac: unknown permission level")

// AllPermissions lists every level in canonical order.
var AllPermissions = []PermissionLevel{
	CommunityDJ,
	StudentDJ,
	GeneralManager,
	AssistantGeneralManager,
	OperationsDirector,
	ProgrammingDirector,
	SchedulingCoordinator,
	VolunteerCoordinator,
	Webmaster,
}

var ExecBoardPermissions = []PermissionLevel{
	GeneralManager,
	AssistantGeneralManager,
	OperationsDirector,
	ProgrammingDirector,
	SchedulingCoordinator,
	VolunteerCoordinator,
}

var DJPermissions = []PermissionLevel{
	StudentDJ,
	CommunityDJ,
}

var canonicalRank = func() map[PermissionLevel]int {
	m := make(map[PermissionLevel]int, len(AllPermissions))
	for i, p := range AllPermissions {
		m[p] = i
	}
	return m
}()

func (p PermissionLevel) Valid() bool {
	_, ok := canonicalRank[p]
	return ok
}

func (p PermissionLevel) String() string { return string(p) }

func ParsePermissionLevel(s string) (PermissionLevel, error) {
	p := PermissionLevel(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPermission, s)
	}
	return p, nil
}

// UnmarshalJSON rejects tags outside the enumeration.
func (p *PermissionLevel) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParsePermissionLevel(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePermissionLevels parses every tag or fails on the first unknown one.
func ParsePermissionLevels(tags []string) ([]PermissionLevel, error) {
	out := make([]PermissionLevel, 0, len(tags))
	for _, s := range tags {
		p, err := ParsePermissionLevel(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return Normalize(out), nil
}

// Normalize drops duplicates and invalid tags and returns canonical order.
// The result is never nil.
func Normalize(levels []PermissionLevel) []PermissionLevel {
	seen := make(map[PermissionLevel]struct{}, len(levels))
	for _, p := range levels {
		if p.Valid() {
			seen[p] = struct{}{}
		}
	}
	out := make([]PermissionLevel, 0, len(seen))
	for _, p := range AllPermissions {
		if _, ok := seen[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func Contains(levels []PermissionLevel, want PermissionLevel) bool {
	for _, p := range levels {
		if p == want {
			return true
		}
	}
	return false
}
