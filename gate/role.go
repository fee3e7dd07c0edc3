package gate

// Role is the single authorization level a subject holds. Unlike permission
// sets, roles are assigned externally and compared for equality.
type Role string

// RoleAnonymous is held by requests without an identity.
const RoleAnonymous Role = "anonymous"

// RoleStatus is the lifecycle of one role lookup.
type RoleStatus int

const (
	RolePending RoleStatus = iota
	RoleResolved
	RoleFailed
)

func (s RoleStatus) String() string {
	switch s {
	case RoleResolved:
		return "resolved"
	case RoleFailed:
		return "failed"
	default:
		return "pending"
	}
}

// RoleState is a snapshot of a role lookup. Role is the effective role: on
// failure it holds the least-privileged fallback, never the requested one.
type RoleState struct {
	Status RoleStatus
	Role   Role
	Err    error
}

// Resolved builds a settled state.
func Resolved(r Role) RoleState { return RoleState{Status: RoleResolved, Role: r} }

// Pending builds an in-flight state.
func Pending() RoleState { return RoleState{Status: RolePending} }

// Failed builds a failed state that falls back to the given role.
func Failed(fallback Role, err error) RoleState {
	return RoleState{Status: RoleFailed, Role: fallback, Err: err}
}
