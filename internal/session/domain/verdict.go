package domain

// State is the lifecycle state reported to the presentation layer.
type State int

const (
	StateUnauthenticated State = iota
	StatePendingApproval
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StatePendingApproval:
		return "pending_approval"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Verdict is the routing outcome of a resolution. Role is set only when State is StateAuthenticated.
type Verdict struct {
	State State
	Role  Role
}

// Unauthenticated is the fail-closed verdict.
func Unauthenticated() Verdict { return Verdict{State: StateUnauthenticated} }

// PendingApproval is returned when a live session was found without remote approval.
func PendingApproval() Verdict { return Verdict{State: StatePendingApproval} }

// Authenticated is returned for a live, approved session.
func Authenticated(role Role) Verdict { return Verdict{State: StateAuthenticated, Role: role} }

func (v Verdict) String() string {
	if v.State == StateAuthenticated {
		return v.State.String() + "(" + string(v.Role) + ")"
	}
	return v.State.String()
}
