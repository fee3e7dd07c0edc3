package gate

// Decision is the single outcome a route guard renders.
type Decision int

const (
	// DecisionLoading renders a neutral placeholder: a source is still in flight.
	DecisionLoading Decision = iota
	// DecisionAnonymous sends the visitor to sign-in.
	DecisionAnonymous
	// DecisionForbidden renders the forbidden view: the subject is known, the role is not enough.
	DecisionForbidden
	// DecisionAuthorized renders the protected view.
	DecisionAuthorized
	// DecisionUnavailable renders a retryable error: the role could not be determined.
	DecisionUnavailable
)

func (d Decision) String() string {
	switch d {
	case DecisionAnonymous:
		return "anonymous"
	case DecisionForbidden:
		return "forbidden"
	case DecisionAuthorized:
		return "authorized"
	case DecisionUnavailable:
		return "unavailable"
	default:
		return "loading"
	}
}

// IdentityStatus is what the guard knows about the session.
type IdentityStatus struct {
	Loading bool
	Present bool
}

// DecideAuthenticated is the decision table for routes that only need a
// signed-in subject.
func DecideAuthenticated(id IdentityStatus) Decision {
	switch {
	case id.Loading:
		return DecisionLoading
	case !id.Present:
		return DecisionAnonymous
	default:
		return DecisionAuthorized
	}
}

// DecideRole is the decision table for role-restricted routes. It waits on
// both sources: nothing but Loading is returned while either is in flight,
// and Forbidden is returned only for a resolved role that differs from
// required. A failed lookup degrades to its fallback role, which can still
// satisfy a route requiring exactly that role; otherwise it is Unavailable.
func DecideRole(id IdentityStatus, role RoleState, required Role) Decision {
	if d := DecideAuthenticated(id); d != DecisionAuthorized {
		return d
	}
	switch role.Status {
	case RoleResolved:
		if role.Role == required {
			return DecisionAuthorized
		}
		return DecisionForbidden
	case RoleFailed:
		if role.Role != "" && role.Role == required {
			return DecisionAuthorized
		}
		return DecisionUnavailable
	default:
		return DecisionLoading
	}
}
