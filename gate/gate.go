// Package gate provides role-based authorization for web handlers: a static
// role to permission table combined with per-resource policies, cached role
// resolution, and the decision table route guards use while identity and
// role arrive independently. It has no dependency on domain models.
//
// The package uses generics to allow any subject type:
//   - Gate[string] for email keyed subjects
//   - Gate[*Claims] for token claims
package gate

import "context"

// Gate is the central authorization checkpoint. A request is allowed when the
// subject's role grants resource:action and, if a resource is supplied and a
// policy is registered for its type, the policy agrees.
type Gate[U comparable] struct {
	grants   Grants
	policies map[string]Policy[U]
}

// NewGate creates a Gate over the given role grants.
func NewGate[U comparable](grants Grants) *Gate[U] {
	if grants == nil {
		grants = Grants{}
	}
	return &Gate[U]{grants: grants, policies: make(map[string]Policy[U])}
}

// Register adds a resource-specific policy (ownership, state checks).
// Overwrites any existing policy for that type.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Authorize returns ErrUnauthorized for a zero-value subject, a role lacking
// the permission, or a policy denial.
func (g *Gate[U]) Authorize(ctx context.Context, user U, role Role, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthorized
	}
	if !g.grants.Allows(role, NewPermission(resourceType, action)) {
		return ErrUnauthorized
	}
	if resource != nil {
		if p, ok := g.policies[resourceType]; ok && !p.Can(ctx, user, action, resource) {
			return ErrUnauthorized
		}
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, user U, role Role, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, role, action, resourceType, resource) == nil
}

// CanRole checks only the role grant, without any resource policy.
// Useful for templates to show/hide buttons before a resource is loaded.
func (g *Gate[U]) CanRole(role Role, action Action, resourceType string) bool {
	return g.grants.Allows(role, NewPermission(resourceType, action))
}

// Policy returns the policy registered for resourceType.
func (g *Gate[U]) Policy(resourceType string) (Policy[U], error) {
	p, ok := g.policies[resourceType]
	if !ok {
		return nil, ErrNoPolicyDefined
	}
	return p, nil
}
