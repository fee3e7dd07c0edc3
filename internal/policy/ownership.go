package policy

import (
	"context"
	"strings"

	"github.com/diewo77/microloan/gate"
)

// Ownable is implemented by resources that belong to one email.
type Ownable interface {
	GetOwnerEmail() string
}

type deletable interface{ CanDelete() bool }

type payable interface{ IsPaid() bool }

// OwnershipPolicy allows a subject to act on resources it owns. Delete also
// requires the resource to still be deletable, and pay requires it unpaid.
type OwnershipPolicy struct{}

func NewOwnershipPolicy() *OwnershipPolicy { return &OwnershipPolicy{} }

func (p *OwnershipPolicy) Can(_ context.Context, email string, action gate.Action, resource any) bool {
	if resource == nil {
		return true
	}
	ownable, ok := resource.(Ownable)
	if !ok {
		return false
	}
	if !strings.EqualFold(ownable.GetOwnerEmail(), email) {
		return false
	}
	switch action {
	case gate.ActionDelete:
		if d, ok := resource.(deletable); ok {
			return d.CanDelete()
		}
	case gate.ActionPay:
		if p, ok := resource.(payable); ok {
			return !p.IsPaid()
		}
	}
	return true
}

// ModeratorBypass lets moderators through and applies inner to everyone else.
func ModeratorBypass(inner gate.Policy[string], isModerator func(ctx context.Context) bool) gate.Policy[string] {
	return gate.PolicyFunc[string](func(ctx context.Context, email string, action gate.Action, resource any) bool {
		return isModerator(ctx) || inner.Can(ctx, email, action, resource)
	})
}
