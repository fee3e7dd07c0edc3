package gate_test

import (
	"testing"

	"github.com/diewo77/microloan/gate"
)

func TestPermission_NewPermission(t *testing.T) {
	perm := gate.NewPermission("loan", gate.ActionCreate)
	if perm != "loan:create" {
		t.Errorf("expected 'loan:create', got '%s'", perm)
	}
}

func TestPermission_Parse(t *testing.T) {
	res, act := gate.Permission("application:approve").Parse()
	if res != "application" || act != gate.ActionApprove {
		t.Errorf("got %q %q", res, act)
	}
	res, act = gate.Permission("invalid").Parse()
	if res != "" || act != "" {
		t.Errorf("expected empty strings, got '%s' and '%s'", res, act)
	}
}

func TestPermission_Matches(t *testing.T) {
	tests := []struct {
		have, want gate.Permission
		ok         bool
	}{
		{"loan:create", "loan:create", true},
		{"loan:create", "loan:delete", false},
		{"loan:*", "loan:delete", true},
		{"loan:*", "application:delete", false},
		{gate.PermissionSuperAdmin, "application:pay", true},
	}
	for _, tt := range tests {
		if got := tt.have.Matches(tt.want); got != tt.ok {
			t.Errorf("%s.Matches(%s) = %v, want %v", tt.have, tt.want, got, tt.ok)
		}
	}
}

func TestGrants_Allows(t *testing.T) {
	g := gate.Grants{"admin": {"loan:update", "application:list"}}
	if !g.Allows("admin", "loan:update") {
		t.Error("expected admin to update loans")
	}
	if g.Allows("admin", "loan:delete") || g.Allows("user", "loan:update") {
		t.Error("unexpected grant")
	}
}
