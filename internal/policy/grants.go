package policy

import (
	"github.com/diewo77/microloan/gate"
	"github.com/diewo77/microloan/internal/models"
)

// Resource types checked through the gate.
const (
	ResourceLoan        = "loan"
	ResourceApplication = "application"
)

// Grants is the role to permission table. Roles are assigned by the backend;
// this table only decides which screens and buttons each role reaches.
func Grants() gate.Grants {
	return gate.Grants{
		models.RoleAnonymous: {
			"loan:list", "loan:view",
		},
		models.RoleUser: {
			"loan:list", "loan:view",
			"application:create", "application:view", "application:delete", "application:pay",
		},
		models.RoleManager: {
			"loan:*",
			"application:list", "application:view", "application:approve", "application:reject",
		},
		models.RoleAdmin: {
			"loan:list", "loan:view", "loan:update", "loan:delete",
			"application:list", "application:view",
		},
	}
}
