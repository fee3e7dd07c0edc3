package gate

import "errors"

// Sentinel errors returned by Gate.Authorize and resolvers.
var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNoPolicyDefined = errors.New("no policy defined for resource")
	ErrRoleUnavailable = errors.New("role lookup failed")
)
