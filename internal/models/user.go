package models

// User is the backend view of a signed-in person. Role is fetched separately
// from the identity token and may lag it.
type User struct {
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Role        string `json:"role,omitempty"`
}

// EffectiveRole returns the parsed role, defaulting to RoleUser.
func (u User) EffectiveRole() Role { return ParseRole(u.Role) }
