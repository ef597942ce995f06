package identity

// Identity is the denormalized user profile cached alongside the tokens.
type Identity struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// RoleAdmin is the role value that grants access to admin routes.
const RoleAdmin = "admin"

// IsAdmin returns true if the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Credentials is the token pair issued by the identity API, together with the
// profile of the user they belong to. A refresh response may omit the
// refresh token when the server chooses not to rotate it.
type Credentials struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	Identity     Identity `json:"identity"`
}
