package models

// Claims is the authenticated caller decoded from the bearer token.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (c *Claims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user,omitempty"`
}
