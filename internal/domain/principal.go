package domain

// AuthMethod describes how a caller authenticated with the API.
type AuthMethod string

const (
	AuthMethodJWT       AuthMethod = "jwt"
	AuthMethodAnonymous AuthMethod = "anonymous"
	AuthMethodCron      AuthMethod = "cron"
)

// Principal captures normalized caller identity independent of auth mechanism.
type Principal struct {
	ID          string
	AuthMethod  AuthMethod
	Subject     string
	Issuer      string
	Email       string
	Name        string
	IsAnonymous bool
	Roles       []string
}

// HasRole checks if the principal carries a role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAuthenticated reports whether the principal belongs to a signed-in, non-anonymous user.
func (p Principal) IsAuthenticated() bool {
	return p.ID != "" && !p.IsAnonymous
}
