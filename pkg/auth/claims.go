package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AppMetadata carries server-controlled attributes set by the auth backend.
type AppMetadata struct {
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// AccessTokenClaims is the access token minted by the hosted auth backend.
type AccessTokenClaims struct {
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata"`
	jwt.RegisteredClaims
}

// UserID returns the subject.
func (c *AccessTokenClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// HasRole checks the app_metadata roles first, then the top-level role claim.
func (c *AccessTokenClaims) HasRole(role string) bool {
	if c == nil || strings.TrimSpace(role) == "" {
		return false
	}
	if strings.EqualFold(c.AppMetadata.Role, role) {
		return true
	}
	for _, r := range c.AppMetadata.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return strings.EqualFold(c.Role, role)
}

// EffectiveRole is the role recorded on the request context.
func (c *AccessTokenClaims) EffectiveRole() string {
	if c == nil {
		return ""
	}
	if c.AppMetadata.Role != "" {
		return c.AppMetadata.Role
	}
	return c.Role
}
