package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dermlab/skinconsult-client/models"
)

// Claim keys recognized for each identity field, highest priority first.
// The SOAP-style URIs are what the consultation backend emits for tokens
// minted by its .NET identity stack.
var (
	userIDClaimKeys = []string{
		"sub",
		"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier",
		"nameid",
		"userId",
	}
	roleClaimKeys = []string{
		"role",
		"http://schemas.microsoft.com/ws/2008/06/identity/claims/role",
		"roles",
		"scope",
	}
)

// Identity is the user id and role extracted from the bearer credential.
// An empty UserID means unauthenticated; callers must disable write actions.
type Identity struct {
	UserID string
	Role   string
}

// Authenticated reports whether a user id could be extracted.
func (i Identity) Authenticated() bool { return i.UserID != "" }

// Resolve decodes the bearer token and extracts {userId, role}. No signature
// verification is performed; transport-level trust is assumed. Absent,
// malformed or undecodable tokens resolve to the empty identity rather than
// an error.
func Resolve(token string) Identity {
	ident := Identity{Role: models.RoleUser}
	if token == "" {
		return ident
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ident
	}

	for _, key := range userIDClaimKeys {
		if v, ok := claimValue(claims[key]); ok {
			ident.UserID = v
			break
		}
	}
	for _, key := range roleClaimKeys {
		v, ok := claimValue(claims[key])
		if !ok {
			continue
		}
		ident.Role = normalizeRole(v)
		break
	}
	return ident
}

// claimValue extracts a usable string from a claim that may arrive as a
// scalar or as a collection; the first element wins.
func claimValue(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case string:
		if v != "" {
			return v, true
		}
	case []string:
		if len(v) > 0 && v[0] != "" {
			return v[0], true
		}
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func normalizeRole(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case models.RoleSpecialist:
		return models.RoleSpecialist
	case models.RoleAdmin:
		return models.RoleAdmin
	default:
		return models.RoleUser
	}
}
