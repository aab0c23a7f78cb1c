package auth

import "slices"

// Principal is the authenticated identity attached to a request: the user id
// taken from the token subject and the authorities carried by the token.
type Principal struct {
	ID          int64
	Authorities []string
}

// Has reports whether the principal carries authority.
func (p Principal) Has(authority string) bool {
	return slices.Contains(p.Authorities, authority)
}
