// Package authz decides whether a caller may mutate a resource.
package authz

import "github.com/starford/ansuz/internal/apperr"

// Decision is the outcome of an authorization check.
type Decision bool

const (
	Deny  Decision = false
	Allow Decision = true
)

// Authorize allows the caller only when it is the resource owner.
// An empty caller is always denied.
func Authorize(callerID, ownerID string) Decision {
	if callerID == "" || callerID != ownerID {
		return Deny
	}
	return Allow
}

// Check is Authorize returning apperr.ErrForbidden on Deny.
func Check(callerID, ownerID string) error {
	if Authorize(callerID, ownerID) == Deny {
		return apperr.ErrForbidden
	}
	return nil
}
