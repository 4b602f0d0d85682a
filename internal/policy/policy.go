// Package policy implements the ownership gate applied before every
// mutation. A resource is owned by the caller when its owner reference
// equals the caller's id; everything else is denied.
package policy

import "errors"

// ErrNotOwner is returned when the caller does not own the resource.
var ErrNotOwner = errors.New("caller does not own resource")

func Owned(callerID, ownerID string) bool {
	return callerID != "" && callerID == ownerID
}

// RequireOwner gates a mutation. No side effect on success.
func RequireOwner(callerID, ownerID string) error {
	if !Owned(callerID, ownerID) {
		return ErrNotOwner
	}
	return nil
}
