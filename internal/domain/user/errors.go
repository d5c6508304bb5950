package user

import "errors"

var (
	// ErrNotFound is returned by stores when no user matches the lookup
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateDNI is returned by stores when the dni unique constraint fires
	ErrDuplicateDNI = errors.New("user with this dni already exists")
)
