package repositories

import "errors"

type ErrNotFound struct {
}

func (e *ErrNotFound) Error() string {
	return "not found"
}

func IsNotFound(err error) bool {
	var target *ErrNotFound
	return errors.As(err, &target)
}

// ErrConflict is returned when a unique name is already taken.
type ErrConflict struct {
	What string
}

func (e *ErrConflict) Error() string {
	return e.What + " already exists"
}

func IsConflict(err error) bool {
	var target *ErrConflict
	return errors.As(err, &target)
}
