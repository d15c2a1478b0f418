// Package permissions resolves effective project permissions and gates
// operations on them.
package permissions

import (
	"errors"
	"fmt"

	"github.com/ImpactInc/azkaban/pkg/models"
)

var (
	// ErrForbidden is returned when the caller lacks the required permission.
	ErrForbidden = errors.New("permission denied")

	// ErrInvalidUser indicates a user name the directory does not know.
	ErrInvalidUser = errors.New("user is invalid")

	// ErrInvalidGroup indicates a group name the directory does not know.
	ErrInvalidGroup = errors.New("group is invalid")

	// ErrInvalidProxyUser indicates a proxy name the acting user may not use.
	ErrInvalidProxyUser = errors.New("proxy user is invalid")

	// ErrProxyUserExists indicates the proxy name is already registered.
	ErrProxyUserExists = errors.New("proxy user already exists")

	// ErrProxyUserNotFound indicates the proxy name is not registered.
	ErrProxyUserNotFound = errors.New("proxy user not found")
)

// ForbiddenError carries the permission type the caller was missing.
type ForbiddenError struct {
	Need models.PermissionType
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("permission denied, need %s access", e.Need)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// IsForbidden checks if an error indicates a missing permission.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsInvalidPrincipal checks if an error indicates a rejected user, group or
// proxy name.
func IsInvalidPrincipal(err error) bool {
	return errors.Is(err, ErrInvalidUser) ||
		errors.Is(err, ErrInvalidGroup) ||
		errors.Is(err, ErrInvalidProxyUser)
}
