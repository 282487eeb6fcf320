package models

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrAuthentication     = errors.New("authentication failed")
	ErrImageUnreadable    = errors.New("image unreadable")
	ErrModelLoad          = errors.New("model load failed")
	ErrRemoteCall         = errors.New("remote call failed")
	ErrInvalidInputPath   = errors.New("invalid input path")
)

// WrapError tags err with a sentinel kind and the operation that produced it.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}
