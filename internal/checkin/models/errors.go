package models

import (
	"fmt"

	"checkin/pkg/platform/sentinel"
)

// Compare-and-set rejections returned by shared stores. Both wrap
// sentinel.ErrConflict.
var (
	ErrTokenNotAvailable  = fmt.Errorf("token is not available: %w", sentinel.ErrConflict)
	ErrTokenNotBound      = fmt.Errorf("token is not bound: %w", sentinel.ErrConflict)
	ErrRegistrantHasToken = fmt.Errorf("registrant already holds a token: %w", sentinel.ErrConflict)
)
