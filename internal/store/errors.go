package store

import (
	"errors"
	"fmt"

	"github.com/ariefcatur/go-meatshop-orders/internal/apperr"
)

// NotFoundAs turns ErrNotFound into the typed not-found error for resource and
// wraps anything else with the lookup context.
func NotFoundAs(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(resource, id)
	}
	return fmt.Errorf("load %s %s: %w", resource, id, err)
}
