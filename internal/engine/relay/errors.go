package relay

import (
	"errors"
	"fmt"
	"strings"
)

var ErrWebhookNotFound = errors.New("webhook not found")

// ValidationError reports input rejected before any storage or network
// action. Invalid carries the offending values when the field is a list
// (e.g. unknown event names).
type ValidationError struct {
	Field   string
	Message string
	Invalid []string
}

func (e *ValidationError) Error() string {
	if len(e.Invalid) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Field, e.Message, strings.Join(e.Invalid, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// persistErr wraps storage failures so callers can tell them apart from
// validation failures.
func persistErr(err error) error {
	return fmt.Errorf("persistence failed: %w", err)
}
