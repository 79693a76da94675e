package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateEvent checks the fields every collected event must carry.
func ValidateEvent(e *Event) error {
	if e == nil {
		return &ValidationError{
			Field:   "event",
			Message: "event cannot be nil",
		}
	}

	if e.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "event ID is required",
		}
	}

	if !e.Type.Valid() {
		return &ValidationError{
			Field:   "type",
			Message: fmt.Sprintf("unknown event type %q", e.Type),
		}
	}

	if e.Name == "" {
		return &ValidationError{
			Field:   "name",
			Message: "event name is required",
		}
	}

	if e.Timestamp <= 0 {
		return &ValidationError{
			Field:   "timestamp",
			Message: "event timestamp is required",
		}
	}

	return nil
}

func ValidateBatch(events []Event) error {
	if len(events) == 0 {
		return &ValidationError{
			Field:   "events",
			Message: "batch must contain at least one event",
		}
	}
	for i := range events {
		if err := ValidateEvent(&events[i]); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}
