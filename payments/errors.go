package payments

import (
	"errors"
	"strings"
)

var (
	// ErrUnauthenticated blocks writes without a signed-in identity.
	ErrUnauthenticated = errors.New("sign in required")
	// ErrNoPendingDelete is returned when a delete is confirmed that was never requested.
	ErrNoPendingDelete = errors.New("no delete awaiting confirmation")
	// ErrUnknownRecord is returned for a record id the history does not hold.
	ErrUnknownRecord = errors.New("payment record not in history")
	// ErrDiscarded is returned when a fetch finished after the view was
	// closed or its identity changed; its result was dropped.
	ErrDiscarded = errors.New("history changed while fetching")
)

// ValidationError lists the required form fields that were left empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

func required(fields ...[2]string) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f[1]) == "" {
			missing = append(missing, f[0])
		}
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing}
	}
	return nil
}
