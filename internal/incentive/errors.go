package incentive

import "fmt"

// BatchItemError reports one supplier failing inside the weekly batch.
type BatchItemError struct {
	Supplier string
	Err      error
}

func (e BatchItemError) Error() string {
	return fmt.Sprintf("incentive batch: supplier %s: %v", e.Supplier, e.Err)
}

// Unwrap returns the underlying cause.
func (e BatchItemError) Unwrap() error {
	return e.Err
}

// NotificationError reports a reminder that could not be delivered.
type NotificationError struct {
	CreditNote string
	Err        error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("credit note reminder %s: %v", e.CreditNote, e.Err)
}

// Unwrap returns the underlying cause.
func (e *NotificationError) Unwrap() error {
	return e.Err
}
