package checkout

import (
	"errors"
	"fmt"
)

// Validation errors, rejected before any transaction is opened.
var (
	ErrEmptyCart             = errors.New("cart is empty")
	ErrUnknownShippingMethod = errors.New("unknown shipping method")
)

// InsufficientStockError reports a line item whose requested quantity
// exceeds the variant's available count. Detected inside the placing
// transaction; the entire order is rolled back.
type InsufficientStockError struct {
	VariantID   int64
	ProductName string
	Color       string
	Size        string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	label := e.ProductName
	if e.Size != "" || e.Color != "" {
		label = fmt.Sprintf("%s (%s %s)", e.ProductName, e.Size, e.Color)
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, %d available", label, e.Requested, e.Available)
}

// TransientError wraps infrastructure failures (connection loss,
// deadlock-detected aborts, commit failures). Because nothing is
// persisted until commit, the whole PlaceOrder call is safe to retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err represents a retryable store failure.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
