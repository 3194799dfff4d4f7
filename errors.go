package cahiers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/cahiers/id"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("cahiers: not found")
	ErrAlreadyExists = errors.New("cahiers: already exists")
	ErrInvalidInput  = errors.New("cahiers: invalid input")

	// Not found errors
	ErrSchoolYearNotFound = errors.New("cahiers: school year not found")
	ErrSchoolNotFound     = errors.New("cahiers: school not found")
	ErrItemNotFound       = errors.New("cahiers: item not found")
	ErrSaleNotFound       = errors.New("cahiers: sale not found")
	ErrLineItemNotFound   = errors.New("cahiers: line item not found")
	ErrPaymentNotFound    = errors.New("cahiers: payment not found")
	ErrNoActiveSchoolYear = errors.New("cahiers: no active school year")

	// Business rule errors
	ErrSaleSettled       = errors.New("cahiers: sale is already settled")
	ErrInstallmentLimit  = errors.New("cahiers: installment limit reached")
	ErrLastLineItem      = errors.New("cahiers: a sale must keep at least one line item")
	ErrPaymentCancelled  = errors.New("cahiers: payment already cancelled")
	ErrSchoolYearExists  = errors.New("cahiers: school year already exists")
	ErrLineItemNotInSale = errors.New("cahiers: line item does not belong to sale")
	ErrInUse             = errors.New("cahiers: still referenced by a sale")

	// Stock errors
	ErrInsufficientStock = errors.New("cahiers: insufficient stock")

	// Invoice errors
	ErrInvoiceEmpty       = errors.New("cahiers: cannot build an invoice for a sale without line items")
	ErrRendererNotFound   = errors.New("cahiers: no invoice renderer for format")
	ErrInvoiceRenderFault = errors.New("cahiers: invoice rendering failed")

	// Store errors
	ErrStoreClosed       = errors.New("cahiers: store is closed")
	ErrTransactionFailed = errors.New("cahiers: transaction failed")
	ErrMigrationFailed   = errors.New("cahiers: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("cahiers: validation failed for %s: %s", e.Field, e.Message)
}

// Is matches ErrInvalidInput so callers can test with errors.Is.
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// StockShortage describes one item that cannot cover a requested quantity.
type StockShortage struct {
	ItemID    id.ItemID `json:"item_id"`
	Title     string    `json:"title"`
	Available int64     `json:"available"`
	Requested int64     `json:"requested"`
}

// InsufficientStockError lists every item of a request that is short.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (available %d, requested %d)", s.Title, s.Available, s.Requested))
	}
	return "cahiers: insufficient stock for " + strings.Join(parts, ", ")
}

// Is matches ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "cahiers: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("cahiers: %d errors occurred: %v", len(e.Errors), errors.Join(e.Errors...))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSchoolYearNotFound) ||
		errors.Is(err, ErrSchoolNotFound) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrLineItemNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrNoActiveSchoolYear)
}

// IsValidation returns true if the error rejects malformed input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInsufficientStock returns true if the error reports missing stock.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// IsBusinessRule returns true if the error is a rejected ledger rule.
func IsBusinessRule(err error) bool {
	return errors.Is(err, ErrSaleSettled) ||
		errors.Is(err, ErrInstallmentLimit) ||
		errors.Is(err, ErrLastLineItem) ||
		errors.Is(err, ErrPaymentCancelled) ||
		errors.Is(err, ErrSchoolYearExists) ||
		errors.Is(err, ErrLineItemNotInSale) ||
		errors.Is(err, ErrInUse) ||
		errors.Is(err, ErrAlreadyExists)
}

// IsInvoiceError returns true if an invoice could not be produced.
func IsInvoiceError(err error) bool {
	return errors.Is(err, ErrInvoiceEmpty) ||
		errors.Is(err, ErrRendererNotFound) ||
		errors.Is(err, ErrInvoiceRenderFault)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionFailed)
}
