package audithook

// Action constants for audit events.
const (
	// School year actions
	ActionSchoolYearCreated   = "school_year.created"
	ActionSchoolYearActivated = "school_year.activated"

	// Catalog actions
	ActionSchoolCreated = "school.created"
	ActionItemCreated   = "item.created"
	ActionStockAdjusted = "stock.adjusted"
	ActionStockLow      = "stock.low"

	// Sale actions
	ActionSaleCreated  = "sale.created"
	ActionSaleModified = "sale.modified"
	ActionSaleDeleted  = "sale.deleted"
	ActionSaleSettled  = "sale.settled"

	// Payment actions
	ActionPaymentRecorded  = "payment.recorded"
	ActionPaymentAllocated = "payment.allocated"
	ActionPaymentCancelled = "payment.cancelled"

	// Invoice actions
	ActionInvoiceBuilt = "invoice.built"
)

// Resource constants for audit events.
const (
	ResourceSchoolYear = "school_year"
	ResourceSchool     = "school"
	ResourceItem       = "item"
	ResourceSale       = "sale"
	ResourcePayment    = "payment"
	ResourceInvoice    = "invoice"
)

// Category constants for audit events.
const (
	CategoryReference = "reference"
	CategoryInventory = "inventory"
	CategorySales     = "sales"
	CategoryPayment   = "payment"
	CategoryBilling   = "billing"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
