package cahiers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/cahiers/id"
	"github.com/xraph/cahiers/types"
)

// LineInput requests quantity units of one catalog item.
type LineInput struct {
	ItemID   id.ItemID `json:"item_id"`
	Quantity int64     `json:"quantity" validate:"gt=0"`
}

// CreateSaleInput describes a new sale.
type CreateSaleInput struct {
	SchoolID id.SchoolID `json:"school_id"`
	// SchoolYearID defaults to the current school year, created on demand.
	SchoolYearID id.SchoolYearID `json:"school_year_id,omitempty"`
	Lines        []LineInput     `json:"lines" validate:"min=1,dive"`
	// DueDate defaults to now plus the configured payment term.
	DueDate *time.Time `json:"due_date,omitempty"`
	// InitialPayment is clamped to the sale total and recorded as installment 1.
	InitialPayment *types.Money `json:"initial_payment,omitempty"`
}

// SchoolInput creates or updates a school.
type SchoolInput struct {
	Name           string `json:"name" validate:"required,max=200"`
	Address        string `json:"address" validate:"max=500"`
	Representative string `json:"representative" validate:"max=200"`
	Phone          string `json:"phone" validate:"max=40"`
}

// ItemInput creates or updates a catalog item.
type ItemInput struct {
	Title         string      `json:"title" validate:"required,max=200"`
	UnitPrice     types.Money `json:"unit_price"`
	StockQuantity int64       `json:"stock_quantity" validate:"gte=0"`
}

// LineInputs pairs parallel item and quantity lists, as submitted by forms.
func LineInputs(itemIDs []id.ItemID, quantities []int64) ([]LineInput, error) {
	if len(itemIDs) != len(quantities) {
		return nil, ValidationError{
			Field:   "lines",
			Message: fmt.Sprintf("%d items but %d quantities", len(itemIDs), len(quantities)),
		}
	}
	out := make([]LineInput, len(itemIDs))
	for i := range itemIDs {
		out[i] = LineInput{ItemID: itemIDs[i], Quantity: quantities[i]}
	}
	return out, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags and converts the first failure into
// a ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return ValidationError{Field: "input", Message: err.Error()}
	}

	fe := ve[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	return ValidationError{Field: field, Message: constraintMessage(fe)}
}

func constraintMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "needs at least " + fe.Param() + " entries"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "fails " + fe.Tag() + " constraint"
	}
}

func requireID(field string, v id.ID, prefix id.Prefix) error {
	if v.IsNil() {
		return ValidationError{Field: field, Message: "is required"}
	}
	if v.Prefix() != prefix {
		return ValidationError{Field: field, Message: fmt.Sprintf("expected %q identifier", prefix)}
	}
	return nil
}

func (in LineInput) validate(field string) error {
	if err := requireID(field+".item_id", in.ItemID, id.PrefixItem); err != nil {
		return err
	}
	if in.Quantity <= 0 {
		return ValidationError{Field: field + ".quantity", Message: "must be greater than 0"}
	}
	return nil
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return ValidationError{Field: "lines", Message: "needs at least 1 entries"}
	}
	for i, l := range lines {
		if err := l.validate(fmt.Sprintf("lines[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (in CreateSaleInput) validate() error {
	if err := requireID("school_id", in.SchoolID, id.PrefixSchool); err != nil {
		return err
	}
	if !in.SchoolYearID.IsNil() {
		if err := requireID("school_year_id", in.SchoolYearID, id.PrefixSchoolYear); err != nil {
			return err
		}
	}
	if err := validateStruct(in); err != nil {
		return err
	}
	if err := validateLines(in.Lines); err != nil {
		return err
	}
	if in.InitialPayment != nil && in.InitialPayment.IsNegative() {
		return ValidationError{Field: "initial_payment", Message: "must not be negative"}
	}
	return nil
}

func (in ItemInput) validate() error {
	if err := validateStruct(in); err != nil {
		return err
	}
	if in.UnitPrice.IsNegative() {
		return ValidationError{Field: "unit_price", Message: "must not be negative"}
	}
	return nil
}
