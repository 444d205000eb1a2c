package stockcount

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/erp/stockcount/internal/domain/stockcount"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultDuplicateWindow = 5 * time.Minute
	DefaultMinReasonLength = 10
)

// ValidatorConfig tunes the adjustment rules. A zero DuplicateWindow turns the
// duplicate guard off.
type ValidatorConfig struct {
	DuplicateWindow time.Duration
	MinReasonLength int
}

// DefaultValidatorConfig returns the five minute window and ten character reason
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		DuplicateWindow: DefaultDuplicateWindow,
		MinReasonLength: DefaultMinReasonLength,
	}
}

// AdjustmentValidator applies the adjustment rules in order; the first failure wins.
//  1. system and physical quantities are not negative
//  2. the reason has at least MinReasonLength non-whitespace characters
//  3. SystemToPhysical carries a proposed quantity that is not negative
//  4. the kind is known
//  5. the same user has not submitted for the same line within DuplicateWindow
type AdjustmentValidator struct {
	validate *validator.Validate
	cfg      ValidatorConfig
	now      func() time.Time
}

// NewAdjustmentValidator creates a validator. A negative window or a reason
// length below one falls back to the default.
func NewAdjustmentValidator(cfg ValidatorConfig) *AdjustmentValidator {
	if cfg.DuplicateWindow < 0 {
		cfg.DuplicateWindow = DefaultDuplicateWindow
	}
	if cfg.MinReasonLength <= 0 {
		cfg.MinReasonLength = DefaultMinReasonLength
	}
	return &AdjustmentValidator{
		validate: newStructValidator(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (v *AdjustmentValidator) WithClock(now func() time.Time) *AdjustmentValidator {
	v.now = now
	return v
}

// Validate checks req against the rules. exclude is the adjustment being amended,
// or uuid.Nil on create.
func (v *AdjustmentValidator) Validate(ctx context.Context, repo stockcount.AdjustmentRepository, req AdjustmentRequest, exclude uuid.UUID) error {
	if err := v.checkFields(req); err != nil {
		return err
	}

	if err := v.checkReason(req.Reason); err != nil {
		return err
	}

	switch req.Kind {
	case stockcount.AdjustmentKindSystemToPhysical:
		if req.ProposedQuantity == nil {
			return shared.NewValidationError(shared.CodeMissingProposed, "SystemToPhysical adjustments require a proposed final quantity")
		}
		if req.ProposedQuantity.IsNegative() {
			return shared.NewValidationError(shared.CodeInvalidQuantity, "Proposed final quantity cannot be negative")
		}
	case stockcount.AdjustmentKindRecount, stockcount.AdjustmentKindValidated:
	default:
		return shared.NewValidationError(shared.CodeInvalidKind, fmt.Sprintf("Unknown adjustment kind: %q", req.Kind))
	}

	return v.checkDuplicate(ctx, repo, req, exclude)
}

func (v *AdjustmentValidator) checkDuplicate(ctx context.Context, repo stockcount.AdjustmentRepository, req AdjustmentRequest, exclude uuid.UUID) error {
	if v.cfg.DuplicateWindow == 0 {
		return nil
	}
	since := v.now().Add(-v.cfg.DuplicateWindow)
	dup, err := repo.ExistsRecent(ctx, req.CountID, req.ProductID, req.UserID, since, exclude)
	if err != nil {
		return err
	}
	if dup {
		return shared.NewValidationError(shared.CodeDuplicateSubmission,
			fmt.Sprintf("An adjustment for this product was already submitted in the last %s", v.cfg.DuplicateWindow))
	}
	return nil
}

// checkFields runs the struct tags. Missing identifiers are reported before
// negative quantities.
func (v *AdjustmentValidator) checkFields(req AdjustmentRequest) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return shared.NewValidationError(shared.CodeInvalidInput, err.Error())
	}

	var quantityErr error
	for _, fe := range fieldErrs {
		switch fe.Field() {
		case "SystemQuantity", "PhysicalQuantity":
			if quantityErr == nil {
				quantityErr = shared.NewValidationError(shared.CodeInvalidQuantity, getValidationMessage(fe))
			}
		default:
			return shared.NewValidationError(shared.CodeInvalidInput, getValidationMessage(fe))
		}
	}
	return quantityErr
}

func (v *AdjustmentValidator) checkReason(reason string) error {
	if reasonLength(reason) < v.cfg.MinReasonLength {
		return shared.NewValidationError(shared.CodeInvalidReason,
			fmt.Sprintf("Reason must contain at least %d non-whitespace characters", v.cfg.MinReasonLength))
	}
	return nil
}

// reasonLength counts non-whitespace characters after NFC normalization, so a
// letter typed with a combining accent counts once.
func reasonLength(reason string) int {
	n := 0
	for _, r := range norm.NFC.String(strings.TrimSpace(reason)) {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// newStructValidator returns a validator that understands decimal quantities
func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validateStruct checks the tags of any request DTO
func validateStruct(v *validator.Validate, req interface{}) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return shared.NewValidationError(shared.CodeInvalidInput, getValidationMessage(fieldErrs[0]))
	}
	return shared.NewValidationError(shared.CodeInvalidInput, err.Error())
}

func getValidationMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "gte":
		return field + " must be greater than or equal to " + fe.Param()
	case "min":
		return field + " must have at least " + fe.Param() + " item(s)"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}
