package discount

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// Stage names a step of the discount pipeline.
type Stage string

const (
	StageItemWise    Stage = "item-wise discount"
	StageInvoiceWise Stage = "invoice-wise discount"
	StagePromotions  Stage = "seasonal promotions"
	StageIncentive   Stage = "turnover incentive"
)

// ErrDuplicateAgreement signals more than one active agreement for a
// supplier/item pair.
var ErrDuplicateAgreement = errors.New("discount: multiple active agreements")

// ValidationError reports a record or document field violating an invariant.
type ValidationError = shared.ValidationError

// ComputationError wraps an unexpected failure inside a pipeline stage.
type ComputationError struct {
	Stage Stage
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("discount calculation: %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ComputationError) Unwrap() error {
	return e.Err
}

// Is matches shared.ErrComputation.
func (e *ComputationError) Is(target error) bool {
	return target == shared.ErrComputation
}

func invalid(field string, value any, reason string) error {
	return shared.Invalid(field, value, reason)
}
