package purchase

import (
	"fmt"

	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// ErrApprovalRequired is returned when an estimate above the approval
// threshold is validated by an actor without the approve permission.
var ErrApprovalRequired = fmt.Errorf("%w: purchase estimate requires manager approval", shared.ErrForbidden)

// ErrAlreadyConverted is returned when an estimate was already converted.
var ErrAlreadyConverted = fmt.Errorf("%w: estimate already converted to an invoice", shared.ErrInvalidState)

// ErrNotDraft is returned when a non-draft document is changed.
var ErrNotDraft = fmt.Errorf("%w: document is not a draft", shared.ErrInvalidState)
