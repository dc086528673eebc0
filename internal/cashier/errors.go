package cashier

import (
	"fmt"

	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// ErrNotDraft is returned when a submitted collection is changed.
var ErrNotDraft = fmt.Errorf("%w: collection is not a draft", shared.ErrInvalidState)

// ErrAlreadySubmitted is returned when payment entries were already posted.
var ErrAlreadySubmitted = fmt.Errorf("%w: collection already submitted", shared.ErrInvalidState)
