package incentive

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotStatus is the lifecycle state of a turnover snapshot.
type SnapshotStatus string

const (
	SnapshotActive   SnapshotStatus = "ACTIVE"
	SnapshotArchived SnapshotStatus = "ARCHIVED"
)

// Snapshot records a supplier's turnover incentive as computed on one day.
// It is a reporting artefact and never feeds live pricing.
type Snapshot struct {
	Supplier        string          `json:"supplier"`
	CalculationDate time.Time       `json:"calculation_date"`
	YearlyTurnover  decimal.Decimal `json:"yearly_turnover"`
	IncentiveAmount decimal.Decimal `json:"incentive_amount"`
	IncentiveScheme string          `json:"incentive_scheme"`
	Status          SnapshotStatus  `json:"status"`
}

// CreditNoteStatus enumerates credit note tracking states.
type CreditNoteStatus string

const (
	CreditNotePending CreditNoteStatus = "PENDING"
	CreditNoteSettled CreditNoteStatus = "SETTLED"
)

// CreditNote is a pending supplier credit note awaiting settlement.
type CreditNote struct {
	ID                     int64
	Number                 string
	Supplier               string
	Amount                 decimal.Decimal
	ExpectedSettlementDate *time.Time
	ReminderDate           time.Time
	Status                 CreditNoteStatus
}

// Reminder is a rendered credit note reminder ready for delivery.
type Reminder struct {
	Key        string
	Recipients []string
	Subject    string
	Body       string
}

// DailyResult summarises a daily run.
type DailyResult struct {
	Activated       int64
	Deactivated     int64
	RemindersSent   int
	ReminderFailure int
}

// WeeklyResult summarises a weekly run.
type WeeklyResult struct {
	Suppliers int
	Written   int
	Skipped   int
	Failed    []BatchItemError
}

// CleanupResult summarises a cleanup run.
type CleanupResult struct {
	PromotionsDeleted int64
	SnapshotsArchived int64
}
