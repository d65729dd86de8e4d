package domain

import "time"

// ConsumptionRecord is one hour of metered consumption.
type ConsumptionRecord struct {
	ContractID  string    `json:"contract_id"`
	HourStart   time.Time `json:"hour_start"`
	KWh         float64   `json:"kwh"`
	Temperature *float64  `json:"temperature,omitempty"`
}

// DefaultBackfillDays is how far back a backfill reaches when no history exists.
const DefaultBackfillDays = 30

// MaxBackfillDays bounds on-demand backfills.
const MaxBackfillDays = 731
