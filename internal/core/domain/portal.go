package domain

import "time"

// Customer is a portal customer record.
type Customer struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Language  string `json:"language,omitempty"`
}

// Account is a billing account under a customer.
type Account struct {
	ID       string     `json:"id"`
	Balance  float64    `json:"balance"`
	DueDate  *time.Time `json:"due_date,omitempty"`
	LastBill float64    `json:"last_bill"`
	Unpaid   bool       `json:"unpaid"`
}

// Contract is a supply contract under an account.
type Contract struct {
	ID          string    `json:"id"`
	Rate        string    `json:"rate"`
	RateOption  string    `json:"rate_option,omitempty"`
	Address     string    `json:"address,omitempty"`
	MeterSerial string    `json:"meter_serial,omitempty"`
	StartDate   time.Time `json:"start_date"`
}

// AccountHierarchy is the customer -> account -> contract chain.
type AccountHierarchy struct {
	Customer Customer `json:"customer"`
	Account  Account  `json:"account"`
	Contract Contract `json:"contract"`
}

// Period is a billing period summary.
type Period struct {
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	Days               int       `json:"days"`
	ConsumptionKWh     float64   `json:"consumption_kwh"`
	Cost               float64   `json:"cost"`
	AverageTemperature float64   `json:"average_temperature"`
	Current            bool      `json:"current"`
}

// Outage is a planned or unplanned interruption affecting the contract.
type Outage struct {
	ID      string     `json:"id"`
	Start   time.Time  `json:"start"`
	End     *time.Time `json:"end,omitempty"`
	Cause   string     `json:"cause,omitempty"`
	Status  string     `json:"status,omitempty"`
	Planned bool       `json:"planned"`
}

// IsActive reports whether the outage is ongoing at now.
func (o Outage) IsActive(now time.Time) bool {
	if now.Before(o.Start) {
		return false
	}
	return o.End == nil || now.Before(*o.End)
}

// WinterCreditData is the DCPC winter credits state.
type WinterCreditData struct {
	PreheatDuration time.Duration `json:"preheat_duration"`
	CumulatedCredit float64       `json:"cumulated_credit"`
	ProjectedCredit float64       `json:"projected_credit"`
	CriticalPeaks   []PeakEvent   `json:"critical_peaks,omitempty"`
	RefreshedAt     time.Time     `json:"refreshed_at"`
}

// FlexData is the DPC (Flex D) state.
type FlexData struct {
	PreheatDuration  time.Duration `json:"preheat_duration"`
	CriticalDays     int           `json:"critical_days"`
	MaxCriticalDays  int           `json:"max_critical_days"`
	CurrentPriceRate float64       `json:"current_price_rate"`
	CriticalPeaks    []PeakEvent   `json:"critical_peaks,omitempty"`
	RefreshedAt      time.Time     `json:"refreshed_at"`
}

// AnnualConsumption is the DT yearly consumption split.
type AnnualConsumption struct {
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	TotalKWh          float64   `json:"total_kwh"`
	AboveThresholdKWh float64   `json:"above_threshold_kwh"`
	BelowThresholdKWh float64   `json:"below_threshold_kwh"`
}

// PortalData is the authenticated part of a snapshot.
// It is always written as one group.
type PortalData struct {
	Customer  Customer     `json:"customer"`
	Account   Account      `json:"account"`
	Contract  Contract     `json:"contract"`
	Periods   []Period     `json:"periods,omitempty"`
	Outages   []Outage     `json:"outages,omitempty"`
	Rate      *RateDetails `json:"rate,omitempty"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// CurrentPeriod returns the period flagged current, if any.
func (p *PortalData) CurrentPeriod() *Period {
	if p == nil {
		return nil
	}
	for i := range p.Periods {
		if p.Periods[i].Current {
			return &p.Periods[i]
		}
	}
	return nil
}

// ActiveOutages returns outages ongoing at now.
func (p *PortalData) ActiveOutages(now time.Time) []Outage {
	if p == nil {
		return nil
	}
	var out []Outage
	for _, o := range p.Outages {
		if o.IsActive(now) {
			out = append(out, o)
		}
	}
	return out
}
