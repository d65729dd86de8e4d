package domain

import (
	"fmt"
	"strings"
)

// RateFamily is the tag used to dispatch rate-specific portal work.
type RateFamily string

const (
	// RateFamilyDCPC is rate D with the winter credits option (CPC).
	RateFamilyDCPC RateFamily = "DCPC"
	// RateFamilyDPC is the Flex D dynamic pricing rate.
	RateFamilyDPC RateFamily = "DPC"
	// RateFamilyDT is the dual energy rate.
	RateFamilyDT RateFamily = "DT"
	// RateFamilyD is the base residential rate without options.
	RateFamilyD RateFamily = "D"
	// RateFamilyM is the medium power rate.
	RateFamilyM RateFamily = "M"
	// RateFamilyOther is any rate without rate-specific data.
	RateFamilyOther RateFamily = "other"
)

// RatePlan is the configured rate code and option.
type RatePlan struct {
	Rate   string `json:"rate" yaml:"rate"`
	Option string `json:"option,omitempty" yaml:"option"`
}

// NewRatePlan normalises a rate code and option.
func NewRatePlan(rate, option string) RatePlan {
	return RatePlan{
		Rate:   strings.ToUpper(strings.TrimSpace(rate)),
		Option: strings.ToUpper(strings.TrimSpace(option)),
	}
}

// Family resolves the rate family tag.
func (p RatePlan) Family() RateFamily {
	switch {
	case p.Rate == "D" && p.Option == "CPC":
		return RateFamilyDCPC
	case p.Rate == "DPC":
		return RateFamilyDPC
	case p.Rate == "DT":
		return RateFamilyDT
	case p.Rate == "D":
		return RateFamilyD
	case p.Rate == "M":
		return RateFamilyM
	default:
		return RateFamilyOther
	}
}

// WithOption returns the rate and option concatenated (e.g. "DCPC").
func (p RatePlan) WithOption() string {
	return p.Rate + p.Option
}

// PeakOffer returns the open data offer code announcing peaks for this plan.
// Plans without a peak program return an empty string.
func (p RatePlan) PeakOffer() string {
	switch p.Family() {
	case RateFamilyDCPC:
		return "CPC-D"
	case RateFamilyDPC:
		return "TPC-DPC"
	default:
		return ""
	}
}

// Validate checks the plan has a rate code.
func (p RatePlan) Validate() error {
	if p.Rate == "" {
		return fmt.Errorf("%w: rate is required", ErrInvalidInput)
	}
	return nil
}

// RateDetails is a tagged variant of rate-specific portal data.
// Exactly one payload matching Family is set.
type RateDetails struct {
	Family       RateFamily         `json:"family"`
	WinterCredit *WinterCreditData  `json:"winter_credit,omitempty"`
	Flex         *FlexData          `json:"flex,omitempty"`
	DualTariff   *AnnualConsumption `json:"dual_tariff,omitempty"`
}

// NewWinterCreditDetails tags winter credit data for DCPC contracts.
func NewWinterCreditDetails(d *WinterCreditData) *RateDetails {
	return &RateDetails{Family: RateFamilyDCPC, WinterCredit: d}
}

// NewFlexDetails tags Flex D data for DPC contracts.
func NewFlexDetails(d *FlexData) *RateDetails {
	return &RateDetails{Family: RateFamilyDPC, Flex: d}
}

// NewDualTariffDetails tags annual consumption for DT contracts.
func NewDualTariffDetails(d *AnnualConsumption) *RateDetails {
	return &RateDetails{Family: RateFamilyDT, DualTariff: d}
}

// Validate checks that exactly the payload for Family is set.
func (r *RateDetails) Validate() error {
	if r == nil {
		return nil
	}
	set := 0
	for _, ok := range []bool{r.WinterCredit != nil, r.Flex != nil, r.DualTariff != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: rate details for %s carry %d payloads", ErrInvalidInput, r.Family, set)
	}

	var ok bool
	switch r.Family {
	case RateFamilyDCPC:
		ok = r.WinterCredit != nil
	case RateFamilyDPC:
		ok = r.Flex != nil
	case RateFamilyDT:
		ok = r.DualTariff != nil
	}
	if !ok {
		return fmt.Errorf("%w: payload does not match rate family %s", ErrInvalidInput, r.Family)
	}
	return nil
}
