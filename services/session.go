package services

// Session status values reported by the backend. Only StatusCompleted is terminal.
const (
	StatusActive    = "ACTIVE"
	StatusPending   = "PENDING"
	StatusInvalid   = "INVALID"
	StatusCompleted = "COMPLETED"
)

// Price is an amount with and without tax.
type Price struct {
	InclVAT float64 `json:"incl_vat"`
	ExclVAT float64 `json:"excl_vat"`
}

type ChargingPeriodDimension struct {
	Type   string  `json:"type"`
	Volume float64 `json:"volume"`
}

type ChargingPeriod struct {
	StartDateTime string                    `json:"start_date_time"`
	Dimensions    []ChargingPeriodDimension `json:"dimensions"`
}

// Session is a read-only snapshot of a charging session as reported by the backend.
type Session struct {
	ID                    string `json:"id"`
	Status                string `json:"status"`
	StartDateTime         string `json:"start_date_time"`
	EndDateTime           string `json:"end_date_time"`
	LastUpdated           string `json:"last_updated"`
	ChargingTransactionID int64  `json:"charging_transaction_id"`

	TotalEnergy float64  `json:"total_energy"`
	TotalTime   float64  `json:"total_time"`
	MeterStart  *float64 `json:"meter_start,omitempty"`
	MeterStop   *float64 `json:"meter_stop,omitempty"`

	Currency         string `json:"currency"`
	TotalCost        *Price `json:"total_cost,omitempty"`
	TotalEnergyCost  *Price `json:"total_energy_cost,omitempty"`
	TotalTimeCost    *Price `json:"total_time_cost,omitempty"`
	TotalFixedCost   *Price `json:"total_fixed_cost,omitempty"`
	TotalParkingCost *Price `json:"total_parking_cost,omitempty"`

	LocationName    string `json:"location_name"`
	LocationAddress string `json:"location_address"`

	SocStart *float64 `json:"soc_start,omitempty"`
	SocStop  *float64 `json:"soc_stop,omitempty"`

	ChargingPeriods    []ChargingPeriod `json:"charging_periods"`
	InvoiceReferenceID string           `json:"invoice_reference_id,omitempty"`
	Remark             string           `json:"remark,omitempty"`
}

// IsCompleted reports whether the session reached its terminal status.
func (s *Session) IsCompleted() bool {
	return s != nil && s.Status == StatusCompleted
}

// InvoiceFilename names the downloaded invoice after the invoice reference when known.
func (s *Session) InvoiceFilename() string {
	ref := "session"
	if s != nil && s.InvoiceReferenceID != "" {
		ref = s.InvoiceReferenceID
	}
	return "invoice_" + ref + ".html"
}

// LastUpdatedOrStart falls back to the start time when the backend has not stamped an update yet.
func (s *Session) LastUpdatedOrStart() string {
	if s.LastUpdated != "" {
		return s.LastUpdated
	}
	return s.StartDateTime
}

// ProgressPercent is the final state of charge when both bounds are known, else 0.
func (s *Session) ProgressPercent() float64 {
	if s == nil || s.SocStart == nil || s.SocStop == nil || *s.SocStart == 0 || *s.SocStop == 0 {
		return 0
	}
	return *s.SocStop
}
