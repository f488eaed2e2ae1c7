package metrics

import (
	"fmt"
	"math"

	"saveup/internal/core"
)

// ExposureThreshold is the number of contributions needed per method before
// cash and UPI averages are compared.
const ExposureThreshold = 3

// Exposure compares the average cash drop with the average UPI drop.
type Exposure struct {
	CashCount   int         `json:"cashCount"`
	UPICount    int         `json:"upiCount"`
	Sufficient  bool        `json:"sufficient"`
	CashAverage float64     `json:"cashAverage"`
	UPIAverage  float64     `json:"upiAverage"`
	Leader      core.Method `json:"leader,omitempty"` // empty when balanced or insufficient
	Difference  int64       `json:"difference"`       // whole rupees
}

// ExposureOf partitions contributions by method and compares the averages.
func ExposureOf(contributions []core.Contribution) Exposure {
	var (
		e                   Exposure
		cashTotal, upiTotal int64
	)
	for _, c := range contributions {
		switch c.Method {
		case core.Cash:
			e.CashCount++
			cashTotal += c.Amount.Cents
		case core.UPI:
			e.UPICount++
			upiTotal += c.Amount.Cents
		}
	}
	if e.CashCount > 0 {
		e.CashAverage = float64(cashTotal) / float64(e.CashCount) / 100
	}
	if e.UPICount > 0 {
		e.UPIAverage = float64(upiTotal) / float64(e.UPICount) / 100
	}
	if e.CashCount < ExposureThreshold || e.UPICount < ExposureThreshold {
		return e
	}
	e.Sufficient = true

	// Cross-multiplied so that equality is exact.
	lhs := cashTotal * int64(e.UPICount)
	rhs := upiTotal * int64(e.CashCount)
	switch {
	case lhs > rhs:
		e.Leader = core.Cash
	case rhs > lhs:
		e.Leader = core.UPI
	}
	if e.Leader != "" {
		e.Difference = int64(math.Round(math.Abs(e.CashAverage - e.UPIAverage)))
	}
	return e
}

// Balanced reports equal averages once enough data exists.
func (e Exposure) Balanced() bool {
	return e.Sufficient && e.Leader == ""
}

// String renders the insight as shown on the dashboard.
func (e Exposure) String() string {
	switch {
	case !e.Sufficient:
		return fmt.Sprintf("Log at least %d contributions of both Cash and UPI. (Current: Cash %d/%d, UPI %d/%d)",
			ExposureThreshold, e.CashCount, ExposureThreshold, e.UPICount, ExposureThreshold)
	case e.Leader == core.Cash:
		return fmt.Sprintf("Cash drops are larger! You save ₹%s more per drop when using cash.", core.FormatRupees(e.Difference))
	case e.Leader == core.UPI:
		return fmt.Sprintf("UPI drops are larger! You save ₹%s more digitally.", core.FormatRupees(e.Difference))
	default:
		return "Your saving averages are balanced. Great discipline!"
	}
}
