package fertilizer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spboyer/cropwise/internal/metrics"
)

// Status classifies an Advice.
type Status string

const (
	// StatusDeficit means at least one nutrient is below target.
	StatusDeficit Status = "deficit"
	// StatusSufficient means N, P and K all meet or exceed their targets.
	StatusSufficient Status = "sufficient"
	// StatusUnknownCrop means the crop has no entry in the table.
	StatusUnknownCrop Status = "unknown_crop"
)

// Messages for the two non-deficit outcomes.
const (
	SufficientMessage  = "Your soil already has sufficient nutrients for this crop."
	UnknownCropMessage = "No fertilizer data available for this crop."
)

// Nutrient is one of the three macronutrients.
type Nutrient string

const (
	Nitrogen   Nutrient = "N"
	Phosphorus Nutrient = "P"
	Potassium  Nutrient = "K"
)

// Name returns the display name, e.g. "Nitrogen (N)".
func (n Nutrient) Name() string {
	switch n {
	case Nitrogen:
		return "Nitrogen (N)"
	case Phosphorus:
		return "Phosphorus (P)"
	case Potassium:
		return "Potassium (K)"
	}
	return string(n)
}

// Deficit is a positive shortfall against a target.
type Deficit struct {
	Nutrient Nutrient `json:"nutrient"`
	Amount   float64  `json:"amount"`
}

// Recommendation renders the deficit as an instruction.
func (d Deficit) Recommendation() string {
	return fmt.Sprintf("Add %s units of %s", formatAmount(d.Amount), d.Nutrient.Name())
}

// Advice is the advisor's answer for one crop and soil reading.
type Advice struct {
	Crop     string    `json:"crop"`
	Status   Status    `json:"status"`
	Deficits []Deficit `json:"deficits,omitempty"`
}

// Recommendations lists one instruction per deficit in N, P, K order. It is
// nil unless Status is StatusDeficit.
func (a Advice) Recommendations() []string {
	if a.Status != StatusDeficit {
		return nil
	}
	out := make([]string, len(a.Deficits))
	for i, d := range a.Deficits {
		out[i] = d.Recommendation()
	}
	return out
}

// Lines returns what should be shown to a user: the recommendations, or the
// single sufficiency or unknown-crop message. It is never empty.
func (a Advice) Lines() []string {
	switch a.Status {
	case StatusSufficient:
		return []string{SufficientMessage}
	case StatusUnknownCrop:
		return []string{UnknownCropMessage}
	}
	return a.Recommendations()
}

// String joins Lines with "; ".
func (a Advice) String() string {
	return strings.Join(a.Lines(), "; ")
}

// Advisor compares soil readings against a target table.
type Advisor struct {
	table  Table
	source Source
}

// NewAdvisor creates an advisor over table. The table is copied.
func NewAdvisor(table Table, source Source) *Advisor {
	copied := make(Table, len(table))
	for k, v := range table {
		copied[k] = v
	}
	return &Advisor{table: copied, source: source}
}

// Source reports which table the advisor consults.
func (a *Advisor) Source() Source {
	return a.source
}

// Table returns a copy of the consulted targets.
func (a *Advisor) Table() Table {
	return NewAdvisor(a.table, a.source).table
}

// Advise computes target minus current for N, P and K. Any positive
// difference is a deficit; amounts are rounded to two decimals for display,
// keeping two significant digits when that would show zero. A crop missing from the
// table yields StatusUnknownCrop rather than an error.
func (a *Advisor) Advise(crop string, n, p, k float64) Advice {
	target, ok := a.table.Lookup(crop)
	if !ok {
		return Advice{Crop: crop, Status: StatusUnknownCrop}
	}

	var deficits []Deficit
	for _, c := range []struct {
		nutrient        Nutrient
		target, current float64
	}{
		{Nitrogen, target.N, n},
		{Phosphorus, target.P, p},
		{Potassium, target.K, k},
	} {
		if d := c.target - c.current; d > 0 {
			deficits = append(deficits, Deficit{Nutrient: c.nutrient, Amount: displayAmount(d)})
		}
	}

	if len(deficits) == 0 {
		return Advice{Crop: crop, Status: StatusSufficient}
	}
	return Advice{Crop: crop, Status: StatusDeficit, Deficits: deficits}
}

func displayAmount(d float64) float64 {
	if r := metrics.Round(d, 2); r > 0 {
		return r
	}
	v, _ := strconv.ParseFloat(strconv.FormatFloat(d, 'g', 2, 64), 64)
	return v
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
