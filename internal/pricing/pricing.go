package pricing

import "math"

// FilamentDensity is the material density in g/cm³ applied to every
// material. A single standard-plastic constant is used regardless of the
// selected material.
const FilamentDensity = 1.24

// HourlyRate is the fixed print-time cost in currency units per hour.
const HourlyRate = 10.0

// Quality tiers and their print-time multipliers.
const (
	QualityDraft    = "draft"
	QualityStandard = "standard"
	QualityHigh     = "high"
)

var qualityMultipliers = map[string]float64{
	QualityDraft:    1.0,
	QualityStandard: 1.3,
	QualityHigh:     1.8,
}

// Dimension units accepted by Params.
const (
	UnitMM = "mm"
	UnitCM = "cm"
)

// Params holds the print parameters and catalog data a cost breakdown is
// computed from. All values are assumed non-negative; the caller validates
// before invoking Calculate.
type Params struct {
	Width  float64
	Height float64
	Length float64
	Unit   string // mm or cm, defaults to mm

	MaterialPricePerKg float64
	InfillPercent      float64 // 0-100
	Quality            string  // draft, standard, high
	FinishingFee       float64 // flat fee per unit, 0 if none
	Quantity           int
	TaxRatePercent     float64
}

// Breakdown contains all intermediate and roll-up values of a cost
// calculation. Values carry full float64 precision; rounding to cents
// happens only at the display/storage boundary via Round2.
type Breakdown struct {
	VolumeCM3      float64 `json:"volume_cm3"`
	WeightGrams    float64 `json:"weight_grams"`
	PrintTimeHours float64 `json:"print_time_hours"`
	MaterialCost   float64 `json:"material_cost"`
	TimeCost       float64 `json:"time_cost"`
	FinishingCost  float64 `json:"finishing_cost"`
	UnitCost       float64 `json:"unit_cost"`
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discount_amount"`
	TaxAmount      float64 `json:"tax_amount"`
	Total          float64 `json:"total"`
}

// Calculate computes a cost breakdown from print parameters. It is a pure
// function: no I/O, no randomness, identical inputs always yield identical
// outputs. The same function runs behind the live preview endpoint and the
// authoritative submission path so the two can never drift.
//
// A zero or missing dimension, quantity or material price yields a zero
// breakdown rather than an error, so the caller can render an
// awaiting-input state.
func Calculate(p Params) Breakdown {
	volume := VolumeCM3(p.Width, p.Height, p.Length, p.Unit)
	if volume <= 0 || p.MaterialPricePerKg <= 0 || p.Quantity < 1 {
		return Breakdown{}
	}

	weight := volume * (p.InfillPercent / 100.0) * FilamentDensity
	materialCost := (weight / 1000.0) * p.MaterialPricePerKg

	hours := (volume / 10.0) * qualityMultiplier(p.Quality) * (p.InfillPercent / 50.0)
	timeCost := hours * HourlyRate

	unitCost := materialCost + timeCost + p.FinishingFee
	subtotal := unitCost * float64(p.Quantity)
	discount := subtotal * DiscountRate(p.Quantity)
	taxable := subtotal - discount
	tax := taxable * (p.TaxRatePercent / 100.0)

	return Breakdown{
		VolumeCM3:      volume,
		WeightGrams:    weight,
		PrintTimeHours: hours,
		MaterialCost:   materialCost,
		TimeCost:       timeCost,
		FinishingCost:  p.FinishingFee,
		UnitCost:       unitCost,
		Subtotal:       subtotal,
		DiscountAmount: discount,
		TaxAmount:      tax,
		Total:          taxable + tax,
	}
}

// VolumeCM3 converts dimensions to millimeters and returns the volume in
// cubic centimeters.
func VolumeCM3(width, height, length float64, unit string) float64 {
	if unit == UnitCM {
		width *= 10
		height *= 10
		length *= 10
	}
	return (width * height * length) / 1000.0
}

// DiscountRate returns the volume discount fraction for a quantity.
// Tiers: 10 <= qty < 50 takes 10% off the subtotal, qty >= 50 takes 20%.
// Boundaries are inclusive on the lower bound.
func DiscountRate(quantity int) float64 {
	switch {
	case quantity >= 50:
		return 0.20
	case quantity >= 10:
		return 0.10
	default:
		return 0
	}
}

// ValidQuality reports whether q names a known quality tier.
func ValidQuality(q string) bool {
	_, ok := qualityMultipliers[q]
	return ok
}

func qualityMultiplier(q string) float64 {
	if m, ok := qualityMultipliers[q]; ok {
		return m
	}
	return qualityMultipliers[QualityStandard]
}

// Round2 rounds a monetary value to two decimal places. Used only at the
// point of display or storage.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
