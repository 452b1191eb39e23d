// Package commission splits a booking advance between the platform, the
// referrer and the guest.
package commission

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Referral types understood by the calculator.
const (
	TypeNone     = "NONE"
	TypeStandard = "STANDARD"
	TypeSpecial  = "SPECIAL"
)

// TotalRate is the share of the advance that is always distributed.
const TotalRate = 0.30

// Tolerance absorbs rounding drift when re-summing a split.
const Tolerance = 0.02

var ErrUnknownType = errors.New("unknown referral type")

type rates struct {
	admin, referrer, discount float64
}

var splitRates = map[string]rates{
	TypeStandard: {admin: 0.15, referrer: 0.10, discount: 0.05},
	TypeSpecial:  {admin: 0.15, referrer: 0.15, discount: 0},
	TypeNone:     {admin: 0.30, referrer: 0, discount: 0},
}

// Split is the three-way allocation of an advance.
type Split struct {
	AdminCommission    float64 `json:"admin_commission"`
	ReferrerCommission float64 `json:"referrer_commission"`
	CustomerDiscount   float64 `json:"customer_discount"`
}

// Total re-sums the split.
func (s Split) Total() float64 {
	return s.AdminCommission + s.ReferrerCommission + s.CustomerDiscount
}

// Amounts are the figures shown to the guest once a discount applies.
type Amounts struct {
	Split
	TotalAmount   float64 `json:"total_amount"`
	AdvanceAmount float64 `json:"advance_amount"`
	FinalAdvance  float64 `json:"final_advance"`
	DueAmount     float64 `json:"due_amount"`
}

// NormalizeType upper-cases a referral type and maps blanks to NONE.
func NormalizeType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t == "" {
		return TypeNone
	}
	return t
}

// KnownType reports whether t names a split the calculator has rates for.
func KnownType(t string) bool {
	_, ok := splitRates[NormalizeType(t)]
	return ok
}

// Calculate returns the split for advance under referral type t. Unknown
// types fall back to NONE and a non-positive advance yields a zero split.
func Calculate(advance float64, t string) Split {
	if advance <= 0 {
		return Split{}
	}

	r, ok := splitRates[NormalizeType(t)]
	if !ok {
		r = splitRates[TypeNone]
	}

	return Split{
		AdminCommission:    Round(advance * r.admin),
		ReferrerCommission: Round(advance * r.referrer),
		CustomerDiscount:   Round(advance * r.discount),
	}
}

// Validate checks the inputs of a split and re-sums the result against 30% of
// the advance. A mismatch beyond Tolerance comes back as a warning string;
// only bad inputs produce an error.
func Validate(advance float64, t string) (string, error) {
	if !KnownType(t) {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
	if advance <= 0 {
		return "", fmt.Errorf("advance amount must be positive, got %.2f", advance)
	}

	split := Calculate(advance, t)
	expected := Round(advance * TotalRate)
	if diff := math.Abs(split.Total() - expected); diff > Tolerance {
		return fmt.Sprintf("commission split %.2f differs from expected %.2f by %.2f",
			split.Total(), expected, diff), nil
	}
	return "", nil
}

// Final applies the customer discount to the advance and derives the amount
// still due at the property.
func Final(total, advance float64, t string) Amounts {
	split := Calculate(advance, t)
	finalAdvance := Round(advance - split.CustomerDiscount)

	return Amounts{
		Split:         split,
		TotalAmount:   total,
		AdvanceAmount: advance,
		FinalAdvance:  finalAdvance,
		DueAmount:     Round(total - finalAdvance),
	}
}

// Round rounds half-up to two decimal places. The small epsilon keeps values
// such as 1.005, which are stored just below the midpoint, rounding up.
func Round(v float64) float64 {
	return math.Floor(v*100+0.5+1e-9) / 100
}
