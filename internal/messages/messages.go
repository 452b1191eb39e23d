// Package messages renders the WhatsApp texts sent along the booking
// lifecycle. Builders take a View, never the raw booking row.
package messages

import (
	"fmt"
	"strings"
	"time"

	"booking-service/internal/models"
)

// ist is the zone guests and owners read dates in.
var ist = time.FixedZone("IST", 5*60*60+30*60)

const dateLayout = "02 Jan 2006, 3:04 PM"

// View is the read-only projection of a booking used by the builders.
type View struct {
	BookingID    string
	PropertyName string
	GuestName    string
	GuestPhone   string
	OwnerName    string
	OwnerPhone   string
	CheckIn      string
	CheckOut     string
	Persons      int

	AdvancePaid        float64
	DueAmount          float64
	AdminCommission    float64
	ReferrerCommission float64
	CustomerDiscount   float64

	ReferralCode     string
	ReferralType     string
	CommissionStatus string
	BookingStatus    string
}

// NewView projects b into a View.
func NewView(b *models.Booking) View {
	v := View{
		BookingID:          b.BookingID,
		PropertyName:       b.PropertyName,
		GuestName:          b.GuestName,
		GuestPhone:         b.GuestPhone,
		OwnerName:          b.OwnerName,
		OwnerPhone:         b.OwnerPhone,
		CheckIn:            formatDate(b.CheckIn),
		CheckOut:           formatDate(b.CheckOut),
		Persons:            b.Persons,
		AdvancePaid:        b.PayableAdvance(),
		DueAmount:          b.DueAmount(),
		AdminCommission:    b.AdminCommission,
		ReferrerCommission: b.ReferrerCommission,
		CustomerDiscount:   b.CustomerDiscount,
		ReferralType:       b.ReferralType,
		CommissionStatus:   b.CommissionStatus,
		BookingStatus:      b.BookingStatus,
	}
	if b.ReferralCode != nil {
		v.ReferralCode = *b.ReferralCode
	}
	return v
}

// HasReferral reports whether a referral code is attached.
func (v View) HasReferral() bool {
	return v.ReferralCode != ""
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.In(ist).Format(dateLayout)
}

// Amount formats a rupee amount the way every message shows money.
func Amount(v float64) string {
	return fmt.Sprintf("₹%.2f", v)
}

// builder accumulates message lines.
type builder struct {
	strings.Builder
}

func (b *builder) line(format string, args ...interface{}) {
	fmt.Fprintf(&b.Builder, format, args...)
	b.WriteByte('\n')
}

func (b *builder) blank() {
	b.WriteByte('\n')
}

func (b *builder) text() string {
	return strings.TrimRight(b.String(), "\n")
}
