package messages

import "booking-service/internal/models"

// PaymentReceipt is sent to the guest once the advance is captured.
func PaymentReceipt(v View) string {
	var b builder
	b.line("✅ *Payment Successful*")
	b.blank()
	b.line("Booking ID: %s", v.BookingID)
	b.line("Property: %s", v.PropertyName)
	b.line("Check-in: %s", v.CheckIn)
	b.line("Check-out: %s", v.CheckOut)
	b.line("Persons: %d", v.Persons)
	b.line("Advance Paid: %s", Amount(v.AdvancePaid))
	b.blank()

	if v.HasReferral() && v.CustomerDiscount > 0 {
		b.line("💰 Referral Discount Applied: %s", Amount(v.CustomerDiscount))
		b.line("Referral Code: %s", v.ReferralCode)
		b.blank()
	}

	b.line("⏳ Your booking request has been received.")
	b.line("It is being verified with the owner.")
	b.line("Your e-ticket will be shared within 1 hour.")
	return b.text()
}

// AdminNewBooking tells the admin a paid booking is waiting on the owner.
func AdminNewBooking(v View) string {
	var b builder
	b.line("📋 *New Booking Alert*")
	b.blank()
	b.line("Booking ID: %s", v.BookingID)
	b.line("Property: %s", v.PropertyName)
	b.line("Guest: %s", v.GuestName)
	b.line("Phone: %s", v.GuestPhone)
	b.line("Owner: %s", v.OwnerPhone)
	b.line("Check-in: %s", v.CheckIn)
	b.line("Check-out: %s", v.CheckOut)
	b.line("Persons: %d", v.Persons)
	b.line("Advance Paid: %s", Amount(v.AdvancePaid))
	b.line("Due Amount: %s", Amount(v.DueAmount))
	b.blank()

	if v.HasReferral() {
		b.line("🎁 *Referral Applied*")
		b.line("Code: %s", v.ReferralCode)
		b.line("Type: %s", v.ReferralType)
		b.line("Admin Commission: %s", Amount(v.AdminCommission))
		b.line("Referrer Commission: %s", Amount(v.ReferrerCommission))
		b.line("Customer Discount: %s", Amount(v.CustomerDiscount))
		b.line("Commission Status: %s", v.CommissionStatus)
		b.blank()
	}

	b.line("Status: ⏳ Waiting for owner confirmation")
	return b.text()
}

// OwnerRequest asks the owner to confirm or cancel. It is sent with
// OwnerButtons.
func OwnerRequest(v View) string {
	var b builder
	b.line("🔔 *New Booking Request*")
	b.blank()
	b.line("Booking ID: %s", v.BookingID)
	b.line("Property: %s", v.PropertyName)
	b.line("Guest: %s", v.GuestName)
	b.line("Phone: %s", v.GuestPhone)
	b.line("Check-in: %s", v.CheckIn)
	b.line("Check-out: %s", v.CheckOut)
	b.line("Persons: %d", v.Persons)
	b.blank()
	b.line("💰 *Payment Details*")
	b.line("Advance Paid: %s", Amount(v.AdvancePaid))
	b.line("Due Amount: %s", Amount(v.DueAmount))
	b.blank()
	b.line("⚡ Please confirm or cancel this booking:")
	return b.text()
}

// OwnerButtons carries the two action tokens as button ids.
func OwnerButtons(confirmToken, cancelToken string) []models.Button {
	return []models.Button{
		{ID: confirmToken, Title: "✅ Confirm"},
		{ID: cancelToken, Title: "❌ Cancel"},
	}
}

// PendingPaymentAlert warns the admin about a payment stuck in PENDING.
func PendingPaymentAlert(v View, minutesPending, timeoutMinutes int) string {
	var b builder
	b.line("⚠️ *Payment Pending Alert*")
	b.blank()
	b.line("Booking ID: %s", v.BookingID)
	b.line("Property: %s", v.PropertyName)
	b.line("Guest: %s", v.GuestName)
	b.line("Phone: %s", v.GuestPhone)
	b.line("Amount: %s", Amount(v.AdvancePaid))
	b.line("Pending Since: %d minutes", minutesPending)
	b.blank()
	b.line("⚠️ *Action Required*")
	b.line("This payment has been pending for over %d minutes.", timeoutMinutes)
	b.line("Please investigate and contact the customer if needed.")
	return b.text()
}
