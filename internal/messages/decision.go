package messages

// Replies to an owner whose button tap was rejected.

func ActionFailed(reason string) string {
	return "❌ Action failed: " + reason + "\n\nPlease contact support if you need to modify this booking."
}

func Unauthorized() string {
	return "❌ Unauthorized action.\n\nThis action can only be performed by the property owner."
}

func BookingNotFound(bookingID string) string {
	return "❌ Booking not found.\n\nBooking ID: " + bookingID
}

func AlreadyProcessed(status string) string {
	return "❌ Booking has already been processed.\n\nCurrent status: " + status
}

// OwnerConfirmed acknowledges a confirm tap.
func OwnerConfirmed(v View) string {
	var b builder
	b.line("✅ *Booking Confirmed Successfully*")
	b.blank()
	b.line("Booking ID: %s", v.BookingID)
	b.line("Guest: %s", v.GuestName)
	b.blank()
	b.line("E-Ticket has been sent to the customer.")
	return b.text()
}

// CustomerTicket delivers the e-ticket link.
func CustomerTicket(v View, ticketURL string) string {
	var b builder
	b.line("🎉 *Booking Confirmed!*")
	b.blank()
	b.line("🎫 *Your E-Ticket is Ready*")
	b.blank()
	b.line("Booking ID: %s", v.BookingID)
	b.line("Property: %s", v.PropertyName)
	b.line("Guest: %s", v.GuestName)
	b.line("Check-in: %s", v.CheckIn)
	b.line("Check-out: %s", v.CheckOut)
	b.line("Persons: %d", v.Persons)
	b.line("Advance Paid: %s", Amount(v.AdvancePaid))
	b.blank()
	b.line("📱 *View Your E-Ticket*")
	b.line("%s", ticketURL)
	b.blank()
	b.line("💡 *Check-in Instructions*")
	b.line("- Show this ticket at the property")
	b.line("- Carry a valid ID proof")
	b.line("- Contact owner if needed: %s", v.OwnerPhone)
	b.blank()
	b.line("Have a wonderful stay! 🏡")
	return b.text()
}

// AdminConfirmed summarises a confirmation for the admin.
func AdminConfirmed(v View, ticketURL string) string {
	var b builder
	b.line("✅ *Booking Confirmed by Owner*")
	b.blank()
	b.line("Booking ID: %s", v.BookingID)
	b.line("Property: %s", v.PropertyName)
	b.line("Guest: %s (%s)", v.GuestName, v.GuestPhone)
	b.line("Advance: %s", Amount(v.AdvancePaid))
	b.blank()

	if v.HasReferral() {
		b.line("🎁 *Referral Commission Confirmed*")
		b.line("Code: %s", v.ReferralCode)
		b.line("Referrer Commission: %s (%s)", Amount(v.ReferrerCommission), v.CommissionStatus)
		b.line("Admin Commission: %s", Amount(v.AdminCommission))
		b.blank()
	}

	if ticketURL != "" {
		b.line("🎫 Ticket Link: %s", ticketURL)
	}
	return b.text()
}

// OwnerCancelled acknowledges a cancel tap.
func OwnerCancelled(v View) string {
	var b builder
	b.line("❌ *Booking Cancelled*")
	b.blank()
	b.line("Booking ID: %s", v.BookingID)
	b.line("Refund request has been created for admin processing.")
	return b.text()
}

// CustomerCancelled tells the guest the owner declined and a refund follows.
func CustomerCancelled(v View) string {
	var b builder
	b.line("❌ *Booking Cancelled*")
	b.blank()
	b.line("Booking ID: %s", v.BookingID)
	b.line("Property: %s", v.PropertyName)
	b.blank()
	b.line("Due to unavailability, your booking has been cancelled by the owner.")
	b.blank()
	b.line("💰 *Refund Information*")
	b.line("Amount: %s", Amount(v.AdvancePaid))
	b.line("The refund will be credited to your payment source within 5-7 business days.")
	b.blank()
	b.line("For any queries, please contact support.")
	return b.text()
}

// AdminCancelled asks the admin to process the refund.
func AdminCancelled(v View) string {
	var b builder
	b.line("❌ *Booking Cancelled by Owner*")
	b.blank()
	b.line("Booking ID: %s", v.BookingID)
	b.line("Property: %s", v.PropertyName)
	b.line("Guest: %s (%s)", v.GuestName, v.GuestPhone)
	b.line("Refund Amount: %s", Amount(v.AdvancePaid))
	b.blank()

	if v.HasReferral() {
		b.line("🎁 *Referral Commission Cancelled*")
		b.line("Code: %s", v.ReferralCode)
		b.line("Referrer Commission: %s (%s)", Amount(v.ReferrerCommission), v.CommissionStatus)
		b.blank()
	}

	b.line("⚠️ *Action Required*")
	b.line("Please process the refund through Paytm merchant dashboard.")
	return b.text()
}
