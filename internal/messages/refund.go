package messages

// RefundInitiatedCustomer tells the guest the refund has been sent.
func RefundInitiatedCustomer(v View, refundID string) string {
	var b builder
	b.line("💰 *Refund Initiated*")
	b.blank()
	b.line("Booking ID: %s", v.BookingID)
	b.line("Refund Amount: %s", Amount(v.AdvancePaid))
	b.line("Refund Reference: %s", refundID)
	b.blank()
	b.line("Your refund has been processed and will be credited to your payment source within 5-7 business days.")
	b.blank()
	b.line("For any queries, please contact support.")
	return b.text()
}

// RefundInitiatedAdmin records who processed the refund.
func RefundInitiatedAdmin(v View, refundID, processedBy string) string {
	var b builder
	b.line("✅ *Refund Processed*")
	b.blank()
	b.line("Booking ID: %s", v.BookingID)
	b.line("Refund ID: %s", refundID)
	b.line("Amount: %s", Amount(v.AdvancePaid))
	b.line("Processed by: %s", processedBy)
	b.line("Customer notified via WhatsApp.")
	return b.text()
}
