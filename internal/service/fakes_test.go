package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"booking-service/config"
	"booking-service/internal/actiontoken"
	"booking-service/internal/models"
	"booking-service/internal/store"
	"booking-service/internal/util"

	"go.uber.org/zap"
)

const testMerchantKey = "j@D7fI3pAMAl7nQC"

// fakeStore mirrors the guarded updates of store.Store in memory.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	bookings map[string]*models.Booking
	users    map[int64]*models.ReferralUser
	ledger   []models.ReferralTransaction
	logs     []models.NotificationLog

	duplicateOrderIDs int
	historyLimit      int
	failedLimit       int
	reportStart       *time.Time
	reportEnd         *time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bookings: map[string]*models.Booking{},
		users:    map[int64]*models.ReferralUser{},
	}
}

func clone(b *models.Booking) *models.Booking {
	c := *b
	return &c
}

func (f *fakeStore) put(b *models.Booking) *models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	f.bookings[b.BookingID] = clone(b)
	return b
}

func (f *fakeStore) get(id string) *models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[id]; ok {
		return clone(b)
	}
	return nil
}

func (f *fakeStore) CreateBooking(_ context.Context, b *models.Booking) error {
	f.put(b)
	return nil
}

func (f *fakeStore) GetBooking(_ context.Context, bookingID string) (*models.Booking, error) {
	if b := f.get(bookingID); b != nil {
		return b, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetBookingByOrderID(_ context.Context, orderID string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.OrderID != nil && *b.OrderID == orderID {
			return clone(b), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) AssignOrderID(_ context.Context, bookingID, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.duplicateOrderIDs > 0 {
		f.duplicateOrderIDs--
		return false, store.ErrDuplicateOrderID
	}
	b, ok := f.bookings[bookingID]
	if !ok || b.BookingStatus != models.BookingStatusPaymentPending || b.PaymentStatus == models.PaymentStatusSuccess {
		return false, nil
	}
	b.OrderID = &orderID
	return true, nil
}

func (f *fakeStore) ApplyPaymentResult(ctx context.Context, orderID, paymentStatus, txnID string) (*models.Booking, bool, error) {
	f.mu.Lock()
	var target *models.Booking
	for _, b := range f.bookings {
		if b.OrderID != nil && *b.OrderID == orderID {
			target = b
		}
	}
	if target == nil {
		f.mu.Unlock()
		return nil, false, store.ErrNotFound
	}
	defer f.mu.Unlock()

	if target.PaymentStatus == models.PaymentStatusSuccess {
		return clone(target), false, nil
	}
	if paymentStatus == models.PaymentStatusSuccess {
		if target.BookingStatus != models.BookingStatusPaymentPending {
			return clone(target), false, nil
		}
		target.BookingStatus = models.BookingStatusPaymentSuccess
	}
	target.PaymentStatus = paymentStatus
	if txnID != "" {
		target.TransactionID = &txnID
	}
	return clone(target), true, nil
}

func (f *fakeStore) TransitionStatus(_ context.Context, bookingID, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok || b.BookingStatus != from {
		return false, nil
	}
	b.BookingStatus = to
	return true, nil
}

func (f *fakeStore) MarkTicketGenerated(_ context.Context, bookingID, qr string) (*models.Booking, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok || b.BookingStatus != models.BookingStatusOwnerConfirmed {
		return nil, false, nil
	}
	now := time.Now()
	b.BookingStatus = models.BookingStatusTicketGenerated
	b.QRPayload = &qr
	b.TicketGeneratedAt = &now
	return clone(b), true, nil
}

func (f *fakeStore) ListBookingsByStatus(_ context.Context, statuses []string, limit int) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyLimit = limit
	var out []models.Booking
	for _, b := range f.bookings {
		for _, s := range statuses {
			if b.BookingStatus == s {
				out = append(out, *clone(b))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ConfirmByOwner(ctx context.Context, bookingID string) (*store.DecisionResult, error) {
	return f.decide(bookingID, models.BookingStatusOwnerConfirmed, models.CommissionStatusConfirmed,
		models.TransactionStatusCompleted, true)
}

func (f *fakeStore) CancelByOwner(ctx context.Context, bookingID string) (*store.DecisionResult, error) {
	return f.decide(bookingID, models.BookingStatusOwnerCancelled, models.CommissionStatusCancelled,
		models.TransactionStatusFailed, false)
}

func (f *fakeStore) decide(bookingID, target, commissionTarget, txStatus string, credit bool) (*store.DecisionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if b.BookingStatus != models.BookingStatusRequestSentToOwner {
		return &store.DecisionResult{Booking: clone(b)}, nil
	}

	prior := clone(b)
	now := time.Now()
	b.BookingStatus = target
	if target == models.BookingStatusOwnerConfirmed {
		b.ConfirmedAt = &now
	} else {
		b.CancelledAt = &now
	}
	if b.CommissionStatus == models.CommissionStatusPending {
		b.CommissionStatus = commissionTarget
	}

	res := &store.DecisionResult{Booking: clone(b), Applied: true}
	if prior.CommissionStatus != models.CommissionStatusPending || !prior.HasReferrer() {
		return res, nil
	}
	f.ledger = append(f.ledger, models.ReferralTransaction{
		ReferralUserID:   *prior.ReferralUserID,
		BookingID:        bookingID,
		Amount:           prior.ReferrerCommission,
		Type:             models.TransactionTypeEarning,
		Status:           txStatus,
		CommissionStatus: commissionTarget,
	})
	res.LedgerWritten = true
	if credit {
		if u, ok := f.users[*prior.ReferralUserID]; ok {
			u.Balance += prior.ReferrerCommission
		}
	}
	return res, nil
}

func (f *fakeStore) refund(bookingID string, allowed func(*models.Booking) bool, apply func(*models.Booking)) (*models.Booking, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return nil, false, store.ErrNotFound
	}
	if !allowed(b) {
		return clone(b), false, nil
	}
	apply(b)
	return clone(b), true, nil
}

func (f *fakeStore) RequestRefund(_ context.Context, bookingID, reason string) (*models.Booking, bool, error) {
	return f.refund(bookingID,
		func(b *models.Booking) bool { return b.BookingStatus == models.BookingStatusOwnerCancelled },
		func(b *models.Booking) {
			now := time.Now()
			b.BookingStatus = models.BookingStatusRefundRequired
			b.RefundReason = &reason
			b.RefundRequestedAt = &now
		})
}

func (f *fakeStore) StartRefund(_ context.Context, bookingID, refundID, processedBy string) (*models.Booking, bool, error) {
	return f.refund(bookingID,
		func(b *models.Booking) bool { return b.BookingStatus == models.BookingStatusRefundRequired },
		func(b *models.Booking) {
			now := time.Now()
			b.BookingStatus = models.BookingStatusRefundInitiated
			b.RefundID = &refundID
			b.RefundProcessedBy = &processedBy
			b.RefundProcessedAt = &now
		})
}

func (f *fakeStore) CompleteRefund(_ context.Context, bookingID string, force bool) (*models.Booking, bool, error) {
	return f.refund(bookingID,
		func(b *models.Booking) bool {
			return b.BookingStatus != models.BookingStatusRefundCompleted &&
				(force || b.BookingStatus == models.BookingStatusRefundInitiated)
		},
		func(b *models.Booking) {
			now := time.Now()
			b.BookingStatus = models.BookingStatusRefundCompleted
			b.RefundCompletedAt = &now
		})
}

func (f *fakeStore) AppendNotificationLog(_ context.Context, entry *models.NotificationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = int64(len(f.logs) + 1)
	f.logs = append(f.logs, *entry)
	return nil
}

func (f *fakeStore) UpdateNotificationFlags(_ context.Context, bookingID string, customer, owner, admin bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bookings[bookingID]; ok {
		b.NotifiedCustomer = b.NotifiedCustomer || customer
		b.NotifiedOwner = b.NotifiedOwner || owner
		b.NotifiedAdmin = b.NotifiedAdmin || admin
	}
	return nil
}

func (f *fakeStore) MarkRecipientNotified(_ context.Context, bookingID, recipient string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok {
		return nil
	}
	switch recipient {
	case models.RecipientCustomer:
		b.NotifiedCustomer = true
	case models.RecipientOwner:
		b.NotifiedOwner = true
	case models.RecipientAdmin:
		b.NotifiedAdmin = true
	default:
		return errors.New("unknown recipient")
	}
	return nil
}

func (f *fakeStore) ListPendingPaymentAlerts(_ context.Context, threshold time.Time) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings {
		if b.PaymentStatus == models.PaymentStatusPending &&
			b.BookingStatus == models.BookingStatusPaymentPending &&
			b.CreatedAt.Before(threshold) && !b.AlertedAdmin {
			out = append(out, *clone(b))
		}
	}
	return out, nil
}

func (f *fakeStore) MarkAdminAlerted(_ context.Context, bookingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[bookingID]
	if !ok || b.AlertedAdmin {
		return false, nil
	}
	now := time.Now()
	b.AlertedAdmin = true
	b.AdminAlertedAt = &now
	return true, nil
}

func (f *fakeStore) ListStuckBookings(_ context.Context, handoffBefore time.Time) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.bookings {
		waiting := b.PaymentStatus == models.PaymentStatusPending && b.BookingStatus == models.BookingStatusPaymentPending
		handoff := b.BookingStatus == models.BookingStatusPaymentSuccess && b.UpdatedAt.Before(handoffBefore)
		if waiting || handoff {
			out = append(out, *clone(b))
		}
	}
	return out, nil
}

func (f *fakeStore) ListFailedNotifications(_ context.Context, limit int) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedLimit = limit
	var out []models.Booking
	for _, b := range f.bookings {
		if b.PaymentStatus == models.PaymentStatusSuccess &&
			(!b.NotifiedCustomer || !b.NotifiedOwner || !b.NotifiedAdmin) {
			out = append(out, *clone(b))
		}
	}
	return out, nil
}

func (f *fakeStore) GetReferralUserByCode(_ context.Context, code string) (*models.ReferralUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.ReferralCode, code) {
			c := *u
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetCommissionSummary(context.Context) (*store.CommissionSummary, error) {
	return &store.CommissionSummary{}, nil
}

func (f *fakeStore) ListBookingsByCommissionStatus(_ context.Context, status string) ([]models.Booking, error) {
	return []models.Booking{}, nil
}

func (f *fakeStore) ListReferrerBookings(context.Context, int64) ([]models.Booking, *store.ReferrerSummary, error) {
	return []models.Booking{}, &store.ReferrerSummary{}, nil
}

func (f *fakeStore) ListPayableCommissions(context.Context) ([]store.PayableCommission, error) {
	return []store.PayableCommission{}, nil
}

func (f *fakeStore) GetCommissionReport(_ context.Context, start, end *time.Time) ([]store.CommissionReportRow, error) {
	f.reportStart, f.reportEnd = start, end
	return []store.CommissionReportRow{}, nil
}

func (f *fakeStore) ledgerRows() []models.ReferralTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ReferralTransaction(nil), f.ledger...)
}

func (f *fakeStore) logRows() []models.NotificationLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.NotificationLog(nil), f.logs...)
}

func (f *fakeStore) balance(uid int64) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[uid].Balance
}

// fakeMessenger records sends. fail decides per message whether to fail.
type fakeMessenger struct {
	mu   sync.Mutex
	sent []models.OutboundMessage
	fail func(models.OutboundMessage, int) error
}

func (m *fakeMessenger) Send(_ context.Context, msg models.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	if m.fail != nil {
		return m.fail(msg, len(m.sent))
	}
	return nil
}

func (m *fakeMessenger) messages() []models.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OutboundMessage(nil), m.sent...)
}

func (m *fakeMessenger) to(phone string) []models.OutboundMessage {
	var out []models.OutboundMessage
	for _, msg := range m.messages() {
		if msg.Phone == phone {
			out = append(out, msg)
		}
	}
	return out
}

type scheduledRetry struct {
	msg     models.OutboundMessage
	attempt int
	delay   time.Duration
}

// fakePublisher captures booking events and scheduled retries.
type fakePublisher struct {
	mu       sync.Mutex
	events   []*models.BookingEvent
	retries  []scheduledRetry
	retryErr error
}

func (p *fakePublisher) PublishBookingEvent(_ context.Context, e *models.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) ScheduleNotificationRetry(_ context.Context, msg models.OutboundMessage, attempt int, delay time.Duration, _ error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.retryErr != nil {
		return p.retryErr
	}
	p.retries = append(p.retries, scheduledRetry{msg: msg, attempt: attempt, delay: delay})
	return nil
}

func (p *fakePublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type fakeLocker struct {
	held     bool
	released int
}

func (l *fakeLocker) AcquireLock(context.Context, string, time.Duration) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLocker) ReleaseLock(context.Context, string) error {
	l.held = false
	l.released++
	return nil
}

type fakeDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *fakeDedup) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *fakeDedup) Unclaim(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}

// harness wires every workflow over the fakes.
type harness struct {
	store     *fakeStore
	messenger *fakeMessenger
	publisher *fakePublisher
	dedup     *fakeDedup
	locker    *fakeLocker
	clock     time.Time
	issuer    *actiontoken.Issuer
	business  config.BusinessConfig
	paytm     config.PaytmConfig

	dispatcher *NotificationDispatcher
	payments   *PaymentService
	tickets    *TicketService
	refunds    *RefundService
	decisions  *OwnerDecisionService
	monitoring *MonitoringService
	referrals  *ReferralService
	bookings   *BookingService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	util.SetLogger(zap.NewNop())

	h := &harness{
		store:     newFakeStore(),
		messenger: &fakeMessenger{},
		publisher: &fakePublisher{},
		dedup:     &fakeDedup{},
		locker:    &fakeLocker{},
		clock:     time.Now(),
		business: config.BusinessConfig{
			FrontendURL:             "http://localhost:5000",
			AdminPhone:              "919800000009",
			PaymentTimeout:          15 * time.Minute,
			MonitorInterval:         5 * time.Minute,
			NotificationMaxAttempts: 3,
			NotificationRetryDelay:  time.Millisecond,
			RefundHistoryLimit:      50,
		},
		paytm: config.PaytmConfig{
			MID:          "MID123",
			Website:      "WEBSTAGING",
			IndustryType: "Retail",
			ChannelID:    "WEB",
			MerchantKey:  testMerchantKey,
			GatewayURL:   "https://securegw-stage.paytm.in/order/process",
		},
	}
	h.issuer = actiontoken.NewIssuer("test-secret", 30*time.Minute).WithClock(func() time.Time { return h.clock })
	h.rebuild(nil)
	return h
}

// rebuild re-creates the services, with retries as the dispatcher's queue.
func (h *harness) rebuild(retries RetryScheduler) {
	h.dispatcher = NewNotificationDispatcher(h.messenger, h.store, retries,
		h.business.NotificationMaxAttempts, h.business.NotificationRetryDelay)
	h.payments = NewPaymentService(h.store, h.dispatcher, h.issuer, h.publisher, h.paytm, h.business)
	h.tickets = NewTicketService(h.store, h.business)
	h.refunds = NewRefundService(h.store, h.dispatcher, h.publisher, h.business)
	h.decisions = NewOwnerDecisionService(h.store, h.issuer, h.messenger, h.dispatcher,
		h.tickets, h.refunds, h.publisher, h.dedup, h.business)
	h.monitoring = NewMonitoringService(h.store, h.dispatcher, h.locker, h.business)
	h.monitoring.now = func() time.Time { return h.clock }
	h.referrals = NewReferralService(h.store)
	h.bookings = NewBookingService(h.store, h.referrals, h.publisher, h.business)
}

func (h *harness) addReferrer(id int64, code, refType, status, mobile string) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.users[id] = &models.ReferralUser{
		ID: id, Username: "ref" + code, MobileNumber: mobile,
		ReferralCode: code, ReferralType: refType, Status: status,
	}
}

// seedBooking stores a STANDARD-referred booking in status.
func (h *harness) seedBooking(bookingID, status string) *models.Booking {
	code := "RAVI10"
	uid := int64(3)
	h.addReferrer(uid, code, models.ReferralTypeStandard, models.ReferralUserActive, "919811111111")

	b := &models.Booking{
		BookingID:          bookingID,
		PropertyName:       "Sea Breeze Villa",
		GuestName:          "Asha",
		GuestPhone:         "919800000001",
		OwnerName:          "Mohan",
		OwnerPhone:         "919800000002",
		AdminPhone:         "919800000003",
		CheckIn:            time.Now().Add(48 * time.Hour),
		CheckOut:           time.Now().Add(72 * time.Hour),
		Persons:            4,
		AdvanceAmount:      1000,
		TotalAmount:        5000,
		AdminCommission:    150,
		ReferrerCommission: 100,
		CustomerDiscount:   50,
		ReferralCode:       &code,
		ReferralType:       models.ReferralTypeStandard,
		ReferralUserID:     &uid,
		CommissionStatus:   models.CommissionStatusPending,
		PaymentStatus:      models.PaymentStatusPending,
		BookingStatus:      status,
	}
	if status != models.BookingStatusPaymentPending {
		b.PaymentStatus = models.PaymentStatusSuccess
	}
	return h.store.put(b)
}
