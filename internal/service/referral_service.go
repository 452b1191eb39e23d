package service

import (
	"context"
	"strings"

	"booking-service/internal/actiontoken"
	"booking-service/internal/commission"
	"booking-service/internal/models"
)

// ReferralValidation is the result of checking a referral code for a guest.
type ReferralValidation struct {
	Valid              bool    `json:"valid"`
	Error              string  `json:"error,omitempty"`
	ReferralUserID     int64   `json:"referral_user_id,omitempty"`
	ReferralCode       string  `json:"referral_code,omitempty"`
	ReferralType       string  `json:"referral_type,omitempty"`
	Username           string  `json:"username,omitempty"`
	DiscountPercentage float64 `json:"discount_percentage"`
}

// ReferralService validates referral codes.
type ReferralService struct {
	store ReferralRepository
}

// NewReferralService creates a new referral service
func NewReferralService(store ReferralRepository) *ReferralService {
	return &ReferralService{store: store}
}

// Validate checks that code belongs to an active referrer other than the
// guest. An unusable code is reported in the result, not as an error.
func (rs *ReferralService) Validate(ctx context.Context, code, guestPhone string) (*ReferralValidation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return &ReferralValidation{Error: "Referral code is required"}, nil
	}

	user, err := rs.store.GetReferralUserByCode(ctx, code)
	if isNotFound(err) {
		return &ReferralValidation{Error: "Invalid referral code"}, nil
	}
	if err != nil {
		return nil, err
	}

	if user.Status == models.ReferralUserBlocked {
		return &ReferralValidation{Error: "Referral code is no longer active"}, nil
	}
	if guestPhone != "" && actiontoken.NormalizePhone(user.MobileNumber) == actiontoken.NormalizePhone(guestPhone) {
		return &ReferralValidation{Error: "You cannot use your own referral code"}, nil
	}

	referralType := commission.NormalizeType(user.ReferralType)
	discount := 0.0
	if referralType == commission.TypeStandard {
		discount = 5
	}

	return &ReferralValidation{
		Valid:              true,
		ReferralUserID:     user.ID,
		ReferralCode:       strings.ToUpper(user.ReferralCode),
		ReferralType:       referralType,
		Username:           user.Username,
		DiscountPercentage: discount,
	}, nil
}
