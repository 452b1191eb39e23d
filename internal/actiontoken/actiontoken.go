// Package actiontoken mints and verifies the signed capabilities embedded in
// the owner's confirm/cancel buttons.
package actiontoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"booking-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType marks tokens minted for owner decisions.
const TokenType = "OWNER_ACTION"

var (
	ErrExpired      = errors.New("action token expired")
	ErrInvalid      = errors.New("action token invalid")
	ErrMalformed    = errors.New("action token malformed")
	ErrUnauthorized = errors.New("sender is not the booking owner")
)

// MaxLength is the longest token that still fits in a reply button id.
const MaxLength = 256

// Claims is the payload of an action token. Claim names are short so the
// signed token fits in a reply button id.
type Claims struct {
	Type      string `json:"t"`
	BookingID string `json:"b"`
	Action    string `json:"a"`
	OwnerID   string `json:"o"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies action tokens with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an issuer whose tokens live for ttl.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock overrides the clock used for issuing and verifying.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue mints a token authorizing ownerID to apply action to bookingID.
func (i *Issuer) Issue(bookingID, action, ownerID string) (string, error) {
	now := i.now()
	claims := Claims{
		Type:      TokenType,
		BookingID: bookingID,
		Action:    action,
		OwnerID:   ownerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign action token: %w", err)
	}
	if len(signed) > MaxLength {
		return "", fmt.Errorf("action token for %s is %d bytes, limit is %d", bookingID, len(signed), MaxLength)
	}
	return signed, nil
}

// Verify decodes a token. Failures are always one of ErrExpired,
// ErrMalformed or ErrInvalid.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))

	switch {
	case err == nil && token.Valid:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	default:
		return nil, ErrInvalid
	}

	if claims.Type != TokenType || claims.BookingID == "" {
		return nil, ErrInvalid
	}
	if claims.Action != models.ActionConfirm && claims.Action != models.ActionCancel {
		return nil, ErrInvalid
	}
	return claims, nil
}

// Reason maps a verification error to the short code reported to callers.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "EXPIRED"
	case errors.Is(err, ErrMalformed):
		return "MALFORMED"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	default:
		return "INVALID"
	}
}

// NormalizePhone strips whitespace and a leading '+'.
func NormalizePhone(phone string) string {
	return strings.TrimPrefix(strings.TrimSpace(phone), "+")
}

// Authorize checks that the webhook sender is the owner the token was
// minted for.
func Authorize(claims *Claims, senderPhone string) error {
	if claims == nil || NormalizePhone(claims.OwnerID) == "" ||
		NormalizePhone(claims.OwnerID) != NormalizePhone(senderPhone) {
		return ErrUnauthorized
	}
	return nil
}
