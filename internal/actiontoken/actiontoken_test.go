package actiontoken

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer := NewIssuer("secret", 30*time.Minute).WithClock(fixedClock(now))

	token, err := issuer.Issue("BK-1", "CONFIRM", "+919876543210")
	require.NoError(t, err)

	claims, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, TokenType, claims.Type)
	assert.Equal(t, "BK-1", claims.BookingID)
	assert.Equal(t, "CONFIRM", claims.Action)
	assert.Equal(t, "+919876543210", claims.OwnerID)
	require.NotNil(t, claims.IssuedAt)
	assert.Equal(t, now.Unix(), claims.IssuedAt.Unix())
}

func TestTokenFitsButtonID(t *testing.T) {
	issuer := NewIssuer("a-production-length-secret-value", 24*time.Hour)

	for _, action := range []string{"CONFIRM", "CANCEL"} {
		token, err := issuer.Issue("BK-3F9A21C0DE", action, "+919876543210")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(token), MaxLength, action)
	}
}

func TestIssueRejectsOversizedToken(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour)

	_, err := issuer.Issue(strings.Repeat("B", 300), "CONFIRM", "919876543210")
	assert.Error(t, err)
}

func TestExpiredIsDistinctFromInvalid(t *testing.T) {
	issued := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	issuer := NewIssuer("secret", 30*time.Minute).WithClock(fixedClock(issued))

	token, err := issuer.Issue("BK-1", "CANCEL", "919876543210")
	require.NoError(t, err)

	later := NewIssuer("secret", 30*time.Minute).WithClock(fixedClock(issued.Add(31 * time.Minute)))
	_, err = later.Verify(token)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, "EXPIRED", Reason(err))

	other := NewIssuer("other-secret", 30*time.Minute).WithClock(fixedClock(issued))
	_, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, "INVALID", Reason(err))

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))
	_, err = issuer.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMalformed(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)

	_, err := issuer.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, "MALFORMED", Reason(err))
}

func TestAuthorize(t *testing.T) {
	claims := &Claims{OwnerID: "+919876543210"}

	assert.NoError(t, Authorize(claims, "919876543210"))
	assert.NoError(t, Authorize(claims, "+919876543210"))
	assert.ErrorIs(t, Authorize(claims, "919800000000"), ErrUnauthorized)
	assert.ErrorIs(t, Authorize(&Claims{}, ""), ErrUnauthorized)
	assert.ErrorIs(t, Authorize(nil, "919876543210"), ErrUnauthorized)
}
