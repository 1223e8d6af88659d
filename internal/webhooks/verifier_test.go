package webhooks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func newTestVerifier(now time.Time) *Verifier {
	v := NewVerifier(testSecret, 5*time.Minute)
	v.SetClock(func() time.Time { return now })
	return v
}

func TestVerifyValidSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"id":"evt_1"}`)
	v := newTestVerifier(now)
	require.NoError(t, v.Verify(Sign(testSecret, now, body), body))
}

func TestVerifyTamperedBody(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := newTestVerifier(now)
	header := Sign(testSecret, now, []byte(`{"id":"evt_1"}`))
	err := v.Verify(header, []byte(`{"id":"evt_2"}`))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyWrongSecret(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{}`)
	v := newTestVerifier(now)
	err := v.Verify(Sign("whsec_other", now, body), body)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyMalformedHeader(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := newTestVerifier(now)
	for _, header := range []string{
		"",
		"v1=deadbeef",
		"t=123",
		"t=notanumber,v1=deadbeef",
		"t=123,v1=zzzz",
	} {
		t.Run(header, func(t *testing.T) {
			assert.ErrorIs(t, v.Verify(header, []byte(`{}`)), ErrInvalidSignature)
		})
	}
}

func TestVerifyTimestampSkew(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{}`)
	v := newTestVerifier(now)

	assert.NoError(t, v.Verify(Sign(testSecret, now.Add(-4*time.Minute), body), body))
	assert.ErrorIs(t, v.Verify(Sign(testSecret, now.Add(-6*time.Minute), body), body), ErrStaleTimestamp)
	assert.ErrorIs(t, v.Verify(Sign(testSecret, now.Add(6*time.Minute), body), body), ErrStaleTimestamp)
}
