package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature_RoundTrip(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	secret := []byte("whsec_test")
	now := time.Now()

	header := SignPayload(payload, secret, now)
	require.NoError(t, VerifySignature(payload, header, secret, now, 5*time.Minute))
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	secret := []byte("whsec_test")
	now := time.Now()

	header := SignPayload([]byte(`{"id":"evt_1"}`), secret, now)
	err := VerifySignature([]byte(`{"id":"evt_2"}`), header, secret, now, 5*time.Minute)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignature_MalformedHeader(t *testing.T) {
	payload := []byte(`{}`)
	secret := []byte("whsec_test")
	now := time.Now()

	for _, header := range []string{
		"",
		"t=,v1=",
		"t=abc,v1=00",
		"v1=00",
		"t=" + "1700000000",
	} {
		err := VerifySignature(payload, header, secret, now, 5*time.Minute)
		assert.ErrorIs(t, err, ErrInvalidSignature, "header %q", header)
	}
}

func TestVerifySignature_ToleranceWindow(t *testing.T) {
	payload := []byte(`{}`)
	secret := []byte("whsec_test")
	now := time.Now()

	within := SignPayload(payload, secret, now.Add(-4*time.Minute))
	require.NoError(t, VerifySignature(payload, within, secret, now, 5*time.Minute))

	outside := SignPayload(payload, secret, now.Add(-6*time.Minute))
	require.ErrorIs(t, VerifySignature(payload, outside, secret, now, 5*time.Minute), ErrInvalidSignature)

	future := SignPayload(payload, secret, now.Add(6*time.Minute))
	require.ErrorIs(t, VerifySignature(payload, future, secret, now, 5*time.Minute), ErrInvalidSignature)
}

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"object": "event",
		"type": "payment_intent.payment_failed",
		"created": 1700000000,
		"data": {
			"object": {
				"id": "pi_123",
				"amount": 2750,
				"last_payment_error": {"code": "card_declined", "message": "card declined"}
			}
		}
	}`)

	ev, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventIntentFailed, ev.Type)
	assert.Equal(t, "pi_123", ev.IntentID)
	assert.Equal(t, "card declined", ev.FailureMessage)
}

func TestParseEvent_NullPaymentError(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded",` +
		`"data":{"object":{"id":"pi_123","last_payment_error":null}}}`)

	ev, err := ParseEvent(payload)
	require.NoError(t, err)
	assert.Empty(t, ev.FailureMessage)
}

func TestParseEvent_MissingFields(t *testing.T) {
	for _, payload := range []string{
		`{}`,
		`{"id":"evt_1"}`,
		`{"id":"evt_1","type":"payment_intent.succeeded"}`,
		`not json`,
	} {
		_, err := ParseEvent([]byte(payload))
		assert.Error(t, err, "payload %q", payload)
	}
}
