package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// EventType enumerates the provider webhook events the service reacts to.
type EventType string

const (
	EventIntentSucceeded EventType = "payment_intent.succeeded"
	EventIntentFailed    EventType = "payment_intent.payment_failed"
)

// Event is the decoded webhook delivery.
type Event struct {
	ID             string
	Type           EventType
	IntentID       string
	FailureMessage string
}

// VerifySignature checks the provider signature header against the payload.
// The header format is "t=<unix>,v1=<hex hmac>" where the HMAC-SHA256 input
// is "<unix>.<payload>". Timestamps outside the tolerance window are
// rejected to limit replay. Comparison is constant-time.
func VerifySignature(payload []byte, header string, secret []byte, now time.Time, tolerance time.Duration) error {
	var (
		timestamp int64
		signature []byte
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignature
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				return ErrInvalidSignature
			}
			signature = sig
		}
	}
	if timestamp == 0 || len(signature) == 0 {
		return ErrInvalidSignature
	}

	sent := time.Unix(timestamp, 0)
	if sent.Before(now.Add(-tolerance)) || sent.After(now.Add(tolerance)) {
		return errors.Wrap(ErrInvalidSignature, "timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	if subtle.ConstantTimeCompare(expected, signature) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// SignPayload produces a signature header for the given payload, suitable for
// tests and for providers configured with the shared secret.
func SignPayload(payload []byte, secret []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

// ParseEvent decodes the fields the service needs from a webhook payload:
// event id, event type, the intent id, and the failure message when present.
// Unknown fields are skipped without buffering the whole document.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	d := jx.DecodeBytes(payload)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			id, err := d.Str()
			if err != nil {
				return err
			}
			ev.ID = id
		case "type":
			t, err := d.Str()
			if err != nil {
				return err
			}
			ev.Type = EventType(t)
		case "data":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "object" {
					return d.Skip()
				}
				return d.Obj(func(d *jx.Decoder, key string) error {
					switch key {
					case "id":
						id, err := d.Str()
						if err != nil {
							return err
						}
						ev.IntentID = id
					case "last_payment_error":
						if d.Next() == jx.Null {
							return d.Null()
						}
						return d.Obj(func(d *jx.Decoder, key string) error {
							if key != "message" {
								return d.Skip()
							}
							msg, err := d.Str()
							if err != nil {
								return err
							}
							ev.FailureMessage = msg
							return nil
						})
					default:
						return d.Skip()
					}
					return nil
				})
			})
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode webhook payload")
	}

	if ev.ID == "" || ev.Type == "" || ev.IntentID == "" {
		return nil, errors.New("webhook payload missing required fields")
	}
	return &ev, nil
}
