// Package stripe implements payment.Provider against the Stripe-compatible
// REST API: form-encoded requests, bearer auth, JSON responses.
package stripe

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/silencedor/commerce-api/internal/domain/payment"
)

const defaultBaseURL = "https://api.stripe.com/v1"

var _ payment.Provider = (*Client)(nil)

// Client is a minimal payment-intents client. Only the operations the
// payment service needs are implemented.
type Client struct {
	http    *http.Client
	baseURL string
	secret  string
}

// New creates a Client authenticated with the given API secret. baseURL is
// overridable for tests; pass "" for the production endpoint.
func New(secret, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
	}
}

// CreateIntent opens a payment intent for the given amount in minor units.
func (c *Client) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*payment.Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", strings.ToLower(currency))
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}
	return c.intentRequest(ctx, http.MethodPost, "/payment_intents", form)
}

// GetIntent retrieves the current state of an intent.
func (c *Client) GetIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	return c.intentRequest(ctx, http.MethodGet, "/payment_intents/"+url.PathEscape(intentID), nil)
}

// Refund refunds an intent for the given amount in minor units.
func (c *Client) Refund(ctx context.Context, intentID string, amountCents int64) (string, error) {
	form := url.Values{}
	form.Set("payment_intent", intentID)
	form.Set("amount", strconv.FormatInt(amountCents, 10))

	body, err := c.do(ctx, http.MethodPost, "/refunds", form)
	if err != nil {
		return "", err
	}
	var refundID string
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "id" {
			return d.Skip()
		}
		id, err := d.Str()
		if err != nil {
			return err
		}
		refundID = id
		return nil
	}); err != nil {
		return "", errors.Wrap(err, "decode refund response")
	}
	if refundID == "" {
		return "", errors.New("refund response missing id")
	}
	return refundID, nil
}

func (c *Client) intentRequest(ctx context.Context, method, path string, form url.Values) (*payment.Intent, error) {
	body, err := c.do(ctx, method, path, form)
	if err != nil {
		return nil, err
	}

	var intent payment.Intent
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			if err != nil {
				return err
			}
			intent.ID = v
		case "client_secret":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			intent.ClientSecret = v
		case "status":
			v, err := d.Str()
			if err != nil {
				return err
			}
			intent.Status = v
		default:
			return d.Skip()
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode intent response")
	}
	if intent.ID == "" {
		return nil, errors.New("intent response missing id")
	}
	return &intent, nil
}

// do executes one API call and returns the response body, converting non-2xx
// responses into *payment.ProviderError with the provider's message.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	var reqBody io.Reader
	if form != nil && method != http.MethodGet {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &payment.ProviderError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &payment.ProviderError{Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &payment.ProviderError{Message: providerMessage(body, resp.StatusCode)}
	}
	return body, nil
}

// providerMessage extracts error.message from an error response body,
// falling back to the HTTP status.
func providerMessage(body []byte, status int) string {
	msg := ""
	d := jx.DecodeBytes(body)
	_ = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "message" {
				return d.Skip()
			}
			v, err := d.Str()
			if err != nil {
				return err
			}
			msg = v
			return nil
		})
	})
	if msg == "" {
		return "unexpected status " + strconv.Itoa(status)
	}
	return msg
}
