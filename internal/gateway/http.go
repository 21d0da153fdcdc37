package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// HTTPClient calls the payments and users services.
type HTTPClient struct {
	paymentsURL string
	usersURL    string
	client      *http.Client
}

// NewHTTPClient builds a client whose requests carry trace context.
func NewHTTPClient(paymentsURL, usersURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		paymentsURL: strings.TrimRight(paymentsURL, "/"),
		usersURL:    strings.TrimRight(usersURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type paymentResponse struct {
	PaymentID string `json:"payment_id"`
}

// Send runs the command synchronously and drops its result.
func (c *HTTPClient) Send(ctx context.Context, cmd messages.Message) error {
	_, err := c.SendAndWait(ctx, cmd)
	return err
}

// SendAndWait posts ProcessPayment to the payments service and returns the
// payment id it confirms. A 2xx without a payment id returns "": the payment
// was not confirmed.
func (c *HTTPClient) SendAndWait(ctx context.Context, cmd messages.Message) (string, error) {
	pay, ok := cmd.(messages.ProcessPayment)
	if !ok {
		return "", remoteErr("send "+string(cmd.Kind()), 0, errors.New("command is not served over http"))
	}
	const op = "process payment"

	body, err := json.Marshal(pay)
	if err != nil {
		return "", remoteErr(op, 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.paymentsURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return "", remoteErr(op, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", pay.PaymentID)

	var out paymentResponse
	found, err := c.do(req, op, &out)
	if err != nil {
		return "", err
	}
	if !found {
		return "", remoteErr(op, http.StatusNotFound, errors.New("payments endpoint not found"))
	}
	return out.PaymentID, nil
}

func (c *HTTPClient) FetchUserPaymentDetails(ctx context.Context, q messages.FetchUserPaymentDetails) (*messages.User, error) {
	const op = "fetch user payment details"
	u := fmt.Sprintf("%s/users/%s/payment-details", c.usersURL, url.PathEscape(q.UserID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, remoteErr(op, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	var user messages.User
	found, err := c.do(req, op, &user)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// do executes req and decodes a 2xx body into out. A 404 yields found=false.
func (c *HTTPClient) do(req *http.Request, op string, out any) (bool, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return false, remoteErr(op, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return false, remoteErr(op, resp.StatusCode, errors.New(strings.TrimSpace(string(msg))))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, remoteErr(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return true, nil
}
