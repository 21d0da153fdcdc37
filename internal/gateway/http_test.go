package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

func TestHTTPClientProcessPayment(t *testing.T) {
	var got messages.ProcessPayment
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "pay-1", r.Header.Get("Idempotency-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"payment_id":"pay-1"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", srv.URL, time.Second)
	cmd := messages.ProcessPayment{OrderID: "o-1", PaymentID: "pay-1", PaymentDetails: messages.PaymentDetails{Name: "Ada", CardNumber: "4111"}}

	id, err := c.SendAndWait(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", id)
	assert.Equal(t, cmd, got)
}

func TestHTTPClientProcessPaymentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "card declined", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, srv.URL, time.Second)
	_, err := c.SendAndWait(context.Background(), messages.ProcessPayment{OrderID: "o-1", PaymentID: "pay-1"})

	var rce *RemoteCallError
	require.True(t, errors.As(err, &rce))
	assert.Equal(t, http.StatusPaymentRequired, rce.StatusCode)
	assert.Contains(t, err.Error(), "card declined")
}

func TestHTTPClientRejectsAsyncCommands(t *testing.T) {
	c := NewHTTPClient("http://unused", "http://unused", time.Second)
	err := c.Send(context.Background(), messages.ReserveProduct{OrderID: "o-1"})
	var rce *RemoteCallError
	require.ErrorAs(t, err, &rce)
}

func TestHTTPClientFetchUserPaymentDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/u-1/payment-details":
			_, _ = w.Write([]byte(`{"user_id":"u-1","first_name":"Ada","payment_details":{"name":"Ada","card_number":"4111","valid_until_month":12,"valid_until_year":2030,"cvv":"123"}}`))
		case "/users/u-2/payment-details":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, srv.URL, time.Second)
	ctx := context.Background()

	user, err := c.FetchUserPaymentDetails(ctx, messages.FetchUserPaymentDetails{UserID: "u-1"})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Ada", user.FirstName)
	assert.Equal(t, 2030, user.PaymentDetails.ValidUntilYear)

	user, err = c.FetchUserPaymentDetails(ctx, messages.FetchUserPaymentDetails{UserID: "u-2"})
	require.NoError(t, err)
	assert.Nil(t, user)

	_, err = c.FetchUserPaymentDetails(ctx, messages.FetchUserPaymentDetails{UserID: "u-3"})
	var rce *RemoteCallError
	require.ErrorAs(t, err, &rce)
	assert.Equal(t, http.StatusInternalServerError, rce.StatusCode)
}

func TestHTTPClientTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewHTTPClient(srv.URL, srv.URL, time.Second)
	_, err := c.FetchUserPaymentDetails(context.Background(), messages.FetchUserPaymentDetails{UserID: "u-1"})
	var rce *RemoteCallError
	require.ErrorAs(t, err, &rce)
	assert.Zero(t, rce.StatusCode)
}

func TestHTTPClientProcessPaymentUnconfirmed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, srv.URL, time.Second)
	id, err := c.SendAndWait(context.Background(), messages.ProcessPayment{OrderID: "o-1", PaymentID: "pay-1"})
	require.NoError(t, err)
	assert.Empty(t, id)
}
