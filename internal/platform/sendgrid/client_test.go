package sendgrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/cibics-tracking-backend/internal/pkg/logger"
)

func TestSendRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing auth header")
		}
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var body mailSendRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Subject != "Email captured" || body.From.Email != "alerts@example.com" {
			t.Errorf("unexpected body %+v", body)
		}
		w.Header().Set("X-Message-Id", "msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New(logger.Nop(), Config{APIKey: "key", BaseURL: srv.URL, DefaultFromEmail: "alerts@example.com", MaxRetries: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.(*client).backoff = time.Millisecond

	res, err := c.Send(context.Background(), SendEmailRequest{
		To:      []EmailAddress{{Email: "ops@example.com"}},
		Subject: "Email captured",
		Text:    "Record updated",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.MessageID != "msg-1" || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("result %+v after %d calls", res, calls)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad from"}]}`))
	}))
	defer srv.Close()

	c, _ := New(logger.Nop(), Config{APIKey: "key", BaseURL: srv.URL, DefaultFromEmail: "a@example.com", MaxRetries: 3})
	_, err := c.Send(context.Background(), SendEmailRequest{
		To: []EmailAddress{{Email: "b@example.com"}}, Subject: "s", Text: "t",
	})
	if err == nil || err.Error() != "sendgrid http 400: bad from" {
		t.Fatalf("unexpected error %v", err)
	}
	if calls != 1 {
		t.Fatalf("client errors must not retry, got %d calls", calls)
	}
}
