package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shineum/slicemail/internal/email"
)

func previewMessage() *email.Email {
	return &email.Email{
		To:       []string{"comms@example.com"},
		Cc:       []string{"design@example.com"},
		Subject:  "Maipú crece en obras",
		HtmlBody: "<!DOCTYPE html>\n<html></html>",
	}
}

// newTestProvider starts a token server and a sendMail server backed by handler.
func newTestProvider(t *testing.T, handler http.HandlerFunc) *GraphProvider {
	t.Helper()

	var tokens atomic.Int32
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := tokens.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "token-" + string(rune('0'+n)),
			ExpiresIn:   3600,
		})
	}))
	t.Cleanup(tokenServer.Close)

	graphServer := httptest.NewServer(handler)
	t.Cleanup(graphServer.Close)

	p := newWithOverrides(
		GraphProviderConfig{TenantID: "t", ClientID: "c", ClientSecret: "s", Sender: "mailing@example.com"},
		graphServer.URL, tokenServer.URL, graphServer.Client(),
	)
	p.baseDelay = time.Millisecond
	return p
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	var er errorResponse
	er.Error.Code = code
	er.Error.Message = msg
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(er)
}

func TestNewSendMailRequest(t *testing.T) {
	t.Parallel()

	req := newSendMailRequest(previewMessage(), true)

	if req.Message.Body.ContentType != "HTML" {
		t.Errorf("ContentType: got %q, want HTML", req.Message.Body.ContentType)
	}
	if !strings.HasPrefix(req.Message.Body.Content, "<!DOCTYPE html>") {
		t.Errorf("Content: got %q", req.Message.Body.Content)
	}
	if len(req.Message.ToRecipients) != 1 || req.Message.ToRecipients[0].EmailAddress.Address != "comms@example.com" {
		t.Errorf("ToRecipients: got %+v", req.Message.ToRecipients)
	}
	if len(req.Message.CcRecipients) != 1 {
		t.Errorf("CcRecipients: got %+v", req.Message.CcRecipients)
	}
	if !req.SaveToSentItems {
		t.Error("SaveToSentItems should be true")
	}

	data, err := json.Marshal(newSendMailRequest(&email.Email{To: []string{"a@example.com"}}, false))
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if strings.Contains(string(data), "ccRecipients") {
		t.Errorf("empty cc list should be omitted: %s", data)
	}
}

func TestGraphProvider_Name(t *testing.T) {
	t.Parallel()

	if got := New(GraphProviderConfig{}).Name(); got != "msgraph" {
		t.Errorf("Name: got %q, want %q", got, "msgraph")
	}
}

func TestGraphProvider_SendSuccess(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("Authorization: got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type: got %q", got)
		}
		var body sendMailRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if body.Message.Subject != "Maipú crece en obras" {
			t.Errorf("Subject: got %q", body.Message.Subject)
		}
		w.WriteHeader(http.StatusAccepted)
	})

	if err := p.Send(context.Background(), previewMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGraphProvider_NoRecipients(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	msg := previewMessage()
	msg.To = nil
	if err := p.Send(context.Background(), msg); err == nil {
		t.Fatal("expected error without recipients")
	}
	if calls.Load() != 0 {
		t.Errorf("requests: got %d, want 0", calls.Load())
	}
}

func TestGraphProvider_PermanentError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusForbidden, "ErrorAccessDenied", "Access is denied")
	})

	err := p.Send(context.Background(), previewMessage())

	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *apiError, got %T: %v", err, err)
	}
	if apiErr.status != http.StatusForbidden {
		t.Errorf("status: got %d", apiErr.status)
	}
	if !strings.Contains(err.Error(), "Access is denied") {
		t.Errorf("error should carry the API message: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("requests: got %d, want 1", calls.Load())
	}
}

func TestGraphProvider_RetryOn5xx(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			writeError(w, http.StatusServiceUnavailable, "ServiceUnavailable", "Try again")
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	if err := p.Send(context.Background(), previewMessage()); err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("requests: got %d, want 3", calls.Load())
	}
}

func TestGraphProvider_RetriesExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeError(w, http.StatusBadGateway, "BadGateway", "upstream")
	})

	err := p.Send(context.Background(), previewMessage())
	if err == nil || !strings.Contains(err.Error(), "after 3 retries") {
		t.Fatalf("expected retries exhausted error, got %v", err)
	}
	if calls.Load() != maxRetries+1 {
		t.Errorf("requests: got %d, want %d", calls.Load(), maxRetries+1)
	}
}

func TestGraphProvider_RefreshesTokenOn401(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeError(w, http.StatusUnauthorized, "InvalidAuthenticationToken", "Token expired")
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-2" {
			t.Errorf("Authorization after refresh: got %q", got)
		}
		w.WriteHeader(http.StatusAccepted)
	})

	if err := p.Send(context.Background(), previewMessage()); err != nil {
		t.Fatalf("expected success after token refresh, got: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("requests: got %d, want 2", calls.Load())
	}
}

func TestGraphProvider_RateLimit(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "not-a-number")
			writeError(w, http.StatusTooManyRequests, "TooManyRequests", "Rate limited")
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	if err := p.Send(context.Background(), previewMessage()); err != nil {
		t.Fatalf("expected success after rate limit retry, got: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("requests: got %d, want 2", calls.Load())
	}
}

func TestGraphProvider_ContextCancellation(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "unreachable")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Send(ctx, previewMessage()); err == nil {
		t.Error("expected error for cancelled context, got nil")
	}
}

func TestAPIError_Retryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{400, false},
		{401, true},
		{403, false},
		{404, false},
		{429, true},
		{500, true},
		{503, true},
	}

	for _, tt := range tests {
		if got := (&apiError{status: tt.status}).retryable(); got != tt.want {
			t.Errorf("retryable(%d): got %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	p := &GraphProvider{baseDelay: time.Second}

	if got := p.retryAfter("7", 0); got != 7*time.Second {
		t.Errorf("retryAfter(7): got %v", got)
	}
	if got := p.retryAfter("", 2); got != 4*time.Second {
		t.Errorf("retryAfter(empty, 2): got %v", got)
	}
	if got := p.retryAfter("Wed, 21 Oct 2015 07:28:00 GMT", 1); got != 2*time.Second {
		t.Errorf("retryAfter(date, 1): got %v", got)
	}
}

func TestAPIError_Error(t *testing.T) {
	t.Parallel()

	if got := (&apiError{status: 500, message: "boom"}).Error(); got != "Graph API error (HTTP 500): boom" {
		t.Errorf("Error(): got %q", got)
	}
	if got := (&apiError{message: "dial tcp: refused"}).Error(); got != "Graph API request failed: dial tcp: refused" {
		t.Errorf("Error(): got %q", got)
	}
}
