package ses

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/shineum/slicemail/internal/email"
)

// mockSESClient implements SendEmailAPI for testing.
type mockSESClient struct {
	sendFn    func(ctx context.Context, params *sesv2.SendEmailInput) (*sesv2.SendEmailOutput, error)
	callCount int
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.sendFn != nil {
		return m.sendFn(ctx, params)
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

func newTestProvider(mock *mockSESClient) *SESProvider {
	p := NewWithClient("mailing@example.com", mock)
	p.baseDelay = time.Millisecond
	return p
}

func previewMessage() *email.Email {
	return &email.Email{
		To:       []string{"comms@example.com"},
		Cc:       []string{"design@example.com"},
		Subject:  "Maipú crece en obras",
		HtmlBody: "<!DOCTYPE html>\n<html></html>",
	}
}

func TestName(t *testing.T) {
	t.Parallel()

	if got := NewWithClient("s@example.com", &mockSESClient{}).Name(); got != "ses" {
		t.Errorf("Name(): got %q, want %q", got, "ses")
	}
}

func TestSend_HTMLDocument(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	if err := newTestProvider(mock).Send(context.Background(), previewMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}

	in := mock.lastInput
	if got := *in.FromEmailAddress; got != "mailing@example.com" {
		t.Errorf("FromEmailAddress: got %q", got)
	}
	if got := in.Destination.ToAddresses; len(got) != 1 || got[0] != "comms@example.com" {
		t.Errorf("ToAddresses: got %v", got)
	}
	if got := in.Destination.CcAddresses; len(got) != 1 || got[0] != "design@example.com" {
		t.Errorf("CcAddresses: got %v", got)
	}
	if got := *in.Content.Simple.Subject.Data; got != "Maipú crece en obras" {
		t.Errorf("Subject: got %q", got)
	}
	if got := *in.Content.Simple.Body.Html.Data; !strings.HasPrefix(got, "<!DOCTYPE html>") {
		t.Errorf("Html: got %q", got)
	}
	if got := *in.Content.Simple.Body.Html.Charset; got != "UTF-8" {
		t.Errorf("Charset: got %q", got)
	}
	if in.Content.Simple.Body.Text != nil {
		t.Error("expected no text body")
	}
}

func TestSend_NoRecipients(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	msg := previewMessage()
	msg.To = nil

	if err := newTestProvider(mock).Send(context.Background(), msg); err == nil {
		t.Fatal("expected error without recipients")
	}
	if mock.callCount != 0 {
		t.Errorf("call count: got %d, want 0", mock.callCount)
	}
}

func TestSend_RetryOnError(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	mock.sendFn = func(ctx context.Context, params *sesv2.SendEmailInput) (*sesv2.SendEmailOutput, error) {
		if mock.callCount <= 2 {
			return nil, errors.New("throttled")
		}
		return &sesv2.SendEmailOutput{MessageId: aws.String("ok")}, nil
	}

	if err := newTestProvider(mock).Send(context.Background(), previewMessage()); err != nil {
		t.Fatalf("expected success after retry, got: %v", err)
	}
	if mock.callCount != 3 {
		t.Errorf("call count: got %d, want 3", mock.callCount)
	}
}

func TestSend_AllRetriesExhausted(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput) (*sesv2.SendEmailOutput, error) {
			return nil, errors.New("persistent error")
		},
	}

	err := newTestProvider(mock).Send(context.Background(), previewMessage())
	if err == nil {
		t.Fatal("expected error after all retries exhausted")
	}
	if !strings.Contains(err.Error(), "after 3 retries") {
		t.Errorf("error message: got %q", err.Error())
	}
	// 1 initial + 3 retries = 4 total
	if mock.callCount != 4 {
		t.Errorf("call count: got %d, want 4", mock.callCount)
	}
}

func TestSend_ContextCancelled(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput) (*sesv2.SendEmailOutput, error) {
			return nil, errors.New("error")
		},
	}
	p := NewWithClient("s@example.com", mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Send(ctx, previewMessage())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}
}

func TestBuildInput_FallsBackToMessageFrom(t *testing.T) {
	t.Parallel()

	msg := previewMessage()
	msg.From = "fallback@example.com"

	in := buildInput("", msg)
	if got := *in.FromEmailAddress; got != "fallback@example.com" {
		t.Errorf("FromEmailAddress: got %q", got)
	}
}

func TestBackoffDelay(t *testing.T) {
	t.Parallel()

	p := NewWithClient("s@example.com", &mockSESClient{})
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := p.backoffDelay(i + 1); got != w {
			t.Errorf("backoffDelay(%d): got %v, want %v", i+1, got, w)
		}
	}
}
