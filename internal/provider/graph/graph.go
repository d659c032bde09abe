package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shineum/slicemail/internal/email"
)

// maxRetries is the maximum number of retry attempts for transient failures.
const maxRetries = 3

// baseRetryDelay is the initial delay for exponential backoff.
const baseRetryDelay = 1 * time.Second

// GraphProviderConfig holds the configuration for creating a GraphProvider.
type GraphProviderConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// Sender is the mailbox the preview is sent from.
	Sender string

	// SaveToSentItems keeps a copy of every preview in the sender's mailbox.
	SaveToSentItems bool
}

// GraphProvider sends preview emails as the configured mailbox.
type GraphProvider struct {
	sendURL    string
	saveToSent bool
	httpClient *http.Client
	tokens     *tokenSource
	baseDelay  time.Duration
}

// New creates a new GraphProvider with the given configuration.
func New(cfg GraphProviderConfig) *GraphProvider {
	return newWithOverrides(
		cfg,
		fmt.Sprintf("https://graph.microsoft.com/v1.0/users/%s/sendMail", url.PathEscape(cfg.Sender)),
		fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID)),
		&http.Client{Timeout: 30 * time.Second},
	)
}

// newWithOverrides creates a GraphProvider with custom URLs and HTTP client,
// used for testing.
func newWithOverrides(cfg GraphProviderConfig, sendURL, tokenURL string, client *http.Client) *GraphProvider {
	return &GraphProvider{
		sendURL:    sendURL,
		saveToSent: cfg.SaveToSentItems,
		httpClient: client,
		tokens:     newTokenSource(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
		baseDelay:  baseRetryDelay,
	}
}

// Name returns the provider name.
func (g *GraphProvider) Name() string {
	return "msgraph"
}

// Send mails the document. Transient failures are retried with exponential
// backoff, HTTP 429 honours Retry-After, and a 401 refreshes the token once.
func (g *GraphProvider) Send(ctx context.Context, msg *email.Email) error {
	if len(msg.To) == 0 {
		return errors.New("no preview recipients configured")
	}

	payload, err := json.Marshal(newSendMailRequest(msg, g.saveToSent))
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	var lastErr error
	refreshed := false

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := g.post(ctx, payload)
		if err == nil {
			slog.Info("preview email sent", "provider", g.Name(), "recipients", len(msg.To)+len(msg.Cc))
			return nil
		}
		lastErr = err

		var apiErr *apiError
		if !errors.As(err, &apiErr) {
			return err
		}

		var delay time.Duration
		switch {
		case apiErr.status == http.StatusUnauthorized && !refreshed:
			slog.Info("refreshing Graph API token after 401")
			g.tokens.Invalidate()
			refreshed = true
			continue
		case apiErr.status == http.StatusTooManyRequests:
			delay = g.retryAfter(apiErr.retryAfter, attempt)
		case apiErr.retryable():
			delay = g.backoff(attempt)
		default:
			return apiErr
		}

		if attempt == maxRetries {
			break
		}
		slog.Info("Graph API request failed, retrying",
			"status", apiErr.status,
			"attempt", attempt+1,
			"delay", delay,
		)
		if err := sleepWithContext(ctx, delay); err != nil {
			return fmt.Errorf("context cancelled during retry wait: %w", err)
		}
	}

	return fmt.Errorf("Graph API request failed after %d retries: %w", maxRetries, lastErr)
}

// post performs one sendMail request.
func (g *GraphProvider) post(ctx context.Context, payload []byte) error {
	token, err := g.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.sendURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &apiError{message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	apiErr := &apiError{
		status:     resp.StatusCode,
		message:    string(body),
		retryAfter: resp.Header.Get("Retry-After"),
	}
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		apiErr.message = er.Error.Message
	}
	return apiErr
}

// apiError is a failed sendMail call. A zero status means the request never
// got a response.
type apiError struct {
	status     int
	message    string
	retryAfter string
}

func (e *apiError) Error() string {
	if e.status == 0 {
		return "Graph API request failed: " + e.message
	}
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.status, e.message)
}

// retryable reports whether the same request may succeed later.
func (e *apiError) retryable() bool {
	switch {
	case e.status == 0:
		return true
	case e.status == http.StatusUnauthorized, e.status == http.StatusTooManyRequests:
		return true
	case e.status >= 500:
		return true
	default:
		return false
	}
}

// retryAfter parses a Retry-After header given in seconds, falling back to
// exponential backoff.
func (g *GraphProvider) retryAfter(header string, attempt int) time.Duration {
	if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return g.backoff(attempt)
}

// backoff returns baseDelay * 2^attempt.
func (g *GraphProvider) backoff(attempt int) time.Duration {
	return g.baseDelay << attempt
}

// sleepWithContext waits for the specified duration or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
