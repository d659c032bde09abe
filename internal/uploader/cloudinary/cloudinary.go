package cloudinary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/shineum/slicemail/internal/email"
	"github.com/shineum/slicemail/internal/uploader"
)

// DefaultAPIBase is the public Cloudinary API endpoint.
const DefaultAPIBase = "https://api.cloudinary.com"

// requestTimeout bounds a single upload request.
const requestTimeout = 30 * time.Second

// maxErrorBody caps how much of an error response is kept for diagnostics.
const maxErrorBody = 4096

// Config holds the configuration for creating an Uploader.
type Config struct {
	CloudName    string
	UploadPreset string

	// APIBase overrides DefaultAPIBase.
	APIBase string
}

// Uploader uploads images with an unsigned preset.
type Uploader struct {
	preset     string
	uploadURL  string
	httpClient *http.Client
}

// New creates a new Uploader with the given configuration.
func New(cfg Config) (*Uploader, error) {
	return newWithClient(cfg, &http.Client{Timeout: requestTimeout})
}

// newWithClient creates an Uploader with a custom HTTP client, used for testing.
func newWithClient(cfg Config, client *http.Client) (*Uploader, error) {
	if cfg.CloudName == "" || cfg.UploadPreset == "" {
		return nil, errors.New("cloudinary: cloud name and upload preset are required")
	}

	base := strings.TrimSuffix(cfg.APIBase, "/")
	if base == "" {
		base = DefaultAPIBase
	}

	return &Uploader{
		preset:     cfg.UploadPreset,
		uploadURL:  fmt.Sprintf("%s/v1_1/%s/image/upload", base, url.PathEscape(cfg.CloudName)),
		httpClient: client,
	}, nil
}

// Name returns the uploader name.
func (u *Uploader) Name() string {
	return "cloudinary"
}

// Optimize implements uploader.Optimizer.
func (u *Uploader) Optimize(link string) string {
	return Optimize(link)
}

// Upload sends the image in a multipart form and returns its delivery URL.
// There is no retry: the caller decides whether to start over.
func (u *Uploader) Upload(ctx context.Context, img email.Image) (email.RemoteImage, error) {
	body, contentType, err := u.buildForm(img)
	if err != nil {
		return email.RemoteImage{}, u.fail(img.Slot, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.uploadURL, body)
	if err != nil {
		return email.RemoteImage{}, u.fail(img.Slot, 0, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return email.RemoteImage{}, u.fail(img.Slot, 0, fmt.Errorf("HTTP request failed: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return email.RemoteImage{}, u.fail(img.Slot, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return email.RemoteImage{}, u.fail(img.Slot, resp.StatusCode, errors.New(errorMessage(data)))
	}

	var out uploadResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return email.RemoteImage{}, u.fail(img.Slot, resp.StatusCode, fmt.Errorf("failed to parse response: %w", err))
	}

	link := out.publicURL()
	if link == "" {
		return email.RemoteImage{}, u.fail(img.Slot, resp.StatusCode, errors.New("response carries no URL"))
	}

	slog.Debug("image uploaded",
		"provider", u.Name(),
		"slot", img.Slot,
		"public_id", out.PublicID,
		"bytes", out.Bytes,
		"duration", time.Since(start),
	)

	return email.RemoteImage{Slot: img.Slot, URL: link}, nil
}

// buildForm writes the upload_preset and file fields.
func (u *Uploader) buildForm(img email.Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("upload_preset", u.preset); err != nil {
		return nil, "", fmt.Errorf("failed to write preset field: %w", err)
	}

	mtype := mimetype.Detect(img.Data)
	filename := img.Filename
	if filename == "" {
		filename = string(img.Slot) + mtype.Extension()
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", mtype.String())

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

func (u *Uploader) fail(slot email.Slot, status int, err error) error {
	return &uploader.UploadError{
		Slot:       slot,
		Provider:   u.Name(),
		StatusCode: status,
		Err:        err,
	}
}

// errorMessage extracts the service's message, falling back to the raw body.
func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Message != "" {
		return er.Error.Message
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response body"
	}
	return msg
}
