// Package file implements a Provider that saves the generated document as an
// .html file ready to be imported into a CRM.
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shineum/slicemail/internal/email"
)

// DefaultFileName is used when the message carries no file name.
const DefaultFileName = "maipu-mail.html"

// unsafeChars are characters rejected by common file systems.
var unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]+`)

// Provider writes documents into a directory.
type Provider struct {
	dir string
}

// New creates a Provider writing into dir. An empty dir means the working
// directory.
func New(dir string) *Provider {
	if dir == "" {
		dir = "."
	}
	return &Provider{dir: dir}
}

// Send writes the document to dir/FileName, replacing any existing file.
func (p *Provider) Send(_ context.Context, msg *email.Email) error {
	body := strings.TrimSpace(msg.HtmlBody)
	if body == "" {
		return fmt.Errorf("no HTML to save")
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	target := filepath.Join(p.dir, SanitizeFileName(msg.FileName))
	if err := os.WriteFile(target, []byte(body), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	slog.Info("email saved", "path", target, "bytes", len(body))
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "file"
}

// SanitizeFileName replaces runs of unsafe characters with "_" and makes sure
// the result is a usable .html file name.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultFileName
	}

	name = unsafeChars.ReplaceAllString(name, "_")
	if name == "." || name == ".." {
		return DefaultFileName
	}
	if filepath.Ext(name) == "" {
		name += ".html"
	}
	return name
}
