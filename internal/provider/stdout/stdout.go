// Package stdout implements a Provider that prints the generated document to
// standard output so it can be piped or copied.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/slicemail/internal/email"
)

// Provider prints the HTML document.
type Provider struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Provider that writes to os.Stdout.
func New() *Provider {
	return &Provider{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Provider that writes to the given writer.
func NewWithWriter(w io.Writer) *Provider {
	return &Provider{writer: w}
}

// Send writes the trimmed document followed by a newline. Write errors are
// ignored.
func (p *Provider) Send(_ context.Context, msg *email.Email) error {
	fmt.Fprintln(p.writer, strings.TrimSpace(msg.HtmlBody))
	return nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "stdout"
}
