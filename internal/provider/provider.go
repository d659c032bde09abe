// Package provider defines the interface for backends that deliver a
// generated email document.
package provider

import (
	"context"

	"github.com/shineum/slicemail/internal/email"
)

// Provider is the interface that delivery backends must implement.
// A provider receives the finished document and hands it to its destination:
// a terminal, a file on disk, or a preview inbox.
type Provider interface {
	// Send delivers the document through this provider.
	// It returns an error if the delivery fails.
	Send(ctx context.Context, msg *email.Email) error

	// Name returns the human-readable name of this provider.
	Name() string
}
