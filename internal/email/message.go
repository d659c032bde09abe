// Package email defines the data model shared by the uploaders, the fragment
// builder and the delivery providers.
package email

// Email is a generated document ready to be handed to a delivery provider.
type Email struct {
	From     string
	To       []string
	Cc       []string
	Subject  string
	HtmlBody string

	// FileName is the suggested name when the document is saved to disk.
	FileName string
}
