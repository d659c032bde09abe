// Package cloudinary implements an Uploader that sends images to Cloudinary
// using an unsigned upload preset.
package cloudinary

// uploadResponse is the subset of the upload API response we use.
type uploadResponse struct {
	SecureURL string `json:"secure_url"`
	URL       string `json:"url"`
	PublicID  string `json:"public_id"`
	Format    string `json:"format"`
	Bytes     int64  `json:"bytes"`
}

// errorResponse represents an error response from the upload API.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// publicURL prefers the HTTPS URL.
func (r *uploadResponse) publicURL() string {
	if r.SecureURL != "" {
		return r.SecureURL
	}
	return r.URL
}
