package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/shineum/slicemail/internal/composer"
	"github.com/shineum/slicemail/internal/email"
	"github.com/shineum/slicemail/internal/uploader"
)

// maxMemory is the part of a multipart form kept in memory; the rest spills
// to temporary files.
const maxMemory = 8 << 20

// ProviderHeader names the provider that delivered the document.
const ProviderHeader = "X-Slicemail-Provider"

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}

// handleGenerate accepts a multipart form with optional header, body and
// footer files plus the bodyLink, fileName and deliver fields, and responds
// with the generated document.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	logger := loggerFrom(r.Context())

	if s.config.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			logger.Warn("upload too large", "limit", s.config.MaxUploadSize)
			http.Error(w, fmt.Sprintf("request exceeds %d bytes", s.config.MaxUploadSize), http.StatusRequestEntityTooLarge)
			return
		}
		logger.Warn("invalid multipart form", "error", err)
		http.Error(w, "expected a multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	images, err := readImages(r)
	if err != nil {
		logger.Warn("failed to read images", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	deliver := false
	if v := r.FormValue("deliver"); v != "" {
		deliver, err = strconv.ParseBool(v)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid deliver value %q", v), http.StatusBadRequest)
			return
		}
	}
	if deliver && s.config.Provider == nil {
		http.Error(w, "delivery is not configured", http.StatusBadRequest)
		return
	}

	result, err := s.config.Generator.Generate(r.Context(), composer.Request{
		Images:   images,
		BodyLink: r.FormValue("bodyLink"),
	})
	if err != nil {
		status := statusFor(err)
		logger.Error("generation failed", "status", status, "error", err)
		http.Error(w, err.Error(), status)
		return
	}

	if deliver {
		fileName := strings.TrimSpace(r.FormValue("fileName"))
		if fileName == "" {
			fileName = s.config.FileName
		}
		msg := &email.Email{
			To:       s.config.To,
			Cc:       s.config.Cc,
			Subject:  s.config.Subject,
			HtmlBody: result.HTML,
			FileName: fileName,
		}
		if err := s.config.Provider.Send(r.Context(), msg); err != nil {
			logger.Error("delivery failed", "provider", s.config.Provider.Name(), "error", err)
			http.Error(w, "delivery failed: "+err.Error(), http.StatusBadGateway)
			return
		}
		logger.Info("document delivered", "provider", s.config.Provider.Name())
		w.Header().Set(ProviderHeader, s.config.Provider.Name())
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, result.HTML)
}

// readImages collects the slot files present in the form in canonical order.
func readImages(r *http.Request) ([]email.Image, error) {
	var images []email.Image
	for _, slot := range email.Slots() {
		f, hdr, err := r.FormFile(string(slot))
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open %s file: %w", slot, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s file: %w", slot, err)
		}
		images = append(images, email.Image{
			Slot:     slot,
			Filename: hdr.Filename,
			Data:     data,
		})
	}
	return images, nil
}

// statusFor maps a generation error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, composer.ErrInput):
		return http.StatusBadRequest
	case errors.Is(err, uploader.ErrUpload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
