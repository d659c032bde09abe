package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthenticator_Enabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		user, pass string
		want       bool
	}{
		{"op", "secret", true},
		{"op", "", false},
		{"", "secret", false},
		{"", "", false},
	}
	for _, tt := range tests {
		if got := NewAuthenticator(tt.user, tt.pass).Enabled(); got != tt.want {
			t.Errorf("Enabled(%q, %q): got %v, want %v", tt.user, tt.pass, got, tt.want)
		}
	}
}

func TestAuthenticator_Verify(t *testing.T) {
	t.Parallel()

	a := NewAuthenticator("op", "secret")

	tests := []struct {
		name       string
		user, pass string
		want       bool
	}{
		{"valid", "op", "secret", true},
		{"wrong password", "op", "nope", false},
		{"wrong user", "admin", "secret", false},
		{"prefix", "op", "secre", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		if got := a.Verify(tt.user, tt.pass); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestAuthenticator_Middleware(t *testing.T) {
	t.Parallel()

	srv := New(ServerConfig{
		Generator:    &fakeGenerator{html: "<html></html>"},
		AuthUsername: "op",
		AuthPassword: "secret",
	})
	h := srv.Handler()

	tests := []struct {
		name       string
		user, pass string
		setAuth    bool
		want       int
	}{
		{"missing", "", "", false, http.StatusUnauthorized},
		{"wrong", "op", "wrong", true, http.StatusUnauthorized},
		{"valid", "op", "secret", true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			body, ct := newForm(t, map[string][]byte{"body": pngData}, nil)
			req := httptest.NewRequest(http.MethodPost, "/generate", body)
			req.Header.Set("Content-Type", ct)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate challenge")
			}
		})
	}
}
