package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blokhub/blokhub/internal/app/system/identity"
	"github.com/blokhub/blokhub/internal/domain/models"
)

// WithIdentity sets the trusted gateway headers on a request so that the
// identity middleware (or identity.FromRequest directly) sees the user as
// signed in.
func WithIdentity(r *http.Request, user models.User) *http.Request {
	r.Header.Set(identity.HeaderSubject, user.SubjectID)
	r.Header.Set(identity.HeaderName, user.Name)
	r.Header.Set(identity.HeaderEmail, user.Email)
	if user.AvatarURL != "" {
		r.Header.Set(identity.HeaderPicture, user.AvatarURL)
	}
	return r
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewJSONRequest creates an HTTP request carrying a JSON body.
func NewJSONRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		buf = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewAuthenticatedRequest creates an HTTP request with identity headers set.
func NewAuthenticatedRequest(method, target string, user models.User) *http.Request {
	return WithIdentity(httptest.NewRequest(method, target, nil), user)
}

// DecodeJSON unmarshals a recorded response body into dst.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to parse response JSON: %v", err)
	}
}
