package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func signedRequest(secret, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set(SignatureHeader, hmacSHA256(secret, []byte(body)))
	return req
}

func TestSignatureValid(t *testing.T) {
	m := NewSignatureMiddleware("topsecret")
	rec := httptest.NewRecorder()

	m.Handler(okHandler()).ServeHTTP(rec, signedRequest("topsecret", `{"userId":"u1"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignatureMissing(t *testing.T) {
	m := NewSignatureMiddleware("topsecret")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))

	m.Handler(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing signature")
}

func TestSignatureInvalid(t *testing.T) {
	m := NewSignatureMiddleware("topsecret")
	rec := httptest.NewRecorder()

	m.Handler(okHandler()).ServeHTTP(rec, signedRequest("wrong-secret", `{}`))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid signature")
}

func TestSignatureBypassedWithoutSecret(t *testing.T) {
	m := NewSignatureMiddleware("")
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))

	m.Handler(okHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignatureBodyStillReadable(t *testing.T) {
	m := NewSignatureMiddleware("topsecret")
	rec := httptest.NewRecorder()

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		seen = string(buf[:n])
		w.WriteHeader(http.StatusOK)
	})

	m.Handler(inner).ServeHTTP(rec, signedRequest("topsecret", `{"userId":"u1"}`))

	assert.Equal(t, `{"userId":"u1"}`, seen)
}
