package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMimeType(t *testing.T) {
	assert.NoError(t, ValidateMimeType("text/plain"))
	assert.NoError(t, ValidateMimeType("text/plain; charset=utf-8"))
	assert.NoError(t, ValidateMimeType("APPLICATION/PDF"))
	assert.NoError(t, ValidateMimeType("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.Error(t, ValidateMimeType(""))
	assert.Error(t, ValidateMimeType("application/zip"))
	assert.Error(t, ValidateMimeType("image/png"))
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("risk-register.xlsx"))
	assert.Error(t, ValidateFilename(""))
	assert.Error(t, ValidateFilename("../../etc/passwd"))
	assert.Error(t, ValidateFilename("dir/file.txt"))
	assert.Error(t, ValidateFilename("bad\x00name.pdf"))
}

func TestValidateTenantID(t *testing.T) {
	assert.NoError(t, ValidateTenantID("acme-corp_01"))
	assert.Error(t, ValidateTenantID(""))
	assert.Error(t, ValidateTenantID("bad tenant"))
	assert.Error(t, ValidateTenantID("a/b"))
}

func TestValidateLimitAndDays(t *testing.T) {
	assert.Equal(t, 20, ValidateLimit(0))
	assert.Equal(t, 100, ValidateLimit(5000))
	assert.Equal(t, 50, ValidateLimit(50))
	assert.Equal(t, 7, ValidateDays(-1))
	assert.Equal(t, 365, ValidateDays(1000))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"acme": "secret-key"})(okHandler())

	t.Run("valid bearer key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/acme/jobs/latest", nil)
		req.Header.Set("Authorization", "Bearer secret-key")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/acme/jobs/latest", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/acme/jobs/latest", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("health bypasses auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireValidTenant(t *testing.T) {
	chain := APIKeyAuth(map[string]string{"acme": "secret-key"})(RequireValidTenant(okHandler()))

	t.Run("matching tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/acme/summary", nil)
		req.Header.Set("Authorization", "Bearer secret-key")
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("foreign tenant forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/globex/summary", nil)
		req.Header.Set("Authorization", "Bearer secret-key")
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("tenant missing from path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v2/other", nil)
		req.Header.Set("Authorization", "Bearer secret-key")
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(2, 1)(okHandler())

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/v1/acme/jobs/latest", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		return r
	}

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req())
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// other callers have their own bucket
	other := httptest.NewRequest(http.MethodGet, "/v1/acme/jobs/latest", nil)
	other.RemoteAddr = "10.0.0.2:9999"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}
