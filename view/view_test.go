package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRenderer(t *testing.T, opts Options) *Renderer {
	t.Helper()
	v, err := New(opts, zap.NewNop())
	require.NoError(t, err)
	return v
}

func TestRender_PageInsideLayout(t *testing.T) {
	v := newRenderer(t, Options{
		Lang:  func(*http.Request) string { return "en" },
		Theme: func(*http.Request) string { return "dark" },
	})
	rec := httptest.NewRecorder()
	v.Render(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil), http.StatusForbidden, "forbidden", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, "Access denied")
	assert.Contains(t, body, `data-theme="dark"`)
	assert.Contains(t, body, `lang="en"`)
}

func TestRender_DefaultsHook(t *testing.T) {
	v := newRenderer(t, Options{
		Defaults: func(_ *http.Request, data map[string]any) { data["Flash"] = "flash_approved" },
	})
	rec := httptest.NewRecorder()
	v.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "not_found", nil)
	assert.Contains(t, rec.Body.String(), "Demande approuvée")
}

func TestRender_UnknownPage(t *testing.T) {
	v := newRenderer(t, Options{})
	rec := httptest.NewRecorder()
	v.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "nope", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{decimal.NewFromInt(25000), "$25,000.00"},
		{decimal.RequireFromString("499.5"), "$499.50"},
		{1234567.891, "$1,234,567.89"},
		{10, "$10.00"},
		{"-1500", "-$1,500.00"},
		{"abc", "abc"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Money(tt.in))
	}
}
