package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"github.com/sanosuguru/go-simple-meetup/internal/config"
)

func newMetricsServer(cfg config.MetricsConfig) *echo.Echo {
	e := echo.New()
	e.GET("/metrics", func(c echo.Context) error {
		return c.String(http.StatusOK, "metrics")
	}, MetricsBasicAuth(cfg))
	return e
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestMetricsBasicAuth_NoCredentials(t *testing.T) {
	// 認証設定がない場合はスキップ
	e := newMetricsServer(config.MetricsConfig{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestMetricsBasicAuth_PartialConfigSkipsAuth(t *testing.T) {
	e := newMetricsServer(config.MetricsConfig{User: "testuser"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsBasicAuth_WithCredentials(t *testing.T) {
	cfg := config.MetricsConfig{User: "testuser", Password: "testpass"}

	tests := []struct {
		name     string
		header   string
		expected int
	}{
		{name: "正しい認証情報", header: basicAuth("testuser", "testpass"), expected: http.StatusOK},
		{name: "間違った認証情報", header: basicAuth("wronguser", "wrongpass"), expected: http.StatusUnauthorized},
		{name: "パスワードのみ間違い", header: basicAuth("testuser", "wrongpass"), expected: http.StatusUnauthorized},
		{name: "Authorization ヘッダーなし", header: "", expected: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newMetricsServer(cfg)
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.expected, rec.Code)
			if tt.expected == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get(echo.HeaderWWWAuthenticate), "metrics")
			}
		})
	}
}
