package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/realaman90/koda-sub002/pkg/auth"
	"github.com/realaman90/koda-sub002/pkg/observability"
)

func whoAmI(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusTeapot)
		return
	}
	_, _ = w.Write([]byte(user.UserID))
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{name: "bearer header", header: "Bearer abc", want: "abc"},
		{name: "lowercase scheme", header: "bearer  abc ", want: "abc"},
		{name: "raw header", header: "abc", want: "abc"},
		{name: "query fallback", query: "xyz", want: "xyz"},
		{name: "header wins", header: "Bearer abc", query: "xyz", want: "abc"},
		{name: "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/graphs"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			r := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, extractToken(r))
		})
	}
}

func TestAuthenticate(t *testing.T) {
	// Arrange
	cfg := auth.JWTConfig{SecretKey: "secret", Issuer: "koda"}
	validator, err := auth.NewJWTValidator(cfg)
	require.NoError(t, err)
	generator, err := auth.NewJWTGenerator(cfg)
	require.NoError(t, err)
	token, err := generator.GenerateToken("user-7", "u@example.com", nil)
	require.NoError(t, err)
	handler := Authenticate(validator, zaptest.NewLogger(t))(http.HandlerFunc(whoAmI))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "valid", header: "Bearer " + token, wantStatus: http.StatusOK, wantBody: "user-7"},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, r)

			// Assert
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
				return
			}
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "UNAUTHORIZED", body["type"])
		})
	}
}

func TestAnonymous(t *testing.T) {
	rec := httptest.NewRecorder()
	Anonymous("dev")(http.HandlerFunc(whoAmI)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev", rec.Body.String())
}

func TestLogger_RecordsRoutePattern(t *testing.T) {
	metrics := observability.NewCollector("koda_mw_test")
	r := chi.NewRouter()
	r.Use(Logger(zaptest.NewLogger(t), metrics))
	r.Get("/graphs/{graphID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/graphs/g1", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/graphs/{graphID}", "202")))
}

func TestLogger_NilMetrics(t *testing.T) {
	h := Logger(zaptest.NewLogger(t), nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() { h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/x", nil)) })
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
