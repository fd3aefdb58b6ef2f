package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realaman90/koda-sub002/infrastructure/config"
)

func TestInitializeContainer(t *testing.T) {
	tests := []struct {
		name         string
		configure    func(*config.Config)
		graphsStatus int
	}{
		{name: "dev user", configure: func(*config.Config) {}, graphsStatus: http.StatusOK},
		{name: "jwt required", configure: func(c *config.Config) { c.JWTSecret = "secret" }, graphsStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			cfg := config.Defaults()
			cfg.Environment = "test"
			tt.configure(cfg)
			require.NoError(t, cfg.Validate())

			// Act
			c, err := InitializeContainer(context.Background(), cfg)

			// Assert
			require.NoError(t, err)
			assert.Same(t, cfg, c.Config)
			assert.Nil(t, c.Watcher, "no capabilities file configured")
			require.NotNil(t, c.Sessions)
			require.NotNil(t, c.Router)

			handler := c.Router.Setup()
			for path, want := range map[string]int{
				"/health":        http.StatusOK,
				"/api/v1/graphs": tt.graphsStatus,
			} {
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				assert.Equal(t, want, rec.Code, path)
			}

			_, err = c.Sessions.Open(context.Background(), "g1", "dev-user")
			require.NoError(t, err)
			assert.NoError(t, c.Shutdown(context.Background()))
		})
	}
}
