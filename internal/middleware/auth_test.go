package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func jwtTestRouter() *gin.Engine {
	router := gin.New()
	router.GET("/protected", JWTAuth(), func(c *gin.Context) {
		userID, _ := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": userID})
	})
	return router
}

func TestJWTAuthMissingHeader(t *testing.T) {
	SetJWTSecret("test-secret")
	router := jwtTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthMalformedHeader(t *testing.T) {
	SetJWTSecret("test-secret")
	router := jwtTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Basic abc123")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuthValidToken(t *testing.T) {
	SetJWTSecret("test-secret")
	router := jwtTestRouter()

	token, err := GenerateToken("user-42", "user@example.com", time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-42")
}

func TestJWTAuthExpiredToken(t *testing.T) {
	SetJWTSecret("test-secret")
	router := jwtTestRouter()

	token, err := GenerateToken("user-42", "user@example.com", -time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOptionalJWTAuthAnonymousPasses(t *testing.T) {
	SetJWTSecret("test-secret")
	router := gin.New()
	router.GET("/open", OptionalJWTAuth(), func(c *gin.Context) {
		_, authed := GetUserID(c)
		c.JSON(http.StatusOK, gin.H{"authed": authed})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "false")
}

func sharedSecretRouter(configured string) *gin.Engine {
	router := gin.New()
	router.POST("/admin/task", SharedSecretAuth(configured), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func TestSharedSecretAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		provided   string
		wantStatus int
	}{
		{"valid key", "secret-key", "secret-key", http.StatusOK},
		{"wrong key", "secret-key", "other-key", http.StatusUnauthorized},
		{"missing key", "secret-key", "", http.StatusUnauthorized},
		{"unconfigured server", "", "anything", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := sharedSecretRouter(tt.configured)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/admin/task", nil)
			if tt.provided != "" {
				req.Header.Set("X-Ingest-Key", tt.provided)
			}
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestSharedSecretAuthWrongMethod(t *testing.T) {
	router := sharedSecretRouter("secret-key")
	router.HandleMethodNotAllowed = true

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/task", nil)
	req.Header.Set("X-Ingest-Key", "secret-key")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
