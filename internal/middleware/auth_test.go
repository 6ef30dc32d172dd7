package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navidizedy/NavidShop/internal/auth"
)

var testSecret = []byte("test-secret")

func newProtectedRouter(admin bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	group := router.Group("/")
	group.Use(AuthMiddleware(testSecret))
	if admin {
		group.Use(AdminMiddleware())
	}
	group.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userID": c.GetInt64("userID"),
			"role":   c.GetString("userRole"),
		})
	})

	return router
}

func doRequest(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	w := doRequest(newProtectedRouter(false), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareMalformedHeader(t *testing.T) {
	w := doRequest(newProtectedRouter(false), "Token abc123")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareInvalidToken(t *testing.T) {
	w := doRequest(newProtectedRouter(false), "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken([]byte("other-secret"), 7, "USER")
	require.NoError(t, err)

	w := doRequest(newProtectedRouter(false), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, 7, "USER")
	require.NoError(t, err)

	w := doRequest(newProtectedRouter(false), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"userID": 7, "role": "USER"}`, w.Body.String())
}

func TestAdminMiddlewareRejectsNonAdmin(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, 7, "USER")
	require.NoError(t, err)

	w := doRequest(newProtectedRouter(true), "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminMiddlewareAllowsAdmin(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, 1, "ADMIN")
	require.NoError(t, err)

	w := doRequest(newProtectedRouter(true), "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
}
