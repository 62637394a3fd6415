package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jwtSecret string

func (s jwtSecret) GetJWTAccessSecret() string { return string(s) }

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newAuthRouter(roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/", AuthRequired(jwtSecret("secret")))
	group.GET("/me", func(c *gin.Context) {
		id := MustGetIdentity(c)
		if id == nil {
			return
		}
		OK(c, gin.H{"id": id.UserID().String()})
	})
	if len(roles) > 0 {
		group.GET("/decide", RequireAnyRole(roles...), func(c *gin.Context) { OK(c, gin.H{}) })
	}
	return r
}

func TestAuthRequiredAcceptsAccessToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, "secret", jwt.MapClaims{
		"sub":  userID.String(),
		"type": "access",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newAuthRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), userID.String())
}

func TestAuthRequiredRejectsBadTokens(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong secret", "Bearer " + signToken(t, "other", jwt.MapClaims{"sub": uuid.NewString(), "type": "access"})},
		{"refresh token", "Bearer " + signToken(t, "secret", jwt.MapClaims{"sub": uuid.NewString(), "type": "refresh"})},
		{"bad subject", "Bearer " + signToken(t, "secret", jwt.MapClaims{"sub": "nope", "type": "access"})},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			newAuthRouter().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"errorCode":"UNAUTHORIZED"`)
		})
	}
}

func TestRequireAnyRole(t *testing.T) {
	tests := []struct {
		roles  []interface{}
		status int
	}{
		{[]interface{}{"approver"}, http.StatusOK},
		{[]interface{}{"sales", "admin"}, http.StatusOK},
		{[]interface{}{"sales"}, http.StatusForbidden},
		{nil, http.StatusForbidden},
	}

	for _, tc := range tests {
		token := signToken(t, "secret", jwt.MapClaims{"sub": uuid.NewString(), "type": "access", "roles": tc.roles})
		req := httptest.NewRequest(http.MethodGet, "/decide", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		newAuthRouter("approver", "admin").ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, "roles %v", tc.roles)
	}
}
