package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"procurement/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator_RoundTrip(t *testing.T) {
	auth := NewAuthenticator([]byte("secret"))
	id := uuid.New()

	tests := []struct {
		name      string
		principal model.Principal
	}{
		{"requester", model.Requester(id, "Alice")},
		{"approver", model.ApproverAtLevel(id, "Bob", 2)},
		{"finance", model.Finance(id, "Fay")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := auth.IssueToken(tt.principal, time.Hour)
			require.NoError(t, err)
			got, err := auth.ParsePrincipal(token)
			require.NoError(t, err)
			assert.Equal(t, tt.principal, got)
		})
	}
}

func TestAuthenticator_Rejects(t *testing.T) {
	auth := NewAuthenticator([]byte("secret"))

	other, err := NewAuthenticator([]byte("other")).IssueToken(model.Requester(uuid.New(), "A"), time.Hour)
	require.NoError(t, err)
	_, err = auth.ParsePrincipal(other)
	assert.Error(t, err, "wrong signature")

	expired, err := auth.IssueToken(model.Requester(uuid.New(), "A"), -time.Minute)
	require.NoError(t, err)
	_, err = auth.ParsePrincipal(expired)
	assert.Error(t, err, "expired")

	noLevel := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "approver",
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	})
	signed, err := noLevel.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = auth.ParsePrincipal(signed)
	assert.ErrorContains(t, err, "without level")

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
	})
	signed, err = badRole.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = auth.ParsePrincipal(signed)
	assert.ErrorContains(t, err, "unknown role")
}

func TestRequireAuthAndRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	auth := NewAuthenticator([]byte("secret"))

	r := gin.New()
	r.GET("/finance", auth.RequireAuth(), RequireRole(model.RoleFinance), func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.String(http.StatusOK, p.Name)
	})

	finance, err := auth.IssueToken(model.Finance(uuid.New(), "Fay"), time.Hour)
	require.NoError(t, err)
	requester, err := auth.IssueToken(model.Requester(uuid.New(), "Alice"), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		cookie string
		code   int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"malformed header", "Token " + finance, "", http.StatusUnauthorized},
		{"wrong role", "Bearer " + requester, "", http.StatusForbidden},
		{"bearer", "Bearer " + finance, "", http.StatusOK},
		{"cookie", "", finance, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/finance", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusOK {
				assert.Equal(t, "Fay", w.Body.String())
			}
		})
	}
}
