package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/sma-health-api/internal/models"
	"github.com/noah-isme/sma-health-api/internal/service"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, secret string, role models.UserRole) string {
	t.Helper()
	now := time.Now()
	claims := &models.JWTClaims{
		UserID: "user-1",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func protectedRouter(roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(nil, nil, nil, service.AuthConfig{AccessTokenSecret: testSecret})
	router := gin.New()
	router.Use(JWT(auth))
	if len(roles) > 0 {
		router.Use(RequireRoles(roles...))
	}
	router.GET("/", func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.String(http.StatusOK, claims.UserID)
	})
	return router
}

func request(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestJWTMiddleware(t *testing.T) {
	router := protectedRouter()

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"foreign signature", "Bearer " + signedToken(t, "other", models.RoleParent), http.StatusUnauthorized},
		{"valid token", "Bearer " + signedToken(t, testSecret, models.RoleParent), http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := request(router, tc.header)
			if recorder.Code != tc.status {
				t.Fatalf("unexpected status: %d", recorder.Code)
			}
		})
	}

	if got := request(router, "Bearer "+signedToken(t, testSecret, models.RoleParent)).Body.String(); got != "user-1" {
		t.Fatalf("claims not stored in context: %q", got)
	}
}

func TestRequireRoles(t *testing.T) {
	router := protectedRouter(models.RoleAdmin, models.RoleManager)

	if recorder := request(router, "Bearer "+signedToken(t, testSecret, models.RoleManager)); recorder.Code != http.StatusOK {
		t.Fatalf("manager should pass: %d", recorder.Code)
	}
	if recorder := request(router, "Bearer "+signedToken(t, testSecret, models.RoleSchoolNurse)); recorder.Code != http.StatusForbidden {
		t.Fatalf("nurse should be forbidden: %d", recorder.Code)
	}
}

func TestRBACWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequireRoles(models.RoleAdmin))
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	if recorder := request(router, ""); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", recorder.Code)
	}
}
