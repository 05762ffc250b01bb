package ingest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const testSecret = "shift-change-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func authedEcho() *echo.Echo {
	e := echo.New()
	group := e.Group("/ingest", RequireToken(testSecret))
	group.POST("/events", func(c echo.Context) error {
		producer, _ := c.Get("producer").(string)
		return c.String(http.StatusOK, producer)
	})
	return e
}

func doPost(e *echo.Echo, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ingest/events", strings.NewReader("{}"))
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireToken_ValidToken(t *testing.T) {
	e := authedEcho()
	token := signToken(t, testSecret, jwt.MapClaims{
		"sub": "etl-producer",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	rec := doPost(e, "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "etl-producer" {
		t.Errorf("expected producer from subject claim, got %q", rec.Body.String())
	}
}

func TestRequireToken_Rejections(t *testing.T) {
	e := authedEcho()

	expired := signToken(t, testSecret, jwt.MapClaims{
		"sub": "etl-producer",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	wrongKey := signToken(t, "some-other-secret", jwt.MapClaims{
		"sub": "etl-producer",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired token", "Bearer " + expired},
		{"wrong signing key", "Bearer " + wrongKey},
	}
	for _, tc := range cases {
		if rec := doPost(e, tc.header); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", tc.name, rec.Code)
		}
	}
}
