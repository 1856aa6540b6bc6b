package requestid

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

var idPattern = regexp.MustCompile(`^[0-9]{28}$`)

func TestGenFormat(t *testing.T) {
	id := Gen()
	if !idPattern.MatchString(id) {
		t.Fatalf("unexpected id format: %q", id)
	}
}

func TestHelpers(t *testing.T) {
	if got := randomDigits(0); got != "" {
		t.Fatalf("randomDigits(0)=%q", got)
	}
	if s := randomDigits(12); len(s) != 12 || strings.Trim(s, "0123456789") != "" {
		t.Fatalf("randomDigits(12)=%q", s)
	}
	if got := cryptoRandIntn(0); got != 0 {
		t.Fatalf("cryptoRandIntn(0)=%d", got)
	}
	ts := time.Date(2026, 10, 16, 9, 8, 7, 654321000, time.UTC)
	if got := timeString(ts); got != "20261016090807654321" {
		t.Fatalf("timeString=%q", got)
	}
	if got := ResolveHeaderKey("  "); got != DefaultHeaderKey {
		t.Fatalf("ResolveHeaderKey blank=%q", got)
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(""))
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(DefaultHeaderKey))
	})

	t.Run("echoes caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(DefaultHeaderKey, "rid-1")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Header().Get(DefaultHeaderKey) != "rid-1" || w.Body.String() != "rid-1" {
			t.Fatalf("header=%q body=%q", w.Header().Get(DefaultHeaderKey), w.Body.String())
		}
	})

	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if id := w.Header().Get(DefaultHeaderKey); !idPattern.MatchString(id) || w.Body.String() != id {
			t.Fatalf("header=%q body=%q", id, w.Body.String())
		}
	})
}
