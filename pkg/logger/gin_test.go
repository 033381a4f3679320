package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestMiddleware_AssignsRequestIDAndLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	l := NewWithWriter("production", &buf)

	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/x", func(c *gin.Context) {
		From(c.Request.Context()).Info("inside handler")
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, "not-a-uuid")
	r.ServeHTTP(w, req)

	rid := w.Header().Get(headerRequestID)
	if _, err := uuid.Parse(rid); err != nil {
		t.Fatalf("expected generated uuid request id, got %q", rid)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	for _, line := range lines {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("log line is not json: %v", err)
		}
		if rec["request_id"] != rid {
			t.Fatalf("expected request_id %q on every line, got %v", rid, rec["request_id"])
		}
	}
}

func TestMiddleware_KeepsValidRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Middleware(NewWithWriter("production", &bytes.Buffer{})))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rid := uuid.NewString()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(headerRequestID, rid)
	r.ServeHTTP(w, req)

	if got := w.Header().Get(headerRequestID); got != rid {
		t.Fatalf("expected %q, got %q", rid, got)
	}
}
